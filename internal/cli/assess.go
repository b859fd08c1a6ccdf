package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/sentinel/internal/advisor"
	"github.com/ppiankov/sentinel/internal/model"
	"github.com/ppiankov/sentinel/internal/service"
)

var (
	assessFile     string
	assessOperator string
	assessSave     bool
	assessAdvise   bool
	assessFormat   string
)

func init() {
	rootCmd.AddCommand(assessCmd)
	assessCmd.Flags().StringVarP(&assessFile, "file", "f", "", "Threat identification YAML ('-' for stdin) (required)")
	assessCmd.Flags().StringVar(&assessOperator, "operator", "", "Operator responsible for the assessment (default $USER)")
	assessCmd.Flags().BoolVar(&assessSave, "save", false, "Store the assessment as a draft for review")
	assessCmd.Flags().BoolVar(&assessAdvise, "advise", false, "Ask the configured advisor to rank the options")
	assessCmd.Flags().StringVar(&assessFormat, "format", "text", "Output format (text|json)")
	assessCmd.MarkFlagRequired("file")
}

var assessCmd = &cobra.Command{
	Use:   "assess",
	Short: "Create a risk assessment from a threat identification",
	Long: "Reads a threat identification (whoAtRisk, harmType, harmDescription,\n" +
		"timeFrame) and prints the estimate, intervention options, flags and\n" +
		"recommendation. Nothing is executed: every option requires human review.",
	RunE: runAssess,
}

func runAssess(cmd *cobra.Command, args []string) error {
	ident, err := readIdentification(cmd, assessFile)
	if err != nil {
		return err
	}
	operator := assessOperator
	if operator == "" {
		operator = os.Getenv("USER")
	}

	rt, err := openRuntime(cmd.Context(), cfg, runtimeOptions{store: assessSave})
	if err != nil {
		return err
	}
	defer rt.Close()

	res, err := rt.svc.Assess(cmd.Context(), ident, operator, assessSave)
	if err != nil {
		return err
	}

	var suggestions []advisor.Suggestion
	if assessAdvise {
		if suggestions, err = rt.svc.AdviseOn(cmd.Context(), res.Assessment); err != nil {
			return fmt.Errorf("advisor: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if assessFormat == "json" {
		return writeJSON(out, struct {
			*service.AssessResult
			Suggestions []advisor.Suggestion `json:"suggestions,omitempty"`
		}{res, suggestions})
	}
	printAssessment(out, res.Assessment, res.RiskScore, string(res.RiskLevel))
	if res.Saved {
		fmt.Fprintf(out, "\nSaved as draft %s. Submit for review with: sentinel submit %s\n", res.Assessment.ID, res.Assessment.ID)
	}
	if len(suggestions) > 0 {
		printSuggestions(out, suggestions)
	}
	return nil
}

func readIdentification(cmd *cobra.Command, path string) (model.ThreatIdentification, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return model.ThreatIdentification{}, fmt.Errorf("read identification: %w", err)
	}

	var ident model.ThreatIdentification
	if err := yaml.Unmarshal(data, &ident); err != nil {
		return model.ThreatIdentification{}, fmt.Errorf("parse identification: %w", err)
	}
	return ident, nil
}

func printAssessment(w io.Writer, a *model.RiskAssessment, score int, level string) {
	fmt.Fprintf(w, "Assessment %s (%s)\n", a.ID, a.Status)
	fmt.Fprintf(w, "  At risk:   %s\n", strings.Join(a.Identification.WhoAtRisk, ", "))
	fmt.Fprintf(w, "  Harm:      %s, %s\n", a.Identification.HarmType, a.Identification.TimeFrame)
	fmt.Fprintf(w, "  Estimate:  probability %s, severity %s, uncertainty %s\n",
		a.Estimate.Probability, a.Estimate.Severity, a.Estimate.Uncertainty)
	fmt.Fprintf(w, "  Risk:      %d (%s)\n", score, level)
	if a.Estimate.RationaleBrief != "" {
		fmt.Fprintf(w, "  Rationale: %s\n", a.Estimate.RationaleBrief)
	}

	fmt.Fprintln(w, "\nOptions:")
	for _, o := range a.Options {
		marker := " "
		if a.Recommendation != nil && *a.Recommendation == o.ID {
			marker = "*"
		}
		fmt.Fprintf(w, " %s %-10s effectiveness=%s legal=%s reversible=%t\n",
			marker, o.ID, o.EstimatedEffectiveness, o.LegalStatus, o.IsReversible)
		fmt.Fprintf(w, "     %s\n", o.Description)
		if o.ViolatesConstraints {
			for _, v := range o.ConstraintCheck.Violations {
				fmt.Fprintf(w, "     VIOLATES %s: %s\n", v.ConstraintName, v.Reason)
			}
		}
	}

	if len(a.Flags) > 0 {
		fmt.Fprintln(w, "\nFlags:")
		for _, f := range a.Flags {
			fmt.Fprintf(w, "  [%s] %s\n", strings.ToUpper(string(f.Severity)), f.Message)
		}
	}

	if a.Recommendation != nil {
		fmt.Fprintf(w, "\nRecommendation: %s (requires human approval)\n", *a.Recommendation)
	} else {
		fmt.Fprintln(w, "\nRecommendation: none (no option qualifies; escalate to a human)")
	}
}

func printSuggestions(w io.Writer, suggestions []advisor.Suggestion) {
	fmt.Fprintln(w, "\nAdvisor ranking:")
	for _, s := range suggestions {
		if s.Withheld {
			fmt.Fprintf(w, "  %d. %s (rationale withheld: failed constraint check)\n", s.Rank, s.OptionID)
			continue
		}
		fmt.Fprintf(w, "  %d. %s: %s\n", s.Rank, s.OptionID, s.Rationale)
	}
}
