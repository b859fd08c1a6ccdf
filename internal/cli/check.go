package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sentinel/internal/client"
	"github.com/ppiankov/sentinel/internal/constraint"
	"github.com/ppiankov/sentinel/internal/model"
)

var (
	checkContext string
	checkServer  string
	checkActor   string
	checkFormat  string
)

func init() {
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(reportCmd)
	for _, c := range []*cobra.Command{checkCmd, reportCmd} {
		c.Flags().StringVar(&checkContext, "context", "", "Circumstances that may qualify for a constraint exception")
		c.Flags().StringVar(&checkServer, "server", "", "Remote sentinel gRPC address (fail-closed when unreachable)")
		c.Flags().StringVar(&checkActor, "actor", "cli", "Actor recorded in the audit log")
		c.Flags().StringVarP(&checkFormat, "format", "f", "text", "Output format (text|json)")
	}
}

var checkCmd = &cobra.Command{
	Use:   "check <action>",
	Short: "Check a proposed action against the constraints",
	Long: "Evaluates an action description against every active constraint.\n\n" +
		"Exit code 0 if the action passes, 1 if any constraint is violated,\n" +
		"2 if a critical violation requires shutdown.",
	Args: cobra.MinimumNArgs(1),
	RunE: runCheck,
}

var reportCmd = &cobra.Command{
	Use:   "report <action>",
	Short: "Check an action and print a compliance report",
	Long:  "Like check, but adds per-violation recommendations and a suggested alternative.",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runReport,
}

func runCheck(cmd *cobra.Command, args []string) error {
	action := strings.Join(args, " ")
	result, err := checkAction(cmd, action)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if checkFormat == "json" {
		if err := writeJSON(out, result); err != nil {
			return err
		}
	} else {
		fmt.Fprint(out, constraint.FormatCheckResult(result))
	}
	exitFor(result)
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	action := strings.Join(args, " ")

	var rep constraint.Report
	if checkServer != "" {
		c, err := client.New(checkServer)
		if err != nil {
			return err
		}
		defer c.Close()
		if rep, err = c.Report(action, checkContext, checkActor); err != nil {
			return fmt.Errorf("remote report failed: %w", err)
		}
	} else {
		rt, err := openRuntime(cmd.Context(), cfg, runtimeOptions{})
		if err != nil {
			return err
		}
		defer rt.Close()
		if rep, err = rt.svc.Report(cmd.Context(), checkActor, action, checkContext); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if checkFormat == "json" {
		return writeJSON(out, rep)
	}
	fmt.Fprint(out, rep.Summary)
	for _, v := range rep.Violations {
		fmt.Fprintf(out, "\n%s:\n  %s\n", v.ConstraintName, v.Recommendation)
	}
	if rep.SuggestedAlternative != "" {
		fmt.Fprintf(out, "\nSuggested alternative:\n  %s\n", rep.SuggestedAlternative)
	}
	return nil
}

// checkAction evaluates locally, or remotely with fail-closed semantics
// when --server is set.
func checkAction(cmd *cobra.Command, action string) (model.ConstraintCheckResult, error) {
	if checkServer != "" {
		c, err := client.New(checkServer)
		if err != nil {
			return model.ConstraintCheckResult{}, err
		}
		defer c.Close()
		return c.Check(action, checkContext, checkActor)
	}

	rt, err := openRuntime(cmd.Context(), cfg, runtimeOptions{})
	if err != nil {
		return model.ConstraintCheckResult{}, err
	}
	defer rt.Close()
	return rt.svc.Check(cmd.Context(), checkActor, action, checkContext)
}

// exitFor exits non-zero when result failed.
var exitFor = func(result model.ConstraintCheckResult) {
	switch {
	case constraint.ShouldShutdown(result):
		os.Exit(2)
	case !result.Passed:
		os.Exit(1)
	}
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
