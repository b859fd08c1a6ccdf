package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sentinel/internal/model"
)

var (
	reviewActor  string
	reviewFormat string
)

func init() {
	rootCmd.AddCommand(listCmd, scoreCmd, adviseCmd)
	for _, t := range transitionCmds {
		rootCmd.AddCommand(t)
		t.Flags().StringVar(&reviewActor, "actor", "", "Reviewer recorded in the audit log (default $USER)")
	}
	for _, c := range []*cobra.Command{listCmd, scoreCmd, adviseCmd} {
		c.Flags().StringVarP(&reviewFormat, "format", "f", "text", "Output format (text|json)")
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored assessments",
	RunE:  runList,
}

var scoreCmd = &cobra.Command{
	Use:   "score <id>",
	Short: "Show the risk score of a stored assessment",
	Args:  cobra.ExactArgs(1),
	RunE:  runScore,
}

var adviseCmd = &cobra.Command{
	Use:   "advise <id>",
	Short: "Ask the advisor to rank the options of a stored assessment",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdvise,
}

var transitionCmds = []*cobra.Command{
	transitionCmd("submit", model.StatusPendingApproval, "Submit a draft assessment for approval"),
	transitionCmd("approve", model.StatusApproved, "Approve a pending assessment"),
	transitionCmd("reject", model.StatusRejected, "Reject a pending assessment"),
	transitionCmd("execute", model.StatusExecuted, "Mark an approved assessment as executed"),
}

func transitionCmd(use string, to model.Status, short string) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(cmd, args[0], to)
		},
	}
}

func runTransition(cmd *cobra.Command, id string, to model.Status) error {
	actor := reviewActor
	if actor == "" {
		actor = os.Getenv("USER")
	}

	rt, err := openRuntime(cmd.Context(), cfg, runtimeOptions{store: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	a, err := rt.svc.Transition(cmd.Context(), id, to, actor)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", a.ID, a.Status)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context(), cfg, runtimeOptions{store: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	list, err := rt.svc.List(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if reviewFormat == "json" {
		if list == nil {
			list = []*model.RiskAssessment{}
		}
		return writeJSON(out, list)
	}
	if len(list) == 0 {
		fmt.Fprintln(out, "No assessments.")
		return nil
	}
	fmt.Fprintf(out, "%-36s  %-16s  %-20s  %-10s  %s\n", "ID", "STATUS", "HARM", "RECOMMEND", "CREATED")
	for _, a := range list {
		rec := "-"
		if a.Recommendation != nil {
			rec = string(*a.Recommendation)
		}
		fmt.Fprintf(out, "%-36s  %-16s  %-20s  %-10s  %s\n",
			a.ID, a.Status, a.Identification.HarmType, rec, a.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	return nil
}

func runScore(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context(), cfg, runtimeOptions{store: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	sc, err := rt.svc.Score(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if reviewFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), sc)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d (%s)\n", sc.ID, sc.RiskScore, sc.RiskLevel)
	return nil
}

func runAdvise(cmd *cobra.Command, args []string) error {
	rt, err := openRuntime(cmd.Context(), cfg, runtimeOptions{store: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	suggestions, err := rt.svc.Advise(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if reviewFormat == "json" {
		return writeJSON(cmd.OutOrStdout(), suggestions)
	}
	printSuggestions(cmd.OutOrStdout(), suggestions)
	return nil
}
