package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sentinel/internal/constraint"
)

var constraintsFormat string

func init() {
	rootCmd.AddCommand(constraintsCmd)
	constraintsCmd.Flags().StringVarP(&constraintsFormat, "format", "f", "text", "Output format (text|json|yaml)")
}

var constraintsCmd = &cobra.Command{
	Use:   "constraints",
	Short: "Show the active constraint set",
	RunE:  runConstraints,
}

func runConstraints(cmd *cobra.Command, args []string) error {
	set, err := constraint.LoadSet(cfg.Constraints)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch constraintsFormat {
	case "json":
		return writeJSON(out, map[string]any{"hash": set.Hash(), "constraints": set.Constraints()})
	case "yaml":
		data, err := set.Marshal()
		if err != nil {
			return err
		}
		_, err = out.Write(data)
		return err
	}

	fmt.Fprintf(out, "%d constraints (%s)\n\n", set.Len(), set.Hash())
	for _, c := range set.Constraints() {
		fmt.Fprintf(out, "[%s] %s (%s)\n", strings.ToUpper(string(c.Level)), c.Name, c.ID)
		fmt.Fprintf(out, "  %s\n", c.Description)
		if len(c.Exceptions) > 0 {
			fmt.Fprintf(out, "  exceptions: %s\n", strings.Join(c.Exceptions, ", "))
		}
	}
	return nil
}
