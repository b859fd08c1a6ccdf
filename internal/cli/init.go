package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ppiankov/sentinel/internal/config"
	"github.com/ppiankov/sentinel/internal/constraint"
)

var (
	initMode  string
	initForce bool
)

func init() {
	initCmd.Flags().StringVar(&initMode, "mode", "user", "Config location: user (~/.sentinel) or system (/etc/sentinel)")
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing config files")
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap sentinel configuration",
	Long: `Creates the config directory with a default config.yaml and the
built-in constraint set in constraints.yaml.

User mode (default):  writes to ~/.sentinel/
System mode:          writes to /etc/sentinel/ (requires root)`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	configDir, err := initConfigDir()
	if err != nil {
		return err
	}
	out := stdout(cmd)

	var created []string

	configFile := filepath.Join(configDir, "config.yaml")
	content := strings.ReplaceAll(config.DefaultYAML(), "~/.sentinel", configDir)
	if wrote, err := writeIfMissing(configFile, content); err != nil {
		return err
	} else if wrote {
		created = append(created, configFile)
	}

	constraintsFile := filepath.Join(configDir, "constraints.yaml")
	constraintsContent, err := defaultConstraintsYAML()
	if err != nil {
		return fmt.Errorf("generate default constraints: %w", err)
	}
	if wrote, err := writeIfMissing(constraintsFile, constraintsContent); err != nil {
		return err
	} else if wrote {
		created = append(created, constraintsFile)
	}

	fmt.Fprintln(out, "sentinel init complete.")
	fmt.Fprintln(out)
	if len(created) > 0 {
		fmt.Fprintln(out, "Created:")
		for _, path := range created {
			fmt.Fprintf(out, "  %s\n", path)
		}
	} else {
		fmt.Fprintln(out, "All files already exist (use --force to overwrite).")
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Try:")
	fmt.Fprintln(out, `  sentinel check "notify the on-call counsellor"`)
	return nil
}

// initConfigDir returns the configuration directory based on mode.
func initConfigDir() (string, error) {
	switch initMode {
	case "system":
		return "/etc/sentinel", nil
	case "user", "":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		return filepath.Join(home, ".sentinel"), nil
	default:
		return "", fmt.Errorf("unknown mode %q: use 'user' or 'system'", initMode)
	}
}

// writeIfMissing writes content to path if it doesn't exist or --force is set.
// Returns true if the file was written.
func writeIfMissing(path, content string) (bool, error) {
	if !initForce {
		if _, err := os.Stat(path); err == nil {
			return false, nil
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, fmt.Errorf("create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		return false, fmt.Errorf("write %s: %w", path, err)
	}
	return true, nil
}

// defaultConstraintsYAML renders the built-in constraints with a header.
func defaultConstraintsYAML() (string, error) {
	data, err := constraint.Default().Marshal()
	if err != nil {
		return "", err
	}
	header := "# sentinel constraints.\n" +
		"# Triggers are case-insensitive substrings of the action text.\n" +
		"# Exceptions are substrings of the action context that excuse a match.\n" +
		"# Levels: critical, high, medium, low. A critical violation means shutdown.\n\n"
	return header + string(data), nil
}
