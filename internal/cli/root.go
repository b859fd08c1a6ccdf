package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ppiankov/sentinel/internal/config"
)

var (
	configPath      string
	constraintsPath string
	verbose         bool

	// cfg and logger are set by the root PersistentPreRunE.
	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Ethical constraint checks and human-reviewed risk assessments",
	Long: "Checks proposed actions against a fixed set of ethical constraints and\n" +
		"produces risk assessments with graduated intervention options.\n" +
		"Every recommendation is advisory; a human decides.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config YAML (default ~/.sentinel/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&constraintsPath, "constraints", "", "Path to constraints YAML (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func setup(cmd *cobra.Command, args []string) error {
	l, err := newLogger(verbose)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	logger = l

	c, hash, err := config.LoadWithHash(configPath)
	if err != nil {
		return err
	}
	if constraintsPath != "" {
		c.Constraints = constraintsPath
	}
	cfg = c
	logger.Debug("config loaded", zap.String("path", configPath), zap.String("hash", hash))
	return nil
}

// newLogger logs to stderr so command output on stdout stays parseable.
func newLogger(debug bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	zc.OutputPaths = []string{"stderr"}
	zc.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if debug {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return zc.Build()
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// stdout is cmd's output stream, or os.Stdout when called without a command.
func stdout(cmd *cobra.Command) io.Writer {
	if cmd == nil {
		return os.Stdout
	}
	return cmd.OutOrStdout()
}
