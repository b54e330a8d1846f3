package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/quadmill/quadmill/quads/config"
)

var (
	// Global flags
	cfgPath  string
	verbose  bool
	journal  string
	maxSteps int

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "quadmill",
	Short: "quadmill - incremental quad rewriting engine",
	Long: `quadmill stores facts as (entity attribute value context) quads and
rewrites them with reactive rules: every inserted fact cascades through the
registered rules until nothing new derives.

Use "repl" for an interactive session or "serve" to expose an engine over
the line protocol.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// loadConfig merges the config file (if any) with the flags that were set
// explicitly; flags win.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if cfgPath != "" {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return cfg, err
		}
	}
	if cmd.Flags().Changed("journal") {
		cfg.Journal = journal
	}
	if cmd.Flags().Changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if verbose {
		cfg.Verbose = true
	}
	return cfg, nil
}

func main() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and engine event output")
	rootCmd.PersistentFlags().StringVar(&journal, "journal", "", "journal directory (empty disables persistence)")
	rootCmd.PersistentFlags().IntVar(&maxSteps, "max-steps", 0, "cascade step limit (0 = unbounded)")

	rootCmd.AddCommand(replCmd)
	rootCmd.AddCommand(serveCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
