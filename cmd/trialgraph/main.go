package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/rohankatakam/trialgraph/internal/config"
	"github.com/rohankatakam/trialgraph/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logging.Logger
	cfg     *config.Config
)

func main() {
	err := rootCmd.Execute()
	if logger != nil {
		logger.Close()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// commandContext is cancelled on interrupt or SIGTERM so long-running
// commands stop between batches.
func commandContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var rootCmd = &cobra.Command{
	Use:   "trialgraph",
	Short: "Load clinical trials, sponsors and drugs into a Neo4j graph",
	Long: `trialgraph downloads the AACT pipe-delimited extract, resolves sponsors
and drugs into canonical entities, stages the result and loads it into Neo4j.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load config, using defaults: %v\n", err)
			cfg = config.Default()
		}

		level := cfg.Logging.Level
		if verbose {
			level = logrus.DebugLevel.String()
		}
		logger, err = logging.New(logging.Config{
			Level:      level,
			OutputFile: cfg.Logging.File,
			JSONFormat: cfg.Logging.JSON,
		})
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./trialgraph.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`trialgraph {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(transformCmd)
	rootCmd.AddCommand(loadCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(validateCmd)
}
