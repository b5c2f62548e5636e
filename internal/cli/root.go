/*
PURPOSE:
  Defines the root Cobra command for the API speed test runner.
  Handles global flags, logger setup and command initialization.

REQUIREMENTS:
  User-specified:
  - Provide a CLI interface for the scheduled job.
  - Support global flags like --config.

  Implementation-discovered:
  - CI logs are easier to search as JSON; --log-format switches handlers.
  - SIGINT/SIGTERM cancel the in-flight request instead of killing the
    process mid-write.

ARCHITECTURE INTEGRATION:
  - Called by: cmd/apispeedtest-runner/main.go
  - Calls: Child commands (run, list-models, init)
  - Modifies: output.Logger

ERROR HANDLING:
  - Returns error to main.go for exit code handling.

IMPLEMENTATION RULES:
  - Use `PersistentFlags()` for flags available to all subcommands.
  - Keep Run logic in subcommands.

USAGE:
  Called by main.go.

SELF-HEALING INSTRUCTIONS:
  - If adding new global flags, add them to init().

RELATED FILES:
  - cmd/apispeedtest-runner/main.go
  - internal/output/logger.go

MAINTENANCE:
  - Update when adding global configuration options.
*/

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/daryltucker/apispeedtest-runner/internal/output"
)

var (
	// cfgFile stores the path to the settings file (if specified via flag)
	cfgFile   string
	logFormat string
	verbose   bool

	rootCmd = &cobra.Command{
		Use:   "apispeedtest-runner",
		Short: "Latency benchmarks for hosted LLM APIs",
		Long: `Measures response latency of hosted LLM chat APIs and maintains the
meta.json, results.json and history.json data files behind the dashboard.
Use 'run --help' for benchmark options.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			l, err := output.NewLogger(cmd.ErrOrStderr(), logFormat, verbose)
			if err != nil {
				return err
			}
			output.SetLogger(l)
			return nil
		},
	}
)

// Execute executes the root command, cancelling on SIGINT/SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "settings file (default is ./apispeedtest.yaml)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}
