/*
PURPOSE:
  Defines the 'run' subcommand.
  Executes one benchmark batch and refreshes the data files.

REQUIREMENTS:
  User-specified:
  - Run configuration comes from MODELS, RUNS, MODE, REQUEST_TIMEOUT, PROMPT.
  - Model failures never fail the job.

  Implementation-discovered:
  - Need to load settings and registry before the environment can be
    validated (MODELS=all expands against the registry).

ARCHITECTURE INTEGRATION:
  - Calls: internal/engine.Run()
  - Uses: internal/config, internal/registry, internal/latency

ERROR HANDLING:
  - Returns error if settings, registry or env config are invalid, or if
    an artifact cannot be written.

IMPLEMENTATION RULES:
  - Setup flags in init().
  - Logic: Load Settings -> Override -> Registry -> RunConfig -> Engine.Run.

USAGE:
  MODELS=openai-gpt-4o-mini RUNS=1 apispeedtest-runner run

SELF-HEALING INSTRUCTIONS:
  - Check flag names match Settings fields generally.

RELATED FILES:
  - internal/cli/root.go
  - internal/cli/report.go

MAINTENANCE:
  - Update when adding new CLI overrides.
*/

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/daryltucker/apispeedtest-runner/internal/config"
	"github.com/daryltucker/apispeedtest-runner/internal/engine"
	"github.com/daryltucker/apispeedtest-runner/internal/latency"
	"github.com/daryltucker/apispeedtest-runner/internal/registry"
)

var (
	outputOverride   string
	registryOverride string
	csvOverride      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one benchmark batch",
	Long: `Measures every selected model sequentially and rewrites the data files.
The process follows a strict protocol:
1. Config: Reads MODELS, RUNS, MODE, REQUEST_TIMEOUT and PROMPT from the environment.
2. Benchmarking: Times nonstreaming and/or streaming completions per model.
3. Artifacts: Writes meta.json and results.json, then appends to history.json.

A failing model is logged and reported in meta.json; the command still exits 0.`,
	Example: `  # Run every registry model with defaults
  apispeedtest-runner run

  # Two models, streaming only, one run each
  MODELS=openai-gpt-4o-mini,groq-llama-3.1-8b MODE=streaming RUNS=1 apispeedtest-runner run

  # Custom registry and output directory
  apispeedtest-runner run --registry ./models.yaml -o ./site/data`,
	RunE: func(cmd *cobra.Command, args []string) error {
		// 1. Load Settings
		settings, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// 2. Overrides
		if outputOverride != "" {
			settings.OutputDir = outputOverride
		}
		if registryOverride != "" {
			settings.RegistryFile = registryOverride
		}
		if csvOverride {
			settings.WriteCSV = true
		}

		reg, err := registry.Load(settings.RegistryFile)
		if err != nil {
			return err
		}

		cfg, err := config.BuildRunConfig(config.NewEnvSource(), reg)
		if err != nil {
			return err
		}

		// 3. Execution
		report, err := engine.Run(cmd.Context(), settings, cfg, reg, latency.New(settings))
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), renderSummary(report))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&outputOverride, "output-dir", "o", "", "Output directory for meta/results/history JSON")
	runCmd.Flags().StringVar(&registryOverride, "registry", "", "Path to a model registry YAML (overrides settings)")
	runCmd.Flags().BoolVar(&csvOverride, "csv", false, "Also write results.csv")
}
