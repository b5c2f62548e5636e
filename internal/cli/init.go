/*
PURPOSE:
  Defines the 'init' subcommand.
  Writes starter apispeedtest.yaml and registry.yaml files.

REQUIREMENTS:
  User-specified:
  - Bootstrap a working directory for the scheduled job.

  Implementation-discovered:
  - Re-running init in CI must not clobber a hand-edited registry,
    so existing files are kept unless --force is given.

ARCHITECTURE INTEGRATION:
  - Calls: config.DefaultSettings(), registry.DefaultYAML()
  - Modifies: Files in the target directory.

ERROR HANDLING:
  - Returns error if the directory or a file cannot be written.
  - Existing files are skipped with a warning.

IMPLEMENTATION RULES:
  - Settings point at the sibling registry.yaml by relative path.

USAGE:
  apispeedtest-runner init ./site --force

SELF-HEALING INSTRUCTIONS:
  - If a new setting is added, check it round-trips through config.Load.

RELATED FILES:
  - internal/config/config.go
  - internal/registry/default_registry.yaml

MAINTENANCE:
  - Update when the set of starter files changes.
*/

package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/daryltucker/apispeedtest-runner/internal/config"
	"github.com/daryltucker/apispeedtest-runner/internal/output"
	"github.com/daryltucker/apispeedtest-runner/internal/registry"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write starter settings and registry files",
	Long: `Writes apispeedtest.yaml (default settings) and registry.yaml (the built-in
model registry) into dir, defaulting to the current directory.
Existing files are left alone unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targetDir := "."
		if len(args) == 1 {
			targetDir = args[0]
		}

		settings := config.DefaultSettings()
		settings.RegistryFile = "registry.yaml"
		settingsYAML, err := yaml.Marshal(settings)
		if err != nil {
			return fmt.Errorf("failed to encode default settings: %w", err)
		}

		if err := os.MkdirAll(targetDir, 0755); err != nil {
			return fmt.Errorf("failed to create target directory %s: %w", targetDir, err)
		}

		files := []struct {
			name    string
			content []byte
		}{
			{config.DefaultSettingsFiles[0], settingsYAML},
			{settings.RegistryFile, registry.DefaultYAML()},
		}

		count := 0
		for _, f := range files {
			targetPath := filepath.Join(targetDir, f.name)
			if _, err := os.Stat(targetPath); err == nil && !forceInit {
				output.Logger.Warn("File exists, skipping (use --force to overwrite)", "path", targetPath)
				continue
			}
			if err := os.WriteFile(targetPath, f.content, 0644); err != nil {
				output.Logger.Error("Failed to write to target", "path", targetPath, "error", err)
				continue
			}
			count++
		}

		output.Logger.Info("Initialization complete", "written", count, "target", targetDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}
