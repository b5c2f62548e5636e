/*
PURPOSE:
  Defines the 'list-models' subcommand.
  Shows the registry keys accepted by MODELS.

REQUIREMENTS:
  User-specified:
  - List available models.

  Implementation-discovered:
  - Showing which API key env vars are unset saves a failed CI run.

ARCHITECTURE INTEGRATION:
  - Calls: internal/registry.Load()

ERROR HANDLING:
  - Returns error if the registry file cannot be loaded.

IMPLEMENTATION RULES:
  - Simple output to stdout: a count line, then cards in registry order.

USAGE:
  apispeedtest-runner list-models --registry ./models.yaml

SELF-HEALING INSTRUCTIONS:
  - None.

RELATED FILES:
  - internal/registry/registry.go

MAINTENANCE:
  - None.
*/

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/daryltucker/apispeedtest-runner/internal/config"
	"github.com/daryltucker/apispeedtest-runner/internal/registry"
)

var listRegistry string

var listModelsCmd = &cobra.Command{
	Use:   "list-models",
	Short: "List registry models usable in MODELS",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := listRegistry
		if path == "" {
			settings, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			path = settings.RegistryFile
		}

		reg, err := registry.Load(path)
		if err != nil {
			return err
		}

		fmt.Fprint(cmd.OutOrStdout(), renderRegistry(reg, os.LookupEnv))
		return nil
	},
}

func renderRegistry(reg *registry.Registry, lookupEnv func(string) (string, bool)) string {
	keyStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	missingStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faint := lipgloss.NewStyle().Faint(true)

	var b strings.Builder
	fmt.Fprintf(&b, "%d model(s) in registry\n", reg.Len())
	for _, key := range reg.Keys() {
		card, _ := reg.Lookup(key)
		line := fmt.Sprintf("- %s %s", keyStyle.Render(key), faint.Render(card.Provider+"/"+card.Model))
		if card.APIKeyEnv != "" {
			if v, ok := lookupEnv(card.APIKeyEnv); !ok || strings.TrimSpace(v) == "" {
				line += " " + missingStyle.Render("("+card.APIKeyEnv+" not set)")
			}
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

func init() {
	rootCmd.AddCommand(listModelsCmd)
	listModelsCmd.Flags().StringVar(&listRegistry, "registry", "", "Path to a model registry YAML")
}
