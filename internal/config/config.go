/*
PURPOSE:
  Defines the job-level settings for the runner and their loading logic.
  Per-run benchmark input (models, runs, mode...) comes from the environment
  and lives in run.go; this file covers where artifacts go and how the
  collaborator behaves.

REQUIREMENTS:
  User-specified:
  - Artifacts land in docs/data by default so the static dashboard finds them.

  Implementation-discovered:
  - Needs to support YAML parsing.
  - Settings file is optional; the scheduled job usually runs without one.

ARCHITECTURE INTEGRATION:
  - Used by: internal/cli, internal/engine, internal/latency
  - Dependencies: gopkg.in/yaml.v3

ERROR HANDLING:
  - Returns explicit error if the settings file is invalid.
  - A missing default file is not an error (defaults are returned).

IMPLEMENTATION RULES:
  - Struct tags must support yaml.
  - Defaults should be sensible (e.g., 2 retries, 2s delay).

USAGE:
  s, err := config.Load("apispeedtest.yaml")

SELF-HEALING INSTRUCTIONS:
  - If new fields are needed, add to Settings and update DefaultSettings().

RELATED FILES:
  - internal/config/run.go
  - internal/cli/root.go

MAINTENANCE:
  - Update when adding new tuning parameters.
*/

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Settings holds job-level configuration.
type Settings struct {
	OutputDir    string `yaml:"output_dir"`
	RegistryFile string `yaml:"registry_file"` // empty means the built-in registry
	// WriteCSV additionally exports results.csv next to results.json.
	WriteCSV   bool          `yaml:"write_csv"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	// MaxTokens caps completion length for every model unless overridden.
	MaxTokens int `yaml:"max_tokens"`
}

// DefaultSettings returns the default settings.
func DefaultSettings() *Settings {
	return &Settings{
		OutputDir:  "docs/data",
		WriteCSV:   false,
		MaxRetries: 2,
		RetryDelay: 2 * time.Second,
		MaxTokens:  256,
	}
}

// DefaultSettingsFiles are searched, in order, when no path is given.
var DefaultSettingsFiles = []string{"apispeedtest.yaml", "runner.yaml"}

// Load reads settings from a file.
// If path is specified, it attempts to load that file.
// If path is empty, it searches DefaultSettingsFiles in order.
// If no file is found, it returns DefaultSettings.
func Load(path string) (*Settings, error) {
	s := DefaultSettings()

	var data []byte
	var err error

	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read settings file %s: %w", path, err)
		}
	} else {
		found := false
		for _, name := range DefaultSettingsFiles {
			data, err = os.ReadFile(name)
			if err == nil {
				path = name
				found = true
				break
			}
		}
		if !found {
			return s, nil
		}
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if s.OutputDir == "" {
		return nil, fmt.Errorf("settings file %s: output_dir must not be empty", path)
	}
	if s.MaxRetries < 0 {
		return nil, fmt.Errorf("settings file %s: max_retries must be >= 0", path)
	}

	return s, nil
}
