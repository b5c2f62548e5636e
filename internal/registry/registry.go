/*
PURPOSE:
  Maps model keys to provider/model descriptors (ModelCard).
  Keeps insertion order so that MODELS=all is deterministic.

REQUIREMENTS:
  User-specified:
  - Lookup by key, absent keys are reported, not fatal.
  - "all" expands to every key in registry order.

  Implementation-discovered:
  - The collaborator needs the endpoint and the name of the env var holding
    the API key, so the card carries both.
  - A built-in registry ships with the binary (embedded YAML).

ARCHITECTURE INTEGRATION:
  - Used by: internal/config (MODELS=all), internal/engine (lookup),
    internal/latency (endpoint), internal/cli (list-models)

ERROR HANDLING:
  - Load/Parse return explicit errors on duplicate or empty keys.

IMPLEMENTATION RULES:
  - Registry is read-only after construction.

USAGE:
  reg, err := registry.Load("")          // built-in
  card, ok := reg.Lookup("deepseek-chat")

SELF-HEALING INSTRUCTIONS:
  - If a provider changes its endpoint, edit default_registry.yaml.

RELATED FILES:
  - internal/registry/default_registry.yaml

MAINTENANCE:
  - Add models to default_registry.yaml, not here.
*/

package registry

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default_registry.yaml
var defaultRegistryYAML []byte

// ModelCard describes how to reach one model.
type ModelCard struct {
	Key       string `yaml:"key"`
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
}

// Registry is an ordered, read-only set of model cards.
type Registry struct {
	keys  []string
	cards map[string]ModelCard
}

type registryFile struct {
	Models []ModelCard `yaml:"models"`
}

// New builds a registry from cards, preserving their order.
func New(cards ...ModelCard) (*Registry, error) {
	r := &Registry{
		keys:  make([]string, 0, len(cards)),
		cards: make(map[string]ModelCard, len(cards)),
	}
	for i, c := range cards {
		c.Key = strings.TrimSpace(c.Key)
		if c.Key == "" {
			return nil, fmt.Errorf("models[%d].key is required", i)
		}
		if _, ok := r.cards[c.Key]; ok {
			return nil, fmt.Errorf("duplicate model key %q", c.Key)
		}
		if strings.TrimSpace(c.Model) == "" {
			return nil, fmt.Errorf("models[%d] (%s): model is required", i, c.Key)
		}
		r.keys = append(r.keys, c.Key)
		r.cards[c.Key] = c
	}
	return r, nil
}

// Parse decodes a registry YAML document.
func Parse(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	return New(f.Models...)
}

// DefaultYAML returns a copy of the embedded registry file.
func DefaultYAML() []byte {
	return append([]byte(nil), defaultRegistryYAML...)
}

// Default returns the built-in registry.
func Default() *Registry {
	r, err := Parse(defaultRegistryYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded registry is invalid: %v", err))
	}
	return r
}

// Load reads a registry file. An empty path returns the built-in registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry file %s: %w", path, err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("registry file %s: %w", path, err)
	}
	return r, nil
}

// Lookup returns the card for key.
func (r *Registry) Lookup(key string) (ModelCard, bool) {
	c, ok := r.cards[key]
	return c, ok
}

// Keys returns every key in insertion order.
func (r *Registry) Keys() []string {
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len reports the number of models.
func (r *Registry) Len() int {
	return len(r.keys)
}
