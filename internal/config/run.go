package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/daryltucker/apispeedtest-runner/internal/registry"
)

// Environment variables read by BuildRunConfig.
const (
	EnvModels         = "MODELS"
	EnvRuns           = "RUNS"
	EnvMode           = "MODE"
	EnvRequestTimeout = "REQUEST_TIMEOUT"
	EnvPrompt         = "PROMPT"
)

const (
	AllModels   = "all"
	DefaultRuns = 3
	DefaultMode = ModeBoth
	// DefaultPrompt is short on purpose: the job measures latency, not quality.
	DefaultPrompt = "Write one short paragraph explaining what network latency is."
)

// Mode selects which request styles the collaborator measures.
type Mode string

const (
	ModeStreaming    Mode = "streaming"
	ModeNonStreaming Mode = "nonstreaming"
	ModeBoth         Mode = "both"
)

// Modes lists every accepted mode.
var Modes = []Mode{ModeStreaming, ModeNonStreaming, ModeBoth}

// Streaming reports whether streaming requests are measured.
func (m Mode) Streaming() bool { return m == ModeStreaming || m == ModeBoth }

// NonStreaming reports whether non-streaming requests are measured.
func (m Mode) NonStreaming() bool { return m == ModeNonStreaming || m == ModeBoth }

// ErrInvalidConfig is wrapped by every configuration error.
var ErrInvalidConfig = errors.New("invalid run configuration")

// Error describes one invalid configuration field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrInvalidConfig, e.Field, e.Message)
}

func (e *Error) Unwrap() error { return ErrInvalidConfig }

// ModelOverride adjusts collaborator parameters for a single model.
type ModelOverride struct {
	MaxTokens   int
	Temperature *float32
}

// RunConfig is the validated input of one batch. Build it once and do not
// mutate it afterwards.
type RunConfig struct {
	Prompt                string
	Models                []string
	Runs                  int
	Mode                  Mode
	RequestTimeoutSeconds *float64
	ModelOverrides        map[string]ModelOverride
}

// Validate checks the invariants every consumer relies on.
func (c RunConfig) Validate() error {
	if len(c.Models) == 0 {
		return &Error{Field: EnvModels, Message: "no models to test"}
	}
	if c.Runs < 1 {
		return &Error{Field: EnvRuns, Message: fmt.Sprintf("must be >= 1, got %d", c.Runs)}
	}
	if !lo.Contains(Modes, c.Mode) {
		return &Error{Field: EnvMode, Message: fmt.Sprintf("unsupported mode %q (supported: %s, %s, %s)", c.Mode, ModeStreaming, ModeNonStreaming, ModeBoth)}
	}
	if c.RequestTimeoutSeconds != nil && *c.RequestTimeoutSeconds <= 0 {
		return &Error{Field: EnvRequestTimeout, Message: fmt.Sprintf("must be > 0, got %g", *c.RequestTimeoutSeconds)}
	}
	return nil
}

// RequestTimeout converts RequestTimeoutSeconds; zero means no timeout.
func (c RunConfig) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds == nil {
		return 0
	}
	return time.Duration(*c.RequestTimeoutSeconds * float64(time.Second))
}

// Override returns the override for key, if any.
func (c RunConfig) Override(key string) *ModelOverride {
	o, ok := c.ModelOverrides[key]
	if !ok {
		return nil
	}
	return &o
}

// Source is an environment-style key/value view. ok is false when the key is
// absent; a present but empty value returns ("", true).
type Source interface {
	Lookup(key string) (string, bool)
}

// MapSource is a Source over a plain map.
type MapSource map[string]string

func (m MapSource) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// ViperSource reads the run variables through viper.
type ViperSource struct {
	v *viper.Viper
}

// NewEnvSource binds the run variables to the process environment.
func NewEnvSource() *ViperSource {
	v := viper.New()
	v.AllowEmptyEnv(true)
	for _, name := range []string{EnvModels, EnvRuns, EnvMode, EnvRequestTimeout, EnvPrompt} {
		_ = v.BindEnv(strings.ToLower(name), name)
	}
	return &ViperSource{v: v}
}

func (s *ViperSource) Lookup(key string) (string, bool) {
	k := strings.ToLower(key)
	if !s.v.IsSet(k) {
		return "", false
	}
	return s.v.GetString(k), true
}

// BuildRunConfig reads the run variables from env and returns a validated
// RunConfig. No partially built configuration is ever returned.
func BuildRunConfig(env Source, reg *registry.Registry) (RunConfig, error) {
	modelsRaw, ok := env.Lookup(EnvModels)
	if !ok {
		modelsRaw = AllModels
	}
	var models []string
	if modelsRaw == AllModels {
		models = reg.Keys()
	} else {
		models = parseModelList(modelsRaw)
	}

	runs := DefaultRuns
	if raw, _ := env.Lookup(EnvRuns); strings.TrimSpace(raw) != "" {
		n, err := parseDecimal(raw)
		if err != nil {
			return RunConfig{}, &Error{Field: EnvRuns, Message: fmt.Sprintf("not an integer: %q", raw)}
		}
		runs = n
	}

	mode := DefaultMode
	if raw, _ := env.Lookup(EnvMode); raw != "" {
		mode = Mode(raw)
	}

	var timeout *float64
	if raw, _ := env.Lookup(EnvRequestTimeout); strings.TrimSpace(raw) != "" {
		f, err := cast.ToFloat64E(strings.TrimSpace(raw))
		if err != nil {
			return RunConfig{}, &Error{Field: EnvRequestTimeout, Message: fmt.Sprintf("not a number: %q", raw)}
		}
		timeout = &f
	}

	prompt, _ := env.Lookup(EnvPrompt)
	if prompt == "" {
		prompt = DefaultPrompt
	}

	cfg := RunConfig{
		Prompt:                prompt,
		Models:                models,
		Runs:                  runs,
		Mode:                  mode,
		RequestTimeoutSeconds: timeout,
		ModelOverrides:        map[string]ModelOverride{},
	}
	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// parseDecimal reads a base-10 integer. Leading zeros are ignored ("010" is
// 10); radix prefixes such as "0x" are rejected. cast alone would pick the
// base from the prefix.
func parseDecimal(raw string) (int, error) {
	s := strings.TrimSpace(raw)
	sign := ""
	if s != "" && (s[0] == '+' || s[0] == '-') {
		sign, s = s[:1], s[1:]
	}
	if s == "" || strings.Trim(s, "0123456789") != "" {
		return 0, fmt.Errorf("not a base-10 integer: %q", raw)
	}
	if s = strings.TrimLeft(s, "0"); s == "" {
		s = "0"
	}
	return cast.ToIntE(sign + s)
}

// parseModelList splits a comma list, trimming and dropping empties.
// Order and duplicates are kept.
func parseModelList(raw string) []string {
	parts := lo.Map(strings.Split(raw, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Compact(parts)
}
