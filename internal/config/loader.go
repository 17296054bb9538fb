package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

var knownLLMProviders = []string{"openai", "gemini", "anyllm"}

// Load reads and validates a configuration file from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader decodes a YAML configuration from r, applies defaults and
// validates the result. Unknown keys are rejected so that typos surface at
// startup instead of silently falling back to defaults.
func LoadFromReader(r io.Reader) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Providers.STT.Language == "" {
		c.Providers.STT.Language = "ko"
	}
	if c.Providers.STT.SampleRate == 0 {
		c.Providers.STT.SampleRate = 16000
	}
	if c.Pipeline.MaxInFlight == 0 {
		c.Pipeline.MaxInFlight = 2
	}
	if c.Pipeline.StageTimeout == 0 {
		c.Pipeline.StageTimeout = 60 * time.Second
	}
	if c.Pipeline.DrainTimeout == 0 {
		c.Pipeline.DrainTimeout = 30 * time.Second
	}
	if c.Pipeline.MaxAttempts == 0 {
		c.Pipeline.MaxAttempts = 3
	}
	if c.Pipeline.RecentWindow == 0 {
		c.Pipeline.RecentWindow = 3
	}
	if c.Export.Format == "" {
		c.Export.Format = ExportMarkdown
	}
	if c.Export.OutputDir == "" {
		c.Export.OutputDir = "."
	}
}

// Validate checks the configuration for errors that would prevent a session
// from starting. All problems are reported at once via errors.Join.
func (c *Config) Validate() error {
	var errs []error

	if !c.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("config: invalid log level %q", c.Server.LogLevel))
	}
	if c.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("config: providers.llm.name is required"))
	} else {
		validateLLMName("providers.llm", c.Providers.LLM.Name)
	}
	for i, fb := range c.Providers.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("config: providers.fallbacks[%d].name is required", i))
			continue
		}
		validateLLMName(fmt.Sprintf("providers.fallbacks[%d]", i), fb.Name)
	}
	if c.Providers.STT.Name == "" {
		errs = append(errs, errors.New("config: providers.stt.name is required"))
	}
	if c.Pipeline.MaxInFlight <= 0 {
		errs = append(errs, fmt.Errorf("config: pipeline.max_in_flight must be positive, got %d", c.Pipeline.MaxInFlight))
	}
	if c.Pipeline.StageTimeout <= 0 {
		errs = append(errs, fmt.Errorf("config: pipeline.stage_timeout must be positive, got %s", c.Pipeline.StageTimeout))
	}
	if c.Pipeline.DrainTimeout <= 0 {
		errs = append(errs, fmt.Errorf("config: pipeline.drain_timeout must be positive, got %s", c.Pipeline.DrainTimeout))
	}
	if c.Pipeline.MaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("config: pipeline.max_attempts must be positive, got %d", c.Pipeline.MaxAttempts))
	}
	if c.Providers.STT.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("config: providers.stt.sample_rate must be positive, got %d", c.Providers.STT.SampleRate))
	}
	if !c.Export.Format.IsValid() {
		errs = append(errs, fmt.Errorf("config: invalid export format %q", c.Export.Format))
	}
	if c.TermsFile == "" {
		errs = append(errs, errors.New("config: terms_file is required"))
	}

	return errors.Join(errs...)
}

// validateLLMName warns about unrecognised provider names. Unknown names are
// not fatal because the any-llm gateway can route models we do not list here.
func validateLLMName(field, name string) {
	if !slices.Contains(knownLLMProviders, name) {
		slog.Warn("unrecognised llm provider name, will route through the gateway",
			"field", field, "name", name)
	}
}
