// Package config provides the configuration schema and loader for lectern.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// ExportFormat selects the note export renderer.
type ExportFormat string

const (
	ExportMarkdown ExportFormat = "markdown"
	ExportDocx     ExportFormat = "docx"
)

// IsValid reports whether f is a recognised export format.
func (f ExportFormat) IsValid() bool {
	return f == ExportMarkdown || f == ExportDocx
}

// Config is the root configuration structure for lectern.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Storage   StorageConfig   `yaml:"storage"`
	Export    ExportConfig    `yaml:"export"`

	// TermsFile is the path to the per-lecture term context YAML. Required:
	// a session cannot start without its slide glossary.
	TermsFile string `yaml:"terms_file"`
}

// ServerConfig holds logging and metrics settings.
type ServerConfig struct {
	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// MetricsAddr is the address the Prometheus /metrics endpoint listens
	// on (e.g., ":9090"). Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics_addr"`
}

// ProvidersConfig declares the external collaborators.
type ProvidersConfig struct {
	// LLM is the primary refinement provider.
	LLM ProviderEntry `yaml:"llm"`

	// Fallbacks are tried in order when the primary LLM fails.
	Fallbacks []ProviderEntry `yaml:"fallbacks"`

	// STT is the transcription provider.
	STT STTEntry `yaml:"stt"`
}

// ProviderEntry is the common configuration block shared by LLM providers.
type ProviderEntry struct {
	// Name selects the provider implementation (e.g., "openai", "gemini").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`
}

// STTEntry configures the transcription stream.
type STTEntry struct {
	// Name selects the provider implementation (e.g., "deepgram").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API.
	APIKey string `yaml:"api_key"`

	// Model selects the transcription model (e.g., "nova-2").
	Model string `yaml:"model"`

	// Language is the BCP-47 language tag of the lecture. Default "ko".
	Language string `yaml:"language"`

	// SampleRate is the capture sample rate in Hz. Default 16000.
	SampleRate int `yaml:"sample_rate"`
}

// PipelineConfig tunes the refinement pipeline.
type PipelineConfig struct {
	// MaxInFlight bounds concurrent refinement runs. Must be positive when
	// set; zero uses the built-in default.
	MaxInFlight int `yaml:"max_in_flight"`

	// StageTimeout bounds one stage attempt.
	StageTimeout time.Duration `yaml:"stage_timeout"`

	// DrainTimeout bounds how long in-flight runs may finish after stop.
	DrainTimeout time.Duration `yaml:"drain_timeout"`

	// MaxAttempts is the per-stage attempt budget including the first try.
	MaxAttempts int `yaml:"max_attempts"`

	// RecentWindow is how many preceding polished notes the smooth stage
	// sees for continuity.
	RecentWindow int `yaml:"recent_window"`
}

// StorageConfig selects the persistence backends.
type StorageConfig struct {
	// PostgresDSN enables the Postgres note archive. Empty keeps notes in
	// memory for the lifetime of the process.
	PostgresDSN string `yaml:"postgres_dsn"`

	// RedisAddr enables the crash-safe session journal. Empty disables
	// journaling.
	RedisAddr string `yaml:"redis_addr"`
}

// ExportConfig controls where and how notes are written after a session.
type ExportConfig struct {
	// Format selects the renderer. Default "markdown".
	Format ExportFormat `yaml:"format"`

	// OutputDir is the directory exported files are written to.
	// Default ".".
	OutputDir string `yaml:"output_dir"`
}
