package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/hyunw00/lectern/internal/config"
)

const validYAML = `
server:
  log_level: debug
  metrics_addr: ":9090"
providers:
  llm:
    name: openai
    api_key: sk-test
    model: gpt-4o-mini
  fallbacks:
    - name: gemini
      api_key: g-test
      model: gemini-2.0-flash
  stt:
    name: deepgram
    api_key: dg-test
    model: nova-2
    language: ko
    sample_rate: 16000
pipeline:
  max_in_flight: 4
  stage_timeout: 45s
  drain_timeout: 20s
  max_attempts: 2
  recent_window: 5
storage:
  postgres_dsn: "postgres://localhost/lectern"
  redis_addr: "localhost:6379"
export:
  format: docx
  output_dir: ./out
terms_file: ./terms.yaml
`

func TestLoadFromReader_Valid(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, config.LogDebug)
	}
	if cfg.Providers.LLM.Name != "openai" {
		t.Errorf("LLM.Name = %q, want %q", cfg.Providers.LLM.Name, "openai")
	}
	if len(cfg.Providers.Fallbacks) != 1 || cfg.Providers.Fallbacks[0].Name != "gemini" {
		t.Errorf("Fallbacks = %+v, want one gemini entry", cfg.Providers.Fallbacks)
	}
	if cfg.Pipeline.MaxInFlight != 4 {
		t.Errorf("MaxInFlight = %d, want 4", cfg.Pipeline.MaxInFlight)
	}
	if cfg.Pipeline.StageTimeout != 45*time.Second {
		t.Errorf("StageTimeout = %s, want 45s", cfg.Pipeline.StageTimeout)
	}
	if cfg.Export.Format != config.ExportDocx {
		t.Errorf("Export.Format = %q, want %q", cfg.Export.Format, config.ExportDocx)
	}
}

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()

	const minimal = `
providers:
  llm:
    name: openai
    api_key: sk-test
  stt:
    name: deepgram
    api_key: dg-test
terms_file: ./terms.yaml
`
	cfg, err := config.LoadFromReader(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("LoadFromReader() error = %v", err)
	}

	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("LogLevel = %q, want %q", cfg.Server.LogLevel, config.LogInfo)
	}
	if cfg.Providers.STT.Language != "ko" {
		t.Errorf("STT.Language = %q, want %q", cfg.Providers.STT.Language, "ko")
	}
	if cfg.Providers.STT.SampleRate != 16000 {
		t.Errorf("STT.SampleRate = %d, want 16000", cfg.Providers.STT.SampleRate)
	}
	if cfg.Pipeline.MaxInFlight != 2 {
		t.Errorf("MaxInFlight = %d, want 2", cfg.Pipeline.MaxInFlight)
	}
	if cfg.Pipeline.StageTimeout != 60*time.Second {
		t.Errorf("StageTimeout = %s, want 60s", cfg.Pipeline.StageTimeout)
	}
	if cfg.Pipeline.DrainTimeout != 30*time.Second {
		t.Errorf("DrainTimeout = %s, want 30s", cfg.Pipeline.DrainTimeout)
	}
	if cfg.Pipeline.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", cfg.Pipeline.MaxAttempts)
	}
	if cfg.Export.Format != config.ExportMarkdown {
		t.Errorf("Export.Format = %q, want %q", cfg.Export.Format, config.ExportMarkdown)
	}
	if cfg.Export.OutputDir != "." {
		t.Errorf("Export.OutputDir = %q, want %q", cfg.Export.OutputDir, ".")
	}
}

func TestLoadFromReader_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "unknown key",
			yaml: `
providers:
  llm:
    name: openai
  stt:
    name: deepgram
terms_file: ./terms.yaml
pipelines:
  max_in_flight: 2
`,
			wantErr: "not found",
		},
		{
			name: "bad log level",
			yaml: `
server:
  log_level: verbose
providers:
  llm:
    name: openai
  stt:
    name: deepgram
terms_file: ./terms.yaml
`,
			wantErr: "invalid log level",
		},
		{
			name: "negative max_in_flight",
			yaml: `
providers:
  llm:
    name: openai
  stt:
    name: deepgram
pipeline:
  max_in_flight: -1
terms_file: ./terms.yaml
`,
			wantErr: "max_in_flight must be positive",
		},
		{
			name: "bad export format",
			yaml: `
providers:
  llm:
    name: openai
  stt:
    name: deepgram
export:
  format: pdf
terms_file: ./terms.yaml
`,
			wantErr: "invalid export format",
		},
		{
			name: "missing terms file",
			yaml: `
providers:
  llm:
    name: openai
  stt:
    name: deepgram
`,
			wantErr: "terms_file is required",
		},
		{
			name: "missing llm provider",
			yaml: `
providers:
  stt:
    name: deepgram
terms_file: ./terms.yaml
`,
			wantErr: "providers.llm.name is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err == nil {
				t.Fatal("LoadFromReader() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()

	if _, err := config.Load("does/not/exist.yaml"); err == nil {
		t.Fatal("Load() error = nil, want error")
	}
}
