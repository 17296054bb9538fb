package deepgram

import (
	"net/url"
	"testing"
	"time"

	"github.com/hyunw00/lectern/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cfg := stt.StreamConfig{
		SampleRate: 16000,
		Channels:   1,
		Language:   "ko",
	}

	rawURL, err := p.buildURL(cfg)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "ko", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "interim_results", "true", q.Get("interim_results"))
	assertEqual(t, "sample_rate", "16000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
}

func TestBuildURL_CustomModel(t *testing.T) {
	p, err := New("key", WithModel("base"), WithLanguage("en-US"), WithSampleRate(48000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	q := u.Query()

	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "language", "en-US", q.Get("language"))
	assertEqual(t, "sample_rate", "48000", q.Get("sample_rate"))
}

func TestBuildURL_LanguageOverridenByCfg(t *testing.T) {
	// cfg.Language should take precedence over the provider-level default.
	p, err := New("key", WithLanguage("ko"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{Language: "en", SampleRate: 16000})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	assertEqual(t, "language", "en", u.Query().Get("language"))
}

func TestBuildURL_Keywords(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cfg := stt.StreamConfig{
		SampleRate: 16000,
		Keywords: []stt.KeywordBoost{
			{Keyword: "eigenvalue", Boost: 5},
			{Keyword: "Laplacian", Boost: 3.5},
		},
	}

	rawURL, err := p.buildURL(cfg)
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	kws := u.Query()["keywords"]
	if len(kws) != 2 {
		t.Fatalf("expected 2 keywords, got %d: %v", len(kws), kws)
	}

	// Both keywords should be present (order may vary).
	found := map[string]bool{}
	for _, kw := range kws {
		found[kw] = true
	}
	if !found["eigenvalue:5"] {
		t.Errorf("expected keyword 'eigenvalue:5', got %v", kws)
	}
	if !found["Laplacian:3.5"] {
		t.Errorf("expected keyword 'Laplacian:3.5', got %v", kws)
	}
}

func TestBuildURL_NoKeywords(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.StreamConfig{SampleRate: 16000})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, _ := url.Parse(rawURL)
	if _, ok := u.Query()["keywords"]; ok {
		t.Error("expected no 'keywords' param when none provided")
	}
}

// ---- JSON parsing tests ----

func TestParseResponse_Final(t *testing.T) {
	epoch := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	raw := []byte(`{
		"type": "Results",
		"is_final": true,
		"start": 12.5,
		"duration": 2.0,
		"channel": {
			"alternatives": [{
				"transcript": "linear transformations preserve addition",
				"confidence": 0.95
			}]
		}
	}`)

	f, ok := parseResponse(raw, epoch)
	if !ok {
		t.Fatal("expected ok=true for valid Results message")
	}

	if !f.Final {
		t.Error("expected Final=true")
	}
	assertEqual(t, "text", "linear transformations preserve addition", f.Text)
	if f.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", f.Confidence)
	}
	wantStart := epoch.Add(12500 * time.Millisecond)
	if !f.SpokenAt.Equal(wantStart) {
		t.Errorf("SpokenAt = %v, want %v", f.SpokenAt, wantStart)
	}
	if f.Duration() != 2*time.Second {
		t.Errorf("Duration = %v, want 2s", f.Duration())
	}
}

func TestParseResponse_Partial(t *testing.T) {
	raw := []byte(`{
		"type": "Results",
		"is_final": false,
		"start": 0.5,
		"duration": 0.8,
		"channel": {
			"alternatives": [{
				"transcript": "linear",
				"confidence": 0.7
			}]
		}
	}`)

	f, ok := parseResponse(raw, time.Now())
	if !ok {
		t.Fatal("expected ok=true")
	}
	if f.Final {
		t.Error("expected Final=false for partial result")
	}
	assertEqual(t, "text", "linear", f.Text)
}

func TestParseResponse_NonResultsType(t *testing.T) {
	raw := []byte(`{"type":"Metadata","request_id":"abc"}`)
	_, ok := parseResponse(raw, time.Now())
	if ok {
		t.Error("expected ok=false for non-Results message")
	}
}

func TestParseResponse_EmptyAlternatives(t *testing.T) {
	raw := []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[]}}`)
	_, ok := parseResponse(raw, time.Now())
	if ok {
		t.Error("expected ok=false when alternatives is empty")
	}
}

func TestParseResponse_EmptyTranscript(t *testing.T) {
	raw := []byte(`{"type":"Results","is_final":true,"channel":{"alternatives":[{"transcript":"","confidence":0}]}}`)
	_, ok := parseResponse(raw, time.Now())
	if ok {
		t.Error("expected ok=false for an empty transcript")
	}
}

func TestParseResponse_InvalidJSON(t *testing.T) {
	_, ok := parseResponse([]byte(`{invalid`), time.Now())
	if ok {
		t.Error("expected ok=false for invalid JSON")
	}
}

// ---- Constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := New("")
	if err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertEqual(t, "model", defaultModel, p.model)
	assertEqual(t, "language", defaultLanguage, p.language)
	if p.sampleRate != defaultSampleRate {
		t.Errorf("expected sampleRate %d, got %d", defaultSampleRate, p.sampleRate)
	}
}

// ---- helpers ----

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
