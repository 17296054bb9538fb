// Command lectern is the live lecture note-taking client.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hyunw00/lectern/internal/config"
	"github.com/hyunw00/lectern/internal/export"
	"github.com/hyunw00/lectern/internal/notestore"
	"github.com/hyunw00/lectern/internal/observe"
	"github.com/hyunw00/lectern/internal/pipeline"
	"github.com/hyunw00/lectern/internal/resilience"
	"github.com/hyunw00/lectern/internal/session"
	"github.com/hyunw00/lectern/internal/termctx"
	"github.com/hyunw00/lectern/pkg/provider/llm"
	"github.com/hyunw00/lectern/pkg/provider/llm/anyllm"
	"github.com/hyunw00/lectern/pkg/provider/llm/gemini"
	"github.com/hyunw00/lectern/pkg/provider/llm/openai"
	"github.com/hyunw00/lectern/pkg/provider/stt"
	"github.com/hyunw00/lectern/pkg/provider/stt/deepgram"
)

// audioChunk is 100ms of 16-bit mono PCM at 16 kHz. Feeding at this pace
// keeps the transcription stream close to real time when replaying a file.
const audioChunkBytes = 3200

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	audioPath := flag.String("audio", "", "raw PCM audio source (file or FIFO); empty disables audio replay")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "lectern: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "lectern: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("lectern starting",
		"config", *configPath,
		"terms", cfg.TermsFile,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	if addr := cfg.Server.MetricsAddr; addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics endpoint error", "err", err)
			}
		}()
		slog.Info("metrics endpoint listening", "addr", addr)
	}

	// ── Term context ──────────────────────────────────────────────────────────
	terms, err := termctx.Load(cfg.TermsFile)
	if err != nil {
		slog.Error("failed to load term context", "err", err)
		return 1
	}
	slog.Info("term context loaded", "lecture", terms.Title(), "slides", terms.MaxIndex()+1)

	// ── Providers ─────────────────────────────────────────────────────────────
	llmProvider, err := buildLLM(ctx, cfg.Providers)
	if err != nil {
		slog.Error("failed to build llm provider", "err", err)
		return 1
	}

	sttProvider, err := buildSTT(cfg.Providers.STT)
	if err != nil {
		slog.Error("failed to build stt provider", "err", err)
		return 1
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	var store notestore.Store
	if dsn := cfg.Storage.PostgresDSN; dsn != "" {
		pool, err := pgxpool.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to connect to postgres", "err", err)
			return 1
		}
		defer pool.Close()

		pg := notestore.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			slog.Error("failed to migrate note schema", "err", err)
			return 1
		}
		store = pg
		slog.Info("note store ready", "backend", "postgres")
	} else {
		store = notestore.NewMemStore()
		slog.Info("note store ready", "backend", "memory")
	}

	// ── Journal ───────────────────────────────────────────────────────────────
	var journal *session.Journal
	if addr := cfg.Storage.RedisAddr; addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr})
		defer rdb.Close()

		journal = session.NewJournal(rdb, time.Now().Format("20060102-150405"), logger)
		slog.Info("session journal enabled", "addr", addr)
	}

	printStartupSummary(cfg, terms)

	// ── Session ───────────────────────────────────────────────────────────────
	ctrl, err := session.NewController(session.Config{
		Terms:        terms,
		STT:          sttProvider,
		LLM:          llmProvider,
		Store:        store,
		Journal:      journal,
		SampleRate:   cfg.Providers.STT.SampleRate,
		Language:     cfg.Providers.STT.Language,
		MaxInFlight:  cfg.Pipeline.MaxInFlight,
		StageTimeout: cfg.Pipeline.StageTimeout,
		DrainTimeout: cfg.Pipeline.DrainTimeout,
		Retry:        pipeline.RetryConfig{MaxAttempts: cfg.Pipeline.MaxAttempts},
		RecentWindow: cfg.Pipeline.RecentWindow,
		Logger:       logger,
	})
	if err != nil {
		slog.Error("failed to create session", "err", err)
		return 1
	}

	if err := ctrl.Start(ctx); err != nil {
		slog.Error("failed to start session", "err", err)
		return 1
	}
	slog.Info("session started", "session_id", ctrl.SessionID())

	// Interim transcripts are preview only. Drain them so the stream never
	// stalls, surfacing them at debug level.
	if partials, err := ctrl.Partials(); err == nil {
		go func() {
			for f := range partials {
				slog.Debug("interim transcript", "text", f.Text)
			}
		}()
	}

	if *audioPath != "" {
		go replayAudio(ctx, ctrl, *audioPath)
	}

	fmt.Println("session running — n(ext) / p(rev) / f(lush) / s(tatus) / q(uit)")
	commandLoop(ctx, ctrl)

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := ctrl.Stop(shutdownCtx); err != nil && !errors.Is(err, session.ErrNotRunning) {
		slog.Error("session stop error", "err", err)
		return 1
	}

	if err := writeNotes(cfg.Export, terms, ctrl); err != nil {
		slog.Error("export error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// commandLoop reads slide commands from stdin until quit or cancellation.
func commandLoop(ctx context.Context, ctrl *session.Controller) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- strings.TrimSpace(sc.Text()):
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			var err error
			switch line {
			case "n", "next", "":
				err = ctrl.Advance(ctx)
			case "p", "prev":
				err = ctrl.Retreat(ctx)
			case "f", "flush":
				err = ctrl.Flush(ctx)
			case "s", "status":
				fmt.Printf("current slide: %d\n", ctrl.CurrentSlide()+1)
			case "q", "quit":
				return
			default:
				fmt.Printf("unknown command %q — n(ext) / p(rev) / f(lush) / s(tatus) / q(uit)\n", line)
			}
			if err != nil {
				slog.Warn("slide command failed", "command", line, "err", err)
			}
		}
	}
}

// replayAudio streams raw PCM from path into the session at real-time pace.
func replayAudio(ctx context.Context, ctrl *session.Controller, path string) {
	f, err := os.Open(path)
	if err != nil {
		slog.Error("failed to open audio source", "path", path, "err", err)
		return
	}
	defer f.Close()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	buf := make([]byte, audioChunkBytes)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		n, err := f.Read(buf)
		if n > 0 {
			if sendErr := ctrl.SendAudio(buf[:n]); sendErr != nil {
				slog.Warn("audio send failed", "err", sendErr)
				return
			}
		}
		if errors.Is(err, io.EOF) {
			slog.Info("audio source exhausted", "path", path)
			return
		}
		if err != nil {
			slog.Error("audio read error", "path", path, "err", err)
			return
		}
	}
}

// writeNotes merges the session's notes per slide and renders them with the
// configured export writer.
func writeNotes(cfg config.ExportConfig, terms *termctx.Context, ctrl *session.Controller) error {
	notes := ctrl.Notes()
	if len(notes) == 0 {
		slog.Info("no notes to export")
		return nil
	}
	slides := export.Merge(terms, notes)

	var (
		writer export.Writer
		ext    string
	)
	switch cfg.Format {
	case config.ExportDocx:
		writer = export.NewDocx(terms.Title())
		ext = "docx"
	default:
		writer = export.NewMarkdown(terms.Title())
		ext = "md"
	}

	path := filepath.Join(cfg.OutputDir, fmt.Sprintf("notes-%s.%s", time.Now().Format("20060102-150405"), ext))
	if err := writer.WriteNotes(path, slides); err != nil {
		return err
	}
	slog.Info("notes exported", "path", path, "slides", len(slides), "notes", len(notes))
	return nil
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// buildLLM builds the primary provider and wraps it with the configured
// fallback chain. Every provider in the chain sits behind its own circuit
// breaker.
func buildLLM(ctx context.Context, cfg config.ProvidersConfig) (llm.Provider, error) {
	primary, err := newLLM(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.LLM.Name, err)
	}
	slog.Info("provider created", "kind", "llm", "name", cfg.LLM.Name, "model", cfg.LLM.Model)

	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}

	chain := resilience.NewFallbackProvider(cfg.LLM.Name, primary, resilience.BreakerConfig{Name: cfg.LLM.Name})
	for _, entry := range cfg.Fallbacks {
		fb, err := newLLM(ctx, entry)
		if err != nil {
			return nil, fmt.Errorf("create fallback provider %q: %w", entry.Name, err)
		}
		chain.AddFallback(entry.Name, fb)
		slog.Info("provider created", "kind", "llm-fallback", "name", entry.Name, "model", entry.Model)
	}
	return chain, nil
}

// newLLM builds one provider from its config entry. Names without a native
// implementation are routed through the any-llm gateway.
func newLLM(ctx context.Context, entry config.ProviderEntry) (llm.Provider, error) {
	switch entry.Name {
	case "openai":
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	case "gemini":
		return gemini.New(ctx, entry.APIKey, entry.Model)
	default:
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New(entry.Name, entry.Model, opts...)
	}
}

func buildSTT(entry config.STTEntry) (stt.Provider, error) {
	if entry.Name != "deepgram" {
		return nil, fmt.Errorf("unknown stt provider %q", entry.Name)
	}
	var opts []deepgram.Option
	if entry.Model != "" {
		opts = append(opts, deepgram.WithModel(entry.Model))
	}
	if entry.Language != "" {
		opts = append(opts, deepgram.WithLanguage(entry.Language))
	}
	if entry.SampleRate > 0 {
		opts = append(opts, deepgram.WithSampleRate(entry.SampleRate))
	}
	p, err := deepgram.New(entry.APIKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("create stt provider %q: %w", entry.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", entry.Name, "model", entry.Model)
	return p, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config, terms *termctx.Context) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Lectern — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printField("Lecture", terms.Title())
	printField("Slides", fmt.Sprintf("%d", terms.MaxIndex()+1))
	printField("LLM", cfg.Providers.LLM.Name+" / "+cfg.Providers.LLM.Model)
	printField("Fallbacks", fmt.Sprintf("%d", len(cfg.Providers.Fallbacks)))
	printField("STT", cfg.Providers.STT.Name+" / "+cfg.Providers.STT.Model)
	if cfg.Storage.PostgresDSN != "" {
		printField("Store", "postgres")
	} else {
		printField("Store", "memory")
	}
	if cfg.Storage.RedisAddr != "" {
		printField("Journal", cfg.Storage.RedisAddr)
	} else {
		printField("Journal", "(disabled)")
	}
	printField("Export", string(cfg.Export.Format))
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printField(name, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len(value) > 22 {
		value = value[:19] + "…"
	}
	fmt.Printf("║  %-10s : %-22s ║\n", name, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
