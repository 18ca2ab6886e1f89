// Command novad is the nova voice assistant terminal client: it captures the
// microphone, runs one duplex live session against Gemini, plays the
// assistant's replies, and persists transcripts and remembered facts.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/novalabs/nova/internal/capture"
	"github.com/novalabs/nova/internal/config"
	"github.com/novalabs/nova/internal/health"
	"github.com/novalabs/nova/internal/observe"
	"github.com/novalabs/nova/internal/playback"
	"github.com/novalabs/nova/internal/session"
	"github.com/novalabs/nova/internal/tools"
	"github.com/novalabs/nova/pkg/live"
	"github.com/novalabs/nova/pkg/live/gemini"
	"github.com/novalabs/nova/pkg/memory"
	"github.com/novalabs/nova/pkg/memory/memstore"
	"github.com/novalabs/nova/pkg/memory/postgres"
	"github.com/novalabs/nova/pkg/memory/sqlite"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "nova: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "nova: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("nova starting",
		"config", *configPath,
		"log_level", cfg.Server.LogLevel,
		"store", cfg.Store.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownMetrics(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	store, err := openStore(ctx, cfg.Store)
	if err != nil {
		slog.Error("failed to open store", "err", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("store close error", "err", err)
		}
	}()

	registry := tools.NewRegistry()
	if !cfg.Engine.SearchGrounding {
		if err := tools.RegisterSaveKnowledge(registry, store); err != nil {
			slog.Error("failed to register save_knowledge", "err", err)
			return 1
		}
	}

	mic, err := capture.NewMalgoDevice()
	if err != nil {
		slog.Error("failed to open capture backend", "err", err)
		return 1
	}
	defer mic.Close()

	sink, err := playback.NewDeviceSink()
	if err != nil {
		slog.Error("failed to open playback device", "err", err)
		return 1
	}
	defer sink.Close()

	var providerOpts []gemini.Option
	if cfg.Engine.Model != "" {
		providerOpts = append(providerOpts, gemini.WithModel(cfg.Engine.Model))
	}
	if cfg.Engine.BaseURL != "" {
		providerOpts = append(providerOpts, gemini.WithBaseURL(cfg.Engine.BaseURL))
	}
	provider := gemini.New(cfg.Engine.APIKey, providerOpts...)

	sessionCfg := live.SessionConfig{
		Voice:           cfg.Engine.Voice,
		Instructions:    cfg.Engine.SystemInstruction(),
		SearchGrounding: cfg.Engine.SearchGrounding,
	}

	ctrl := session.NewController(provider, sessionCfg, mic, playback.New(sink), registry,
		session.WithStore(store),
		session.WithStateHandler(func(s session.State) {
			fmt.Printf("\r[%s]\n> ", s)
		}),
	)

	printStartupSummary(cfg)

	g, gctx := errgroup.WithContext(ctx)

	if addr := cfg.Server.MetricsAddr; addr != "" {
		srv := &http.Server{Addr: addr, Handler: metricsMux(ctrl, store)}
		g.Go(func() error {
			slog.Info("metrics endpoint up", "addr", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		return repl(gctx, ctrl)
	})

	slog.Info("ready — type /start to begin, /help for commands")

	err = g.Wait()
	ctrl.Stop()

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// repl reads commands and text turns from stdin. Typed text while no session
// is active starts one and uses the text as the opening turn.
func repl(ctx context.Context, ctrl *session.Controller) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	fmt.Print("> ")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if err := handleLine(ctx, ctrl, strings.TrimSpace(line)); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Printf("error: %v\n", err)
			}
			fmt.Print("> ")
		}
	}
}

var errQuit = errors.New("quit")

func handleLine(ctx context.Context, ctrl *session.Controller, line string) error {
	switch line {
	case "":
		return nil
	case "/help":
		fmt.Println("/start  open a session")
		fmt.Println("/stop   end the session")
		fmt.Println("/state  show the session state")
		fmt.Println("/quit   exit")
		fmt.Println("anything else is sent as a text turn")
		return nil
	case "/start":
		return ctrl.Start(ctx)
	case "/stop":
		ctrl.Stop()
		return nil
	case "/state":
		fmt.Printf("[%s]\n", ctrl.State())
		return nil
	case "/quit":
		ctrl.Stop()
		return errQuit
	}

	if ctrl.State() == session.StateIdle {
		if err := ctrl.Start(ctx); err != nil {
			return err
		}
	}
	return ctrl.SubmitText(ctx, line)
}

// openStore builds the configured persistence backend.
func openStore(ctx context.Context, cfg config.StoreConfig) (memory.Store, error) {
	switch cfg.Backend {
	case config.StoreMemory:
		return memstore.New(), nil
	case config.StoreSQLite:
		return sqlite.Open(ctx, cfg.Path)
	case config.StorePostgres:
		return postgres.NewStore(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func metricsMux(ctrl *session.Controller, store memory.Store) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	h := health.New(
		func() string { return ctrl.State().String() },
		health.Checker{Name: "store", Check: func(ctx context.Context) error {
			_, err := store.ListFacts(ctx)
			return err
		}},
	)
	h.Register(mux)
	return mux
}

func printStartupSummary(cfg *config.Config) {
	model := cfg.Engine.Model
	if model == "" {
		model = "(default)"
	}
	voice := cfg.Engine.Voice
	if voice == "" {
		voice = "(default)"
	}
	grounding := "disabled"
	if cfg.Engine.SearchGrounding {
		grounding = "enabled (tools off)"
	}
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║          nova — startup summary       ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Assistant", cfg.Engine.AssistantName)
	printRow("Persona", string(cfg.Engine.Personality))
	printRow("Model", model)
	printRow("Voice", voice)
	printRow("Grounding", grounding)
	printRow("Store", string(cfg.Store.Backend))
	if cfg.Server.MetricsAddr != "" {
		printRow("Metrics", cfg.Server.MetricsAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(key, value string) {
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", key, value)
}

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
