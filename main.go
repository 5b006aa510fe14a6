// Command backend runs the lurk-tender companion service. It:
//   - Loads configuration and initializes structured logging.
//   - Opens the embedded SQLite store and runs idempotent migrations.
//   - Attaches to Chrome over CDP, observes the page's GQL and socket
//     traffic, and folds the extracted events into channel state.
//   - Runs the scheduling loop that posts emote batches through the page's
//     own chat UI at randomized intervals.
//   - Exposes an HTTP server with /healthz, /readyz, /status, /metrics, and
//     the settings/whitelist surface.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/lurk-tender/backend/browser"
	"github.com/onnwee/lurk-tender/backend/chat"
	"github.com/onnwee/lurk-tender/backend/config"
	"github.com/onnwee/lurk-tender/backend/db"
	"github.com/onnwee/lurk-tender/backend/emotes"
	"github.com/onnwee/lurk-tender/backend/events"
	"github.com/onnwee/lurk-tender/backend/extractor"
	"github.com/onnwee/lurk-tender/backend/scheduler"
	"github.com/onnwee/lurk-tender/backend/server"
	"github.com/onnwee/lurk-tender/backend/state"
	"github.com/onnwee/lurk-tender/backend/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	initLogging()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	telemetry.Init()
	shutdownTracing, err := telemetry.InitTracing("lurk-tender", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdownTracing()

	database, err := db.Connect(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open store", slog.Any("err", err))
		os.Exit(1)
	}
	defer func() {
		if err := database.Close(); err != nil {
			slog.Error("failed to close store", slog.Any("err", err))
		}
	}()
	store := db.NewStore(database)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Event plumbing: extractor -> bus -> aggregator.
	bus := events.NewBus()
	defer bus.Close()
	aggRNG := rand.New(rand.NewSource(time.Now().UnixNano()))
	agg := state.NewAggregator(store, aggRNG, cfg.DelayMin, cfg.DelayMax)
	go agg.Run(ctx, bus.Subscribe("aggregator", 128))

	// Browser attach. The HTTP surface still comes up without one so status
	// and settings stay reachable while Chrome is down.
	session, err := browser.Connect(ctx, *cfg)
	if err != nil {
		slog.Error("browser connect failed", slog.Any("err", err))
	}

	browserUp := func() bool { return false }
	if session != nil {
		defer session.Close()
		browserUp = func() bool {
			_, err := session.Browser.Version()
			return err == nil
		}

		x := extractor.New(bus)
		go func() {
			if err := x.Attach(ctx, session.Page); err != nil {
				slog.Error("extractor attach failed", slog.Any("err", err))
			}
		}()

		sendRNG := rand.New(rand.NewSource(time.Now().UnixNano() + 1))
		driver := chat.NewDriver(session.Page, store, sendRNG, cfg.DelayMin, cfg.DelayMax)
		pipeline := scheduler.NewSendPipeline(store, emotes.NewSelector(sendRNG), driver)
		sched := scheduler.New(store, agg, pipeline, sendRNG, cfg.TickInterval, cfg.DelayMin, cfg.DelayMax)
		go sched.Run(ctx)
	}

	// HTTP server (health/status/metrics/settings)
	h := server.NewHandlers(database, store, agg, browserUp)
	if session != nil {
		h.EnableCapture(ctx, chat.NewWhitelistCapture(session.Page, store).Run)
	}
	go func() {
		if err := server.Start(ctx, h, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited", slog.Any("err", err))
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	time.Sleep(200 * time.Millisecond)
}

// initLogging configures slog from LOG_LEVEL and LOG_FORMAT (text | json).
func initLogging() {
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	var handler slog.Handler
	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))
	slog.Info("logger initialized", slog.String("level", lvl.String()))
}
