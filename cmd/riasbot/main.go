// Command riasbot is a demo music bot built on the rias cluster client.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/rias/internal/bot"
	"github.com/MrWong99/rias/internal/config"
	"github.com/MrWong99/rias/internal/health"
	"github.com/MrWong99/rias/internal/observe"
	"github.com/MrWong99/rias/pkg/rias"
	riasdiscord "github.com/MrWong99/rias/pkg/rias/discord"
)

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	prefix := flag.String("prefix", "!", "chat command prefix")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "riasbot: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "riasbot: %v\n", err)
		}
		return 1
	}
	token := cfg.Discord.Token
	if env := os.Getenv("DISCORD_TOKEN"); env != "" {
		token = env
	}
	if token == "" {
		fmt.Fprintln(os.Stderr, "riasbot: no Discord token in config or DISCORD_TOKEN")
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))
	slog.Info("riasbot starting",
		"config", *configPath,
		"nodes", len(cfg.Lavalink.Nodes),
		"strategy", cfg.Lavalink.NodeSelectionStrategy,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "riasbot"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Discord session ───────────────────────────────────────────────────────
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		slog.Error("failed to create Discord session", "err", err)
		return 1
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsGuildMessages |
		discordgo.IntentMessageContent
	session.StateEnabled = true

	if err := session.Open(); err != nil {
		slog.Error("failed to open Discord gateway", "err", err)
		return 1
	}
	defer session.Close()
	slog.Info("discord gateway open", "user", session.State.User.Username, "id", session.State.User.ID)

	// ── Audio cluster ─────────────────────────────────────────────────────────
	strategy, err := rias.ParseStrategy(cfg.Lavalink.NodeSelectionStrategy)
	if err != nil {
		slog.Error("invalid node selection strategy", "err", err)
		return 1
	}
	cluster := rias.New(session.State.User.ID,
		riasdiscord.SendFunc(session),
		cfg.Lavalink.NodeConfigs(),
		rias.WithStrategy(strategy),
		rias.WithSearchSource(cfg.Lavalink.DefaultSearchSource),
		rias.WithClusterUserAgent(cfg.Lavalink.UserAgent),
		rias.WithClusterMetrics(metrics),
	)
	detach := riasdiscord.Attach(session, cluster)
	defer detach()

	if err := cluster.Start(ctx); err != nil {
		slog.Error("failed to start cluster", "err", err)
		return 1
	}
	defer cluster.Shutdown()

	// ── Commands ──────────────────────────────────────────────────────────────
	removeCommands := bot.New(session, cluster, *prefix).Register()
	defer removeCommands()

	// ── Config watcher (log level hot reload) ─────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			slog.SetDefault(newLogger(diff.NewLogLevel))
			slog.Info("log level reloaded", "level", diff.NewLogLevel)
		}
		if diff.NodesChanged || diff.StrategyChanged {
			slog.Warn("node or strategy configuration changed on disk; restart to apply")
		}
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP sidecar: health + metrics ────────────────────────────────────────
	var srv *http.Server
	if cfg.Server.ListenAddr != "" {
		mux := http.NewServeMux()
		health.New(health.ClusterCheck(func() int {
			ready := 0
			for _, n := range cluster.Nodes() {
				if n.IsReady() {
					ready++
				}
			}
			return ready
		})).Register(mux)
		mux.Handle("GET /metrics", promhttp.Handler())

		srv = &http.Server{
			Addr:    cfg.Server.ListenAddr,
			Handler: observe.Middleware(metrics)(mux),
		}
		go func() {
			slog.Info("http sidecar listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("http sidecar error", "err", err)
			}
		}()
	}

	slog.Info("riasbot ready, press Ctrl+C to shut down")
	<-ctx.Done()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")
	if srv != nil {
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil {
			slog.Warn("http sidecar shutdown error", "err", err)
		}
	}
	cluster.Shutdown()
	slog.Info("goodbye")
	return 0
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
