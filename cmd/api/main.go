// Package main provides the entry point for the match engine API server.
package main

import (
	"context"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gigmesh/match-engine/internal/api"
	"github.com/gigmesh/match-engine/internal/auth"
	"github.com/gigmesh/match-engine/internal/engine"
	"github.com/gigmesh/match-engine/internal/notify"
	pgqueue "github.com/gigmesh/match-engine/internal/queue/postgres"
	"github.com/gigmesh/match-engine/internal/shutdown"
	pgstore "github.com/gigmesh/match-engine/internal/store/postgres"
	"github.com/gigmesh/match-engine/pkg/config"
	"github.com/gigmesh/match-engine/pkg/logger"
)

func main() {
	log := logger.New(slog.LevelInfo, true)

	cfg, err := config.Load()
	if err != nil {
		log.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	storeCfg := pgstore.DefaultConfig(cfg.DatabaseDSN)
	st, err := pgstore.NewPostgresStore(storeCfg, log.Logger)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	reassignQueue := pgqueue.NewPostgresQueue(st.DB(), log.Logger)

	authService := auth.NewService(&auth.Config{
		JWTSecret:   []byte(cfg.JWTSecret),
		TokenExpiry: cfg.JWTExpiry,
	}, log.Logger)

	// Notification fan-out: email via the mailer webhook, in-app via the
	// websocket hub served by this process.
	hub := notify.NewHub(log.Logger)
	dispatcher := notify.NewDispatcher(&notify.Config{
		MaxAttempts: cfg.Engine.DispatchMaxAttempts,
		Backoff:     cfg.Engine.DispatchBackoff,
		SendTimeout: 10 * cfg.Engine.DispatchBackoff,
	}, log.Logger,
		notify.NewEmailChannel(cfg.Notify.MailerEndpoint),
		notify.NewInAppChannel(hub),
	)

	autoAccept := engine.NewAutoAccept(st, log.Logger)
	scheduler := engine.NewScheduler(st, dispatcher, autoAccept, log.Logger)
	preferences := engine.NewPreferences(st, log.Logger)
	responder := engine.NewResponder(st, reassignQueue, log.Logger)
	ledger := engine.NewLedger(st, log.Logger)

	// Preference changes can release suppressed invitations immediately
	// instead of waiting for the next evaluation tick.
	preferences.OnChange(scheduler.ProcessPendingFor)


	server := api.NewServer(cfg, &api.Deps{
		Store:       st,
		DB:          st.DB(),
		Auth:        authService,
		Preferences: preferences,
		Scheduler:   scheduler,
		Responder:   responder,
		Ledger:      ledger,
		Hub:         hub,
	}, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Invitations promoted by the worker reach connected dashboard sessions
	// through the pg_notify bridge into this process's hub.
	bridge := notify.NewBridge(cfg.DatabaseDSN, hub, log.Logger)
	if err := bridge.Start(ctx); err != nil {
		log.Error("failed to start notification bridge", "error", err)
		os.Exit(1)
	}

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("store", st))
	coordinator.Register(shutdown.NewLoopComponent("notify-bridge", bridge))
	coordinator.Register(shutdown.NewFuncComponent("api-server", server.Shutdown))

	go func() {
		coordinator.WaitForSignal()
		cancel()
	}()

	log.Info("starting API server",
		"host", cfg.APIHost,
		"port", cfg.APIPort,
	)

	if err := server.Start(ctx); err != nil && err != context.Canceled {
		log.Error("server error", "error", err)
		os.Exit(1)
	}

	coordinator.Shutdown()
	coordinator.Wait()
	log.Info("server stopped")
	os.Exit(coordinator.ExitCode())
}
