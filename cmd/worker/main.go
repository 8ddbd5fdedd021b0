// Package main provides the entry point for the match engine background worker.
// It runs the expiry sweeper, the pending-invitation evaluator, and the
// reassignment forwarder.
package main

import (
	"context"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/gigmesh/match-engine/internal/engine"
	"github.com/gigmesh/match-engine/internal/notify"
	"github.com/gigmesh/match-engine/internal/queue"
	pgqueue "github.com/gigmesh/match-engine/internal/queue/postgres"
	"github.com/gigmesh/match-engine/internal/shutdown"
	pgstore "github.com/gigmesh/match-engine/internal/store/postgres"
	"github.com/gigmesh/match-engine/pkg/config"
	"github.com/gigmesh/match-engine/pkg/logger"
)

func main() {
	log := logger.Default()

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

	// The websocket hub lives in the API process; in-app deliveries go
	// through pg_notify and are relayed to the hub by its bridge.
	dispatcher := notify.NewDispatcher(&notify.Config{
		MaxAttempts: cfg.Engine.DispatchMaxAttempts,
		Backoff:     cfg.Engine.DispatchBackoff,
		SendTimeout: 10 * cfg.Engine.DispatchBackoff,
	}, log.Logger,
		notify.NewEmailChannel(cfg.Notify.MailerEndpoint),
		notify.NewPGChannel(st.DB()),
	)

	autoAccept := engine.NewAutoAccept(st, log.Logger)
	scheduler := engine.NewScheduler(st, dispatcher, autoAccept, log.Logger)

	sweeper := engine.NewSweeper(st, cfg.Engine.ResponseTTL, cfg.Engine.SweepInterval, log.Logger)
	evaluator := engine.NewEvaluator(st, scheduler, cfg.Engine.EvaluateInterval, log.Logger)
	forwarder := queue.NewForwarder(reassignQueue, cfg.Notify.SourcingEndpoint, cfg.Engine.ForwardInterval, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	coordinator := shutdown.NewCoordinator(
		shutdown.WithTimeout(cfg.ShutdownTimeout),
		shutdown.WithLogger(log.Logger),
	)
	coordinator.Register(shutdown.NewCloserComponent("store", st))
	coordinator.Register(shutdown.NewLoopComponent("sweeper", sweeper))
	coordinator.Register(shutdown.NewLoopComponent("evaluator", evaluator))
	coordinator.Register(shutdown.NewLoopComponent("forwarder", forwarder))

	log.Info("starting match worker",
		"response_ttl", cfg.Engine.ResponseTTL,
		"sweep_interval", cfg.Engine.SweepInterval,
		"evaluate_interval", cfg.Engine.EvaluateInterval,
		"forward_interval", cfg.Engine.ForwardInterval,
	)

	go func() {
		if err := sweeper.Start(ctx); err != nil && err != context.Canceled {
			log.Error("sweeper stopped with error", "error", err)
		}
	}()
	go func() {
		if err := evaluator.Start(ctx); err != nil && err != context.Canceled {
			log.Error("evaluator stopped with error", "error", err)
		}
	}()
	go func() {
		if err := forwarder.Start(ctx); err != nil && err != context.Canceled {
			log.Error("forwarder stopped with error", "error", err)
		}
	}()

	coordinator.WaitForSignal()
	cancel()
	coordinator.Wait()

	log.Info("match worker shutdown complete")
	os.Exit(coordinator.ExitCode())
}
