package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	votingbooth "ballotbooth/contexts/election/voting-booth"
	"ballotbooth/contexts/election/voting-booth/adapters/landmark"
	"ballotbooth/contexts/election/voting-booth/adapters/memory"
	postgresadapter "ballotbooth/contexts/election/voting-booth/adapters/postgres"
	"ballotbooth/contexts/election/voting-booth/adapters/sms"
	"ballotbooth/internal/platform/config"
	"ballotbooth/internal/platform/db"
	"ballotbooth/internal/platform/httpserver"
	"ballotbooth/internal/platform/messaging"

	"golang.org/x/sync/errgroup"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

// APIApp serves the booth. Sessions always live in this process; with an
// in-memory store the outbox relay and notifier run here too because no
// other process can see the store.
type APIApp struct {
	server       *httpserver.Server
	module       votingbooth.Module
	postgres     *db.Postgres
	runWorkers   bool
	notify       bool
	pollInterval time.Duration
	logger       *slog.Logger
}

// WorkerApp relays the Postgres outbox and runs the vote.cast notifier.
type WorkerApp struct {
	postgres     *db.Postgres
	module       votingbooth.Module
	notify       bool
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	detector, err := landmark.LoadPigoDetector(cfg.FaceCascadeDir)
	if err != nil {
		return nil, err
	}

	deps := baseDependencies(cfg, detector, logger)
	deps.Sessions = memory.NewSessionStore()
	deps.Publisher = bus
	deps.Subscriber = bus

	app := &APIApp{
		pollInterval: cfg.OutboxPollInterval,
		notify:       cfg.EnableVoteCastNotifier,
		logger:       logger,
	}
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		logger.Warn("POSTGRES_DSN is empty, using in-memory voter store",
			"event", "bootstrap_in_memory_store",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
		store := memory.NewStore(nil)
		deps.Voters = store
		deps.Ballots = store
		deps.Outbox = store
		deps.Dedup = store
		deps.Clock = store
		deps.IDGen = store
		app.runWorkers = true
	} else {
		pg, repo, err := connectRepository(cfg, logger)
		if err != nil {
			return nil, err
		}
		app.postgres = pg
		deps.Voters = repo
		deps.Ballots = repo
		deps.Outbox = repo
		deps.Dedup = repo
		deps.Clock = postgresadapter.SystemClock{}
		deps.IDGen = postgresadapter.UUIDGenerator{}
	}

	app.module = votingbooth.NewModule(deps)
	app.server = httpserver.New(app.module, logger, normalizeAddr(cfg.HTTPPort))
	return app, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	bus, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}
	pg, repo, err := connectRepository(cfg, logger)
	if err != nil {
		return nil, err
	}

	// The worker never verifies faces, so it skips loading the cascades.
	deps := baseDependencies(cfg, nil, logger)
	deps.Voters = repo
	deps.Ballots = repo
	deps.Outbox = repo
	deps.Dedup = repo
	deps.Sessions = memory.NewSessionStore()
	deps.Publisher = bus
	deps.Subscriber = bus
	deps.Clock = postgresadapter.SystemClock{}
	deps.IDGen = postgresadapter.UUIDGenerator{}

	return &WorkerApp{
		postgres:     pg,
		module:       votingbooth.NewModule(deps),
		notify:       cfg.EnableVoteCastNotifier,
		pollInterval: cfg.OutboxPollInterval,
		logger:       logger,
	}, nil
}

func (a *APIApp) Run(ctx context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"in_process_workers", a.runWorkers,
		)
	}

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return a.server.Start(gctx)
	})
	group.Go(func() error {
		return RunEvery(gctx, a.pollInterval, a.module.SessionSweeper.RunOnce)
	})
	if a.runWorkers {
		if a.notify {
			group.Go(func() error {
				return a.module.Notifier.Start(gctx)
			})
		}
		group.Go(func() error {
			return RunEvery(gctx, a.pollInterval, a.module.OutboxRelay.RunOnce)
		})
	}
	return group.Wait()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if w.notify {
		if err := w.module.Notifier.Start(ctx); err != nil {
			return err
		}
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return RunEvery(gctx, w.pollInterval, w.module.OutboxRelay.RunOnce)
	})
	return group.Wait()
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

// RunEvery calls job immediately and then on every tick until ctx is done.
// A failing cycle is logged by the job itself and retried on the next tick.
func RunEvery(ctx context.Context, interval time.Duration, job func(context.Context) error) error {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		_ = job(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func baseDependencies(cfg config.Config, detector landmark.Detector, logger *slog.Logger) votingbooth.Dependencies {
	return votingbooth.Dependencies{
		Matcher:               landmark.NewMatcher(detector, cfg.FaceMatchThreshold, logger),
		Notifier:              sms.LogNotifier{Logger: logger},
		Candidates:            cfg.Candidates,
		MinimumAge:            cfg.MinimumVotingAge,
		SessionTTL:            cfg.SessionTTL,
		ResetRequiresReenroll: cfg.ResetRequiresReenroll,
		OutboxBatchSize:       cfg.OutboxBatchSize,
		Logger:                logger,
	}
}

func connectRepository(cfg config.Config, logger *slog.Logger) (*db.Postgres, *postgresadapter.Repository, error) {
	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, err
	}
	repo := postgresadapter.NewRepository(pg.DB, logger)
	if cfg.AutoMigrate {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := repo.Migrate(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, err
		}
	}
	return pg, repo, nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}
