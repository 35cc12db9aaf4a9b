package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	payoutservice "solmine/contexts/mining-core/payout-service"
	payoutmemory "solmine/contexts/mining-core/payout-service/adapters/memory"
	solanaadapter "solmine/contexts/mining-core/payout-service/adapters/solana"
	payoutworkers "solmine/contexts/mining-core/payout-service/application/workers"
	payoutports "solmine/contexts/mining-core/payout-service/ports"
	sessionservice "solmine/contexts/mining-core/session-service"
	sessionpostgres "solmine/contexts/mining-core/session-service/adapters/postgres"
	"solmine/internal/platform/config"
	"solmine/internal/platform/db"
	"solmine/internal/platform/httpserver"
	"solmine/internal/platform/messaging"
	"solmine/internal/platform/ratelimit"
	"solmine/internal/shared/events"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const distributionTopic = "pool.distribution.completed"

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres     *db.Postgres
	settlement   payoutworkers.SettlementJob
	outboxRelay  payoutworkers.OutboxRelay
	bus          *messaging.Bus
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")

	var pg *db.Postgres
	var mining sessionservice.Module

	if strings.TrimSpace(cfg.PostgresDSN) != "" {
		pg, err = db.Connect(cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		repo := sessionpostgres.NewRepository(pg.DB, logger)
		if err := repo.Migrate(); err != nil {
			_ = pg.Close()
			return nil, err
		}
		mining = sessionservice.NewModule(sessionservice.Dependencies{
			Repository:      repo,
			Clock:           sessionpostgres.SystemClock{},
			IDGenerator:     sessionpostgres.UUIDGenerator{},
			SessionDuration: cfg.SessionDuration,
			LeaderboardSize: cfg.LeaderboardSize,
			Logger:          logger,
		})
	} else {
		mining = sessionservice.NewInMemoryModule(cfg.SessionDuration, logger)
	}

	treasury, err := buildTreasury(cfg, logger)
	if err != nil {
		if pg != nil {
			_ = pg.Close()
		}
		return nil, err
	}

	payouts := payoutservice.NewModule(payoutservice.Dependencies{
		Sessions:               mining.Service,
		Treasury:               treasury,
		Outbox:                 payoutmemory.NewOutboxStore(),
		Clock:                  sessionpostgres.SystemClock{},
		IDGen:                  sessionpostgres.UUIDGenerator{},
		MinPayoutLamports:      cfg.MinPayoutLamports,
		BaseReserveLamports:    cfg.BaseReserveLamports,
		PerTransferFeeLamports: cfg.PerTransferFeeLamports,
		Logger:                 logger,
	})

	server := httpserver.New(
		mining,
		payouts,
		ratelimit.New(cfg.IPRateLimit, cfg.IPRateWindow),
		ratelimit.New(cfg.WalletClickLimit, cfg.WalletClickWindow),
		logger,
		normalizeAddr(cfg.HTTPPort),
	)
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("SOLMINE_POSTGRES_DSN is required")
	}

	treasury, err := buildTreasury(cfg, logger)
	if err != nil {
		return nil, err
	}
	if treasury == nil {
		return nil, errors.New("SOLMINE_SOLANA_RPC_URL and SOLMINE_TREASURY_PRIVATE_KEY are required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	repo := sessionpostgres.NewRepository(pg.DB, logger)
	if err := repo.Migrate(); err != nil {
		_ = pg.Close()
		return nil, err
	}

	mining := sessionservice.NewModule(sessionservice.Dependencies{
		Repository:      repo,
		Clock:           sessionpostgres.SystemClock{},
		IDGenerator:     sessionpostgres.UUIDGenerator{},
		SessionDuration: cfg.SessionDuration,
		LeaderboardSize: cfg.LeaderboardSize,
		Logger:          logger,
	})

	outbox := payoutmemory.NewOutboxStore()
	payouts := payoutservice.NewModule(payoutservice.Dependencies{
		Sessions:               mining.Service,
		Treasury:               treasury,
		Outbox:                 outbox,
		Clock:                  sessionpostgres.SystemClock{},
		IDGen:                  sessionpostgres.UUIDGenerator{},
		MinPayoutLamports:      cfg.MinPayoutLamports,
		BaseReserveLamports:    cfg.BaseReserveLamports,
		PerTransferFeeLamports: cfg.PerTransferFeeLamports,
		Logger:                 logger,
	})

	bus := messaging.NewBus(logger)
	return &WorkerApp{
		postgres: pg,
		settlement: payoutworkers.SettlementJob{
			Payouts: payouts.Service,
			Logger:  logger,
		},
		outboxRelay: payoutworkers.OutboxRelay{
			Outbox:    outbox,
			Publisher: bus,
			Clock:     sessionpostgres.SystemClock{},
			Topic:     distributionTopic,
			BatchSize: 100,
			Logger:    logger,
		},
		bus:          bus,
		pollInterval: cfg.SettleInterval,
		logger:       logger,
	}, nil
}

func buildTreasury(cfg config.Config, logger *slog.Logger) (payoutports.Treasury, error) {
	rpcURL := strings.TrimSpace(cfg.SolanaRPCURL)
	key := strings.TrimSpace(cfg.TreasuryPrivateKey)
	if rpcURL == "" || key == "" {
		// Payout endpoints degrade to "not configured" instead of failing boot.
		return nil, nil
	}
	treasury, err := solanaadapter.NewTreasury(rpcURL, key, logger)
	if err != nil {
		return nil, err
	}
	return treasury, nil
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	err := w.bus.Subscribe(ctx, distributionTopic, "solmine-settlement-cg",
		func(_ context.Context, event events.Envelope) error {
			w.logger.Info("distribution event observed",
				"event", "worker_distribution_observed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"event_id", event.EventID,
				"event_type", event.EventType,
			)
			return nil
		})
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		// A settlement error is logged and the loop keeps ticking. The
		// orchestrator records the session id even on a failed run, so the
		// next tick reports already_distributed rather than retrying it.
		if err := w.settlement.RunOnce(ctx); err != nil {
			w.logger.Error("settlement run failed",
				"event", "worker_settlement_failed",
				"module", "internal/app/bootstrap",
				"layer", "platform",
				"error", err.Error(),
			)
		}
		if err := w.outboxRelay.RunOnce(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
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
