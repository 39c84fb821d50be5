package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	replicasynchronizer "shopgate/contexts/catalog-sync/replica-synchronizer"
	eventsadapter "shopgate/contexts/catalog-sync/replica-synchronizer/adapters/events"
	postgresadapter "shopgate/contexts/catalog-sync/replica-synchronizer/adapters/postgres"
	surrealadapter "shopgate/contexts/catalog-sync/replica-synchronizer/adapters/surreal"
	websocketadapter "shopgate/contexts/catalog-sync/replica-synchronizer/adapters/websocket"
	"shopgate/contexts/catalog-sync/replica-synchronizer/application/commands"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
	"shopgate/internal/platform/config"
	"shopgate/internal/platform/db"
	"shopgate/internal/platform/httpserver"
	"shopgate/internal/platform/logging"
	"shopgate/internal/platform/messaging"
	"shopgate/internal/platform/observability"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

const closeTimeout = 10 * time.Second

type ReplicatorApp struct {
	cfg     config.Config
	module  replicasynchronizer.Module
	bus     *messaging.ChangeBus
	hub     *websocketadapter.Hub
	server  *httpserver.Server
	writeDB *db.Postgres
	readDB  *db.Postgres
	search  *surrealadapter.SearchIndex
	jobs    *eventsadapter.EmailJobPublisher
	tracing observability.ShutdownFunc
	logger  *slog.Logger
}

func BuildReplicator(ctx context.Context) (*ReplicatorApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat).
		With("service", cfg.ServiceName, "process", "replicator")
	slog.SetDefault(logger)

	app := &ReplicatorApp{cfg: cfg, logger: logger}
	if err := app.connect(ctx); err != nil {
		_ = app.Close()
		return nil, err
	}
	return app, nil
}

func (a *ReplicatorApp) connect(ctx context.Context) error {
	cfg := a.cfg
	var err error

	if a.tracing, err = observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint); err != nil {
		return err
	}

	poolOptions := db.Options{MaxOpenConns: cfg.DBMaxOpenConns, MaxIdleConns: cfg.DBMaxIdleConns}
	if a.writeDB, err = db.Connect(ctx, cfg.WritePostgresDSN, poolOptions); err != nil {
		return fmt.Errorf("write store: %w", err)
	}
	if a.readDB, err = db.Connect(ctx, cfg.ReadPostgresDSN, poolOptions); err != nil {
		return fmt.Errorf("read store: %w", err)
	}

	clock := postgresadapter.SystemClock{}
	cacheStamp := postgresadapter.NewCacheStamp(a.readDB.DB, cfg.CacheVersionKey, cfg.CacheVersionTTL, clock)
	if err := cacheStamp.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("prepare cache version table: %w", err)
	}

	var search ports.SearchIndex
	if strings.TrimSpace(cfg.SurrealURL) != "" {
		a.search, err = surrealadapter.Connect(ctx, surrealadapter.Config{
			URL:       cfg.SurrealURL,
			Namespace: cfg.SurrealNamespace,
			Database:  cfg.SurrealDatabase,
			Username:  cfg.SurrealUser,
			Password:  cfg.SurrealPassword,
		}, a.logger)
		if err != nil {
			return err
		}
		search = a.search
	} else {
		a.logger.Warn("search index disabled",
			"event", "bootstrap_search_disabled",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}

	a.jobs = eventsadapter.NewEmailJobPublisher(eventsadapter.NewKafkaWriter(cfg.KafkaBrokers, cfg.EmailJobTopic))
	a.bus = messaging.NewChangeBus(cfg.KafkaBrokers, a.logger)
	a.hub = websocketadapter.NewHub(a.logger)
	broker := messaging.NewBroker(a.logger)
	metrics := observability.NewMetrics()

	a.module = replicasynchronizer.NewModule(replicasynchronizer.Dependencies{
		Registry:           entities.DefaultRegistry(),
		Source:             postgresadapter.NewSourceStore(a.writeDB.DB, a.logger),
		Store:              postgresadapter.NewReplicaStore(a.readDB.DB, a.logger),
		Search:             search,
		Cache:              cacheStamp,
		Changes:            a.bus,
		AppliedPublisher:   broker,
		AppliedSubscriber:  broker,
		Broadcaster:        a.hub,
		EmailJobs:          a.jobs,
		IDGen:              eventsadapter.UUIDGenerator{},
		Metrics:            metrics,
		Clock:              clock,
		ChangeChannel:      cfg.ChangeChannel,
		DomainEventChannel: cfg.DomainEventChannel,
		OrderingAttempts:   cfg.OrderingRetryAttempts,
		OrderingDelay:      cfg.OrderingRetryDelay,
		BootstrapDelay:     cfg.BootstrapDelay,
		LiveDebounce:       cfg.LiveDebounce,
		Logger:             a.logger,
	})

	a.server = httpserver.New(httpserver.Options{
		Addr:    normalizeAddr(cfg.HTTPPort),
		Metrics: metrics.Handler(),
		Live:    a.hub,
		Checks: map[string]httpserver.CheckFunc{
			"write_store": a.writeDB.Ping,
			"read_store":  a.readDB.Ping,
		},
		Logger: a.logger,
	})
	return nil
}

// Run consumes the change channels and serves the operational endpoints
// until ctx ends. Bootstrap, when enabled, runs alongside the live path.
func (a *ReplicatorApp) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.module.Start(runCtx); err != nil {
		return err
	}

	serverErr := make(chan error, 1)
	go func() { serverErr <- a.server.Run(runCtx) }()

	var background sync.WaitGroup
	if a.cfg.BootstrapEnabled {
		background.Add(1)
		go func() {
			defer background.Done()
			a.runBootstrap(runCtx, a.module.Bootstrap)
		}()
	}

	a.logger.Info("replicator started",
		"event", "bootstrap_replicator_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"change_channel", a.cfg.ChangeChannel,
		"domain_event_channel", a.cfg.DomainEventChannel,
		"bootstrap", a.cfg.BootstrapEnabled,
	)

	var err error
	select {
	case <-ctx.Done():
		err = <-serverErr
	case err = <-serverErr:
		cancel()
	}
	// The notifier's final flush must reach clients before the hub drops them.
	a.bus.Wait()
	background.Wait()
	a.module.Wait()
	a.hub.Close()

	a.logger.Info("replicator stopped",
		"event", "bootstrap_replicator_stopped",
		"module", "internal/app/bootstrap",
		"layer", "platform",
	)
	return err
}

// RunBootstrap performs only the full copy, without the startup delay.
func (a *ReplicatorApp) RunBootstrap(ctx context.Context) (commands.BootstrapReport, error) {
	synchronizer := a.module.Bootstrap
	synchronizer.Delay = 0
	report, err := synchronizer.Run(ctx)
	if err != nil {
		return report, err
	}
	if failed := report.Failed(); len(failed) > 0 {
		return report, fmt.Errorf("bootstrap incomplete, failed tables: %s", strings.Join(failed, ", "))
	}
	return report, nil
}

func (a *ReplicatorApp) runBootstrap(ctx context.Context, synchronizer commands.BootstrapSynchronizer) {
	report, err := synchronizer.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("bootstrap aborted",
			"event", "bootstrap_sync_aborted",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"error", err.Error(),
		)
		return
	}
	if failed := report.Failed(); len(failed) > 0 {
		a.logger.Warn("bootstrap finished with failed tables",
			"event", "bootstrap_sync_partial",
			"module", "internal/app/bootstrap",
			"layer", "platform",
			"failed_tables", failed,
		)
	}
}

func (a *ReplicatorApp) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	var errs []error
	if a.jobs != nil {
		errs = append(errs, a.jobs.Close())
	}
	if a.search != nil {
		errs = append(errs, a.search.Close(ctx))
	}
	if a.readDB != nil {
		errs = append(errs, a.readDB.Close())
	}
	if a.writeDB != nil {
		errs = append(errs, a.writeDB.Close())
	}
	if a.tracing != nil {
		errs = append(errs, a.tracing(ctx))
	}
	return errors.Join(errs...)
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
