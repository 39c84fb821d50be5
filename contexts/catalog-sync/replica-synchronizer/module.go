package replicasynchronizer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/adapters/memory"
	"shopgate/contexts/catalog-sync/replica-synchronizer/application/commands"
	"shopgate/contexts/catalog-sync/replica-synchronizer/application/workers"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
	"shopgate/internal/shared/retry"
)

type Module struct {
	Registry    *entities.Registry
	Applier     commands.OrderedApplier
	SideEffects commands.SideEffects
	Bootstrap   commands.BootstrapSynchronizer
	Changes     workers.ChangeConsumer
	Orders      *workers.OrderCreatedConsumer
	Live        *workers.LiveUpdateNotifier

	// Populated by NewInMemoryModule only.
	Source      *memory.Store
	Store       *memory.Store
	Index       *memory.SearchIndex
	Cache       *memory.CacheStamp
	Feed        *memory.ChangeFeed
	Applied     *memory.AppliedFeed
	Jobs        *memory.JobSink
	Broadcaster *memory.Broadcaster
}

type Dependencies struct {
	Registry          *entities.Registry
	Source            ports.SourceStore
	Store             ports.ReplicaStore
	Search            ports.SearchIndex
	Cache             ports.CacheStamp
	Changes           ports.ChangeSubscriber
	AppliedPublisher  ports.AppliedPublisher
	AppliedSubscriber ports.AppliedSubscriber
	Broadcaster       ports.Broadcaster
	EmailJobs         ports.EmailJobPublisher
	IDGen             ports.IDGenerator
	Metrics           ports.Metrics
	Clock             ports.Clock

	ChangeChannel      string
	DomainEventChannel string
	OrderingAttempts   int
	OrderingDelay      time.Duration
	BootstrapDelay     time.Duration
	LiveDebounce       time.Duration
	// Sleep replaces real waits for retries and the bootstrap delay.
	Sleep  retry.Sleeper
	Logger *slog.Logger
}

func NewModule(deps Dependencies) Module {
	registry := deps.Registry
	if registry == nil {
		registry = entities.DefaultRegistry()
	}

	applier := commands.OrderedApplier{
		Applier: commands.ReplicaApplier{
			Registry: registry,
			Store:    deps.Store,
			Clock:    deps.Clock,
			Logger:   deps.Logger,
		},
		Attempts: deps.OrderingAttempts,
		Delay:    deps.OrderingDelay,
		Sleep:    deps.Sleep,
		Metrics:  deps.Metrics,
		Logger:   deps.Logger,
	}
	sideEffects := commands.SideEffects{
		Store:     deps.Store,
		Projector: commands.SearchProjector{Index: deps.Search},
		Cache:     deps.Cache,
		Metrics:   deps.Metrics,
		Logger:    deps.Logger,
	}

	module := Module{
		Registry:    registry,
		Applier:     applier,
		SideEffects: sideEffects,
		Bootstrap: commands.BootstrapSynchronizer{
			Registry:    registry,
			Source:      deps.Source,
			Store:       deps.Store,
			SideEffects: sideEffects,
			Clock:       deps.Clock,
			Delay:       deps.BootstrapDelay,
			Sleep:       deps.Sleep,
			Logger:      deps.Logger,
		},
		Changes: workers.ChangeConsumer{
			Subscriber:  deps.Changes,
			Applier:     applier,
			SideEffects: sideEffects,
			Publisher:   deps.AppliedPublisher,
			Metrics:     deps.Metrics,
			Channel:     deps.ChangeChannel,
			Logger:      deps.Logger,
		},
	}

	if deps.EmailJobs != nil && deps.IDGen != nil {
		module.Orders = &workers.OrderCreatedConsumer{
			Subscriber:  deps.Changes,
			Jobs:        deps.EmailJobs,
			IDGenerator: deps.IDGen,
			Clock:       deps.Clock,
			Channel:     deps.DomainEventChannel,
			Logger:      deps.Logger,
		}
	}
	if deps.AppliedSubscriber != nil && deps.Broadcaster != nil {
		module.Live = workers.NewLiveUpdateNotifier(deps.AppliedSubscriber, deps.Broadcaster, deps.LiveDebounce, deps.Logger)
	}
	return module
}

// Start subscribes every consumer. The live notifier subscribes first so no
// applied signal is published before it listens.
func (m Module) Start(ctx context.Context) error {
	if m.Live != nil {
		if err := m.Live.Start(ctx); err != nil {
			return fmt.Errorf("start live update notifier: %w", err)
		}
	}
	if err := m.Changes.Start(ctx); err != nil {
		return fmt.Errorf("start change consumer: %w", err)
	}
	if m.Orders != nil {
		if err := m.Orders.Start(ctx); err != nil {
			return fmt.Errorf("start order created consumer: %w", err)
		}
	}
	return nil
}

// Wait blocks until background work started by Start has finished after its
// context ended. Subscriptions themselves are drained by the transport.
func (m Module) Wait() {
	if m.Live != nil {
		m.Live.Wait()
	}
}

// NewInMemoryModule wires the module onto in-process stores and feeds. Waits
// are skipped, so ordering retries and the bootstrap delay complete at once.
func NewInMemoryModule(logger *slog.Logger) Module {
	registry := entities.DefaultRegistry()
	clock := memory.NewClock(time.Now(), time.Millisecond)
	source := memory.NewStore(registry)
	store := memory.NewStore(registry)
	index := memory.NewSearchIndex()
	cache := memory.NewCacheStamp(clock)
	feed := memory.NewChangeFeed()
	applied := &memory.AppliedFeed{}
	jobs := &memory.JobSink{}
	broadcaster := memory.NewBroadcaster()

	module := NewModule(Dependencies{
		Registry:          registry,
		Source:            source,
		Store:             store,
		Search:            index,
		Cache:             cache,
		Changes:           feed,
		AppliedPublisher:  applied,
		AppliedSubscriber: applied,
		Broadcaster:       broadcaster,
		EmailJobs:         jobs,
		IDGen:             &memory.SequenceIDs{},
		Metrics:           memory.NewMetrics(),
		Clock:             clock,
		LiveDebounce:      10 * time.Millisecond,
		Sleep:             func(ctx context.Context, _ time.Duration) error { return ctx.Err() },
		Logger:            logger,
	})
	module.Source = source
	module.Store = store
	module.Index = index
	module.Cache = cache
	module.Feed = feed
	module.Applied = applied
	module.Jobs = jobs
	module.Broadcaster = broadcaster
	return module
}
