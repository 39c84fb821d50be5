package workers

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	application "shopgate/contexts/catalog-sync/replica-synchronizer/application"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
)

const (
	DefaultLiveDebounce      = 250 * time.Millisecond
	liveNotifierConsumerName = "live-update-notifier"
)

// LiveUpdateNotifier coalesces applied-change signals per resource and emits
// one "<resource>:updated" broadcast per window. Row contents are never sent.
type LiveUpdateNotifier struct {
	subscriber  ports.AppliedSubscriber
	broadcaster ports.Broadcaster
	debounce    time.Duration
	logger      *slog.Logger

	mu      sync.Mutex
	pending map[string]struct{}
	wake    chan struct{}
	running sync.WaitGroup
}

func NewLiveUpdateNotifier(
	subscriber ports.AppliedSubscriber,
	broadcaster ports.Broadcaster,
	debounce time.Duration,
	logger *slog.Logger,
) *LiveUpdateNotifier {
	if debounce <= 0 {
		debounce = DefaultLiveDebounce
	}
	return &LiveUpdateNotifier{
		subscriber:  subscriber,
		broadcaster: broadcaster,
		debounce:    debounce,
		logger:      application.ResolveLogger(logger),
		pending:     make(map[string]struct{}),
		wake:        make(chan struct{}, 1),
	}
}

func (n *LiveUpdateNotifier) Start(ctx context.Context) error {
	if err := n.subscriber.Subscribe(ctx, liveNotifierConsumerName, n.Notify); err != nil {
		return err
	}
	n.running.Add(1)
	go func() {
		defer n.running.Done()
		n.run(ctx)
	}()
	return nil
}

// Wait blocks until the run loop has made its final flush after the start
// context ended. It returns at once when the notifier was never started.
func (n *LiveUpdateNotifier) Wait() {
	n.running.Wait()
}

// Notify records a changed resource; it never blocks the publisher.
func (n *LiveUpdateNotifier) Notify(_ context.Context, change entities.AppliedChange) error {
	resource := change.Resource
	if resource == "" {
		resource = change.Table
	}
	if resource == "" {
		return nil
	}

	n.mu.Lock()
	n.pending[resource] = struct{}{}
	n.mu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
	return nil
}

func (n *LiveUpdateNotifier) run(ctx context.Context) {
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			n.flush(context.WithoutCancel(ctx))
			return
		case <-n.wake:
			if fire == nil {
				fire = time.After(n.debounce)
			}
		case <-fire:
			fire = nil
			n.flush(ctx)
		}
	}
}

func (n *LiveUpdateNotifier) flush(ctx context.Context) {
	n.mu.Lock()
	if len(n.pending) == 0 {
		n.mu.Unlock()
		return
	}
	resources := make([]string, 0, len(n.pending))
	for resource := range n.pending {
		resources = append(resources, resource)
	}
	n.pending = make(map[string]struct{})
	n.mu.Unlock()

	sort.Strings(resources)
	for _, resource := range resources {
		event := resource + ":updated"
		if err := n.broadcaster.Broadcast(ctx, event); err != nil {
			n.logger.WarnContext(ctx, "live update broadcast failed",
				"event", "live_update_broadcast_failed",
				"module", "catalog-sync/replica-synchronizer",
				"layer", "worker",
				"resource", resource,
				"error", err.Error(),
			)
		}
	}
}
