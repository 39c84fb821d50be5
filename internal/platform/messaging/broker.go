package messaging

import (
	"context"
	"log/slog"
	"sync"

	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
)

const subscriberBuffer = 128

type subscriber struct {
	group string
	ch    chan entities.AppliedChange
}

// Broker fans applied-change signals out to in-process subscribers. A
// subscriber whose buffer is full misses the signal rather than stalling the
// replication path.
type Broker struct {
	mu          sync.RWMutex
	subscribers []subscriber
	logger      *slog.Logger
}

func NewBroker(logger *slog.Logger) *Broker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{logger: logger}
}

func (b *Broker) Publish(ctx context.Context, change entities.AppliedChange) error {
	b.mu.RLock()
	subs := append([]subscriber(nil), b.subscribers...)
	b.mu.RUnlock()

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sub.ch <- change:
		default:
			b.logger.Warn("dropping applied change for slow subscriber",
				"event", "applied_publish_drop",
				"module", "internal/platform/messaging",
				"layer", "platform",
				"consumer_group", sub.group,
				"table", change.Table,
				"id", change.ID,
			)
		}
	}

	b.logger.Debug("applied change published",
		"event", "applied_publish",
		"module", "internal/platform/messaging",
		"layer", "platform",
		"table", change.Table,
		"id", change.ID,
		"operation", string(change.Operation),
	)
	return nil
}

func (b *Broker) Subscribe(
	ctx context.Context,
	consumerGroup string,
	handler func(context.Context, entities.AppliedChange) error,
) error {
	sub := subscriber{group: consumerGroup, ch: make(chan entities.AppliedChange, subscriberBuffer)}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()

	go func() {
		for {
			select {
			case <-ctx.Done():
				b.removeSubscriber(sub.ch)
				return
			case change := <-sub.ch:
				if err := handler(ctx, change); err != nil {
					b.logger.Error("applied change handler failed",
						"event", "applied_consume_failed",
						"module", "internal/platform/messaging",
						"layer", "platform",
						"consumer_group", consumerGroup,
						"table", change.Table,
						"id", change.ID,
						"error", err.Error(),
					)
				}
			}
		}
	}()
	return nil
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broker) removeSubscriber(target chan entities.AppliedChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	filtered := make([]subscriber, 0, len(b.subscribers))
	for _, item := range b.subscribers {
		if item.ch != target {
			filtered = append(filtered, item)
		}
	}
	b.subscribers = filtered
}
