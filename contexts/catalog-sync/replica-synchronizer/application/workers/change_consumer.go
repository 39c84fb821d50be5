package workers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	application "shopgate/contexts/catalog-sync/replica-synchronizer/application"
	"shopgate/contexts/catalog-sync/replica-synchronizer/application/commands"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	domainerrors "shopgate/contexts/catalog-sync/replica-synchronizer/domain/errors"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
)

const (
	DefaultChangeChannel     = "db.changes"
	defaultSideEffectTimeout = 10 * time.Second
)

// ChangeConsumer drives the primary replication path for one channel:
// decode, apply (with ordering retries), side effects, live signal.
type ChangeConsumer struct {
	Subscriber  ports.ChangeSubscriber
	Applier     commands.OrderedApplier
	SideEffects commands.SideEffects
	Publisher   ports.AppliedPublisher
	Metrics     ports.Metrics
	Channel     string
	Logger      *slog.Logger
}

func (c ChangeConsumer) Start(ctx context.Context) error {
	return c.Subscriber.Subscribe(ctx, c.channel(), c.Handle)
}

// Handle never returns an error for a bad or failed event: the event is
// logged with full context and dropped so the channel keeps flowing.
func (c ChangeConsumer) Handle(ctx context.Context, raw []byte) error {
	logger := application.ResolveLogger(c.Logger)

	event, err := DecodeChangeEvent(raw)
	if err != nil {
		logger.WarnContext(ctx, "change event discarded",
			"event", "replica_event_decode_failed",
			"module", "catalog-sync/replica-synchronizer",
			"layer", "worker",
			"channel", c.channel(),
			"error", err.Error(),
		)
		c.observeDrop("", "decode")
		return nil
	}

	result, err := c.Applier.Apply(ctx, event)
	if err != nil {
		c.reportFailure(ctx, logger, event, err)
		return nil
	}
	if c.Metrics != nil {
		c.Metrics.ObserveApply(event.Table, string(event.Operation), string(result.Outcome))
	}
	if result.Outcome != commands.OutcomeApplied {
		logger.DebugContext(ctx, "change event produced no write",
			"event", "replica_event_not_written",
			"module", "catalog-sync/replica-synchronizer",
			"layer", "worker",
			"table", event.Table,
			"id", event.ID,
			"operation", event.Operation,
			"outcome", result.Outcome,
		)
		return nil
	}

	schema, _ := c.Applier.Applier.Registry.Lookup(event.Table)
	sideCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), defaultSideEffectTimeout)
	defer cancel()
	c.SideEffects.AfterApply(sideCtx, schema, result)

	if c.Publisher != nil {
		change := entities.AppliedChange{
			Table:     schema.Table,
			Resource:  schema.ResourceName(),
			ID:        event.ID,
			Operation: event.Operation,
			AppliedAt: time.Now().UTC(),
		}
		if err := c.Publisher.Publish(sideCtx, change); err != nil {
			logger.WarnContext(ctx, "applied change signal not published",
				"event", "replica_applied_publish_failed",
				"module", "catalog-sync/replica-synchronizer",
				"layer", "worker",
				"table", event.Table,
				"error", err.Error(),
			)
		}
	}

	logger.DebugContext(ctx, "change event applied",
		"event", "replica_event_applied",
		"module", "catalog-sync/replica-synchronizer",
		"layer", "worker",
		"table", event.Table,
		"id", event.ID,
		"operation", event.Operation,
	)
	return nil
}

func (c ChangeConsumer) reportFailure(ctx context.Context, logger *slog.Logger, event entities.ChangeEvent, err error) {
	switch {
	case errors.Is(err, domainerrors.ErrRetryExhausted):
		// already logged as terminal by the ordered applier
		c.observeDrop(event.Table, "ordering")
	case domainerrors.IsPermanent(err):
		logger.WarnContext(ctx, "change event dropped",
			"event", "replica_event_dropped",
			"module", "catalog-sync/replica-synchronizer",
			"layer", "worker",
			"table", event.Table,
			"id", event.ID,
			"operation", event.Operation,
			"error", err.Error(),
		)
		c.observeDrop(event.Table, "permanent")
	default:
		logger.ErrorContext(ctx, "change event apply failed",
			"event", "replica_apply_failed",
			"module", "catalog-sync/replica-synchronizer",
			"layer", "worker",
			"table", event.Table,
			"id", event.ID,
			"operation", event.Operation,
			"transient_ordering", domainerrors.IsTransientOrdering(err),
			"error", err.Error(),
		)
		c.observeDrop(event.Table, "store")
	}
}

func (c ChangeConsumer) observeDrop(table string, reason string) {
	if c.Metrics != nil {
		c.Metrics.ObserveDrop(table, reason)
	}
}

func (c ChangeConsumer) channel() string {
	if c.Channel == "" {
		return DefaultChangeChannel
	}
	return c.Channel
}
