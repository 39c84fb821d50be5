package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	application "shopgate/contexts/catalog-sync/replica-synchronizer/application"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	domainerrors "shopgate/contexts/catalog-sync/replica-synchronizer/domain/errors"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
	"shopgate/internal/shared/retry"
)

const (
	DefaultOrderingAttempts = 20
	DefaultOrderingDelay    = time.Second
	defaultApplyTimeout     = 30 * time.Second
)

// OrderedApplier guards inserts on tables whose rows can arrive before their
// parent. Foreign-key failures are retried at a fixed spacing; anything else
// is returned on the first failure.
type OrderedApplier struct {
	Applier      ReplicaApplier
	Attempts     int
	Delay        time.Duration
	ApplyTimeout time.Duration
	Sleep        retry.Sleeper
	Metrics      ports.Metrics
	Logger       *slog.Logger
}

// Apply runs each store call on a context detached from cancellation so an
// in-flight transaction finishes during shutdown; only the waits between
// retries stop early.
func (o OrderedApplier) Apply(ctx context.Context, event entities.ChangeEvent) (Result, error) {
	schema, known := o.Applier.Registry.Lookup(event.Table)
	if !known || !schema.OrderedInsert || event.Operation != entities.OperationInsert {
		return o.applyOnce(ctx, event)
	}

	logger := application.ResolveLogger(o.Logger)
	policy := retry.Policy{
		Attempts:  o.attempts(),
		Delay:     o.delay(),
		Retryable: domainerrors.IsTransientOrdering,
		Sleep:     o.Sleep,
		OnRetry: func(attempt int, err error) {
			logger.DebugContext(ctx, "parent row missing, retrying insert",
				"event", "replica_apply_ordering_retry",
				"module", "catalog-sync/replica-synchronizer",
				"layer", "application",
				"table", event.Table,
				"id", event.ID,
				"retry", attempt,
				"error", err.Error(),
			)
			if o.Metrics != nil {
				o.Metrics.ObserveRetry(event.Table)
			}
		},
	}

	var result Result
	err := policy.Do(ctx, func(ctx context.Context) error {
		var applyErr error
		result, applyErr = o.applyOnce(ctx, event)
		return applyErr
	})
	if errors.Is(err, retry.ErrExhausted) {
		logger.ErrorContext(ctx, "insert dropped after ordering retries",
			"event", "replica_apply_retry_exhausted",
			"module", "catalog-sync/replica-synchronizer",
			"layer", "application",
			"table", event.Table,
			"id", event.ID,
			"retries", policy.Attempts,
			"window", (time.Duration(policy.Attempts) * policy.Delay).String(),
			"error", err.Error(),
		)
		return result, fmt.Errorf("%w: %w", domainerrors.ErrRetryExhausted, err)
	}
	return result, err
}

func (o OrderedApplier) applyOnce(ctx context.Context, event entities.ChangeEvent) (Result, error) {
	timeout := o.ApplyTimeout
	if timeout <= 0 {
		timeout = defaultApplyTimeout
	}
	applyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	return o.Applier.Apply(applyCtx, event)
}

func (o OrderedApplier) attempts() int {
	if o.Attempts <= 0 {
		return DefaultOrderingAttempts
	}
	return o.Attempts
}

func (o OrderedApplier) delay() time.Duration {
	if o.Delay <= 0 {
		return DefaultOrderingDelay
	}
	return o.Delay
}
