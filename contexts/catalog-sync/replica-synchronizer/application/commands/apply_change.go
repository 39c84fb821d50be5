package commands

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	application "shopgate/contexts/catalog-sync/replica-synchronizer/application"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	domainerrors "shopgate/contexts/catalog-sync/replica-synchronizer/domain/errors"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/services"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
)

type Outcome string

const (
	OutcomeApplied Outcome = "applied"
	// OutcomeSkipped marks an insert refused by the mandatory-field guard.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeNoop marks an update with nothing left to write after filtering,
	// or a delete that found nothing left to delete.
	OutcomeNoop Outcome = "noop"
	// OutcomeMissing marks an update whose row is not in the read store.
	OutcomeMissing Outcome = "missing"
)

type Result struct {
	Table     string
	ID        string
	Operation entities.Operation
	Outcome   Outcome
}

type applyFunc func(ctx context.Context, schema entities.TableSchema, event entities.ChangeEvent, now time.Time) (Outcome, error)

// ReplicaApplier applies one change event to the read store in one transaction.
type ReplicaApplier struct {
	Registry *entities.Registry
	Store    ports.ReplicaStore
	Clock    ports.Clock
	Logger   *slog.Logger
}

func (a ReplicaApplier) Apply(ctx context.Context, event entities.ChangeEvent) (Result, error) {
	result := Result{Table: event.Table, ID: event.ID, Operation: event.Operation}

	schema, ok := a.Registry.Lookup(event.Table)
	if !ok {
		return result, fmt.Errorf("%w: %q", domainerrors.ErrUnknownTable, event.Table)
	}
	if event.ID == "" {
		return result, fmt.Errorf("%w: %s event without id", domainerrors.ErrMalformedEvent, event.Table)
	}

	handler, ok := a.dispatch()[event.Operation]
	if !ok {
		return result, fmt.Errorf("%w: %q", domainerrors.ErrUnsupportedOperation, event.Operation)
	}

	outcome, err := handler(ctx, schema, event, a.now())
	if err != nil {
		return result, fmt.Errorf("apply %s %s/%s: %w", event.Operation, event.Table, event.ID, err)
	}
	result.Outcome = outcome
	return result, nil
}

func (a ReplicaApplier) dispatch() map[entities.Operation]applyFunc {
	return map[entities.Operation]applyFunc{
		entities.OperationInsert: a.applyInsert,
		entities.OperationUpdate: a.applyUpdate,
		entities.OperationDelete: a.applyDelete,
	}
}

func (a ReplicaApplier) applyInsert(
	ctx context.Context,
	schema entities.TableSchema,
	event entities.ChangeEvent,
	now time.Time,
) (Outcome, error) {
	row := services.FilterPayload(schema, event.ID, event.Data)
	if field, missing := schema.MissingMandatory(row); missing {
		application.ResolveLogger(a.Logger).WarnContext(ctx, "insert skipped by mandatory field guard",
			"event", "replica_insert_guard_skipped",
			"module", "catalog-sync/replica-synchronizer",
			"layer", "application",
			"table", schema.Table,
			"id", event.ID,
			"field", field,
		)
		return OutcomeSkipped, nil
	}

	err := a.Store.Transaction(ctx, func(w ports.ReplicaWriter) error {
		return w.Upsert(schema, row, now)
	})
	if err != nil {
		return "", err
	}
	return OutcomeApplied, nil
}

func (a ReplicaApplier) applyUpdate(
	ctx context.Context,
	schema entities.TableSchema,
	event entities.ChangeEvent,
	now time.Time,
) (Outcome, error) {
	fields := services.UpdatableFields(services.FilterPayload(schema, event.ID, event.Data))
	if len(fields) == 0 {
		return OutcomeNoop, nil
	}

	found := false
	err := a.Store.Transaction(ctx, func(w ports.ReplicaWriter) error {
		var err error
		found, err = w.Update(schema, event.ID, fields, now)
		return err
	})
	if err != nil {
		return "", err
	}
	if !found {
		return OutcomeMissing, nil
	}
	return OutcomeApplied, nil
}

func (a ReplicaApplier) applyDelete(
	ctx context.Context,
	schema entities.TableSchema,
	event entities.ChangeEvent,
	now time.Time,
) (Outcome, error) {
	changed := false
	err := a.Store.Transaction(ctx, func(w ports.ReplicaWriter) error {
		var err error
		if schema.SoftDelete {
			changed, err = w.SoftDelete(schema, event.ID, now)
		} else {
			changed, err = w.HardDelete(schema, event.ID)
		}
		return err
	})
	if err != nil {
		return "", err
	}
	if !changed {
		return OutcomeNoop, nil
	}
	return OutcomeApplied, nil
}

func (a ReplicaApplier) now() time.Time {
	if a.Clock != nil {
		return a.Clock.Now().UTC()
	}
	return time.Now().UTC()
}
