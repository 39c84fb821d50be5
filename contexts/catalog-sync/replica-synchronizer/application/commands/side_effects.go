package commands

import (
	"context"
	"fmt"
	"log/slog"

	application "shopgate/contexts/catalog-sync/replica-synchronizer/application"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	domainerrors "shopgate/contexts/catalog-sync/replica-synchronizer/domain/errors"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/services"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
)

// SearchProjector derives search documents from replicated rows. Every write
// is a full-document overwrite keyed by entity id.
type SearchProjector struct {
	Index ports.SearchIndex
}

// Project indexes row, or removes it from the index when it is soft-deleted.
func (p SearchProjector) Project(ctx context.Context, schema entities.TableSchema, row map[string]any) error {
	if services.IsSoftDeleted(row) {
		return p.Remove(ctx, schema, services.AsString(row[entities.ColumnID]))
	}
	switch schema.Search {
	case entities.SearchProduct:
		return p.Index.IndexProduct(ctx, services.BuildProductDocument(row))
	case entities.SearchCategory:
		return p.Index.IndexCategory(ctx, services.BuildCategoryDocument(row))
	default:
		return nil
	}
}

func (p SearchProjector) Remove(ctx context.Context, schema entities.TableSchema, id string) error {
	if schema.Search == entities.SearchNone {
		return nil
	}
	return p.Index.Delete(ctx, schema.Search, id)
}

// SideEffects runs the best-effort work that follows a committed apply.
// Failures are logged and counted; they never reach the caller.
type SideEffects struct {
	Store     ports.ReplicaStore
	Projector SearchProjector
	Cache     ports.CacheStamp
	Metrics   ports.Metrics
	Logger    *slog.Logger
}

func (s SideEffects) AfterApply(ctx context.Context, schema entities.TableSchema, result Result) {
	if result.Outcome != OutcomeApplied {
		return
	}
	if schema.Search != entities.SearchNone && s.Projector.Index != nil {
		if err := s.project(ctx, schema, result); err != nil {
			s.report(ctx, "search", schema.Table, result.ID, err)
		}
	}
	if schema.BumpsCache {
		s.BumpCache(ctx)
	}
}

func (s SideEffects) project(ctx context.Context, schema entities.TableSchema, result Result) error {
	if result.Operation == entities.OperationDelete {
		return s.Projector.Remove(ctx, schema, result.ID)
	}
	row, found, err := s.Store.FetchRow(ctx, schema, result.ID)
	if err != nil {
		return fmt.Errorf("load %s/%s for projection: %w", schema.Table, result.ID, err)
	}
	if !found {
		return s.Projector.Remove(ctx, schema, result.ID)
	}
	return s.Projector.Project(ctx, schema, row)
}

// ProjectRow indexes a row read during bootstrap.
func (s SideEffects) ProjectRow(ctx context.Context, schema entities.TableSchema, row map[string]any) bool {
	if s.Projector.Index == nil {
		return false
	}
	if err := s.Projector.Project(ctx, schema, row); err != nil {
		s.report(ctx, "search", schema.Table, services.AsString(row[entities.ColumnID]), err)
		return false
	}
	return true
}

func (s SideEffects) BumpCache(ctx context.Context) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Bump(ctx); err != nil {
		s.report(ctx, "cache", "", "", err)
	}
}

func (s SideEffects) report(ctx context.Context, kind string, table string, id string, err error) {
	err = fmt.Errorf("%w: %s: %w", domainerrors.ErrSideEffect, kind, err)
	application.ResolveLogger(s.Logger).WarnContext(ctx, "replication side effect failed",
		"event", "replica_side_effect_failed",
		"module", "catalog-sync/replica-synchronizer",
		"layer", "application",
		"kind", kind,
		"table", table,
		"id", id,
		"error", err.Error(),
	)
	if s.Metrics != nil {
		s.Metrics.ObserveSideEffectFailure(kind)
	}
}
