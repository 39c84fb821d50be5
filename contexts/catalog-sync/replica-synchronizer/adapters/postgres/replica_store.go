package postgresadapter

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/services"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	tracerName       = "shopgate/replica-synchronizer/postgres"
	defaultBatchSize = 500
)

// ReplicaStore writes the read store. Table and column names come from the
// registry, never from event payloads.
type ReplicaStore struct {
	db     *gorm.DB
	logger *slog.Logger
	tracer trace.Tracer
}

func NewReplicaStore(db *gorm.DB, logger *slog.Logger) *ReplicaStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReplicaStore{
		db:     db,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *ReplicaStore) Transaction(ctx context.Context, fn func(ports.ReplicaWriter) error) error {
	ctx, span := r.tracer.Start(ctx, "replica.transaction")
	defer span.End()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(gormWriter{tx: tx})
	})
	if err != nil {
		err = classifyError(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "replica transaction failed")
	}
	return err
}

func (r *ReplicaStore) FetchRow(
	ctx context.Context,
	schema entities.TableSchema,
	id string,
) (map[string]any, bool, error) {
	ctx, span := r.tracer.Start(ctx, "replica.fetch_row", trace.WithAttributes(
		attribute.String("db.table", schema.Table),
	))
	defer span.End()

	var rows []map[string]any
	err := r.db.WithContext(ctx).
		Table(schema.Table).
		Select(schema.SelectColumns()).
		Where("id = ?", id).
		Limit(1).
		Find(&rows).
		Error
	if err != nil {
		span.RecordError(err)
		return nil, false, r.logError("replica_fetch_row_failed", err, "table", schema.Table, "id", id)
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

func (r *ReplicaStore) StreamRows(
	ctx context.Context,
	schema entities.TableSchema,
	batchSize int,
	fn ports.RowBatchFunc,
) error {
	if err := streamRows(ctx, r.db, schema, batchSize, fn); err != nil {
		return r.logError("replica_stream_rows_failed", err, "table", schema.Table)
	}
	return nil
}

func (r *ReplicaStore) logError(event string, err error, attrs ...any) error {
	fields := make([]any, 0, len(attrs)+8)
	fields = append(fields,
		"event", event,
		"module", "catalog-sync/replica-synchronizer",
		"layer", "adapter",
		"error", err.Error(),
	)
	fields = append(fields, attrs...)
	r.logger.Error("replica store operation failed", fields...)
	return err
}

type gormWriter struct {
	tx *gorm.DB
}

func (w gormWriter) Upsert(schema entities.TableSchema, row map[string]any, now time.Time) error {
	values := make(map[string]any, len(row)+2)
	for column, value := range row {
		values[column] = value
	}
	if _, ok := values[entities.ColumnCreatedAt]; !ok {
		values[entities.ColumnCreatedAt] = now
	}
	values[entities.ColumnUpdatedAt] = now

	updates := make([]string, 0, len(values))
	for column := range values {
		if column == entities.ColumnID || column == entities.ColumnCreatedAt {
			continue
		}
		updates = append(updates, column)
	}
	sort.Strings(updates)

	err := w.tx.Table(schema.Table).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: entities.ColumnID}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(values).Error
	return classifyError(err)
}

func (w gormWriter) Update(schema entities.TableSchema, id string, fields map[string]any, now time.Time) (bool, error) {
	values := make(map[string]any, len(fields)+1)
	for column, value := range fields {
		values[column] = value
	}
	values[entities.ColumnUpdatedAt] = now

	result := w.tx.Table(schema.Table).Where("id = ?", id).Updates(values)
	if result.Error != nil {
		return false, classifyError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (w gormWriter) SoftDelete(schema entities.TableSchema, id string, now time.Time) (bool, error) {
	result := w.tx.Table(schema.Table).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]any{
			entities.ColumnDeletedAt: now,
			entities.ColumnUpdatedAt: now,
		})
	if result.Error != nil {
		return false, classifyError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (w gormWriter) HardDelete(schema entities.TableSchema, id string) (bool, error) {
	result := w.tx.Exec("DELETE FROM ? WHERE id = ?", clause.Table{Name: schema.Table}, id)
	if result.Error != nil {
		return false, classifyError(result.Error)
	}
	return result.RowsAffected > 0, nil
}

// streamRows pages a table by (created_at, id) so concurrent inserts never
// shift a page boundary.
func streamRows(
	ctx context.Context,
	db *gorm.DB,
	schema entities.TableSchema,
	batchSize int,
	fn ports.RowBatchFunc,
) error {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	var (
		cursorCreated time.Time
		cursorID      string
		hasCursor     bool
	)
	for {
		query := db.WithContext(ctx).Table(schema.Table).Select(schema.SelectColumns())
		if schema.SoftDelete {
			query = query.Where("deleted_at IS NULL")
		}
		if hasCursor {
			query = query.Where("(created_at, id) > (?, ?)", cursorCreated, cursorID)
		}

		var rows []map[string]any
		if err := query.
			Order("created_at ASC").
			Order("id ASC").
			Limit(batchSize).
			Find(&rows).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		if err := fn(rows); err != nil {
			return err
		}
		if len(rows) < batchSize {
			return nil
		}

		last := rows[len(rows)-1]
		cursorCreated, _ = services.AsTime(last[entities.ColumnCreatedAt])
		cursorID = services.AsString(last[entities.ColumnID])
		hasCursor = true
	}
}

var _ ports.ReplicaStore = (*ReplicaStore)(nil)
