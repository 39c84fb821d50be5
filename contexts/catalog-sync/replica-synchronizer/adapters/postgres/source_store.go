package postgresadapter

import (
	"context"
	"log/slog"

	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// SourceStore reads the write store during bootstrap. It never writes.
type SourceStore struct {
	db     *gorm.DB
	logger *slog.Logger
	tracer trace.Tracer
}

func NewSourceStore(db *gorm.DB, logger *slog.Logger) *SourceStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SourceStore{db: db, logger: logger, tracer: otel.Tracer(tracerName)}
}

func (s *SourceStore) StreamRows(
	ctx context.Context,
	schema entities.TableSchema,
	batchSize int,
	fn ports.RowBatchFunc,
) error {
	ctx, span := s.tracer.Start(ctx, "source.stream_rows", trace.WithAttributes(
		attribute.String("db.table", schema.Table),
	))
	defer span.End()

	if err := streamRows(ctx, s.db, schema, batchSize, fn); err != nil {
		span.RecordError(err)
		s.logger.Error("source store stream failed",
			"event", "source_stream_rows_failed",
			"module", "catalog-sync/replica-synchronizer",
			"layer", "adapter",
			"table", schema.Table,
			"error", err.Error(),
		)
		return err
	}
	return nil
}

var _ ports.SourceStore = (*SourceStore)(nil)
