package ports

import (
	"context"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	contractsv1 "shopgate/contracts/gen/events/v1"
)

// RowBatchFunc receives rows in creation order, one page at a time.
type RowBatchFunc func(rows []map[string]any) error

// RowStreamer pages through live (non soft-deleted) rows of a table.
type RowStreamer interface {
	StreamRows(ctx context.Context, schema entities.TableSchema, batchSize int, fn RowBatchFunc) error
}

// SourceStore is read access to the write store; the synchronizer never writes it.
type SourceStore interface {
	RowStreamer
}

// ReplicaWriter mutates the read store inside one transaction. The writer is
// bound to the context of the Transaction call that produced it.
type ReplicaWriter interface {
	// Upsert inserts row; on id conflict every column except id and
	// created_at is overwritten.
	Upsert(schema entities.TableSchema, row map[string]any, now time.Time) error
	// Update reports false when no row with id exists.
	Update(schema entities.TableSchema, id string, fields map[string]any, now time.Time) (bool, error)
	// SoftDelete sets deleted_at only when it is not already set. Both deletes
	// report whether a row changed.
	SoftDelete(schema entities.TableSchema, id string, now time.Time) (bool, error)
	HardDelete(schema entities.TableSchema, id string) (bool, error)
}

// ReplicaStore owns read-store transaction boundaries.
type ReplicaStore interface {
	RowStreamer
	// Transaction commits when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(ReplicaWriter) error) error
	FetchRow(ctx context.Context, schema entities.TableSchema, id string) (map[string]any, bool, error)
}

// SearchIndex holds full-document projections keyed by entity id.
type SearchIndex interface {
	IndexProduct(ctx context.Context, doc entities.ProductDocument) error
	IndexCategory(ctx context.Context, doc entities.CategoryDocument) error
	Delete(ctx context.Context, kind entities.SearchKind, id string) error
}

// CacheStamp is the single bump-only cache invalidation token.
type CacheStamp interface {
	Bump(ctx context.Context) error
}

// ChangeSubscriber delivers raw channel messages serially per channel.
type ChangeSubscriber interface {
	Subscribe(ctx context.Context, channel string, handler func(context.Context, []byte) error) error
}

// AppliedPublisher fans applied-change signals out inside the process.
type AppliedPublisher interface {
	Publish(ctx context.Context, change entities.AppliedChange) error
}

// AppliedSubscriber registers a callback for applied-change signals.
type AppliedSubscriber interface {
	Subscribe(ctx context.Context, consumerGroup string, handler func(context.Context, entities.AppliedChange) error) error
}

// Broadcaster pushes payload-free change signals to connected clients.
type Broadcaster interface {
	Broadcast(ctx context.Context, event string) error
}

// ChangeMessage reuses the wire contract of the change channel.
type ChangeMessage = contractsv1.ChangeMessage

// DomainEvent reuses the wire contract of the domain-event channel.
type DomainEvent = contractsv1.DomainEvent

type OrderCreated = contractsv1.OrderCreated

// EmailJob is the outbound job handed to the notification dispatcher.
type EmailJob struct {
	JobID        string         `json:"job_id"`
	Template     string         `json:"template"`
	To           string         `json:"to"`
	CustomerName string         `json:"customer_name,omitempty"`
	OrderNumber  string         `json:"order_number"`
	Items        []EmailJobItem `json:"items"`
	Total        float64        `json:"total"`
	Currency     string         `json:"currency,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

type EmailJobItem struct {
	Name      string  `json:"name"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
}

type EmailJobPublisher interface {
	PublishEmailJob(ctx context.Context, job EmailJob) error
}

// Metrics records replication outcomes.
type Metrics interface {
	ObserveApply(table string, operation string, outcome string)
	ObserveDrop(table string, reason string)
	ObserveRetry(table string)
	ObserveSideEffectFailure(kind string)
}

// Clock allows deterministic testing of timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator abstracts job identifier generation.
type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
