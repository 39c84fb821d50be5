package surrealadapter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"

	surrealdb "github.com/surrealdb/surrealdb.go"
)

const (
	upsertStatement = "UPSERT type::thing($tb, $id) CONTENT $doc"
	deleteStatement = "DELETE type::thing($tb, $id)"
)

type Config struct {
	URL       string
	Namespace string
	Database  string
	Username  string
	Password  string
}

// statementRunner executes one SurrealQL statement with bound variables.
type statementRunner interface {
	Run(ctx context.Context, statement string, vars map[string]any) error
	Close(ctx context.Context) error
}

type surrealRunner struct {
	db *surrealdb.DB
}

func (r surrealRunner) Run(ctx context.Context, statement string, vars map[string]any) error {
	_, err := surrealdb.Query[any](ctx, r.db, statement, vars)
	return err
}

func (r surrealRunner) Close(ctx context.Context) error {
	return r.db.Close(ctx)
}

// SearchIndex keeps full product and category documents in SurrealDB tables
// named after the search kind, keyed by the relational id.
type SearchIndex struct {
	runner statementRunner
	logger *slog.Logger
}

func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*SearchIndex, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("surrealdb url is required")
	}
	db, err := surrealdb.FromEndpointURLString(ctx, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect surrealdb: %w", err)
	}
	if cfg.Username != "" {
		if _, err := db.SignIn(ctx, &surrealdb.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
		}); err != nil {
			_ = db.Close(ctx)
			return nil, fmt.Errorf("authenticate surrealdb: %w", err)
		}
	}
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		_ = db.Close(ctx)
		return nil, fmt.Errorf("use surrealdb namespace/database: %w", err)
	}
	return newSearchIndex(surrealRunner{db: db}, logger), nil
}

func newSearchIndex(runner statementRunner, logger *slog.Logger) *SearchIndex {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchIndex{runner: runner, logger: logger}
}

func (s *SearchIndex) IndexProduct(ctx context.Context, doc entities.ProductDocument) error {
	return s.upsert(ctx, entities.SearchProduct, doc.ID, map[string]any{
		"name":             doc.Name,
		"slug":             doc.Slug,
		"description":      doc.Description,
		"price":            doc.Price,
		"compare_at_price": doc.CompareAtPrice,
		"sku":              doc.SKU,
		"stock":            doc.Stock,
		"category_id":      doc.CategoryID,
		"image_url":        doc.ImageURL,
		"is_active":        doc.IsActive,
		"updated_at":       formatTime(doc.UpdatedAt),
	})
}

func (s *SearchIndex) IndexCategory(ctx context.Context, doc entities.CategoryDocument) error {
	return s.upsert(ctx, entities.SearchCategory, doc.ID, map[string]any{
		"name":        doc.Name,
		"slug":        doc.Slug,
		"description": doc.Description,
		"parent_id":   doc.ParentID,
		"image_url":   doc.ImageURL,
		"updated_at":  formatTime(doc.UpdatedAt),
	})
}

func (s *SearchIndex) Delete(ctx context.Context, kind entities.SearchKind, id string) error {
	if err := s.runner.Run(ctx, deleteStatement, map[string]any{
		"tb": string(kind),
		"id": id,
	}); err != nil {
		return s.logError("search_index_delete_failed", err, kind, id)
	}
	return nil
}

func (s *SearchIndex) Close(ctx context.Context) error {
	return s.runner.Close(ctx)
}

func (s *SearchIndex) upsert(ctx context.Context, kind entities.SearchKind, id string, doc map[string]any) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("index %s: empty document id", kind)
	}
	if err := s.runner.Run(ctx, upsertStatement, map[string]any{
		"tb":  string(kind),
		"id":  id,
		"doc": doc,
	}); err != nil {
		return s.logError("search_index_upsert_failed", err, kind, id)
	}
	return nil
}

func (s *SearchIndex) logError(event string, err error, kind entities.SearchKind, id string) error {
	s.logger.Error("search index operation failed",
		"event", event,
		"module", "catalog-sync/replica-synchronizer",
		"layer", "adapter",
		"kind", string(kind),
		"id", id,
		"error", err.Error(),
	)
	return fmt.Errorf("%s %s/%s: %w", event, kind, id, err)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339Nano)
}

var _ ports.SearchIndex = (*SearchIndex)(nil)
