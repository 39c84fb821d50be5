package surrealadapter

import (
	"context"
	"errors"
	"testing"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedStatement struct {
	statement string
	vars      map[string]any
}

type recordingRunner struct {
	calls []recordedStatement
	err   error
}

func (r *recordingRunner) Run(_ context.Context, statement string, vars map[string]any) error {
	r.calls = append(r.calls, recordedStatement{statement: statement, vars: vars})
	return r.err
}

func (r *recordingRunner) Close(context.Context) error { return nil }

func TestIndexProductUpsertsFullDocument(t *testing.T) {
	runner := &recordingRunner{}
	index := newSearchIndex(runner, nil)
	updated := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	err := index.IndexProduct(context.Background(), entities.ProductDocument{
		ID:        "p1",
		Name:      "Mug",
		Price:     12.5,
		Stock:     4,
		IsActive:  true,
		UpdatedAt: updated,
	})

	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	call := runner.calls[0]
	assert.Equal(t, upsertStatement, call.statement)
	assert.Equal(t, "products", call.vars["tb"])
	assert.Equal(t, "p1", call.vars["id"])

	doc, ok := call.vars["doc"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Mug", doc["name"])
	assert.Equal(t, 12.5, doc["price"])
	assert.Equal(t, int64(4), doc["stock"])
	assert.Equal(t, true, doc["is_active"])
	assert.Equal(t, "2024-03-01T10:00:00Z", doc["updated_at"])
}

func TestIndexCategoryTargetsCategoryTable(t *testing.T) {
	runner := &recordingRunner{}
	index := newSearchIndex(runner, nil)

	require.NoError(t, index.IndexCategory(context.Background(), entities.CategoryDocument{ID: "c1", Name: "Kitchen"}))

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "categories", runner.calls[0].vars["tb"])
}

func TestDeleteRemovesByKindAndID(t *testing.T) {
	runner := &recordingRunner{}
	index := newSearchIndex(runner, nil)

	require.NoError(t, index.Delete(context.Background(), entities.SearchProduct, "p9"))

	require.Len(t, runner.calls, 1)
	assert.Equal(t, deleteStatement, runner.calls[0].statement)
	assert.Equal(t, "p9", runner.calls[0].vars["id"])
}

func TestIndexRejectsEmptyID(t *testing.T) {
	runner := &recordingRunner{}
	index := newSearchIndex(runner, nil)

	err := index.IndexProduct(context.Background(), entities.ProductDocument{})

	require.Error(t, err)
	assert.Empty(t, runner.calls)
}

func TestIndexWrapsRunnerFailure(t *testing.T) {
	boom := errors.New("socket closed")
	index := newSearchIndex(&recordingRunner{err: boom}, nil)

	err := index.IndexCategory(context.Background(), entities.CategoryDocument{ID: "c1"})

	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "categories/c1")
}
