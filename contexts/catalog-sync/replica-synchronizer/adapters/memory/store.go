package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
	domainerrors "shopgate/contexts/catalog-sync/replica-synchronizer/domain/errors"
	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/services"
	"shopgate/contexts/catalog-sync/replica-synchronizer/ports"
)

type tableRows map[string]map[string]any

// Store is an in-process relational store. It serves both as the write-side
// source and as the read replica in tests and in the in-memory module.
// Transactions run against a copy of the state and commit by swapping it in,
// so a failing callback leaves nothing behind.
type Store struct {
	mu     sync.Mutex
	tables map[string]tableRows
	failOn map[string]error
}

func NewStore(registry *entities.Registry) *Store {
	store := &Store{
		tables: make(map[string]tableRows),
		failOn: make(map[string]error),
	}
	if registry != nil {
		for _, schema := range registry.BootstrapOrder() {
			store.tables[schema.Table] = make(tableRows)
		}
	}
	return store
}

// Seed writes rows directly, bypassing foreign key checks.
func (s *Store) Seed(table string, rows ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target := s.tableLocked(s.tables, table)
	for _, row := range rows {
		id := services.AsString(row[entities.ColumnID])
		target[id] = copyRow(row)
	}
}

// FailWrites makes every write to table fail with err until cleared with nil.
func (s *Store) FailWrites(table string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failOn, table)
		return
	}
	s.failOn[table] = err
}

func (s *Store) Row(table string, id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tables[table][id]
	if !ok {
		return nil, false
	}
	return copyRow(row), true
}

func (s *Store) Count(table string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables[table])
}

func (s *Store) StreamRows(
	ctx context.Context,
	schema entities.TableSchema,
	batchSize int,
	fn ports.RowBatchFunc,
) error {
	if batchSize <= 0 {
		batchSize = 500
	}

	s.mu.Lock()
	rows := make([]map[string]any, 0, len(s.tables[schema.Table]))
	for _, row := range s.tables[schema.Table] {
		if schema.SoftDelete && services.IsSoftDeleted(row) {
			continue
		}
		rows = append(rows, copyRow(row))
	}
	s.mu.Unlock()

	sort.SliceStable(rows, func(i, j int) bool {
		left, _ := services.AsTime(rows[i][entities.ColumnCreatedAt])
		right, _ := services.AsTime(rows[j][entities.ColumnCreatedAt])
		if !left.Equal(right) {
			return left.Before(right)
		}
		return services.AsString(rows[i][entities.ColumnID]) < services.AsString(rows[j][entities.ColumnID])
	})

	for start := 0; start < len(rows); start += batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := start + batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := fn(rows[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Transaction(ctx context.Context, fn func(ports.ReplicaWriter) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	writer := &writer{store: s, tables: cloneTables(s.tables)}
	if err := fn(writer); err != nil {
		return err
	}
	s.tables = writer.tables
	return nil
}

func (s *Store) FetchRow(
	ctx context.Context,
	schema entities.TableSchema,
	id string,
) (map[string]any, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	row, ok := s.Row(schema.Table, id)
	return row, ok, nil
}

func (s *Store) tableLocked(tables map[string]tableRows, table string) tableRows {
	target, ok := tables[table]
	if !ok {
		target = make(tableRows)
		tables[table] = target
	}
	return target
}

type writer struct {
	store  *Store
	tables map[string]tableRows
}

func (w *writer) Upsert(schema entities.TableSchema, row map[string]any, now time.Time) error {
	if err := w.check(schema, row); err != nil {
		return err
	}
	id := services.AsString(row[entities.ColumnID])
	target := w.store.tableLocked(w.tables, schema.Table)

	existing, ok := target[id]
	if !ok {
		created := copyRow(row)
		if _, has := created[entities.ColumnCreatedAt]; !has {
			created[entities.ColumnCreatedAt] = now
		}
		created[entities.ColumnUpdatedAt] = now
		target[id] = created
		return nil
	}
	for column, value := range row {
		if column == entities.ColumnID || column == entities.ColumnCreatedAt {
			continue
		}
		existing[column] = value
	}
	existing[entities.ColumnUpdatedAt] = now
	return nil
}

func (w *writer) Update(schema entities.TableSchema, id string, fields map[string]any, now time.Time) (bool, error) {
	if err := w.check(schema, fields); err != nil {
		return false, err
	}
	existing, ok := w.tables[schema.Table][id]
	if !ok {
		return false, nil
	}
	for column, value := range fields {
		existing[column] = value
	}
	existing[entities.ColumnUpdatedAt] = now
	return true, nil
}

func (w *writer) SoftDelete(schema entities.TableSchema, id string, now time.Time) (bool, error) {
	if err := w.store.failOn[schema.Table]; err != nil {
		return false, err
	}
	existing, ok := w.tables[schema.Table][id]
	if !ok || services.IsSoftDeleted(existing) {
		return false, nil
	}
	existing[entities.ColumnDeletedAt] = now
	existing[entities.ColumnUpdatedAt] = now
	return true, nil
}

func (w *writer) HardDelete(schema entities.TableSchema, id string) (bool, error) {
	if err := w.store.failOn[schema.Table]; err != nil {
		return false, err
	}
	if _, ok := w.tables[schema.Table][id]; !ok {
		return false, nil
	}
	delete(w.tables[schema.Table], id)
	return true, nil
}

// check enforces injected failures and foreign keys the way the relational
// store would: a non-empty reference must point at an existing parent row.
func (w *writer) check(schema entities.TableSchema, values map[string]any) error {
	if err := w.store.failOn[schema.Table]; err != nil {
		return err
	}
	for column, parent := range schema.ForeignKeys {
		value, ok := values[column]
		if !ok || value == nil {
			continue
		}
		ref := strings.TrimSpace(services.AsString(value))
		if ref == "" {
			continue
		}
		if parent == schema.Table && ref == services.AsString(values[entities.ColumnID]) {
			continue
		}
		if _, exists := w.tables[parent][ref]; !exists {
			return fmt.Errorf("%w: %s.%s references missing %s row %s",
				domainerrors.ErrForeignKeyViolation, schema.Table, column, parent, ref)
		}
	}
	return nil
}

func cloneTables(tables map[string]tableRows) map[string]tableRows {
	out := make(map[string]tableRows, len(tables))
	for name, rows := range tables {
		copied := make(tableRows, len(rows))
		for id, row := range rows {
			copied[id] = copyRow(row)
		}
		out[name] = copied
	}
	return out
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for key, value := range row {
		out[key] = value
	}
	return out
}

var _ ports.ReplicaStore = (*Store)(nil)
var _ ports.SourceStore = (*Store)(nil)
