package services

import (
	"encoding/json"
	"time"

	"shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"
)

// FilterPayload reduces an event payload to the columns the table replicates.
// Only registered scalar columns survive; nested objects and arrays are
// dropped even when their key is registered. created_at and deleted_at are
// kept when present, updated_at never is, and id is always set.
func FilterPayload(schema entities.TableSchema, id string, data map[string]any) map[string]any {
	out := make(map[string]any, len(schema.Columns)+3)
	for _, column := range schema.Columns {
		value, ok := data[column]
		if !ok || !IsScalar(value) {
			continue
		}
		out[column] = value
	}

	if value, ok := data[entities.ColumnCreatedAt]; ok {
		if ts, parsed := AsTime(value); parsed {
			out[entities.ColumnCreatedAt] = ts
		}
	}
	if schema.SoftDelete {
		if value, ok := data[entities.ColumnDeletedAt]; ok {
			if value == nil {
				out[entities.ColumnDeletedAt] = nil
			} else if ts, parsed := AsTime(value); parsed {
				out[entities.ColumnDeletedAt] = ts
			}
		}
	}

	if id == "" {
		id = AsString(data[entities.ColumnID])
	}
	out[entities.ColumnID] = id
	return out
}

// UpdatableFields strips identity and timestamp columns from filtered columns.
func UpdatableFields(columns map[string]any) map[string]any {
	out := make(map[string]any, len(columns))
	for column, value := range columns {
		switch column {
		case entities.ColumnID, entities.ColumnCreatedAt, entities.ColumnUpdatedAt, entities.ColumnDeletedAt:
			continue
		}
		out[column] = value
	}
	return out
}

func IsScalar(value any) bool {
	switch value.(type) {
	case nil, string, bool, json.Number, time.Time,
		float32, float64,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	default:
		return false
	}
}
