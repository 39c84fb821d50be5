package entities

import (
	"fmt"
	"strings"
)

const (
	ColumnID        = "id"
	ColumnCreatedAt = "created_at"
	ColumnUpdatedAt = "updated_at"
	ColumnDeletedAt = "deleted_at"
)

// SearchKind selects the search projection a table feeds, if any.
type SearchKind string

const (
	SearchNone     SearchKind = ""
	SearchProduct  SearchKind = "products"
	SearchCategory SearchKind = "categories"
)

// TableSchema describes how one table is replicated.
type TableSchema struct {
	Table string
	// Columns lists replicable scalar columns besides id and the timestamps.
	Columns         []string
	SoftDelete      bool
	MandatoryFields []string
	// ForeignKeys maps a column to the table it references.
	ForeignKeys map[string]string
	// OrderedInsert marks tables whose inserts can race ahead of their parents.
	OrderedInsert bool
	Search        SearchKind
	BumpsCache    bool
	// Resource is the live-update resource name; defaults to Table.
	Resource string
}

func (s TableSchema) HasColumn(name string) bool {
	for _, column := range s.Columns {
		if column == name {
			return true
		}
	}
	return false
}

func (s TableSchema) ResourceName() string {
	if s.Resource != "" {
		return s.Resource
	}
	return s.Table
}

// MissingMandatory returns the first mandatory field absent from data. Blank
// strings and nested objects or arrays count as absent.
func (s TableSchema) MissingMandatory(data map[string]any) (string, bool) {
	for _, field := range s.MandatoryFields {
		value, ok := data[field]
		if !ok || value == nil {
			return field, true
		}
		switch v := value.(type) {
		case string:
			if strings.TrimSpace(v) == "" {
				return field, true
			}
		case map[string]any, []any:
			return field, true
		}
	}
	return "", false
}

// SelectColumns is the full column list used when copying rows.
func (s TableSchema) SelectColumns() []string {
	columns := []string{ColumnID, ColumnCreatedAt, ColumnUpdatedAt}
	if s.SoftDelete {
		columns = append(columns, ColumnDeletedAt)
	}
	return append(columns, s.Columns...)
}

// Registry is built once at startup and read-only afterwards.
type Registry struct {
	tables map[string]TableSchema
	order  []string
}

// NewRegistry keeps the given order as the bootstrap (parents-first) order.
func NewRegistry(schemas ...TableSchema) (*Registry, error) {
	registry := &Registry{tables: make(map[string]TableSchema, len(schemas))}
	for _, schema := range schemas {
		name := strings.TrimSpace(schema.Table)
		if name == "" {
			return nil, fmt.Errorf("table schema without name")
		}
		if _, exists := registry.tables[name]; exists {
			return nil, fmt.Errorf("duplicate table schema %q", name)
		}
		for column, parent := range schema.ForeignKeys {
			if !schema.HasColumn(column) {
				return nil, fmt.Errorf("table %q: foreign key column %q is not replicated", name, column)
			}
			if _, known := registry.tables[parent]; !known && parent != name {
				return nil, fmt.Errorf("table %q: parent %q must be registered first", name, parent)
			}
		}
		schema.Table = name
		registry.tables[name] = schema
		registry.order = append(registry.order, name)
	}
	return registry, nil
}

func (r *Registry) Lookup(table string) (TableSchema, bool) {
	schema, ok := r.tables[table]
	return schema, ok
}

func (r *Registry) BootstrapOrder() []TableSchema {
	out := make([]TableSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tables[name])
	}
	return out
}

// DefaultRegistry describes the gateway's replicated tables.
func DefaultRegistry() *Registry {
	registry, err := NewRegistry(
		TableSchema{
			Table:           "users",
			Columns:         []string{"email", "password_hash", "first_name", "last_name", "role", "phone", "email_verified"},
			SoftDelete:      true,
			MandatoryFields: []string{"password_hash"},
		},
		TableSchema{
			Table:       "categories",
			Columns:     []string{"name", "slug", "description", "parent_id", "image_url"},
			SoftDelete:  true,
			ForeignKeys: map[string]string{"parent_id": "categories"},
			Search:      SearchCategory,
			BumpsCache:  true,
		},
		TableSchema{
			Table: "products",
			Columns: []string{
				"name", "slug", "description", "price", "compare_at_price", "sku",
				"stock", "category_id", "image_url", "is_active",
			},
			SoftDelete:  true,
			ForeignKeys: map[string]string{"category_id": "categories"},
			Search:      SearchProduct,
			BumpsCache:  true,
		},
		TableSchema{
			Table: "orders",
			Columns: []string{
				"user_id", "order_number", "status", "subtotal", "tax", "shipping", "total",
				"currency", "shipping_address", "billing_address", "payment_status",
				"payment_intent_id", "notes",
			},
			ForeignKeys:   map[string]string{"user_id": "users"},
			OrderedInsert: true,
		},
		TableSchema{
			Table:         "order_items",
			Columns:       []string{"order_id", "product_id", "quantity", "unit_price", "total_price", "product_name"},
			ForeignKeys:   map[string]string{"order_id": "orders", "product_id": "products"},
			OrderedInsert: true,
		},
		TableSchema{
			Table:         "notifications",
			Columns:       []string{"user_id", "type", "title", "message", "read", "link"},
			ForeignKeys:   map[string]string{"user_id": "users"},
			OrderedInsert: true,
		},
	)
	if err != nil {
		panic(err)
	}
	return registry
}
