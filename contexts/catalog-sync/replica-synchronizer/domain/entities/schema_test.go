package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRegistryBootstrapOrderIsParentsFirst(t *testing.T) {
	registry := DefaultRegistry()

	var order []string
	for _, schema := range registry.BootstrapOrder() {
		order = append(order, schema.Table)
	}
	assert.Equal(t, []string{"users", "categories", "products", "orders", "order_items", "notifications"}, order)
}

func TestDefaultRegistryFlags(t *testing.T) {
	registry := DefaultRegistry()

	users, ok := registry.Lookup("users")
	require.True(t, ok)
	assert.True(t, users.SoftDelete)
	assert.Equal(t, []string{"password_hash"}, users.MandatoryFields)

	orderItems, ok := registry.Lookup("order_items")
	require.True(t, ok)
	assert.False(t, orderItems.SoftDelete)
	assert.True(t, orderItems.OrderedInsert)

	products, ok := registry.Lookup("products")
	require.True(t, ok)
	assert.Equal(t, SearchProduct, products.Search)
	assert.True(t, products.BumpsCache)

	_, ok = registry.Lookup("sessions")
	assert.False(t, ok)
}

func TestNewRegistryRejectsChildBeforeParent(t *testing.T) {
	_, err := NewRegistry(
		TableSchema{Table: "order_items", Columns: []string{"order_id"}, ForeignKeys: map[string]string{"order_id": "orders"}},
		TableSchema{Table: "orders"},
	)
	assert.ErrorContains(t, err, "must be registered first")
}

func TestNewRegistryRejectsDuplicatesAndUnreplicatedKeys(t *testing.T) {
	_, err := NewRegistry(TableSchema{Table: "users"}, TableSchema{Table: "users"})
	assert.ErrorContains(t, err, "duplicate")

	_, err = NewRegistry(TableSchema{Table: "orders", ForeignKeys: map[string]string{"user_id": "orders"}})
	assert.ErrorContains(t, err, "not replicated")
}

func TestNewRegistryAllowsSelfReference(t *testing.T) {
	_, err := NewRegistry(TableSchema{
		Table:       "categories",
		Columns:     []string{"parent_id"},
		ForeignKeys: map[string]string{"parent_id": "categories"},
	})
	assert.NoError(t, err)
}

func TestMissingMandatory(t *testing.T) {
	schema := TableSchema{Table: "users", MandatoryFields: []string{"password_hash"}}

	field, missing := schema.MissingMandatory(map[string]any{"email": "a@example.com"})
	assert.True(t, missing)
	assert.Equal(t, "password_hash", field)

	_, missing = schema.MissingMandatory(map[string]any{"password_hash": "  "})
	assert.True(t, missing)

	_, missing = schema.MissingMandatory(map[string]any{"password_hash": nil})
	assert.True(t, missing)

	_, missing = schema.MissingMandatory(map[string]any{"password_hash": map[string]any{"hash": "x"}})
	assert.True(t, missing)

	_, missing = schema.MissingMandatory(map[string]any{"password_hash": []any{"x"}})
	assert.True(t, missing)

	_, missing = schema.MissingMandatory(map[string]any{"password_hash": "$2a$10$hash"})
	assert.False(t, missing)
}

func TestSelectColumnsIncludesDeletedAtOnlyForSoftDelete(t *testing.T) {
	soft := TableSchema{Table: "products", Columns: []string{"name"}, SoftDelete: true}
	hard := TableSchema{Table: "order_items", Columns: []string{"quantity"}}

	assert.Equal(t, []string{"id", "created_at", "updated_at", "deleted_at", "name"}, soft.SelectColumns())
	assert.Equal(t, []string{"id", "created_at", "updated_at", "quantity"}, hard.SelectColumns())
}

func TestParseOperationIgnoresCase(t *testing.T) {
	op, ok := ParseOperation(" update ")
	assert.True(t, ok)
	assert.Equal(t, OperationUpdate, op)

	_, ok = ParseOperation("TRUNCATE")
	assert.False(t, ok)
}
