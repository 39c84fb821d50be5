package services

import "shopgate/contexts/catalog-sync/replica-synchronizer/domain/entities"

func BuildProductDocument(row map[string]any) entities.ProductDocument {
	updatedAt, _ := AsTime(row[entities.ColumnUpdatedAt])
	return entities.ProductDocument{
		ID:             AsString(row[entities.ColumnID]),
		Name:           AsString(row["name"]),
		Slug:           AsString(row["slug"]),
		Description:    AsString(row["description"]),
		Price:          AsFloat(row["price"]),
		CompareAtPrice: AsFloat(row["compare_at_price"]),
		SKU:            AsString(row["sku"]),
		Stock:          AsInt(row["stock"]),
		CategoryID:     AsString(row["category_id"]),
		ImageURL:       AsString(row["image_url"]),
		IsActive:       AsBool(row["is_active"]),
		UpdatedAt:      updatedAt,
	}
}

func BuildCategoryDocument(row map[string]any) entities.CategoryDocument {
	updatedAt, _ := AsTime(row[entities.ColumnUpdatedAt])
	return entities.CategoryDocument{
		ID:          AsString(row[entities.ColumnID]),
		Name:        AsString(row["name"]),
		Slug:        AsString(row["slug"]),
		Description: AsString(row["description"]),
		ParentID:    AsString(row["parent_id"]),
		ImageURL:    AsString(row["image_url"]),
		UpdatedAt:   updatedAt,
	}
}

// IsSoftDeleted reports whether a stored row carries a deletion marker.
func IsSoftDeleted(row map[string]any) bool {
	_, deleted := AsTime(row[entities.ColumnDeletedAt])
	return deleted
}
