package entities

import "time"

// ProductDocument is the full search document for one product.
type ProductDocument struct {
	ID             string
	Name           string
	Slug           string
	Description    string
	Price          float64
	CompareAtPrice float64
	SKU            string
	Stock          int64
	CategoryID     string
	ImageURL       string
	IsActive       bool
	UpdatedAt      time.Time
}

type CategoryDocument struct {
	ID          string
	Name        string
	Slug        string
	Description string
	ParentID    string
	ImageURL    string
	UpdatedAt   time.Time
}
