package v1

import "encoding/json"

// ChangeMessage is the row-level change notification carried on the change
// channel. This package is contract-only and must stay backward compatible.
type ChangeMessage struct {
	Table     string          `json:"table"`
	Operation string          `json:"operation"`
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// DomainEvent is a higher-level business event such as "order.created".
type DomainEvent struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// OrderCreated is the data of an "order.created" domain event.
type OrderCreated struct {
	OrderID       string             `json:"order_id"`
	OrderNumber   string             `json:"order_number"`
	CustomerEmail string             `json:"customer_email"`
	CustomerName  string             `json:"customer_name"`
	Items         []OrderCreatedItem `json:"items"`
	Total         json.Number        `json:"total"`
	Currency      string             `json:"currency"`
}

type OrderCreatedItem struct {
	ProductName string      `json:"product_name"`
	Quantity    int64       `json:"quantity"`
	UnitPrice   json.Number `json:"unit_price"`
}
