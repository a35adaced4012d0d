package dto

import "time"

// OrderLineResponse represents a single order line as exposed via transport layers.
type OrderLineResponse struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Qty       int64   `json:"qty"`
	Image     string  `json:"image,omitempty"`
	Discount  int64   `json:"discount,omitempty"`
}

// OrderResponse represents an order as exposed via transport layers.
type OrderResponse struct {
	ID           int64               `json:"id"`
	Number       string              `json:"number"`
	CustomerID   int64               `json:"customer_id"`
	Status       string              `json:"status"`
	Lines        []OrderLineResponse `json:"items"`
	Total        float64             `json:"total"`
	PaymentMode  string              `json:"payment_mode,omitempty"`
	DeliveryMode string              `json:"delivery_mode,omitempty"`
	CollectBy    string              `json:"collect_by,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	ConfirmedAt  *time.Time          `json:"confirmed_at,omitempty"`
}

// AddItemRequest carries the catalog snapshot for one line addition.
type AddItemRequest struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Qty       int64   `json:"qty"`
	Image     string  `json:"image"`
	Discount  int64   `json:"discount"`
}

// ConfirmRequest carries fulfilment preferences recorded at confirmation.
type ConfirmRequest struct {
	PaymentMode  string `json:"payment_mode"`
	DeliveryMode string `json:"delivery_mode"`
	CollectBy    string `json:"collect_by"`
}

// SetStatusRequest is the admin status override payload.
type SetStatusRequest struct {
	Status string `json:"status"`
}
