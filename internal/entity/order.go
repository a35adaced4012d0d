package entity

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Status enumerates the closed set of order lifecycle states.
type Status string

const (
	StatusDraft    Status = "Draft"
	StatusPending  Status = "Pending"
	StatusAccepted Status = "Accepted"
	StatusRejected Status = "Rejected"
	StatusWaiting  Status = "Waiting"
	StatusCanceled Status = "Canceled"
)

// ParseStatus validates a raw status value against the closed set.
// Anything outside it is a data-integrity problem, never a pass-through.
func ParseStatus(raw string) (Status, error) {
	switch s := Status(raw); s {
	case StatusDraft, StatusPending, StatusAccepted, StatusRejected, StatusWaiting, StatusCanceled:
		return s, nil
	default:
		return "", fmt.Errorf("unknown order status %q", raw)
	}
}

// AdminAssignable reports whether an admin override may set this status.
// Draft and Canceled stay owner-controlled.
func (s Status) AdminAssignable() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusWaiting:
		return true
	default:
		return false
	}
}

// Delivery modes accepted at confirmation time.
const (
	DeliveryDoor    = "doorDelivery"
	DeliveryCollect = "collectFromShop"
)

// Order represents a customer order and its lifecycle state.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID         int64  `bun:",pk,autoincrement"`
	Number     string `bun:"number"`
	CustomerID int64  `bun:"customer_id"`
	Status     Status `bun:"status"`

	Lines []*OrderLine `bun:"rel:has-many,join:id=order_id"`
	Total float64      `bun:"total"`

	PaymentMode  string `bun:"payment_mode"`
	DeliveryMode string `bun:"delivery_mode"`
	CollectBy    string `bun:"collect_by"`

	// Version guards Save against concurrent lost updates.
	Version     int64     `bun:"version"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time `bun:"updated_at,nullzero"`
	ConfirmedAt time.Time `bun:"confirmed_at,nullzero"`
}

// OrderLine is one product entry inside an order. Price is a snapshot
// taken when the item was added, not a live catalog reference.
type OrderLine struct {
	bun.BaseModel `bun:"table:order_lines"`

	ID        int64   `bun:",pk,autoincrement"`
	OrderID   int64   `bun:"order_id"`
	ProductID string  `bun:"product_id"`
	Name      string  `bun:"name"`
	Price     float64 `bun:"price"`
	Qty       int64   `bun:"qty"`
	Image     string  `bun:"image"`
	Discount  int64   `bun:"discount"`
	Position  int64   `bun:"position"`
}

// MergeLine folds a line into the order: same product increments qty,
// a new product is appended. Addition order is preserved via Position.
func (o *Order) MergeLine(line *OrderLine) {
	for _, existing := range o.Lines {
		if existing.ProductID == line.ProductID {
			existing.Qty += line.Qty
			o.RecomputeTotal()
			return
		}
	}
	line.OrderID = o.ID
	line.Position = int64(len(o.Lines))
	o.Lines = append(o.Lines, line)
	o.RecomputeTotal()
}

// RecomputeTotal derives the order total from its lines, rounded to
// two decimal places.
func (o *Order) RecomputeTotal() {
	sum := decimal.Zero
	for _, line := range o.Lines {
		price := decimal.NewFromFloat(line.Price)
		sum = sum.Add(price.Mul(decimal.NewFromInt(line.Qty)))
	}
	o.Total = sum.Round(2).InexactFloat64()
}
