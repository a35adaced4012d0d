package order

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/JoyelAlbert/ManoMercy-Supermarket/internal/entity"
)

// Memory is an in-process order store with the same semantics as the
// bun repository: uniqueness of order numbers, at most one draft per
// customer, optimistic versioning. Used by tests and local tooling.
type Memory struct {
	mu     sync.Mutex
	seq    int64
	number int64
	orders map[int64]*entity.Order
}

// NewMemory constructs an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{orders: make(map[int64]*entity.Order)}
}

// NextOrderNumber advances the in-process sequence.
func (m *Memory) NextOrderNumber(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.number++
	return fmt.Sprintf("Order No %d", m.number), nil
}

// FindDraftByCustomer returns the customer's draft, or ErrNotFound.
func (m *Memory) FindDraftByCustomer(ctx context.Context, customerID int64) (*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, order := range m.orders {
		if order.CustomerID == customerID && order.Status == entity.StatusDraft {
			return cloneOrder(order), nil
		}
	}
	return nil, ErrNotFound
}

// Create persists a new order, enforcing the same uniqueness rules the
// database indexes provide.
func (m *Memory) Create(ctx context.Context, order *entity.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.orders {
		if existing.Number == order.Number {
			return ErrConflict
		}
		if order.Status == entity.StatusDraft &&
			existing.CustomerID == order.CustomerID &&
			existing.Status == entity.StatusDraft {
			return ErrConflict
		}
	}
	m.seq++
	order.ID = m.seq
	for _, line := range order.Lines {
		line.OrderID = order.ID
	}
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

// Save applies an optimistic update.
func (m *Memory) Save(ctx context.Context, order *entity.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.orders[order.ID]
	if !ok {
		return ErrNotFound
	}
	if existing.Version != order.Version {
		return ErrVersionMismatch
	}
	order.Version++
	order.UpdatedAt = time.Now().UTC()
	m.orders[order.ID] = cloneOrder(order)
	return nil
}

// GetByID fetches an order by primary key.
func (m *Memory) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(order), nil
}

// ListByCustomer returns the customer's orders, newest first.
func (m *Memory) ListByCustomer(ctx context.Context, customerID int64) ([]*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.Order
	for _, order := range m.orders {
		if order.CustomerID == customerID {
			out = append(out, cloneOrder(order))
		}
	}
	sortNewestFirst(out)
	return out, nil
}

// ListAll returns every order, newest first.
func (m *Memory) ListAll(ctx context.Context) ([]*entity.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*entity.Order, 0, len(m.orders))
	for _, order := range m.orders {
		out = append(out, cloneOrder(order))
	}
	sortNewestFirst(out)
	return out, nil
}

// Delete removes an order permanently.
func (m *Memory) Delete(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func sortNewestFirst(orders []*entity.Order) {
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}

func cloneOrder(order *entity.Order) *entity.Order {
	copied := *order
	copied.Lines = make([]*entity.OrderLine, len(order.Lines))
	for i, line := range order.Lines {
		lineCopy := *line
		copied.Lines[i] = &lineCopy
	}
	return &copied
}
