package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	domainorders "campusmarket/internal/domain/orders"
)

// OrderRepository is an in-memory implementation for demo purposes.
type OrderRepository struct {
	mu    sync.RWMutex
	items map[domainorders.OrderID]domainorders.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{items: make(map[domainorders.OrderID]domainorders.Order)}
}

func (r *OrderRepository) Create(ctx context.Context, order *domainorders.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[order.ID]; exists {
		return domainorders.ErrConcurrentUpdate
	}
	r.items[order.ID] = snapshotOrder(order)
	return nil
}

func (r *OrderRepository) ByID(ctx context.Context, id domainorders.OrderID) (*domainorders.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.items[id]
	if !ok {
		return nil, domainorders.ErrOrderNotFound
	}
	return &order, nil
}

func (r *OrderRepository) UpdateStatus(ctx context.Context, id domainorders.OrderID, from, to domainorders.Status, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.items[id]
	if !ok {
		return domainorders.ErrOrderNotFound
	}
	if order.Status != from {
		return domainorders.ErrConcurrentUpdate
	}
	order.Status = to
	order.UpdatedAt = at.UTC()
	r.items[id] = order
	return nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domainorders.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainorders.Order, 0)
	for _, order := range r.items {
		if order.BuyerID != userID && order.SellerID != userID {
			continue
		}
		o := order
		out = append(out, &o)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// snapshotOrder copies the persisted fields, leaving pending events behind.
func snapshotOrder(o *domainorders.Order) domainorders.Order {
	return domainorders.Order{
		ID:        o.ID,
		ListingID: o.ListingID,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		Amount:    o.Amount,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

var _ domainorders.Repository = (*OrderRepository)(nil)
