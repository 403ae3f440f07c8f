package scylla

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/gocql/gocql"

	domainorders "campusmarket/internal/domain/orders"
	"campusmarket/internal/domain/shared/money"
)

type OrderRepository struct {
	session *gocql.Session
}

func NewOrderRepository(session *gocql.Session) *OrderRepository {
	return &OrderRepository{session: session}
}

func (r *OrderRepository) Create(ctx context.Context, order *domainorders.Order) error {
	applied, err := r.session.
		Query(`INSERT INTO orders (id, listing_id, buyer_id, seller_id, amount, currency, status, created_ns, updated_ns) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`,
			string(order.ID), order.ListingID, order.BuyerID, order.SellerID, order.Amount.Amount, order.Amount.Currency,
			string(order.Status), order.CreatedAt.UTC().UnixNano(), order.UpdatedAt.UTC().UnixNano()).
		WithContext(ctx).
		SerialConsistency(gocql.Serial).
		MapScanCAS(map[string]interface{}{})
	if err != nil {
		return err
	}
	if !applied {
		return domainorders.ErrConcurrentUpdate
	}
	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`INSERT INTO orders_by_user (user_id, order_id) VALUES (?, ?)`, order.BuyerID, string(order.ID))
	batch.Query(`INSERT INTO orders_by_user (user_id, order_id) VALUES (?, ?)`, order.SellerID, string(order.ID))
	return r.session.ExecuteBatch(batch)
}

func (r *OrderRepository) ByID(ctx context.Context, id domainorders.OrderID) (*domainorders.Order, error) {
	var (
		listingID, buyerID, sellerID, currency, status string
		amount, created, updated                       int64
	)
	err := r.session.
		Query(`SELECT listing_id, buyer_id, seller_id, amount, currency, status, created_ns, updated_ns FROM orders WHERE id = ?`, string(id)).
		WithContext(ctx).
		SerialConsistency(gocql.Serial).
		Consistency(gocql.Quorum).
		Scan(&listingID, &buyerID, &sellerID, &amount, &currency, &status, &created, &updated)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return nil, domainorders.ErrOrderNotFound
		}
		return nil, err
	}
	return &domainorders.Order{
		ID:        id,
		ListingID: listingID,
		BuyerID:   buyerID,
		SellerID:  sellerID,
		Amount:    money.Money{Amount: amount, Currency: currency},
		Status:    domainorders.Status(status),
		CreatedAt: time.Unix(0, created).UTC(),
		UpdatedAt: time.Unix(0, updated).UTC(),
	}, nil
}

// UpdateStatus is a lightweight transaction conditioned on the current status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id domainorders.OrderID, from, to domainorders.Status, at time.Time) error {
	existing := map[string]interface{}{}
	applied, err := r.session.
		Query(`UPDATE orders SET status = ?, updated_ns = ? WHERE id = ? IF status = ?`,
			string(to), at.UTC().UnixNano(), string(id), string(from)).
		WithContext(ctx).
		SerialConsistency(gocql.Serial).
		MapScanCAS(existing)
	if err != nil {
		return err
	}
	if applied {
		return nil
	}
	// a missing row reports not applied with a null status
	if current, ok := existing["status"].(string); !ok || current == "" {
		return domainorders.ErrOrderNotFound
	}
	return domainorders.ErrConcurrentUpdate
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domainorders.Order, error) {
	iter := r.session.
		Query(`SELECT order_id FROM orders_by_user WHERE user_id = ?`, userID).
		WithContext(ctx).
		Iter()
	var (
		id  string
		ids []string
	)
	for iter.Scan(&id) {
		ids = append(ids, id)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}

	out := make([]*domainorders.Order, 0, len(ids))
	for _, id := range ids {
		order, err := r.ByID(ctx, domainorders.OrderID(id))
		if err != nil {
			if errors.Is(err, domainorders.ErrOrderNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

var _ domainorders.Repository = (*OrderRepository)(nil)
