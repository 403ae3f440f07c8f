package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainorders "campusmarket/internal/domain/orders"
	"campusmarket/internal/domain/shared/money"
)

type OrderRepository struct {
	col *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{col: db.Collection("agg_order")}
}

func (r *OrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "buyer_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "seller_id", Value: 1}, {Key: "created_at", Value: -1}}},
	})
	return err
}

func (r *OrderRepository) Create(ctx context.Context, order *domainorders.Order) error {
	_, err := r.col.InsertOne(ctx, newOrderDocument(order))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainorders.ErrConcurrentUpdate
		}
		return err
	}
	return nil
}

func (r *OrderRepository) ByID(ctx context.Context, id domainorders.OrderID) (*domainorders.Order, error) {
	var doc orderDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainorders.ErrOrderNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

// UpdateStatus is a compare-and-set on the status field.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id domainorders.OrderID, from, to domainorders.Status, at time.Time) error {
	res, err := r.col.UpdateOne(ctx,
		bson.M{"_id": string(id), "status": string(from)},
		bson.M{"$set": bson.M{"status": string(to), "updated_at": at.UTC().UnixNano()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": string(id)})
	if err != nil {
		return err
	}
	if n == 0 {
		return domainorders.ErrOrderNotFound
	}
	return domainorders.ErrConcurrentUpdate
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*domainorders.Order, error) {
	filter := bson.M{"$or": bson.A{bson.M{"buyer_id": userID}, bson.M{"seller_id": userID}}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}})
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := make([]*domainorders.Order, 0)
	for cur.Next(ctx) {
		var doc orderDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, doc.toAggregate())
	}
	return out, cur.Err()
}

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

type orderDocument struct {
	ID        string        `bson:"_id"`
	ListingID string        `bson:"listing_id"`
	BuyerID   string        `bson:"buyer_id"`
	SellerID  string        `bson:"seller_id"`
	Amount    moneyDocument `bson:"amount"`
	Status    string        `bson:"status"`
	CreatedAt int64         `bson:"created_at"`
	UpdatedAt int64         `bson:"updated_at"`
}

func newOrderDocument(o *domainorders.Order) orderDocument {
	return orderDocument{
		ID:        string(o.ID),
		ListingID: o.ListingID,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		Amount:    moneyDocument{Amount: o.Amount.Amount, Currency: o.Amount.Currency},
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.UTC().UnixNano(),
		UpdatedAt: o.UpdatedAt.UTC().UnixNano(),
	}
}

func (d orderDocument) toAggregate() *domainorders.Order {
	return &domainorders.Order{
		ID:        domainorders.OrderID(d.ID),
		ListingID: d.ListingID,
		BuyerID:   d.BuyerID,
		SellerID:  d.SellerID,
		Amount:    money.Money{Amount: d.Amount.Amount, Currency: d.Amount.Currency},
		Status:    domainorders.Status(d.Status),
		CreatedAt: time.Unix(0, d.CreatedAt).UTC(),
		UpdatedAt: time.Unix(0, d.UpdatedAt).UTC(),
	}
}

var _ domainorders.Repository = (*OrderRepository)(nil)
