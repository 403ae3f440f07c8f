package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusmarket/internal/app/middleware"
)

type IdempotencyStore struct {
	col *mongo.Collection
	ttl time.Duration
}

func NewIdempotencyStore(db *mongo.Database, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &IdempotencyStore{col: db.Collection("app_idempotency"), ttl: ttl}
}

func (s *IdempotencyStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "created_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(int32(s.ttl.Seconds())),
	})
	return err
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	var doc idempotencyDocument
	if err := s.col.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return middleware.IdempotencyRecord{}, false, nil
		}
		return middleware.IdempotencyRecord{}, false, err
	}
	// the TTL monitor runs once a minute, so expiry is checked here too
	if time.Since(doc.CreatedAt) > s.ttl {
		return middleware.IdempotencyRecord{}, false, nil
	}
	return doc.toRecord(), true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	doc := idempotencyDocument{
		Key:        rec.Key,
		Payload:    rec.Payload,
		ErrorKind:  rec.ErrorKind,
		Error:      rec.Error,
		OccurredAt: rec.OccurredAt,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.col.UpdateByID(ctx, doc.Key, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	return err
}

type idempotencyDocument struct {
	Key        string    `bson:"_id"`
	Payload    []byte    `bson:"payload"`
	ErrorKind  string    `bson:"error_kind"`
	Error      string    `bson:"error"`
	OccurredAt time.Time `bson:"occurred_at"`
	CreatedAt  time.Time `bson:"created_at"`
}

func (d idempotencyDocument) toRecord() middleware.IdempotencyRecord {
	return middleware.IdempotencyRecord{
		Key:        d.Key,
		Payload:    d.Payload,
		ErrorKind:  d.ErrorKind,
		Error:      d.Error,
		OccurredAt: d.OccurredAt,
	}
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
