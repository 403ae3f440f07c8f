package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Client struct {
	DB *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// indexed is implemented by stores that declare their indexes.
type indexed interface {
	EnsureIndexes(ctx context.Context) error
}

// EnsureIndexes creates the indexes of every store. Uniqueness of the
// conversation key depends on it, so callers treat a failure as fatal.
func EnsureIndexes(ctx context.Context, stores ...indexed) error {
	for _, s := range stores {
		if err := s.EnsureIndexes(ctx); err != nil {
			return err
		}
	}
	return nil
}
