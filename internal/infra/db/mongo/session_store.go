package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"campusmarket/internal/domain/shared/fault"
)

var ErrSessionNotFound = fault.New(fault.KindForbidden, "mongo: session not found or expired")

// SessionAuthenticator resolves bearer tokens against the sessions written
// by the identity provider.
type SessionAuthenticator struct {
	col *mongo.Collection
	now func() time.Time
}

func NewSessionAuthenticator(db *mongo.Database) *SessionAuthenticator {
	return &SessionAuthenticator{col: db.Collection("auth_sessions"), now: time.Now}
}

func (a *SessionAuthenticator) EnsureIndexes(ctx context.Context) error {
	_, err := a.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}

func (a *SessionAuthenticator) Authenticate(ctx context.Context, token string) (string, error) {
	var doc sessionDocument
	if err := a.col.FindOne(ctx, bson.M{"_id": token}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", ErrSessionNotFound
		}
		return "", err
	}
	if !doc.ExpiresAt.After(a.now().UTC()) {
		return "", ErrSessionNotFound
	}
	return doc.UserID, nil
}

type sessionDocument struct {
	Token     string    `bson:"_id"`
	UserID    string    `bson:"user_id"`
	ExpiresAt time.Time `bson:"expires_at"`
}
