package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	domainlistings "campusmarket/internal/domain/listings"
	domainprofiles "campusmarket/internal/domain/profiles"
	"campusmarket/internal/domain/shared/money"
)

// ListingCatalog reads the listing collection owned by the listing service
// and flips a listing to sold after an order.
type ListingCatalog struct {
	col *mongo.Collection
}

func NewListingCatalog(db *mongo.Database) *ListingCatalog {
	return &ListingCatalog{col: db.Collection("listings")}
}

func (c *ListingCatalog) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := c.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrListingNotFound
		}
		return nil, err
	}
	return doc.toDomain(), nil
}

func (c *ListingCatalog) MarkSold(ctx context.Context, id domainlistings.ListingID, at time.Time) error {
	res, err := c.col.UpdateOne(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{"status": string(domainlistings.StatusSold), "updated_at": at.UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return domainlistings.ErrListingNotFound
	}
	return nil
}

type listingDocument struct {
	ID        string        `bson:"_id"`
	OwnerID   string        `bson:"owner_id"`
	Title     string        `bson:"title"`
	Price     moneyDocument `bson:"price"`
	Images    []string      `bson:"images"`
	Status    string        `bson:"status"`
	UpdatedAt time.Time     `bson:"updated_at"`
}

func (d listingDocument) toDomain() *domainlistings.Listing {
	return &domainlistings.Listing{
		ID:        domainlistings.ListingID(d.ID),
		OwnerID:   d.OwnerID,
		Title:     d.Title,
		Price:     money.Money{Amount: d.Price.Amount, Currency: d.Price.Currency},
		Images:    d.Images,
		Status:    domainlistings.Status(d.Status),
		UpdatedAt: d.UpdatedAt,
	}
}

type ProfileDirectory struct {
	col *mongo.Collection
}

func NewProfileDirectory(db *mongo.Database) *ProfileDirectory {
	return &ProfileDirectory{col: db.Collection("profiles")}
}

func (d *ProfileDirectory) ByUserID(ctx context.Context, userID string) (*domainprofiles.Profile, error) {
	var doc profileDocument
	if err := d.col.FindOne(ctx, bson.M{"_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainprofiles.ErrProfileNotFound
		}
		return nil, err
	}
	return &domainprofiles.Profile{
		UserID:      doc.ID,
		DisplayName: doc.DisplayName,
		AvatarURL:   doc.AvatarURL,
		University:  doc.University,
	}, nil
}

type profileDocument struct {
	ID          string `bson:"_id"`
	DisplayName string `bson:"display_name"`
	AvatarURL   string `bson:"avatar_url"`
	University  string `bson:"university"`
}
