package orders_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appchat "campusmarket/internal/app/chat"
	apporders "campusmarket/internal/app/orders"
	domainorders "campusmarket/internal/domain/orders"
	domainprofiles "campusmarket/internal/domain/profiles"
	"campusmarket/internal/domain/shared/money"
	"campusmarket/internal/infra/storage/memory"
)

type prefixSigner struct{}

func (prefixSigner) SignedURL(_ context.Context, key string) (string, error) {
	return "https://cdn.test/" + key + "?sig=1", nil
}

func TestSummaryBuilderAttachesListingAndParties(t *testing.T) {
	lamp := deskLamp()
	lamp.Images = []string{"lamp.jpg", "lamp-side.jpg"}
	builder := &apporders.SummaryBuilder{Enricher: appchat.Enricher{
		Listings: memory.NewListingRepository(lamp),
		Profiles: memory.NewProfileRepository(domainprofiles.Profile{UserID: "bob", DisplayName: "Bob", University: "State U"}),
		Images:   prefixSigner{},
	}}
	orders := []*domainorders.Order{
		{ID: "o-1", ListingID: "L1", BuyerID: "alice", SellerID: "bob", Amount: money.Must(2000, "USD"), Status: domainorders.StatusPending},
		{ID: "o-2", ListingID: "gone", BuyerID: "alice", SellerID: "bob", Amount: money.Must(500, "USD"), Status: domainorders.StatusPending},
	}

	got, err := builder.SummarizeAll(context.Background(), orders)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domainorders.OrderID("o-1"), got[0].ID)
	require.NotNil(t, got[0].Listing)
	assert.Equal(t, "Desk lamp", got[0].Listing.Title)
	assert.Equal(t, "https://cdn.test/lamp.jpg?sig=1", got[0].Listing.ImageURL)
	assert.Equal(t, apporders.Party{UserID: "bob", Name: "Bob", University: "State U"}, got[0].Seller)
	assert.Equal(t, apporders.Party{UserID: "alice", Name: "User"}, got[0].Buyer)

	require.NotNil(t, got[1].Listing, "missing listing keeps its id")
	assert.Equal(t, "gone", string(got[1].Listing.ID))
	assert.Empty(t, got[1].Listing.Title)
}

func TestNilSummaryBuilderFallsBack(t *testing.T) {
	var builder *apporders.SummaryBuilder
	s := builder.Summarize(context.Background(), &domainorders.Order{ID: "o-1", ListingID: "L1", BuyerID: "alice", SellerID: "bob"})
	assert.Equal(t, "User", s.Buyer.Name)
	assert.Equal(t, "User", s.Seller.Name)
	require.NotNil(t, s.Listing)
	assert.Equal(t, "L1", string(s.Listing.ID))
}
