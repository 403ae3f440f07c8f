package orders

import (
	"context"

	"golang.org/x/sync/errgroup"

	appchat "campusmarket/internal/app/chat"
	domainlistings "campusmarket/internal/domain/listings"
	domainorders "campusmarket/internal/domain/orders"
)

const summaryConcurrency = 8

// Party is the public profile of a buyer or seller.
type Party struct {
	UserID     string
	Name       string
	AvatarURL  string
	University string
}

// Summary is an order together with its listing preview and both parties.
type Summary struct {
	*domainorders.Order
	Listing *appchat.ListingPreview
	Buyer   Party
	Seller  Party
}

// SummaryBuilder attaches listing and profile data to orders.
type SummaryBuilder struct {
	Enricher appchat.Enricher
}

// Summarize enriches one order.
func (b *SummaryBuilder) Summarize(ctx context.Context, order *domainorders.Order) Summary {
	var enrich appchat.Enricher
	if b != nil {
		enrich = b.Enricher
	}
	s := Summary{
		Order:  order,
		Buyer:  party(ctx, enrich, order.BuyerID),
		Seller: party(ctx, enrich, order.SellerID),
	}
	if order.ListingID != "" {
		s.Listing = enrich.ListingPreview(ctx, domainlistings.ListingID(order.ListingID))
	}
	return s
}

// SummarizeAll enriches orders concurrently and keeps their order.
func (b *SummaryBuilder) SummarizeAll(ctx context.Context, orders []*domainorders.Order) ([]Summary, error) {
	out := make([]Summary, len(orders))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryConcurrency)
	for i, order := range orders {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = b.Summarize(gctx, order)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func party(ctx context.Context, enrich appchat.Enricher, userID string) Party {
	p := enrich.Profile(ctx, userID)
	return Party{UserID: userID, Name: p.Name(), AvatarURL: p.AvatarURL, University: p.University}
}
