package chat

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"campusmarket/internal/app/policies"
	domainchat "campusmarket/internal/domain/chat"
	domainlistings "campusmarket/internal/domain/listings"
	"campusmarket/internal/domain/shared/fault"
	"campusmarket/internal/domain/shared/money"
)

const enrichConcurrency = 8

// Summary is one row of a user's conversation list.
type Summary struct {
	ID                  domainchat.ConversationID
	OtherUserID         string
	OtherUserName       string
	OtherUserAvatar     string
	OtherUserUniversity string
	Listing             *ListingPreview
	LastMessage         string
	LastMessageAt       time.Time
	LastSenderID        string
	UpdatedAt           time.Time
	Unread              bool
}

type ListingPreview struct {
	ID       domainlistings.ListingID
	Title    string
	ImageURL string
	Price    money.Money
}

// SummaryBuilder joins conversations with their last message, the other
// party's profile and the listing preview.
type SummaryBuilder struct {
	Conversations domainchat.ConversationRepository
	Messages      domainchat.MessageRepository
	Listings      policies.ListingCatalog
	Profiles      policies.ProfileDirectory
	Images        policies.ImageSigner
	Logger        *slog.Logger
}

// List builds summaries for userID, most recently updated first. A
// conversation is unread when its last message came from the other party
// and is not older than lastSeen.
func (b *SummaryBuilder) List(ctx context.Context, userID string, lastSeen time.Time) ([]Summary, error) {
	convs, err := b.Conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, fault.Transient("list conversations", err)
	}
	out := make([]Summary, len(convs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)
	for i, conv := range convs {
		g.Go(func() error {
			summary, err := b.summarize(gctx, conv, userID, lastSeen)
			if err != nil {
				return err
			}
			out[i] = summary
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *SummaryBuilder) summarize(ctx context.Context, conv domainchat.Conversation, userID string, lastSeen time.Time) (Summary, error) {
	other := conv.Participants.Other(userID)
	s := Summary{
		ID:          conv.ID,
		OtherUserID: other,
		UpdatedAt:   conv.UpdatedAt,
	}

	enrich := b.Enricher()
	profile := enrich.Profile(ctx, other)
	s.OtherUserName = profile.Name()
	s.OtherUserAvatar = profile.AvatarURL
	s.OtherUserUniversity = profile.University

	if conv.ListingID != "" {
		s.Listing = enrich.ListingPreview(ctx, domainlistings.ListingID(conv.ListingID))
	}

	last, err := b.Messages.Last(ctx, conv.ID)
	if err != nil {
		return Summary{}, fault.Transient("load last message", err)
	}
	if last != nil {
		s.LastMessage = last.Content
		s.LastMessageAt = last.CreatedAt
		s.LastSenderID = last.SenderID
		s.Unread = last.UnreadFor(userID, lastSeen)
	}
	return s, nil
}

// Enricher returns the lookups the builder uses, for reuse by other lists.
func (b *SummaryBuilder) Enricher() Enricher {
	return Enricher{Listings: b.Listings, Profiles: b.Profiles, Images: b.Images, Logger: b.Logger}
}
