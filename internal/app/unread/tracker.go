// Package unread derives a user's unread signal from a per-device read cursor
// and the stream of inbound messages.
package unread

import (
	"context"
	"log/slog"
	"time"

	domainchat "campusmarket/internal/domain/chat"
	"campusmarket/internal/domain/shared/fault"
)

// CursorStore keeps the last-seen watermark per user and device. Found is
// false when the device never marked anything as seen.
type CursorStore interface {
	LastSeen(ctx context.Context, userID, deviceID string) (at time.Time, found bool, err error)
	SetLastSeen(ctx context.Context, userID, deviceID string, at time.Time) error
}

type Tracker struct {
	Cursors  CursorStore
	Messages domainchat.InboundCounter
	Now      func() time.Time
	Logger   *slog.Logger
}

// LastSeen returns the cursor, or the zero time when none exists.
func (t *Tracker) LastSeen(ctx context.Context, userID, deviceID string) (time.Time, error) {
	at, found, err := t.Cursors.LastSeen(ctx, userID, deviceID)
	if err != nil {
		return time.Time{}, fault.Transient("load read cursor", err)
	}
	if !found {
		return time.Time{}, nil
	}
	return at, nil
}

// UnreadCount counts messages from other users not older than the cursor.
// Without a cursor every message from somebody else counts.
func (t *Tracker) UnreadCount(ctx context.Context, userID, deviceID string) (int, error) {
	since, err := t.LastSeen(ctx, userID, deviceID)
	if err != nil {
		return 0, err
	}
	n, err := t.Messages.CountInbound(ctx, userID, since)
	if err != nil {
		return 0, fault.Transient("count unread messages", err)
	}
	return n, nil
}

func (t *Tracker) HasUnread(ctx context.Context, userID, deviceID string) (bool, error) {
	n, err := t.UnreadCount(ctx, userID, deviceID)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// MarkSeen moves the cursor to now and returns the stored value.
func (t *Tracker) MarkSeen(ctx context.Context, userID, deviceID string) (time.Time, error) {
	now := t.now()
	if err := t.Cursors.SetLastSeen(ctx, userID, deviceID, now); err != nil {
		return time.Time{}, fault.Transient("store read cursor", err)
	}
	if t.Logger != nil {
		t.Logger.Debug("read cursor moved", "user_id", userID, "device_id", deviceID, "at", now)
	}
	return now, nil
}

func (t *Tracker) now() time.Time {
	if t.Now != nil {
		return t.Now().UTC()
	}
	return time.Now().UTC()
}
