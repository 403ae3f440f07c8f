package policies

import (
	"context"

	domainchat "campusmarket/internal/domain/chat"
)

// MessagePublisher emits insert notifications for appended messages.
type MessagePublisher interface {
	Publish(ctx context.Context, evt domainchat.MessagePosted) error
}
