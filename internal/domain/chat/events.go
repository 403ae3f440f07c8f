package chat

import "time"

const MessagePostedEvent = "chat.message_posted"

// MessagePosted is the insert notification fanned out to live sessions. It
// carries the participants so the feed can be routed per user.
type MessagePosted struct {
	Message      Message
	Participants Pair
}

func (e MessagePosted) EventName() string     { return MessagePostedEvent }
func (e MessagePosted) AggregateID() string   { return string(e.Message.ConversationID) }
func (e MessagePosted) OccurredAt() time.Time { return e.Message.CreatedAt }
