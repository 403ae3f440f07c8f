package mongo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	domainchat "campusmarket/internal/domain/chat"
	mongostore "campusmarket/internal/infra/db/mongo"
)

func deletedCollections(mt *mtest.T) []string {
	var out []string
	for _, evt := range mt.GetAllStartedEvents() {
		if evt.CommandName == "delete" {
			out = append(out, evt.Command.Lookup("delete").StringValue())
		}
	}
	return out
}

func TestDeleteRemovesMessagesBeforeConversation(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("deleted", func(mt *mtest.T) {
		store := mongostore.NewChatStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		require.NoError(t, store.Delete(context.Background(), "c1"))
		assert.Equal(t, []string{"chat_messages", "chat_conversations"}, deletedCollections(mt))
	})

	mt.Run("message delete fails", func(mt *mtest.T) {
		store := mongostore.NewChatStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "bad filter"}))

		err := store.Delete(context.Background(), "c1")
		require.Error(t, err)
		var cmdErr mongo.CommandError
		assert.ErrorAs(t, err, &cmdErr)
		assert.Equal(t, []string{"chat_messages"}, deletedCollections(mt), "conversation is kept")
	})

	mt.Run("missing conversation", func(mt *mtest.T) {
		store := mongostore.NewChatStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)

		assert.ErrorIs(t, store.Delete(context.Background(), "c1"), domainchat.ErrConversationNotFound)
	})
}
