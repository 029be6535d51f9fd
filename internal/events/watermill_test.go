package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jinkaiteo/edms/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatermillSinkPublishes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubSub := NewGoChannel(LoggerAdapter(nil))
	messages, err := pubSub.Subscribe(ctx, "edms.notifications")
	require.NoError(t, err)

	sink := NewWatermillSink(pubSub, "edms.notifications")
	e := NewEmitter(testOptions(), sink, NewLogSink(nil))
	e.Emit(record("1", "submit_for_review"))

	select {
	case msg := <-messages:
		assert.Equal(t, "submit_for_review", msg.Metadata.Get(metadataAction))
		assert.Equal(t, "doc-1", msg.Metadata.Get(metadataDocumentID))
		assert.Equal(t, string(model.StatusPendingReview), msg.Metadata.Get(metadataToStatus))

		var got model.TransitionRecord
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, "1", got.ID)
		msg.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("notification not published")
	}

	require.NoError(t, e.Close())
}
