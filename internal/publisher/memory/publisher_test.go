package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "competitor-events", map[string]string{"event_type": "llms_txt_added"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)

	id2, err := pub.Publish(context.Background(), "other", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "competitor-events", msgs[0].Topic)
	require.Equal(t, "other", msgs[1].Topic)

	msgs[0].Topic = "modified"
	require.Equal(t, "competitor-events", pub.Messages()[0].Topic, "Messages returns a copy")
}

func TestPublisherInjectedError(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.FailWith(errBoom)
	_, err := pub.Publish(context.Background(), "t", "x")
	require.ErrorIs(t, err, errBoom)
	require.Empty(t, pub.Messages())
}
