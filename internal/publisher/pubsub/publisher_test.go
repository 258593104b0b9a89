package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

type alert struct {
	Kind string `json:"kind"`
}

func (a alert) Attributes() map[string]string {
	return map[string]string{"kind": a.Kind}
}

func newTestClient(t *testing.T) (*pubsub.Client, *pstest.Server) {
	t.Helper()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(context.Background(), "test-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client, srv
}

func TestPublishSendsJSONWithAttributes(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	client, srv := newTestClient(t)
	_, err := client.CreateTopic(ctx, "competitor-events")
	require.NoError(t, err)

	pub := New(client, "competitor-events")
	defer pub.Close()

	id, err := pub.Publish(ctx, "", alert{Kind: "score_regression"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got alert
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, "score_regression", got.Kind)
	require.Equal(t, "score_regression", msgs[0].Attributes["kind"])
}

func TestPublishErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	_, err := New(nil, "t").Publish(ctx, "", alert{})
	require.ErrorContains(t, err, "not configured")

	client, _ := newTestClient(t)
	pub := New(client, "")
	defer pub.Close()

	_, err = pub.Publish(ctx, "", alert{})
	require.ErrorContains(t, err, "topic is required")

	_, err = pub.Publish(ctx, "missing-topic", alert{})
	require.ErrorContains(t, err, "publish message")

	_, err = pub.Publish(ctx, "t", func() {})
	require.ErrorContains(t, err, "marshal payload")
}
