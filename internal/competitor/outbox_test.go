package competitor

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/publisher/memory"
)

type recordingPublisher struct {
	topics   []string
	payloads []any
	failOn   string
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	n, _ := payload.(Notification)
	if p.failOn != "" && n.EventID == p.failOn {
		return "", errors.New("publish failed")
	}
	p.topics = append(p.topics, topic)
	p.payloads = append(p.payloads, payload)
	return "msg-" + n.EventID, nil
}

func TestOutboxPublishesWarningAndCritical(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{}
	outbox := NewOutbox(pub, "competitor-events")
	err := outbox.Notify(context.Background(), []crawler.CompetitorEvent{
		{ID: "e1", EventType: EventSchemaAdded, Severity: crawler.SeverityInfo},
		{ID: "e2", EventType: EventScoreRegression, Severity: crawler.SeverityWarning, Domain: "rival.example"},
		{ID: "e3", EventType: EventLLMsTxtAdded, Severity: crawler.SeverityCritical},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"competitor-events", "competitor-events"}, pub.topics)

	first, ok := pub.payloads[0].(Notification)
	require.True(t, ok)
	require.Equal(t, "e2", first.EventID)
	require.Equal(t, "rival.example", first.Domain)
}

func TestOutboxContinuesPastFailures(t *testing.T) {
	t.Parallel()

	pub := &recordingPublisher{failOn: "e1"}
	err := NewOutbox(pub, "t").Notify(context.Background(), []crawler.CompetitorEvent{
		{ID: "e1", Severity: crawler.SeverityCritical},
		{ID: "e2", Severity: crawler.SeverityWarning},
	})
	require.ErrorContains(t, err, "e1")
	require.Len(t, pub.payloads, 1)
}

func TestOutboxWithoutPublisherIsNoop(t *testing.T) {
	t.Parallel()

	require.NoError(t, NewOutbox(nil, "t").Notify(context.Background(), []crawler.CompetitorEvent{{ID: "e"}}))
}

func TestOutboxWithMemoryPublisher(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	err := NewOutbox(pub, "competitor-events").Notify(context.Background(), []crawler.CompetitorEvent{
		{ID: "e1", CompetitorID: "c1", EventType: EventAICrawlersBlocked, Severity: crawler.SeverityCritical},
	})
	require.NoError(t, err)

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	n, ok := msgs[0].Payload.(Notification)
	require.True(t, ok)
	require.Equal(t, map[string]string{
		"event_type":    EventAICrawlersBlocked,
		"severity":      "critical",
		"competitor_id": "c1",
	}, n.Attributes())
}
