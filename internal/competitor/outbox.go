package competitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

// Outbox publishes competitor events to a notification topic. Events below
// warning severity are dropped.
type Outbox struct {
	publisher crawler.Publisher
	topic     string
}

// NewOutbox returns a Notifier backed by publisher.
func NewOutbox(publisher crawler.Publisher, topic string) *Outbox {
	return &Outbox{publisher: publisher, topic: topic}
}

// Notification is the message body published per event.
type Notification struct {
	EventID      string           `json:"event_id"`
	CompetitorID string           `json:"competitor_id"`
	BenchmarkID  string           `json:"benchmark_id"`
	Domain       string           `json:"domain"`
	EventType    string           `json:"event_type"`
	Severity     crawler.Severity `json:"severity"`
	Summary      string           `json:"summary"`
	Data         map[string]any   `json:"data,omitempty"`
}

// Notify publishes each forwardable event. Publishing continues past
// individual failures; the joined error is returned.
func (o *Outbox) Notify(ctx context.Context, events []crawler.CompetitorEvent) error {
	if o.publisher == nil {
		return nil
	}
	var errs []error
	for _, e := range Notifiable(events) {
		msg := Notification{
			EventID:      e.ID,
			CompetitorID: e.CompetitorID,
			BenchmarkID:  e.BenchmarkID,
			Domain:       e.Domain,
			EventType:    e.EventType,
			Severity:     e.Severity,
			Summary:      e.Summary,
			Data:         e.Data,
		}
		if _, err := o.publisher.Publish(ctx, o.topic, msg); err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", e.ID, err))
		}
	}
	return errors.Join(errs...)
}

// Attributes exposes routing fields as Pub/Sub message attributes.
func (n Notification) Attributes() map[string]string {
	return map[string]string{
		"event_type":    n.EventType,
		"severity":      string(n.Severity),
		"competitor_id": n.CompetitorID,
	}
}
