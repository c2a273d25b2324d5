// Package notify publishes ingestion events so downstream reviewers can pick
// up new unpublished records without polling the record store.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
)

// DefaultSubject is the NATS subject events are published on
const DefaultSubject = "ktu.ingest.events"

const (
	EventDocumentAdded = "document.added"
	EventRunFinished   = "run.finished"
)

// Event is one ingestion event
type Event struct {
	Type        string    `json:"type"`
	Source      string    `json:"source"`
	Kind        string    `json:"kind,omitempty"`
	SubjectCode string    `json:"subject_code,omitempty"`
	SourceURL   string    `json:"source_url,omitempty"`
	StoredURL   string    `json:"stored_url,omitempty"`
	Found       int       `json:"found,omitempty"`
	Added       int       `json:"added,omitempty"`
	Status      string    `json:"status,omitempty"`
	At          time.Time `json:"at"`
}

// Notifier publishes events. Publishing is best effort; callers log errors
// and carry on.
type Notifier interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// NopNotifier drops every event
type NopNotifier struct{}

func (NopNotifier) Publish(ctx context.Context, event Event) error { return nil }
func (NopNotifier) Close() error                                    { return nil }

// natsHeaderCarrier adapts nats.Msg headers for OTel TextMapCarrier
type natsHeaderCarrier nats.Msg

func (c *natsHeaderCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *natsHeaderCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *natsHeaderCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// NATSNotifier publishes JSON events to a NATS subject
type NATSNotifier struct {
	conn    *nats.Conn
	subject string
}

// NewNATSNotifier connects to url. An empty subject uses DefaultSubject.
func NewNATSNotifier(url, subject string) (*NATSNotifier, error) {
	if subject == "" {
		subject = DefaultSubject
	}

	conn, err := nats.Connect(url,
		nats.Name("ktu-notes-scraper"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	log.Infow("connected to NATS", "url", conn.ConnectedUrl(), "subject", subject)
	return &NATSNotifier{conn: conn, subject: subject}, nil
}

// Publish serializes the event and injects the trace context into the headers
func (n *NATSNotifier) Publish(ctx context.Context, event Event) error {
	msg, err := buildMsg(ctx, n.subject, event)
	if err != nil {
		return err
	}
	return n.conn.PublishMsg(msg)
}

// Close flushes pending events and closes the connection
func (n *NATSNotifier) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

func buildMsg(ctx context.Context, subject string, event Event) (*nats.Msg, error) {
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
	}
	otel.GetTextMapPropagator().Inject(ctx, (*natsHeaderCarrier)(msg))
	return msg, nil
}
