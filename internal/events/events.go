// Package events announces finished pipeline runs on NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Status values used in subjects.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Event describes one pipeline run.
type Event struct {
	RequestID   string    `json:"request_id"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	Language    string    `json:"language,omitempty"`
	Chunks      int       `json:"chunks,omitempty"`
	OutputBytes int       `json:"output_bytes,omitempty"`
	DurationMS  int64     `json:"duration_ms"`
	Error       string    `json:"error,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Publisher delivers events.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close()
}

// Subject returns <prefix>.<kind>.<status>.
func Subject(prefix, kind, status string) string {
	return fmt.Sprintf("%s.%s.%s", prefix, kind, status)
}

// Nop discards events. It is used when NATS is not configured.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }

// Close does nothing.
func (Nop) Close() {}

// NATSPublisher publishes JSON events on a NATS connection.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	log    *slog.Logger
}

// Connect dials url and returns a publisher using subject prefix.
func Connect(url, prefix string, timeout time.Duration, log *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("textcast"),
		nats.Timeout(timeout),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	log.Info("connected to NATS", "url", url, "subject_prefix", prefix)
	return &NATSPublisher{conn: conn, prefix: prefix, log: log}, nil
}

// Publish sends evt on its subject. The request ID is set as the message ID
// header so JetStream streams can deduplicate.
func (p *NATSPublisher) Publish(ctx context.Context, evt Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	msg := nats.NewMsg(Subject(p.prefix, evt.Kind, evt.Status))
	msg.Data = data
	msg.Header.Set(nats.MsgIdHdr, evt.RequestID+"."+evt.Status)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", msg.Subject, err)
	}
	return nil
}

// Healthy reports whether the connection is up.
func (p *NATSPublisher) Healthy() bool {
	return p.conn != nil && p.conn.Status() == nats.CONNECTED
}

// Close drains and closes the connection.
func (p *NATSPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.log.Info("closing NATS connection")
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
