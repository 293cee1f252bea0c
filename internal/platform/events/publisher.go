package events

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// ErrPublisherClosed is returned when publishing after Close.
var ErrPublisherClosed = errors.New("events: publisher closed")

// Publisher delivers raw messages to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, msg []byte) error
	Close() error
}

// Subject joins a prefix with the session and event kind, e.g. "menu.sessions.<id>.snapshot".
// Dots inside the session id are replaced so the id stays a single subject token.
func Subject(prefix, sessionID, kind string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	sessionID = strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(sessionID)
	parts := make([]string, 0, 3)
	for _, p := range []string{prefix, sessionID, kind} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// NATSPublisher publishes core NATS messages.
type NATSPublisher struct {
	conn *nats.Conn
}

// NewNATSPublisher connects to the NATS server at url.
func NewNATSPublisher(url string, opts ...nats.Option) (*NATSPublisher, error) {
	options := append([]nats.Option{
		nats.Name("menubrowser"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}, opts...)
	conn, err := nats.Connect(url, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	return &NATSPublisher{conn: conn}, nil
}

// Publish sends msg on subject. The context only guards against publishing for an abandoned caller.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.conn == nil || p.conn.IsClosed() {
		return ErrPublisherClosed
	}
	return p.conn.Publish(subject, msg)
}

// Ready reports whether the connection to the server is currently established.
func (p *NATSPublisher) Ready(context.Context) error {
	if p.conn == nil || !p.conn.IsConnected() {
		return errors.New("events: nats not connected")
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil || p.conn.IsClosed() {
		return nil
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

// NopPublisher discards every message. It is used when no broker is configured.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(ctx context.Context, _ string, _ []byte) error {
	return ctx.Err()
}

// Close implements Publisher.
func (NopPublisher) Close() error { return nil }

// New returns a NATS publisher when url is set and a NopPublisher otherwise.
func New(url string, opts ...nats.Option) (Publisher, error) {
	if strings.TrimSpace(url) == "" {
		return NopPublisher{}, nil
	}
	return NewNATSPublisher(url, opts...)
}
