package alert

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is used when a nats destination names no subject.
const DefaultSubject = "sentinel.alerts"

type publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes events as JSON on a subject.
type NATS struct {
	conn    publisher
	nc      *nats.Conn
	subject string
}

// DialNATS connects to the server in cfg.URL.
func DialNATS(cfg Config) (*NATS, error) {
	nc, err := nats.Connect(cfg.URL, nats.Name("sentinel"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("alert: connect nats %s: %w", cfg.URL, err)
	}
	n := newNATS(nc, cfg.Subject)
	n.nc = nc
	return n, nil
}

func newNATS(p publisher, subject string) *NATS {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATS{conn: p, subject: subject}
}

// Send publishes event. NATS publishes are fire-and-forget; ctx is only
// checked before publishing.
func (n *NATS) Send(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("nats publish %s: %w", n.subject, err)
	}
	return nil
}

// Close drains the connection if DialNATS opened it.
func (n *NATS) Close() error {
	if n.nc == nil {
		return nil
	}
	return n.nc.Drain()
}
