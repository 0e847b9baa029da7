// Package eventbus publishes generation metadata to NATS.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/playforge/api/internal/models"
)

// SubjectGameGenerated carries one GenerationEvent per served document
const SubjectGameGenerated = "games.generated"

// Publisher sends events over a NATS connection. A nil *Publisher drops events.
type Publisher struct {
	conn *nats.Conn
}

// Connect dials url with a short timeout and a bounded reconnect budget
func Connect(url string) (*Publisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("playforge-api"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(3),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Publisher{conn: nc}, nil
}

// PublishGeneration emits evt on SubjectGameGenerated
func (p *Publisher) PublishGeneration(evt models.GenerationEvent) error {
	if p == nil || p.conn == nil {
		return nil
	}
	data, err := encodeEvent(evt)
	if err != nil {
		return err
	}
	return p.conn.Publish(SubjectGameGenerated, data)
}

// Status reports the connection state for health checks
func (p *Publisher) Status() string {
	if p == nil || p.conn == nil {
		return "not configured"
	}
	if p.conn.IsConnected() {
		return "healthy"
	}
	return "unhealthy: " + p.conn.Status().String()
}

// Close drains pending messages and closes the connection
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}

func encodeEvent(evt models.GenerationEvent) ([]byte, error) {
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", SubjectGameGenerated, err)
	}
	return data, nil
}
