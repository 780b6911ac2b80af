package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS publishes events to "<prefix>.<name>" subjects.
type NATS struct {
	conn   *nats.Conn
	prefix string
	log    *slog.Logger
}

// NewNATS connects to url. Reconnects are handled by the client.
func NewNATS(url, prefix string, log *slog.Logger) (*NATS, error) {
	conn, err := nats.Connect(url,
		nats.Name("tech-buddy"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return &NATS{conn: conn, prefix: prefix, log: log}, nil
}

func (n *NATS) subject(name string) string {
	if n.prefix == "" {
		return name
	}
	return n.prefix + "." + name
}

func (n *NATS) Publish(_ context.Context, name string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return n.conn.Publish(n.subject(name), data)
}

func (n *NATS) Subscribe(name string, handler func([]byte)) (func(), error) {
	sub, err := n.conn.Subscribe(n.subject(name), func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return nil, err
	}
	return func() { _ = sub.Unsubscribe() }, nil
}

// Close flushes pending publishes before closing the connection.
func (n *NATS) Close() {
	if err := n.conn.Drain(); err != nil {
		n.log.Warn("nats drain failed", "err", err)
		n.conn.Close()
	}
}
