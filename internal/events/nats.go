package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/me/workgate/internal/logging"
)

// NATSPublisher publishes events as JSON on <prefix>.<kind>.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NewNATSPublisher connects to url. The connection reconnects on its own
// after a broken link; publishes during an outage are buffered by the client.
func NewNATSPublisher(url, prefix string, logger *slog.Logger) (*NATSPublisher, error) {
	logger = logging.Component(logger, "events")
	conn, err := nats.Connect(url,
		nats.Name("workgate"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}

	logger.Info("nats publisher connected", "url", url, "subject_prefix", prefix)
	return &NATSPublisher{conn: conn, prefix: strings.TrimSuffix(prefix, "."), logger: logger}, nil
}

// Subject returns the subject an event of kind is published on.
func Subject(prefix string, kind fmt.Stringer) string {
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return kind.String()
	}
	return prefix + "." + kind.String()
}

func (p *NATSPublisher) Publish(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := Subject(p.prefix, ev.Kind)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("published constraint event", "subject", subject)
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p.conn == nil {
		return nil
	}
	err := p.conn.Drain()
	if err != nil {
		p.conn.Close()
	}
	return err
}
