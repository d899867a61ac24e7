// Package messaging consumes person creation events from NATS JetStream and indexes them.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	nats "github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recherche/internal/async"
	"github.com/kailas-cloud/recherche/internal/domain"
	"github.com/kailas-cloud/recherche/internal/domain/person"
)

// Indexer indexes one person.
type Indexer interface {
	Index(ctx context.Context, p person.Person) *async.Future[domain.IndexOutcome]
}

// Config holds the consumer settings.
type Config struct {
	URL     string
	Stream  string
	Subject string
	Queue   string
	Durable string
	AckWait time.Duration
}

// Consumer indexes every CreatedEvent published on the configured subject. Members of
// the same queue group share the load; messages are acked once indexed.
type Consumer struct {
	cfg     Config
	indexer Indexer
	logger  *zap.Logger

	mu   sync.Mutex
	conn *nats.Conn
	sub  *nats.Subscription
}

// NewConsumer creates a consumer. Call Connect then Start.
func NewConsumer(cfg Config, indexer Indexer, logger *zap.Logger) *Consumer {
	return &Consumer{cfg: cfg, indexer: indexer, logger: logger}
}

// Connect opens the NATS connection.
func (c *Consumer) Connect() error {
	conn, err := nats.Connect(c.cfg.URL,
		nats.Name("recherche"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			c.logger.Info("NATS reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return fmt.Errorf("connect to nats %s: %w", c.cfg.URL, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// Start creates the stream when missing and subscribes with a durable queue consumer.
// Messages are handled with ctx until Close.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return errors.New("messaging: not connected")
	}
	js, err := c.conn.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}
	if _, err := js.StreamInfo(c.cfg.Stream); err != nil {
		if !errors.Is(err, nats.ErrStreamNotFound) {
			return fmt.Errorf("stream info %s: %w", c.cfg.Stream, err)
		}
		if _, err := js.AddStream(&nats.StreamConfig{
			Name:     c.cfg.Stream,
			Subjects: []string{c.cfg.Subject},
		}); err != nil {
			return fmt.Errorf("add stream %s: %w", c.cfg.Stream, err)
		}
		c.logger.Info("Created stream", zap.String("stream", c.cfg.Stream), zap.String("subject", c.cfg.Subject))
	}

	sub, err := js.QueueSubscribe(c.cfg.Subject, c.cfg.Queue, func(msg *nats.Msg) {
		c.deliver(ctx, msg)
	},
		nats.Durable(c.cfg.Durable),
		nats.ManualAck(),
		nats.AckWait(c.cfg.AckWait),
	)
	if err != nil {
		return fmt.Errorf("queue subscribe %s: %w", c.cfg.Subject, err)
	}
	c.sub = sub
	c.logger.Info("Consuming person events",
		zap.String("subject", c.cfg.Subject), zap.String("queue", c.cfg.Queue))
	return nil
}

func (c *Consumer) deliver(ctx context.Context, msg *nats.Msg) {
	err := c.Handle(ctx, msg.Data)
	switch {
	case err == nil:
		err = msg.Ack()
	case errors.Is(err, domain.ErrInvalidArgument):
		c.logger.Error("Dropping malformed person event", zap.Error(err))
		err = msg.Term()
	default:
		c.logger.Warn("Unable to index person event, redelivering", zap.Error(err))
		err = msg.Nak()
	}
	if err != nil {
		c.logger.Error("Error when acknowledging message", zap.Error(err))
	}
}

// Handle decodes one event payload and indexes the person it describes.
func (c *Consumer) Handle(ctx context.Context, data []byte) error {
	evt, err := person.DecodeCreatedEvent(data)
	if err != nil {
		return err
	}
	out, err := c.indexer.Index(ctx, evt.ToPerson()).Await(ctx)
	if err != nil {
		return fmt.Errorf("index event %d: %w", evt.ID, err)
	}
	c.logger.Debug("Indexed person event",
		zap.Int64("event_id", evt.ID), zap.String("id", out.ID), zap.Int64("version", out.Version))
	return nil
}

// Ping reports whether the NATS connection is up.
func (c *Consumer) Ping(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || !c.conn.IsConnected() {
		return errors.New("not connected to NATS")
	}
	return nil
}

// Close drains the subscription and closes the connection.
func (c *Consumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	var err error
	if c.sub != nil {
		err = c.sub.Drain()
	}
	c.conn.Close()
	c.conn = nil
	return err
}
