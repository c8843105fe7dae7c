package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Handler receives every event read from the exchange.
type Handler func(ev Event)

// Consumer binds a private queue to the events exchange and hands every
// message to its handler.  Each replica runs one, so a mutation committed
// on any replica reaches the boards connected to all of them.
type Consumer struct {
	url      string
	exchange string
	handle   Handler
	logger   *zap.Logger
}

func NewConsumer(url, exchange string, handle Handler, logger *zap.Logger) *Consumer {
	return &Consumer{url: url, exchange: exchange, handle: handle, logger: logger}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff (capped at 30s) whenever the connection drops.
func (c *Consumer) Run(ctx context.Context) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			c.logger.Warn("event consumer: dial failed", zap.Error(err), zap.Duration("retry_in", backoff))
			if !sleepCtx(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		c.logger.Warn("event consumer: consume loop ended; reconnecting", zap.Error(err))
		if !sleepCtx(ctx, 2*time.Second) {
			return
		}
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.ExchangeDeclare(c.exchange, amqp.ExchangeFanout, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "exchange declare")
	}
	// Server-named, exclusive and auto-deleted: it lives as long as this
	// replica's connection.
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		return errors.Wrap(err, "queue declare")
	}
	if err := ch.QueueBind(q.Name, "", c.exchange, false, nil); err != nil {
		return errors.Wrap(err, "queue bind")
	}
	if err := ch.Qos(50, 0, false); err != nil {
		c.logger.Warn("event consumer: set QoS failed", zap.Error(err))
	}
	msgs, err := ch.Consume(q.Name, "", false, true, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "queue consume")
	}
	c.logger.Info("event consumer bound", zap.String("exchange", c.exchange), zap.String("queue", q.Name))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handleDelivery(d.Body); err != nil {
				c.logger.Warn("event consumer: bad message", zap.Error(err))
				_ = d.Nack(false, false) // do not requeue
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handleDelivery(body []byte) error {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Wrap(err, "unmarshal event")
	}
	if ev.Name == "" {
		return errors.New("event without name")
	}
	c.handle(ev)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
