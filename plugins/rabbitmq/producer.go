package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/core"
)

type producer struct {
	uri  string
	opts options
}

// Init connects, puts the channel in confirm mode and declares the exchange.
func (p *producer) Init(context.Context) (core.Sender, error) {
	conn, ch, err := dial(p.uri)
	if err != nil {
		return nil, err
	}
	fail := func(err error) (core.Sender, error) {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.Confirm(false); err != nil {
		return fail(fmt.Errorf("eventbus/rabbitmq: enable confirms: %w", err))
	}
	if err := declareExchange(ch, p.opts); err != nil {
		return fail(err)
	}

	p.opts.logger.Info("rabbitmq producer connected", zap.String("exchange", p.opts.exchange))
	return &sender{conn: conn, ch: ch, opts: p.opts}, nil
}

type sender struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	opts options

	mu     sync.Mutex
	closed bool
}

// Send publishes msg and waits for the broker's confirm. The confirm's
// delivery tag is reported as the offset.
func (s *sender) Send(ctx context.Context, msg core.OutgoingMessage) ([]core.DeliveryResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, core.ErrClientClosed
	}
	dc, err := s.ch.PublishWithDeferredConfirmWithContext(ctx, s.opts.exchange, msg.Topic, false, false, amqp.Publishing{
		Body:         msg.Message.Value,
		DeliveryMode: amqp.Persistent,
	})
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("eventbus/rabbitmq: publish to %q: %w", msg.Topic, err)
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("eventbus/rabbitmq: confirm %q: %w", msg.Topic, err)
	}
	if !acked {
		return nil, fmt.Errorf("eventbus/rabbitmq: publish to %q: nacked by broker", msg.Topic)
	}
	return []core.DeliveryResult{{
		Topic:     msg.Topic,
		Partition: 0,
		Offset:    int64(dc.DeliveryTag),
	}}, nil
}

// Close tears down the channel and connection.
func (s *sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return closeAll(s.ch, s.conn)
}

func closeAll(ch *amqp.Channel, conn *amqp.Connection) error {
	var errs []error
	if err := ch.Close(); err != nil {
		errs = append(errs, fmt.Errorf("eventbus/rabbitmq: close channel: %w", err))
	}
	if err := conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("eventbus/rabbitmq: close connection: %w", err))
	}
	return errors.Join(errs...)
}
