package nats

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/core"
)

type producer struct {
	url  string
	opts options
}

// Init connects to the server and opens JetStream.
func (p *producer) Init(context.Context) (core.Sender, error) {
	nc, js, err := connect(p.url, "eventbus-producer")
	if err != nil {
		return nil, err
	}
	p.opts.logger.Info("nats producer connected", zap.String("url", p.url))
	return &sender{
		conn:    nc,
		js:      js,
		opts:    p.opts,
		streams: make(map[string]bool),
	}, nil
}

type sender struct {
	conn *nats.Conn
	js   jetstream.JetStream
	opts options

	mu      sync.Mutex
	streams map[string]bool
	closed  bool
}

// Send publishes msg with a unique message id so retried publishes are
// deduplicated by the server.
func (s *sender) Send(ctx context.Context, msg core.OutgoingMessage) ([]core.DeliveryResult, error) {
	if err := s.ensure(ctx, msg.Topic); err != nil {
		return nil, err
	}

	ack, err := s.js.Publish(ctx, msg.Topic, msg.Message.Value, jetstream.WithMsgID(uuid.NewString()))
	if err != nil {
		return nil, fmt.Errorf("eventbus/nats: publish to %q: %w", msg.Topic, err)
	}
	return []core.DeliveryResult{{
		Topic:     msg.Topic,
		Partition: 0,
		Offset:    int64(ack.Sequence),
	}}, nil
}

func (s *sender) ensure(ctx context.Context, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return core.ErrClientClosed
	}
	if s.streams[topic] {
		return nil
	}
	if _, err := ensureStream(ctx, s.js, topic, s.opts); err != nil {
		return err
	}
	s.streams[topic] = true
	return nil
}

// Close drains the connection.
func (s *sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.conn.Drain(); err != nil {
		return fmt.Errorf("eventbus/nats: drain: %w", err)
	}
	return nil
}
