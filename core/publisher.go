package core

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Publisher publishes events through a single producer that it creates on the
// first Publish and reuses for the rest of its life.
//
// The connection config of the first successful Publish wins; configs passed
// to later calls are ignored. Use a separate Publisher for an isolated
// connection.
type Publisher struct {
	client Client
	logger *zap.Logger

	flight singleflight.Group

	mu     sync.Mutex
	sender Sender
	closed bool
}

// NewPublisher creates a Publisher on top of the given broker client.
func NewPublisher(client Client, fns ...Option) *Publisher {
	opts := buildOptions(fns)
	return &Publisher{
		client: client,
		logger: opts.logger,
	}
}

// Publish sends req.Buffer to the topic req.EventName.
//
// Construction, initialization and send errors are returned wrapped, never
// retried. A failed construction or initialization is not memoized, so the
// next call tries again; a failed send keeps the producer.
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) ([]DeliveryResult, error) {
	if req.EventName == "" {
		return nil, ErrEmptyEventName
	}

	s, err := p.acquire(ctx, req.Config)
	if err != nil {
		return nil, err
	}

	res, err := s.Send(ctx, OutgoingMessage{
		Topic:   req.EventName,
		Message: Message{Value: req.Buffer},
	})
	if err != nil {
		return nil, fmt.Errorf("eventbus: send to %q: %w", req.EventName, err)
	}
	return res, nil
}

// Close releases the producer if one was created and it can be closed.
// Publish fails with ErrClientClosed afterwards.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	c, ok := p.sender.(io.Closer)
	p.sender = nil
	if !ok {
		return nil
	}
	if err := c.Close(); err != nil {
		return fmt.Errorf("eventbus: close producer: %w", err)
	}
	return nil
}

// acquire returns the memoized sender, creating it if needed. Concurrent
// first callers share one in-flight construction.
func (p *Publisher) acquire(ctx context.Context, cfg ConnectionConfig) (Sender, error) {
	if s, err := p.memoized(); s != nil || err != nil {
		return s, err
	}

	v, err, _ := p.flight.Do("producer", func() (any, error) {
		// A previous flight may have finished between memoized and Do.
		if s, err := p.memoized(); s != nil || err != nil {
			return s, err
		}

		s, err := p.connect(ctx, cfg)
		if err != nil {
			return nil, err
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if p.closed {
			closeQuietly(s)
			return nil, ErrClientClosed
		}
		p.sender = s
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Sender), nil
}

func (p *Publisher) memoized() (Sender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrClientClosed
	}
	return p.sender, nil
}

// connect constructs and initializes a producer, then resolves its
// send-capable handle.
func (p *Publisher) connect(ctx context.Context, cfg ConnectionConfig) (Sender, error) {
	producer, err := p.client.NewProducer(cfg)
	if err != nil {
		p.logger.Error("construct producer", zap.Error(err))
		return nil, fmt.Errorf("eventbus: construct producer: %w", err)
	}

	s, err := producer.Init(ctx)
	if err != nil {
		p.logger.Error("init producer", zap.Error(err))
		closeQuietly(producer)
		return nil, fmt.Errorf("eventbus: init producer: %w", err)
	}
	if s == nil {
		ps, ok := producer.(Sender)
		if !ok {
			closeQuietly(producer)
			return nil, ErrNotSendable
		}
		s = ps
	}

	p.logger.Info("producer ready", zap.String("connection", cfg.ConnectionString))
	return s, nil
}

func closeQuietly(v any) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
