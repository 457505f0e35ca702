package franz

import (
	"context"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/core"
)

type producer struct {
	seeds  []string
	kopts  []kgo.Opt
	logger *zap.Logger
}

// Init creates the kgo client and pings the cluster.
func (p *producer) Init(ctx context.Context) (core.Sender, error) {
	client, err := kgo.NewClient(p.kopts...)
	if err != nil {
		return nil, fmt.Errorf("eventbus/franz: create client: %w", err)
	}
	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("eventbus/franz: ping %v: %w", p.seeds, err)
	}
	p.logger.Info("franz producer connected", zap.Strings("seeds", p.seeds))
	return &sender{client: client}, nil
}

type sender struct {
	client *kgo.Client

	mu     sync.RWMutex
	closed bool
}

// Send produces msg synchronously.
func (s *sender) Send(ctx context.Context, msg core.OutgoingMessage) ([]core.DeliveryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, core.ErrClientClosed
	}

	rec, err := s.client.ProduceSync(ctx, &kgo.Record{
		Topic: msg.Topic,
		Value: msg.Message.Value,
	}).First()
	if err != nil {
		return nil, fmt.Errorf("eventbus/franz: produce to %q: %w", msg.Topic, err)
	}
	return []core.DeliveryResult{{
		Topic:     rec.Topic,
		Partition: rec.Partition,
		Offset:    rec.Offset,
	}}, nil
}

// Close closes the kgo client. Every Send has already waited for its record.
func (s *sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.client.Close()
	return nil
}
