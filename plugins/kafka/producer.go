package kafka

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/miladsoleymani/eventbus/core"
)

type producer struct {
	addrs []string
	opts  options
}

// Init verifies the brokers are reachable and returns the sender.
func (p *producer) Init(ctx context.Context) (core.Sender, error) {
	transport := &kafka.Transport{}
	if p.opts.dialer != nil {
		transport.TLS = p.opts.dialer.TLS
		transport.SASL = p.opts.dialer.SASLMechanism
	}
	client := &kafka.Client{
		Addr:      kafka.TCP(p.addrs...),
		Timeout:   p.opts.timeout,
		Transport: transport,
	}

	if _, err := client.Metadata(ctx, &kafka.MetadataRequest{}); err != nil {
		transport.CloseIdleConnections()
		return nil, fmt.Errorf("eventbus/kafka: connect to %v: %w", p.addrs, err)
	}

	p.opts.logger.Info("kafka producer connected", zap.Strings("brokers", p.addrs))
	return &sender{
		client:     client,
		transport:  transport,
		opts:       p.opts,
		partitions: make(map[string][]int),
	}, nil
}

// sender produces single-record batches to a balanced partition.
type sender struct {
	client    *kafka.Client
	transport *kafka.Transport
	opts      options

	mu         sync.Mutex
	partitions map[string][]int
	closed     bool
}

// Send writes msg and reports the partition and offset it landed at.
func (s *sender) Send(ctx context.Context, msg core.OutgoingMessage) ([]core.DeliveryResult, error) {
	ids, err := s.topicPartitions(ctx, msg.Topic)
	if err != nil {
		return nil, err
	}

	partition := s.opts.balancer.Balance(kafka.Message{Topic: msg.Topic, Value: msg.Message.Value}, ids...)

	res, err := s.client.Produce(ctx, &kafka.ProduceRequest{
		Topic:        msg.Topic,
		Partition:    partition,
		RequiredAcks: s.opts.requiredAcks,
		Records:      kafka.NewRecordReader(kafka.Record{Value: kafka.NewBytes(msg.Message.Value)}),
	})
	if err != nil {
		return nil, fmt.Errorf("eventbus/kafka: publish to %q: %w", msg.Topic, err)
	}
	if res.Error != nil {
		s.forget(msg.Topic)
		return nil, fmt.Errorf("eventbus/kafka: publish to %q: %w", msg.Topic, res.Error)
	}
	if rerr, ok := res.RecordErrors[0]; ok {
		return nil, fmt.Errorf("eventbus/kafka: publish to %q: %w", msg.Topic, rerr)
	}

	return []core.DeliveryResult{{
		Topic:     msg.Topic,
		Partition: int32(partition),
		Offset:    res.BaseOffset,
	}}, nil
}

// Close drops the sender's idle broker connections.
func (s *sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.transport.CloseIdleConnections()
	return nil
}

// topicPartitions returns the partition ids of topic, caching them until a
// produce error suggests the layout changed.
func (s *sender) topicPartitions(ctx context.Context, topic string) ([]int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, core.ErrClientClosed
	}
	ids, ok := s.partitions[topic]
	s.mu.Unlock()
	if ok {
		return ids, nil
	}

	meta, err := s.client.Metadata(ctx, &kafka.MetadataRequest{Topics: []string{topic}})
	if err != nil {
		return nil, fmt.Errorf("eventbus/kafka: metadata for %q: %w", topic, err)
	}
	for _, t := range meta.Topics {
		if t.Name != topic {
			continue
		}
		if t.Error != nil {
			return nil, fmt.Errorf("eventbus/kafka: metadata for %q: %w", topic, t.Error)
		}
		for _, p := range t.Partitions {
			ids = append(ids, p.ID)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("eventbus/kafka: topic %q has no partitions", topic)
	}

	s.mu.Lock()
	s.partitions[topic] = ids
	s.mu.Unlock()
	return ids, nil
}

func (s *sender) forget(topic string) {
	s.mu.Lock()
	delete(s.partitions, topic)
	s.mu.Unlock()
}
