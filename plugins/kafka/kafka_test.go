package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/miladsoleymani/eventbus/broker"
	"github.com/miladsoleymani/eventbus/core"
)

func TestBrokerAddrs(t *testing.T) {
	tests := []struct {
		in      string
		want    []string
		wantErr bool
	}{
		{"localhost:9092", []string{"localhost:9092"}, false},
		{"a:9092, b:9092,", []string{"a:9092", "b:9092"}, false},
		{"", nil, true},
		{" , ", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := brokerAddrs(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("brokerAddrs(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("brokerAddrs(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("brokerAddrs(%q)[%d] = %q, want %q", tt.in, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestStartOffset(t *testing.T) {
	if got, err := startOffset(core.EarliestOffset); err != nil || got != kafka.FirstOffset {
		t.Errorf("earliest = %d, %v", got, err)
	}
	if got, err := startOffset(core.LatestOffset); err != nil || got != kafka.LastOffset {
		t.Errorf("latest = %d, %v", got, err)
	}
	if _, err := startOffset(42); err == nil {
		t.Error("expected error for absolute offset")
	}
}

func TestClient_Constructors(t *testing.T) {
	c := New()

	if _, err := c.NewProducer(core.ConnectionConfig{}); err == nil {
		t.Error("expected error for empty connection string")
	}
	if _, err := c.NewProducer(core.ConnectionConfig{ConnectionString: "localhost:9092"}); err != nil {
		t.Errorf("new producer: %v", err)
	}

	if _, err := c.NewGroupConsumer(core.GroupConsumerConfig{
		ConnectionConfig: core.ConnectionConfig{ConnectionString: "localhost:9092"},
		StartingOffset:   core.EarliestOffset,
	}); err == nil {
		t.Error("expected error for empty group id")
	}
	gc, err := c.NewGroupConsumer(core.GroupConsumerConfig{
		ConnectionConfig: core.ConnectionConfig{ConnectionString: "localhost:9092"},
		GroupID:          "test",
		StartingOffset:   core.EarliestOffset,
	})
	if err != nil {
		t.Fatalf("new group consumer: %v", err)
	}
	if gc.(*consumer).start != kafka.FirstOffset {
		t.Errorf("start offset = %d, want FirstOffset", gc.(*consumer).start)
	}
}

func TestConsumer_CommitUnknownTopic(t *testing.T) {
	gc, err := New().NewGroupConsumer(core.GroupConsumerConfig{
		ConnectionConfig: core.ConnectionConfig{ConnectionString: "localhost:9092"},
		GroupID:          "test",
		StartingOffset:   core.EarliestOffset,
	})
	if err != nil {
		t.Fatalf("new group consumer: %v", err)
	}

	err = gc.CommitOffset(context.Background(), core.OffsetCommit{Topic: "test", Offset: 1})
	if !errors.Is(err, core.ErrUnknownOffset) {
		t.Fatalf("expected ErrUnknownOffset, got %v", err)
	}

	c := gc.(*consumer)
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := c.Init(context.Background(), nil); !errors.Is(err, core.ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}

func TestOptsFromConfig(t *testing.T) {
	opts := defaults()
	for _, fn := range optsFromConfig(broker.Config{Extra: map[string]any{
		"max_bytes": 1024,
		"timeout":   time.Second,
		"balancer":  "hash",
	}}) {
		fn(&opts)
	}

	if opts.maxBytes != 1024 {
		t.Errorf("maxBytes = %d, want 1024", opts.maxBytes)
	}
	if opts.timeout != time.Second {
		t.Errorf("timeout = %s, want 1s", opts.timeout)
	}
	if _, ok := opts.balancer.(*kafka.Hash); !ok {
		t.Errorf("balancer = %T, want *kafka.Hash", opts.balancer)
	}
	if opts.logger == nil {
		t.Error("nil logger must keep the default")
	}
}

func TestRegistered(t *testing.T) {
	c, err := broker.Create("kafka", broker.Config{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, ok := c.(*Client); !ok {
		t.Errorf("unexpected client type %T", c)
	}
}
