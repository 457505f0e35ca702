package franz

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/miladsoleymani/eventbus/broker"
	"github.com/miladsoleymani/eventbus/core"
)

func TestSeedBrokers(t *testing.T) {
	got, err := seedBrokers("a:9092,b:9092")
	if err != nil {
		t.Fatalf("seedBrokers: %v", err)
	}
	if len(got) != 2 || got[0] != "a:9092" || got[1] != "b:9092" {
		t.Errorf("seedBrokers = %v", got)
	}
	if _, err := seedBrokers(""); err == nil {
		t.Error("expected error for empty connection string")
	}
}

func TestResetOffset(t *testing.T) {
	tests := []struct {
		name string
		in   int64
		want kgo.Offset
	}{
		{"earliest", core.EarliestOffset, kgo.NewOffset().AtStart()},
		{"latest", core.LatestOffset, kgo.NewOffset().AtEnd()},
		{"absolute", 42, kgo.NewOffset().At(42)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resetOffset(tt.in); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("resetOffset(%d) = %+v, want %+v", tt.in, got, tt.want)
			}
		})
	}
}

func TestClient_Constructors(t *testing.T) {
	c := New(WithAutoTopicCreation(true))

	if _, err := c.NewProducer(core.ConnectionConfig{}); err == nil {
		t.Error("expected error for empty connection string")
	}
	p, err := c.NewProducer(core.ConnectionConfig{ConnectionString: "localhost:9092"})
	if err != nil {
		t.Fatalf("new producer: %v", err)
	}
	// seed brokers plus auto topic creation
	if n := len(p.(*producer).kopts); n != 2 {
		t.Errorf("producer has %d kgo options, want 2", n)
	}

	if _, err := c.NewGroupConsumer(core.GroupConsumerConfig{
		ConnectionConfig: core.ConnectionConfig{ConnectionString: "localhost:9092"},
	}); err == nil {
		t.Error("expected error for empty group id")
	}
}

func TestConsumer_CommitWithoutDelivery(t *testing.T) {
	gc, err := New().NewGroupConsumer(core.GroupConsumerConfig{
		ConnectionConfig: core.ConnectionConfig{ConnectionString: "localhost:9092"},
		GroupID:          "test",
		StartingOffset:   core.EarliestOffset,
	})
	if err != nil {
		t.Fatalf("new group consumer: %v", err)
	}

	err = gc.CommitOffset(context.Background(), core.OffsetCommit{Topic: "test", Partition: 0, Offset: 99})
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

func TestRegistered(t *testing.T) {
	c, err := broker.Create("franz", broker.Config{Extra: map[string]any{"auto_create_topics": true}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	fc, ok := c.(*Client)
	if !ok {
		t.Fatalf("unexpected client type %T", c)
	}
	if !fc.opts.autoCreateTopics {
		t.Error("auto_create_topics not applied")
	}
}
