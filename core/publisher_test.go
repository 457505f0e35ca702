package core_test

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/miladsoleymani/eventbus/core"
	"github.com/miladsoleymani/eventbus/internal/mock"
)

func publishRequest() core.PublishRequest {
	return core.PublishRequest{
		EventName: "com.ffdc.Test",
		Buffer:    []byte("Hello World"),
	}
}

func TestPublisher_SendsMessage(t *testing.T) {
	mc := mock.NewClient()
	want := []core.DeliveryResult{{Topic: "kafka-test-topic", Partition: 0, Offset: 353}}
	mc.SendResult = want
	p := core.NewPublisher(mc)

	req := publishRequest()
	got, err := p.Publish(context.Background(), req)
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(got) != 1 || got[0] != want[0] {
		t.Errorf("results = %v, want %v", got, want)
	}

	if n := mc.ProducerInits(); n != 1 {
		t.Errorf("init called %d times, want 1", n)
	}
	sent := mc.Sent()
	if len(sent) != 1 {
		t.Fatalf("send called %d times, want 1", len(sent))
	}
	if sent[0].Topic != req.EventName {
		t.Errorf("topic = %q, want %q", sent[0].Topic, req.EventName)
	}
	if !bytes.Equal(sent[0].Message.Value, req.Buffer) {
		t.Errorf("value = %q, want %q", sent[0].Message.Value, req.Buffer)
	}
}

func TestPublisher_ReusesProducer(t *testing.T) {
	mc := mock.NewClient()
	p := core.NewPublisher(mc)

	first := publishRequest()
	first.Config = core.ConnectionConfig{ConnectionString: "a:9092"}
	second := publishRequest()
	second.EventName = "com.ffdc.Other"
	second.Config = core.ConnectionConfig{ConnectionString: "b:9092"}

	for _, req := range []core.PublishRequest{first, second, first} {
		if _, err := p.Publish(context.Background(), req); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	cfgs := mc.ProducerConfigs()
	if len(cfgs) != 1 {
		t.Fatalf("producer constructed %d times, want 1", len(cfgs))
	}
	if cfgs[0].ConnectionString != "a:9092" {
		t.Errorf("producer built with %q, want first config", cfgs[0].ConnectionString)
	}
	if n := mc.ProducerInits(); n != 1 {
		t.Errorf("init called %d times, want 1", n)
	}
	sent := mc.Sent()
	if len(sent) != 3 {
		t.Fatalf("send called %d times, want 3", len(sent))
	}
	if sent[1].Topic != "com.ffdc.Other" {
		t.Errorf("second send topic = %q", sent[1].Topic)
	}
}

func TestPublisher_ConstructorError(t *testing.T) {
	mc := mock.NewClient()
	ctorErr := errors.New("Constructor error")
	mc.ProducerErr = ctorErr
	p := core.NewPublisher(mc)

	_, err := p.Publish(context.Background(), publishRequest())
	if !errors.Is(err, ctorErr) {
		t.Fatalf("expected constructor error, got %v", err)
	}
	if n := mc.ProducerInits(); n != 0 {
		t.Errorf("init called %d times, want 0", n)
	}
	if len(mc.Sent()) != 0 {
		t.Error("send should not be called")
	}
}

func TestPublisher_InitError(t *testing.T) {
	mc := mock.NewClient()
	initErr := errors.New("Init error")
	mc.InitErr = initErr
	p := core.NewPublisher(mc)

	_, err := p.Publish(context.Background(), publishRequest())
	if !errors.Is(err, initErr) {
		t.Fatalf("expected init error, got %v", err)
	}
	if n := mc.ProducerInits(); n != 1 {
		t.Errorf("init called %d times, want 1", n)
	}
	if len(mc.Sent()) != 0 {
		t.Error("send should not be called")
	}

	// The failed producer is not memoized; the next call builds a new one.
	mc.InitErr = nil
	if _, err := p.Publish(context.Background(), publishRequest()); err != nil {
		t.Fatalf("publish after init failure: %v", err)
	}
	if n := len(mc.ProducerConfigs()); n != 2 {
		t.Errorf("producer constructed %d times, want 2", n)
	}
	if n := len(mc.Sent()); n != 1 {
		t.Errorf("send called %d times, want 1", n)
	}
}

func TestPublisher_SendError(t *testing.T) {
	mc := mock.NewClient()
	sendErr := errors.New("Send error")
	mc.SendErr = sendErr
	p := core.NewPublisher(mc)

	req := publishRequest()
	_, err := p.Publish(context.Background(), req)
	if !errors.Is(err, sendErr) {
		t.Fatalf("expected send error, got %v", err)
	}
	if n := mc.ProducerInits(); n != 1 {
		t.Errorf("init called %d times, want 1", n)
	}
	sent := mc.Sent()
	if len(sent) != 1 || sent[0].Topic != req.EventName {
		t.Fatalf("sent = %v", sent)
	}

	// A send failure keeps the producer.
	mc.SendErr = nil
	if _, err := p.Publish(context.Background(), req); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n := len(mc.ProducerConfigs()); n != 1 {
		t.Errorf("producer constructed %d times, want 1", n)
	}
}

func TestPublisher_UsesSenderReturnedByInit(t *testing.T) {
	tests := []struct {
		name     string
		distinct bool
		want     string
	}{
		{"init returns sender", true, "sender"},
		{"init returns nothing", false, "producer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := mock.NewClient()
			mc.DistinctSender = tt.distinct
			p := core.NewPublisher(mc)

			for i := 0; i < 2; i++ {
				if _, err := p.Publish(context.Background(), publishRequest()); err != nil {
					t.Fatalf("publish: %v", err)
				}
			}
			for i, by := range mc.SentBy() {
				if by != tt.want {
					t.Errorf("send %d went through %q, want %q", i, by, tt.want)
				}
			}
		})
	}
}

func TestPublisher_ConcurrentFirstPublish(t *testing.T) {
	mc := mock.NewClient()
	mc.InitGate = make(chan struct{})
	p := core.NewPublisher(mc)

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Publish(context.Background(), publishRequest())
			errs <- err
		}()
	}

	// Let the callers pile up behind the in-flight init.
	time.Sleep(50 * time.Millisecond)
	close(mc.InitGate)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("publish: %v", err)
		}
	}
	if n := len(mc.ProducerConfigs()); n != 1 {
		t.Errorf("producer constructed %d times, want 1", n)
	}
	if n := mc.ProducerInits(); n != 1 {
		t.Errorf("init called %d times, want 1", n)
	}
	if n := len(mc.Sent()); n != callers {
		t.Errorf("send called %d times, want %d", n, callers)
	}
}

func TestPublisher_EmptyEventName(t *testing.T) {
	mc := mock.NewClient()
	p := core.NewPublisher(mc)

	req := publishRequest()
	req.EventName = ""
	if _, err := p.Publish(context.Background(), req); !errors.Is(err, core.ErrEmptyEventName) {
		t.Fatalf("expected ErrEmptyEventName, got %v", err)
	}
	if n := len(mc.ProducerConfigs()); n != 0 {
		t.Errorf("producer constructed %d times, want 0", n)
	}
}

func TestPublisher_Close(t *testing.T) {
	mc := mock.NewClient()
	p := core.NewPublisher(mc)

	if _, err := p.Publish(context.Background(), publishRequest()); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := p.Publish(context.Background(), publishRequest()); !errors.Is(err, core.ErrClientClosed) {
		t.Fatalf("expected ErrClientClosed, got %v", err)
	}
}
