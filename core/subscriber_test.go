package core_test

import (
	"context"
	"errors"
	"testing"

	"github.com/miladsoleymani/eventbus/core"
	"github.com/miladsoleymani/eventbus/internal/mock"
)

func noopHandler(context.Context, []byte) error { return nil }

func TestSubscriber_CreatesConsumerAndInitialises(t *testing.T) {
	mc := mock.NewClient()
	s := core.NewSubscriber(mc)

	err := s.Subscribe(context.Background(), core.SubscribeRequest{
		EventName: "test",
		Handler:   noopHandler,
		Config:    core.ConnectionConfig{ConnectionString: "server.com:9092"},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	cfgs := mc.ConsumerConfigs()
	if len(cfgs) != 1 {
		t.Fatalf("consumer constructed %d times, want 1", len(cfgs))
	}
	cfg := cfgs[0]
	if cfg.ConnectionString != "server.com:9092" {
		t.Errorf("connection string = %q", cfg.ConnectionString)
	}
	if cfg.GroupID != "test" {
		t.Errorf("group id = %q, want %q", cfg.GroupID, "test")
	}
	if cfg.StartingOffset != core.EarliestOffset || core.EarliestOffset != -2 {
		t.Errorf("starting offset = %d, want earliest (-2)", cfg.StartingOffset)
	}

	cons := mc.Consumers()[0]
	if n := cons.InitCalls(); n != 1 {
		t.Errorf("init called %d times, want 1", n)
	}
	strategies := cons.Strategies()
	if len(strategies) != 1 {
		t.Fatalf("got %d strategies, want 1", len(strategies))
	}
	subs := strategies[0].Subscriptions
	if len(subs) != 1 || subs[0] != "test" {
		t.Errorf("subscriptions = %v, want [test]", subs)
	}
	if strategies[0].Handler == nil {
		t.Error("strategy handler is nil")
	}
}

func TestSubscriber_ConstructorError(t *testing.T) {
	mc := mock.NewClient()
	ctorErr := errors.New("Constructor error")
	mc.ConsumerErr = ctorErr
	s := core.NewSubscriber(mc)

	err := s.Subscribe(context.Background(), core.SubscribeRequest{EventName: "test", Handler: noopHandler})
	if !errors.Is(err, ctorErr) {
		t.Fatalf("expected constructor error, got %v", err)
	}
}

func TestSubscriber_InitError(t *testing.T) {
	mc := mock.NewClient()
	initErr := errors.New("Init error")
	mc.ConsumerInitErr = initErr
	s := core.NewSubscriber(mc)

	var called bool
	err := s.Subscribe(context.Background(), core.SubscribeRequest{
		EventName: "test",
		Handler: func(context.Context, []byte) error {
			called = true
			return nil
		},
	})
	if !errors.Is(err, initErr) {
		t.Fatalf("expected init error, got %v", err)
	}
	if called {
		t.Error("handler should not be called")
	}
	if n := len(mc.Consumers()[0].Commits()); n != 0 {
		t.Errorf("commit called %d times, want 0", n)
	}
}

func TestSubscriber_NilHandler(t *testing.T) {
	mc := mock.NewClient()
	s := core.NewSubscriber(mc)

	err := s.Subscribe(context.Background(), core.SubscribeRequest{EventName: "test"})
	if !errors.Is(err, core.ErrHandlerNotFunction) {
		t.Fatalf("expected ErrHandlerNotFunction, got %v", err)
	}
	if err.Error() != "eventbus: handler is not a function" {
		t.Errorf("unexpected message: %v", err)
	}
	if n := len(mc.ConsumerConfigs()); n != 0 {
		t.Errorf("consumer constructed %d times, want 0", n)
	}
}

func TestSubscriber_EmptyEventName(t *testing.T) {
	mc := mock.NewClient()
	s := core.NewSubscriber(mc)

	err := s.Subscribe(context.Background(), core.SubscribeRequest{Handler: noopHandler})
	if !errors.Is(err, core.ErrEmptyEventName) {
		t.Fatalf("expected ErrEmptyEventName, got %v", err)
	}
	if n := len(mc.ConsumerConfigs()); n != 0 {
		t.Errorf("consumer constructed %d times, want 0", n)
	}
}

func TestSubscriber_ConsumerPerCall(t *testing.T) {
	mc := mock.NewClient()
	s := core.NewSubscriber(mc)

	for i := 0; i < 2; i++ {
		if err := s.Subscribe(context.Background(), core.SubscribeRequest{EventName: "test", Handler: noopHandler}); err != nil {
			t.Fatalf("subscribe: %v", err)
		}
	}

	cons := mc.Consumers()
	if len(cons) != 2 {
		t.Fatalf("consumer constructed %d times, want 2", len(cons))
	}
	if cons[0] == cons[1] {
		t.Error("consumers should not be shared")
	}
}

func TestSubscriber_Middleware(t *testing.T) {
	mc := mock.NewClient()

	var order []string
	mw := func(name string) core.Middleware {
		return func(next core.Handler) core.Handler {
			return func(ctx context.Context, value []byte) error {
				order = append(order, name+":before")
				err := next(ctx, value)
				order = append(order, name+":after")
				return err
			}
		}
	}
	s := core.NewSubscriber(mc, core.WithMiddleware(mw("A"), mw("B")))

	err := s.Subscribe(context.Background(), core.SubscribeRequest{
		EventName: "test",
		Handler: func(context.Context, []byte) error {
			order = append(order, "handler")
			return nil
		},
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	set := core.MessageSet{{Offset: 1, Message: core.Message{Value: []byte("v")}}}
	if err := mc.Consumers()[0].Deliver(context.Background(), set, "test", 0); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	expected := []string{"A:before", "B:before", "handler", "B:after", "A:after"}
	if len(order) != len(expected) {
		t.Fatalf("got %v, want %v", order, expected)
	}
	for i, v := range expected {
		if order[i] != v {
			t.Errorf("order[%d] = %q, want %q", i, order[i], v)
		}
	}
}
