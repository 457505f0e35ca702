package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Subscriber subscribes handlers to events. Every Subscribe call creates its
// own consumer-group member; nothing is shared between calls.
type Subscriber struct {
	client      Client
	logger      *zap.Logger
	middlewares []Middleware
}

// NewSubscriber creates a Subscriber on top of the given broker client.
func NewSubscriber(client Client, fns ...Option) *Subscriber {
	opts := buildOptions(fns)
	return &Subscriber{
		client:      client,
		logger:      opts.logger,
		middlewares: opts.middlewares,
	}
}

// Subscribe joins the consumer group req.EventName on topic req.EventName,
// starting from the earliest retained offset when the group has no
// committed offset. It returns once the consumer is initialized; delivery
// continues in the broker client.
//
// Each delivered message is committed only after req.Handler succeeds.
func (s *Subscriber) Subscribe(ctx context.Context, req SubscribeRequest) error {
	if req.Handler == nil {
		return ErrHandlerNotFunction
	}
	if req.EventName == "" {
		return ErrEmptyEventName
	}

	consumer, err := s.client.NewGroupConsumer(GroupConsumerConfig{
		ConnectionConfig: req.Config,
		GroupID:          req.EventName,
		StartingOffset:   EarliestOffset,
	})
	if err != nil {
		s.logger.Error("construct consumer", zap.String("event", req.EventName), zap.Error(err))
		return fmt.Errorf("eventbus: construct consumer for %q: %w", req.EventName, err)
	}

	a := &adapter{
		consumer: consumer,
		handler:  applyMiddleware(req.Handler, s.middlewares),
		logger:   s.logger.With(zap.String("event", req.EventName)),
	}
	strategies := []Strategy{{
		Subscriptions: []string{req.EventName},
		Handler:       a.deliver,
	}}
	if err := consumer.Init(ctx, strategies); err != nil {
		s.logger.Error("init consumer", zap.String("event", req.EventName), zap.Error(err))
		return fmt.Errorf("eventbus: init consumer for %q: %w", req.EventName, err)
	}

	s.logger.Info("subscribed", zap.String("event", req.EventName))
	return nil
}
