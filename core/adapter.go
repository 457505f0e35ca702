package core

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// deliveryState is a step of a single delivery.
//
//	delivered -> handlerOK -> committed
//	                       -> commitFailed
//	          -> handlerFailed
type deliveryState int

const (
	stateDelivered deliveryState = iota
	stateHandlerOK
	stateHandlerFailed
	stateCommitted
	stateCommitFailed
)

func (s deliveryState) String() string {
	switch s {
	case stateDelivered:
		return "delivered"
	case stateHandlerOK:
		return "handler-ok"
	case stateHandlerFailed:
		return "handler-failed"
	case stateCommitted:
		return "committed"
	case stateCommitFailed:
		return "commit-failed"
	}
	return fmt.Sprintf("deliveryState(%d)", int(s))
}

func (s deliveryState) terminal() bool {
	return s == stateHandlerFailed || s == stateCommitted || s == stateCommitFailed
}

// transition returns the state reached from s given the outcome of the step
// taken in s. Terminal states do not move.
func transition(s deliveryState, err error) deliveryState {
	switch s {
	case stateDelivered:
		if err != nil {
			return stateHandlerFailed
		}
		return stateHandlerOK
	case stateHandlerOK:
		if err != nil {
			return stateCommitFailed
		}
		return stateCommitted
	}
	return s
}

// adapter bridges broker deliveries to a Handler and commits on success.
type adapter struct {
	consumer GroupConsumer
	handler  Handler
	logger   *zap.Logger
}

// deliver handles the first message of set and commits its offset if the
// handler succeeded. The rest of the set is not processed.
func (a *adapter) deliver(ctx context.Context, set MessageSet, topic string, partition int32) error {
	if len(set) == 0 {
		return ErrEmptyMessageSet
	}
	head := set[0]
	log := a.logger.With(
		zap.String("topic", topic),
		zap.Int32("partition", partition),
		zap.Int64("offset", head.Offset),
	)
	if len(set) > 1 {
		log.Debug("ignoring message set tail", zap.Int("ignored", len(set)-1))
	}

	var err error
	state := stateDelivered
	for !state.terminal() {
		switch state {
		case stateDelivered:
			err = a.handle(ctx, head.Message.Value)
		case stateHandlerOK:
			err = a.consumer.CommitOffset(ctx, OffsetCommit{
				Topic:     topic,
				Partition: partition,
				Offset:    head.Offset,
			})
		}
		state = transition(state, err)
	}

	switch state {
	case stateHandlerFailed:
		log.Warn("handler failed, offset not committed", zap.Error(err))
		return &DeliveryError{Stage: StageHandle, Topic: topic, Partition: partition, Offset: head.Offset, Err: err}
	case stateCommitFailed:
		log.Error("commit offset", zap.Error(err))
		return &DeliveryError{Stage: StageCommit, Topic: topic, Partition: partition, Offset: head.Offset, Err: err}
	}
	log.Debug("committed")
	return nil
}

// handle runs the handler, turning a panic into an error.
func (a *adapter) handle(ctx context.Context, value []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return a.handler(ctx, value)
}
