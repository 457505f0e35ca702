package core

import (
	"errors"
	"fmt"
)

var (
	// ErrHandlerNotFunction is returned by Subscribe when the handler is nil.
	ErrHandlerNotFunction = errors.New("eventbus: handler is not a function")

	// ErrEmptyEventName is returned when a request has no event name.
	ErrEmptyEventName = errors.New("eventbus: event name is empty")

	// ErrEmptyMessageSet is returned by the delivery adapter for an empty set.
	ErrEmptyMessageSet = errors.New("eventbus: message set is empty")

	// ErrNotSendable is returned when Init yields no sender and the producer
	// cannot send on its own.
	ErrNotSendable = errors.New("eventbus: producer has no send-capable handle")

	// ErrHandlerPanic wraps a non-error value recovered from a handler panic.
	ErrHandlerPanic = errors.New("eventbus: handler panicked")

	// ErrClientClosed is returned by plugins once a producer or consumer is closed.
	ErrClientClosed = errors.New("eventbus: client is closed")

	// ErrUnknownOffset is returned by plugins asked to commit an offset they
	// have no pending delivery for.
	ErrUnknownOffset = errors.New("eventbus: no pending delivery for offset")
)

// Delivery stages reported by DeliveryError.
const (
	StageHandle = "handle"
	StageCommit = "commit"
)

// DeliveryError describes a failed delivery.
type DeliveryError struct {
	Stage     string
	Topic     string
	Partition int32
	Offset    int64
	Err       error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("eventbus: %s %s[%d]@%d: %v", e.Stage, e.Topic, e.Partition, e.Offset, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }
