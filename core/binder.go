package core

import (
	"context"
	"encoding/json"
	"fmt"
)

// Binder deserializes raw message bytes into a Go value.
// Implement this interface for custom serialization formats (Protobuf, Avro, etc.).
type Binder interface {
	Bind(data []byte, v any) error
}

// JSONBinder deserializes JSON message bodies.
type JSONBinder struct{}

func (JSONBinder) Bind(data []byte, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// Bind returns a Handler that decodes each payload into a T with b before
// calling fn. A decode failure is a handler failure, so the message is not
// committed.
//
//	sub.Subscribe(ctx, core.SubscribeRequest{
//	    EventName: "orders.created",
//	    Handler: core.Bind(core.JSONBinder{}, func(ctx context.Context, o Order) error {
//	        return process(o)
//	    }),
//	})
func Bind[T any](b Binder, fn func(ctx context.Context, v T) error) Handler {
	return func(ctx context.Context, value []byte) error {
		var v T
		if err := b.Bind(value, &v); err != nil {
			return fmt.Errorf("eventbus: bind: %w", err)
		}
		return fn(ctx, v)
	}
}
