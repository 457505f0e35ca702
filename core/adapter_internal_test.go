package core

import (
	"errors"
	"testing"
)

func TestTransition(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		from deliveryState
		err  error
		want deliveryState
	}{
		{stateDelivered, nil, stateHandlerOK},
		{stateDelivered, boom, stateHandlerFailed},
		{stateHandlerOK, nil, stateCommitted},
		{stateHandlerOK, boom, stateCommitFailed},

		// Terminal states stay put
		{stateHandlerFailed, nil, stateHandlerFailed},
		{stateCommitted, boom, stateCommitted},
		{stateCommitFailed, nil, stateCommitFailed},
	}

	for _, tt := range tests {
		t.Run(tt.from.String(), func(t *testing.T) {
			got := transition(tt.from, tt.err)
			if got != tt.want {
				t.Errorf("transition(%s, %v) = %s, want %s", tt.from, tt.err, got, tt.want)
			}
			if got.terminal() != (got != stateHandlerOK) {
				t.Errorf("%s terminal = %v", got, got.terminal())
			}
		})
	}
}
