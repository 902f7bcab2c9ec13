package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonFromCode(t *testing.T) {
	tests := []struct {
		code string
		want JoinReason
	}{
		{"not_found", ReasonNotFound},
		{"bad_password", ReasonBadPassword},
		{"full", ReasonFull},
		{"locked", ReasonRejected},
		{"", ReasonRejected},
	}
	for _, tt := range tests {
		if got := ReasonFromCode(tt.code); got != tt.want {
			t.Errorf("ReasonFromCode(%q) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestJoinError_Is(t *testing.T) {
	err := fmt.Errorf("lobby: %w", &JoinError{Reason: ReasonFull, RoomID: "r1"})

	assert.True(t, errors.Is(err, &JoinError{Reason: ReasonFull}))
	assert.True(t, errors.Is(err, &JoinError{}))
	assert.False(t, errors.Is(err, &JoinError{Reason: ReasonNotFound}))

	var je *JoinError
	assert.True(t, errors.As(err, &je))
	assert.Equal(t, "r1", string(je.RoomID))
}

func TestConnectionError_Unwrap(t *testing.T) {
	inner := errors.New("dial tcp: refused")
	err := &ConnectionError{Op: "dial", URL: "ws://x", Err: inner}
	assert.ErrorIs(t, err, inner)
	assert.Contains(t, err.Error(), "ws://x")
}
