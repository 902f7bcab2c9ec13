package core

import (
	"errors"
	"fmt"

	"github.com/dkeye/Lounge/internal/domain"
)

// ErrSuperseded is returned to a join whose result arrived after a newer
// join was started.
var ErrSuperseded = errors.New("join superseded by a newer attempt")

// ConnectionError means the lobby or room endpoint could not be reached
// or the link broke before a session was established.
type ConnectionError struct {
	Op  string
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

type JoinReason string

const (
	ReasonNotFound    JoinReason = "not_found"
	ReasonBadPassword JoinReason = "bad_password"
	ReasonFull        JoinReason = "full"
	ReasonRejected    JoinReason = "rejected"
	ReasonTransport   JoinReason = "transport"
	ReasonSuperseded  JoinReason = "superseded"
)

// ReasonFromCode maps a server error code onto a join reason.
// Unknown codes count as a rejection.
func ReasonFromCode(code string) JoinReason {
	switch r := JoinReason(code); r {
	case ReasonNotFound, ReasonBadPassword, ReasonFull:
		return r
	default:
		return ReasonRejected
	}
}

type JoinError struct {
	Reason JoinReason
	RoomID domain.RoomID
	Err    error
}

func (e *JoinError) Error() string {
	msg := fmt.Sprintf("join room %q: %s", e.RoomID, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *JoinError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, &JoinError{Reason: ReasonFull}) match on reason.
func (e *JoinError) Is(target error) bool {
	t, ok := target.(*JoinError)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

type CreationError struct {
	Name string
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("create room %q: %v", e.Name, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }
