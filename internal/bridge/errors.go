package bridge

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout is returned by Call when no matching reply arrived in time.
	ErrTimeout = errors.New("bridge: request timeout")
	// ErrClosed is returned when the transport shut down mid-call.
	ErrClosed = errors.New("bridge: transport closed")
)

// RemoteError is a reply with ok=false.
type RemoteError struct {
	Action  string
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bridge: %s failed: %s", e.Action, e.Message)
}
