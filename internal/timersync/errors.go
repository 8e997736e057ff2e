package timersync

import (
	"errors"
	"fmt"
)

// ErrTransport matches any TransportError.
var ErrTransport = errors.New("timer transport failure")

// TransportError reports a failed dial, read or write. The client recovers
// from it by reconnecting.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("timer transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func (e *TransportError) Is(target error) bool {
	return target == ErrTransport
}
