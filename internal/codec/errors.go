package codec

import (
	"errors"
	"fmt"
)

// ErrFormat matches any FormatError.
var ErrFormat = errors.New("replay format error")

// FormatError reports a corrupt or truncated replay stream.
type FormatError struct {
	Offset int
	Reason string
	Err    error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("replay format error at byte %d: %s", e.Offset, e.Reason)
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

func (e *FormatError) Unwrap() error {
	return e.Err
}
