package keyframe

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidReplay matches any InvalidReplayError.
	ErrInvalidReplay = errors.New("invalid replay")
	// ErrCapacity matches any CapacityError.
	ErrCapacity = errors.New("too many tracked nodes")
)

// InvalidReplayError rejects a malformed keyframe sequence.
type InvalidReplayError struct {
	Reason string
}

func (e *InvalidReplayError) Error() string {
	return fmt.Sprintf("invalid replay: %s", e.Reason)
}

func (e *InvalidReplayError) Is(target error) bool {
	return target == ErrInvalidReplay
}

// CapacityError is returned when a recording would track more nodes than
// a one-byte index can address.
type CapacityError struct {
	Nodes int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("too many tracked nodes: %d (max %d)", e.Nodes, MaxNodes)
}

func (e *CapacityError) Is(target error) bool {
	return target == ErrCapacity
}
