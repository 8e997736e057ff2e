package recorder

import (
	internalrecorder "github.com/SmitUplenchwar2687/splitghost/internal/recorder"
	"github.com/SmitUplenchwar2687/splitghost/internal/world"
)

// Recorder captures keyframes of a tracked hierarchy.
type Recorder = internalrecorder.Recorder

// SampleError reports a tracked node that could not be sampled.
type SampleError = internalrecorder.SampleError

// ErrPurgeUnderflow is returned by PurgeAfter when no keyframe is old
// enough to keep.
var ErrPurgeUnderflow = internalrecorder.ErrPurgeUnderflow

// New creates a recorder and captures the initial sync keyframe.
func New(root world.Root, nodes []world.Sampler) (*Recorder, error) {
	return internalrecorder.New(root, nodes)
}
