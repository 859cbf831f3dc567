package protocol

import "errors"

// Depth limits to prevent stack overflow attacks via deeply nested structures.
// These limits complement the allocation limits in decoder.go.
const (
	// MaxVNodeDepth limits the maximum nesting depth of VNode trees.
	// 256 levels is sufficient for any reasonable document.
	MaxVNodeDepth = 256
)

// Structural decoding errors.
var (
	ErrMaxDepthExceeded = errors.New("protocol: maximum nesting depth exceeded")
	ErrInvalidNodeKind  = errors.New("protocol: invalid node kind")
	ErrInvalidPatchOp   = errors.New("protocol: invalid patch op")
)

// checkDepth is a convenience function for one-time depth checks.
func checkDepth(current, max int) error {
	if current > max {
		return ErrMaxDepthExceeded
	}
	return nil
}
