package coordinator

import "errors"

var (
	// ErrNotFound means an object, part or member is absent, or no replica of
	// a part is currently reachable.
	ErrNotFound = errors.New("not found")

	// ErrCapacityExhausted means there are no members to place data on.
	ErrCapacityExhausted = errors.New("no storage nodes available")

	// ErrPartialFailure means an operation could only partially complete.
	ErrPartialFailure = errors.New("partial failure")

	// ErrUnreachable wraps a remote call that errored or timed out.
	ErrUnreachable = errors.New("node unreachable")

	ErrUnknownEvent    = errors.New("unknown event type")
	ErrInvalidArgument = errors.New("invalid argument")
)
