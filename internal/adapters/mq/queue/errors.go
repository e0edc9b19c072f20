package queue

import "errors"

// Sentinel kinds for enqueue errors.
var (
	ErrFull   = errors.New("event queue full")
	ErrClosed = errors.New("event queue closed")
)
