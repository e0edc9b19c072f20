package service

import "errors"

var (
	// ErrNotStarted is returned by Enqueue before Start or after Stop.
	ErrNotStarted = errors.New("service not started")
	// ErrNoMap is returned when a map-begin event carries no map.
	ErrNoMap = errors.New("map begin without map info")
)
