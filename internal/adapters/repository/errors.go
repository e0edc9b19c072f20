package repository

import "errors"

// Sentinel kinds for leaderboard errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidLimit = errors.New("invalid leaderboard limit")
	ErrInconsistent = errors.New("pending change without matching record")
)
