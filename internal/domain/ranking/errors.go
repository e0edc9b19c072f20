package ranking

import "errors"

// Sentinel kinds for classification errors. None of them is fatal; the
// caller logs and moves on.
var (
	ErrRankDataUnavailable = errors.New("rank data unavailable")
	ErrRankRejected        = errors.New("prospective rank exceeds rank ceiling")
	ErrMapNotRankable      = errors.New("map not rankable")
)
