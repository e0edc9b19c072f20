package authority

import "errors"

var (
	// ErrSyncFailure wraps every error returned by the authority. The local
	// leaderboard stays authoritative until the next successful call.
	ErrSyncFailure = errors.New("authority sync failure")
	// ErrMissingCredentials is fatal at startup.
	ErrMissingCredentials = errors.New("authority credentials missing")
)
