package authority

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/okian/laprank/pkg/logger"
)

// Option applies a configuration option to the Session.
type Option func(*Session)

// WithSnapshotInterval sets how often snapshots are pushed while a map is active.
func WithSnapshotInterval(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.interval = d
		}
	}
}

// WithCallTimeout bounds a single authority call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithFlushRetries sets how many times a flush retries opening the session
// before it gives up.
func WithFlushRetries(n uint64) Option {
	return func(s *Session) {
		s.flushRetries = n
	}
}

// WithBackOff sets the retry policy of Flush.
func WithBackOff(fn func() backoff.BackOff) Option {
	return func(s *Session) {
		if fn != nil {
			s.newBackOff = fn
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}
