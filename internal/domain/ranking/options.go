package ranking

import "github.com/okian/laprank/pkg/logger"

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithAuthorTimeFloor sets the minimum author time of a rankable map.
func WithAuthorTimeFloor(ms int) Option {
	return func(e *Engine) {
		if ms > 0 {
			e.authorTimeFloorMs = ms
		}
	}
}

// WithMinFinish sets the plausibility floor for finish times.
func WithMinFinish(ms int) Option {
	return func(e *Engine) {
		if ms > 0 {
			e.minFinishMs = ms
		}
	}
}

// WithMinCheckpoints sets the minimum checkpoint count of a rankable map.
func WithMinCheckpoints(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.minCheckpoints = n
		}
	}
}

// WithDisplayLimit sets the last rank announced to everyone.
func WithDisplayLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.displayLimit = n
		}
	}
}

// WithLabel names the authority in messages, e.g. "Dedimania" or "Local".
func WithLabel(label string) Option {
	return func(e *Engine) {
		if label != "" {
			e.label = label
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}
