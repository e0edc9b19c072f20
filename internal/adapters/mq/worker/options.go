package worker

import (
	"time"

	"github.com/okian/laprank/pkg/logger"
)

// Option applies a configuration option to the Worker.
type Option func(*Worker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *Worker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithTaskBuffer sets how many posted tasks may wait for the loop.
func WithTaskBuffer(n int) Option {
	return func(w *Worker) {
		if n > 0 {
			w.taskBuffer = n
		}
	}
}

// WithStatsInterval sets how often runtime metrics are sampled; 0 disables it.
func WithStatsInterval(d time.Duration) Option {
	return func(w *Worker) {
		w.statsInterval = d
	}
}

// WithLogger sets a custom logger for the worker.
func WithLogger(l logger.Logger) Option {
	return func(w *Worker) {
		if l != nil {
			w.logger = l
		}
	}
}
