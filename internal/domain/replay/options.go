package replay

import (
	"github.com/okian/laprank/pkg/logger"
	"golang.org/x/time/rate"
)

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithRate paces host calls to perSecond with the given burst.
func WithRate(perSecond float64, burst int) Option {
	return func(p *Pipeline) {
		if perSecond > 0 && burst > 0 {
			p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// WithGhostDir sets the directory, relative to Replays/, where top replays are saved.
func WithGhostDir(dir string) Option {
	return func(p *Pipeline) {
		if dir != "" {
			p.ghostDir = dir
		}
	}
}

// WithFileName overrides how top replay file names are generated.
func WithFileName(fn func(login string, bestTimeMs int) string) Option {
	return func(p *Pipeline) {
		if fn != nil {
			p.fileName = fn
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}
