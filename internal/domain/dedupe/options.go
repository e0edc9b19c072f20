package dedupe

// Option applies a configuration option to the deduper.
type Option func(*fifo)

// WithMaxSize sets how many IDs are remembered; non-positive values keep the default.
func WithMaxSize(maxSize int) Option {
	return func(d *fifo) {
		if maxSize > 0 {
			d.maxSize = maxSize
		}
	}
}
