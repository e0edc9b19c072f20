package repository

// Option applies a configuration option to the Leaderboard.
type Option func(*Leaderboard)

// WithCapacity preallocates room for n records.
func WithCapacity(n int) Option {
	return func(b *Leaderboard) {
		if n > 0 {
			b.slots = make([]slot, 0, n)
		}
	}
}
