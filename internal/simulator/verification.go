package simulator

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/laprank/pkg/logger"
)

// ErrVerification is wrapped by every leaderboard mismatch.
var ErrVerification = errors.New("leaderboard verification failed")

// verifyLeaderboard checks that entries are sorted by time, ranks are
// exactly 1..n and every simulated driver shows their best time. Logins
// that are not part of the race (authority records) are only checked for
// order.
func verifyLeaderboard(ctx context.Context, expected map[string]int, leaderboard []Entry, stats *Stats) error {
	if len(leaderboard) == 0 && len(expected) > 0 {
		return fmt.Errorf("%w: empty leaderboard for %d finishers", ErrVerification, len(expected))
	}

	seen := make(map[string]bool, len(leaderboard))
	for i, e := range leaderboard {
		if e.Rank != i+1 {
			return fmt.Errorf("%w: entry %d (%s) has rank %d", ErrVerification, i, e.Login, e.Rank)
		}
		if i > 0 && e.TimeMs < leaderboard[i-1].TimeMs {
			return fmt.Errorf("%w: %s (%d ms) is ranked below %s (%d ms)",
				ErrVerification, e.Login, e.TimeMs, leaderboard[i-1].Login, leaderboard[i-1].TimeMs)
		}
		if seen[e.Login] {
			return fmt.Errorf("%w: %s appears twice", ErrVerification, e.Login)
		}
		seen[e.Login] = true

		best, ok := expected[e.Login]
		if !ok {
			continue
		}
		if e.TimeMs != best {
			return fmt.Errorf("%w: %s shows %d ms, best run was %d ms", ErrVerification, e.Login, e.TimeMs, best)
		}
		stats.Verified++
	}

	missing := 0
	for login := range expected {
		if !seen[login] {
			missing++
		}
	}
	if missing > 0 {
		// The authority's rank ceiling and the display limit can keep slow drivers off the board.
		logger.Get().Info(ctx, "finishers not on the leaderboard", logger.Int("missing", missing))
	}
	logger.Get().Info(ctx, "leaderboard verified",
		logger.Int("entries", len(leaderboard)),
		logger.Int("verified", stats.Verified))
	return nil
}
