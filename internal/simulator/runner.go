package simulator

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/laprank/pkg/logger"
)

// Run executes a complete simulated race against the service.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now()}
	l := logger.Get().Named("simulator")

	l.Info(ctx, "starting race simulation",
		logger.String("baseURL", config.BaseURL),
		logger.Int("players", config.Players),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	client := newHTTPClient(config.BaseURL, config.Timeout)
	if err := client.Get(ctx, "/healthz", nil); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	race := generateRace(ctx, config, stats)
	cnt := &counters{}

	m := race.Map
	if err := sendOne(ctx, client, newEvent(KindMapBegin, "", func(e *Event) { e.Map = &m }), cnt); err != nil {
		return fmt.Errorf("map begin: %w", err)
	}

	// Finishes only count once the authority has answered for the driver.
	connectDrivers(ctx, config, client, race, cnt)
	if err := waitDrained(ctx, client, config.Settle); err != nil {
		return fmt.Errorf("waiting for the engine: %w", err)
	}

	driveRace(ctx, config, client, race, cnt)
	cnt.store(stats)
	if stats.EventsFailed > 0 {
		return fmt.Errorf("%d of %d events failed", stats.EventsFailed, stats.EventsSubmitted)
	}

	l.Info(ctx, "waiting for events to be processed")
	if err := waitDrained(ctx, client, config.Settle); err != nil {
		return fmt.Errorf("waiting for the engine: %w", err)
	}

	leaderboard, err := getLeaderboard(ctx, client, leaderboardMax)
	if err != nil {
		return fmt.Errorf("leaderboard retrieval failed: %w", err)
	}
	stats.LeaderboardEntries = len(leaderboard)

	if err := verifyLeaderboard(ctx, race.Expected(), leaderboard, stats); err != nil {
		return err
	}

	if config.EndMap {
		if err := sendOne(ctx, client, newEvent(KindMapEnd, "", nil), cnt); err != nil {
			return fmt.Errorf("map end: %w", err)
		}
		cnt.store(stats)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, l, stats)
	return nil
}

func displayFinalStats(ctx context.Context, l logger.Logger, stats *Stats) {
	var eventsPerSecond float64
	if stats.Duration > 0 {
		eventsPerSecond = float64(stats.EventsSubmitted) / stats.Duration.Seconds()
	}

	l.Info(ctx, "final statistics",
		logger.Int("drivers", stats.Drivers),
		logger.Int("runs", stats.Runs),
		logger.Int("giveUps", stats.GiveUps),
		logger.Int("eventsSubmitted", stats.EventsSubmitted),
		logger.Int("eventsSuccessful", stats.EventsSuccessful),
		logger.Int("eventsDuplicate", stats.EventsDuplicate),
		logger.Int("eventsFailed", stats.EventsFailed),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Int("verified", stats.Verified),
		logger.Duration("duration", stats.Duration),
		logger.Float64("eventsPerSecond", eventsPerSecond))
}
