package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/laprank/internal/simulator"
)

const (
	defaultWorkers = 2 // multiplier for runtime.NumCPU()
	defaultTimeout = 30 * time.Second
	raceTimeout    = 10 * time.Minute
)

func main() {
	var (
		baseURL     = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players     = flag.Int("players", simulator.DefaultPlayers, "Number of drivers")
		attempts    = flag.Int("attempts", simulator.DefaultAttempts, "Maximum runs per driver")
		giveUp      = flag.Float64("giveup", simulator.DefaultGiveUpRate, "Share of runs abandoned before the finish")
		mapUID      = flag.String("map", "", "Map uid (default: generated)")
		checkpoints = flag.Int("checkpoints", simulator.DefaultCheckpoints, "Checkpoints per lap including the finish")
		author      = flag.Duration("author", simulator.DefaultAuthorTime, "Author time of the map")
		workers     = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Concurrent drivers")
		timeout     = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		settle      = flag.Duration("settle", simulator.DefaultSettle, "Time allowed for the engine to drain")
		seed        = flag.Uint64("seed", 0, "Race seed (default: random)")
		endMap      = flag.Bool("end", false, "Send map_end after verification")
		logFile     = flag.String("log", "", "Log file (default: race_sim_TIMESTAMP.log)")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
		help        = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		simulator.ShowHelp()
		return
	}
	if *players < 1 || *attempts < 1 || *checkpoints < 2 || *workers < 1 {
		os.Stderr.WriteString("players, attempts and workers must be positive; checkpoints must be at least 2\n")
		os.Exit(2)
	}

	closer, err := simulator.SetupLogging(*logFile, *verbose)
	if err != nil {
		os.Stderr.WriteString("Failed to setup logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, raceTimeout)
	defer cancel()

	config := &simulator.Config{
		BaseURL:     *baseURL,
		Players:     *players,
		Attempts:    *attempts,
		GiveUpRate:  *giveUp,
		MapUID:      *mapUID,
		Checkpoints: *checkpoints,
		AuthorTime:  *author,
		Workers:     *workers,
		Timeout:     *timeout,
		Settle:      *settle,
		Seed:        *seed,
		EndMap:      *endMap,
		Verbose:     *verbose,
	}

	if err := simulator.Run(ctx, config); err != nil {
		os.Stderr.WriteString("Race failed: " + err.Error() + "\n")
		cancel()
		stop()
		_ = closer.Close()
		os.Exit(1) //nolint:gocritic // deferred calls ran above
	}
}
