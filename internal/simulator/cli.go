package simulator

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/okian/laprank/pkg/logger"
)

const logFilePermission = 0o600

// SetupLogging sends log output to stdout and to logFile. An empty logFile
// gets a timestamped name.
func SetupLogging(logFile string, verbose bool) (io.Closer, error) {
	if logFile == "" {
		logFile = "race_sim_" + time.Now().Format("20060102_150405") + ".log"
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	if err := logger.Init(logger.WithWriter(io.MultiWriter(os.Stdout, file))); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if verbose {
		_ = logger.SetLevelString("debug")
	}
	return file, nil
}

// ShowHelp prints usage information for the race simulator.
func ShowHelp() {
	os.Stdout.WriteString(`laprank race simulator
======================

Posts a synthetic race (map begin, connects, checkpoints, finishes) to a
running engine and checks that the leaderboard is sorted with exact ranks
and each driver's best time.

Usage:
  race-sim [options]

Options:
  -url string          Base URL of the service (default "http://localhost:9080")
  -players int         Number of drivers (default 40)
  -attempts int        Maximum runs per driver (default 3)
  -giveup float        Share of runs abandoned before the finish (default 0.15)
  -map string          Map uid (default: generated)
  -checkpoints int     Checkpoints per lap including the finish (default 5)
  -author duration     Author time of the map (default 45s)
  -workers int         Concurrent drivers (default CPU cores * 2)
  -timeout duration    HTTP request timeout (default 30s)
  -settle duration     Time allowed for the engine to drain (default 5s)
  -seed uint           Race seed for reproducible runs (default: random)
  -end                 Send map_end after verification
  -log string          Log file (default: race_sim_TIMESTAMP.log)
  -verbose             Enable verbose logging
  -help                Show this help message
`)
}
