package simulator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/okian/laprank/pkg/logger"
)

// Pace of a driver relative to the author time.
const (
	paceMin    = 0.92
	paceRange  = 0.5
	runJitter  = 0.04
	splitNoise = 0.05
)

// Run is one attempt: the checkpoint times followed by the finish time.
// A given-up run has a zero finish.
type Run struct {
	Splits []int
	Finish int
}

// Driver is one simulated player.
type Driver struct {
	Login    string
	NickName string
	Runs     []Run
}

// Best returns the fastest completed run, or 0 when none finished.
func (d *Driver) Best() int {
	best := 0
	for _, r := range d.Runs {
		if r.Finish > 0 && (best == 0 || r.Finish < best) {
			best = r.Finish
		}
	}
	return best
}

// Race is a generated map with its drivers.
type Race struct {
	Map     MapInfo
	Drivers []Driver
}

// Expected returns each driver's best time, skipping drivers that never finished.
func (r *Race) Expected() map[string]int {
	out := make(map[string]int, len(r.Drivers))
	for i := range r.Drivers {
		if best := r.Drivers[i].Best(); best > 0 {
			out[r.Drivers[i].Login] = best
		}
	}
	return out
}

// generateRace builds a reproducible race from config.Seed.
func generateRace(ctx context.Context, config *Config, stats *Stats) *Race {
	seed := config.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano()) //nolint:gosec // any seed will do
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // reproducible races, not secrets

	uid := config.MapUID
	if uid == "" {
		uid = "sim-" + strconv.FormatUint(seed, 36)
	}
	authorMs := int(config.AuthorTime / time.Millisecond)
	race := &Race{
		Map: MapInfo{
			UID:          uid,
			Name:         "Simulated " + uid,
			Environment:  "Stadium",
			Author:       "simulator",
			AuthorTimeMs: authorMs,
			Checkpoints:  config.Checkpoints,
			Laps:         1,
			Mode:         "TA",
		},
		Drivers: make([]Driver, config.Players),
	}

	for i := range race.Drivers {
		d := &race.Drivers[i]
		d.Login = fmt.Sprintf("sim%03d", i)
		d.NickName = "Driver " + strconv.Itoa(i)

		pace := paceMin + rng.Float64()*paceRange
		attempts := 1 + rng.IntN(config.Attempts)
		for range attempts {
			run := generateRun(rng, float64(authorMs)*pace, config.Checkpoints)
			if rng.Float64() < config.GiveUpRate {
				run.Finish = 0
				stats.GiveUps++
			}
			d.Runs = append(d.Runs, run)
			stats.Runs++
		}
	}
	stats.Drivers = len(race.Drivers)

	logger.Get().Info(ctx, "generated race",
		logger.String("map", uid),
		logger.Int64("seed", int64(seed)), //nolint:gosec // logged for replay only
		logger.Int("drivers", stats.Drivers),
		logger.Int("runs", stats.Runs),
		logger.Int("giveUps", stats.GiveUps))
	return race
}

// generateRun spreads a finish time near target over checkpoints-1 splits.
func generateRun(rng *rand.Rand, target float64, checkpoints int) Run {
	finish := int(target * (1 - runJitter + 2*runJitter*rng.Float64()))
	splits := make([]int, checkpoints-1)
	step := float64(finish) / float64(checkpoints)
	prev := 0
	for i := range splits {
		t := int(step*float64(i+1) + step*splitNoise*(2*rng.Float64()-1))
		if t <= prev {
			t = prev + 1
		}
		splits[i] = t
		prev = t
	}
	if finish <= prev {
		finish = prev + 1
	}
	return Run{Splits: splits, Finish: finish}
}

// connectEvent announces the driver on the server.
func connectEvent(d *Driver) Event {
	return newEvent(KindConnect, d.Login, func(e *Event) { e.NickName = d.NickName })
}

// runEvents returns the ordered checkpoint and finish events of a driver.
func runEvents(d *Driver) []Event {
	var events []Event
	for _, r := range d.Runs {
		for i, t := range r.Splits {
			events = append(events, newEvent(KindCheckpoint, d.Login, func(e *Event) {
				e.CheckpointIndex = i
				e.TimeMs = t
			}))
		}
		events = append(events, newEvent(KindFinish, d.Login, func(e *Event) { e.TimeMs = r.Finish }))
	}
	return events
}

func newEvent(kind, login string, fill func(*Event)) Event {
	e := Event{
		EventID: uuid.NewString(),
		Kind:    kind,
		Login:   login,
		TS:      time.Now().UTC().Format(time.RFC3339),
	}
	if fill != nil {
		fill(&e)
	}
	return e
}
