// Package replay attaches replay evidence to accepted changes before they
// are sent to the authority, and undoes the changes it could not prove.
package replay

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/okian/laprank/internal/adapters/repository"
	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/pkg/logger"
	"github.com/okian/laprank/pkg/metrics"
	"golang.org/x/time/rate"
)

const (
	defaultGhostDir  = "laprank"
	defaultPerSecond = 5
	defaultBurst     = 1
	replaysDir       = "Replays"
)

// Host is the part of the game server the pipeline needs.
type Host interface {
	// SaveTopReplay asks the server to write login's best ghost to
	// Replays/<file>.
	SaveTopReplay(ctx context.Context, login, file string) error
	// FetchValidationReplay returns the replay proving login's last finish.
	FetchValidationReplay(ctx context.Context, login string) ([]byte, error)
	// ReadFile reads a file relative to the server data directory.
	ReadFile(ctx context.Context, name string) ([]byte, error)
}

// RankReader tells the pipeline where a login currently stands.
type RankReader interface {
	Get(login string) (model.Record, bool)
}

// Queue is what Reconcile needs from the pending queue.
type Queue interface {
	Attach(login string, ticket uint64, top, validation []byte) bool
	Rollback(board repository.Board, login string, ticket uint64) bool
}

// Job is one queued change to enrich.
type Job struct {
	Change model.PendingChange
	Ticket uint64
}

// Jobs builds the job list of a drain from the queued items. Enriched items
// are included; the top replay follows rank 1.
func Jobs(items []repository.PendingItem) []Job {
	jobs := make([]Job, len(items))
	for i := range items {
		jobs[i] = Job{Change: items[i].Change, Ticket: items[i].Ticket}
	}
	return jobs
}

// Outcome is the result of one job. Err wraps ErrEnrichment on failure.
// Top is the final top replay (nil when the record is not rank 1);
// Validation is nil when the change already had one.
type Outcome struct {
	Login      string
	Ticket     uint64
	Top        []byte
	Validation []byte
	Err        error
}

// Pipeline fetches replays one job at a time.
type Pipeline struct {
	host     Host
	limiter  *rate.Limiter
	ghostDir string
	fileName func(login string, bestTimeMs int) string
	logger   logger.Logger
}

// NewPipeline builds a pipeline over the game host. Its limiter is shared
// by every drain.
func NewPipeline(host Host, opts ...Option) *Pipeline {
	p := &Pipeline{
		host:     host,
		limiter:  rate.NewLimiter(rate.Limit(defaultPerSecond), defaultBurst),
		ghostDir: defaultGhostDir,
		fileName: ghostFileName,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.Get().Named("replay")
	}
	return p
}

func ghostFileName(_ string, bestTimeMs int) string {
	return fmt.Sprintf("Ghost.%s_%d.Replay.Gbx", uuid.NewString(), bestTimeMs)
}

// Drain enriches jobs strictly in order and calls report after each one;
// board is consulted for the rank of each job when it starts. It returns
// early only when ctx is cancelled; the remaining jobs are not reported.
func (p *Pipeline) Drain(ctx context.Context, board RankReader, jobs []Job, report func(Outcome)) error {
	start := time.Now()
	defer func() {
		metrics.RecordDrainDuration(float64(time.Since(start).Milliseconds()))
	}()

	for i := range jobs {
		if err := ctx.Err(); err != nil {
			return err
		}
		out := p.enrich(ctx, board, &jobs[i])
		if out.Err != nil {
			metrics.RecordEnrichmentFailure()
			p.logger.Warn(ctx, "enrichment failed",
				logger.String("login", out.Login),
				logger.Int64("ticket", int64(out.Ticket)),
				logger.Error(out.Err),
			)
		}
		report(out)
	}
	return nil
}

func (p *Pipeline) enrich(ctx context.Context, board RankReader, job *Job) Outcome {
	start := time.Now()
	defer func() {
		metrics.RecordEnrichmentLatency(float64(time.Since(start).Milliseconds()))
	}()

	c := &job.Change
	out := Outcome{Login: c.Login, Ticket: job.Ticket}

	rec, ok := board.Get(c.Login)
	if ok && rec.Rank == 1 && rec.BestTimeMs == c.BestTimeMs {
		if c.TopReplay != nil {
			out.Top = c.TopReplay
		} else {
			top, err := p.topReplay(ctx, c)
			if err != nil {
				out.Err = err
				return out
			}
			out.Top = top
		}
	}

	if c.ValidationReplay == nil {
		if err := p.limiter.Wait(ctx); err != nil {
			out.Err = fmt.Errorf("%w: %w", ErrEnrichment, err)
			return out
		}
		v, err := p.host.FetchValidationReplay(ctx, c.Login)
		if err != nil {
			out.Err = fmt.Errorf("%w: validation replay of %s: %w", ErrEnrichment, c.Login, err)
			return out
		}
		if len(v) == 0 {
			out.Err = fmt.Errorf("%w: empty validation replay of %s", ErrEnrichment, c.Login)
			return out
		}
		out.Validation = v
	}
	return out
}

func (p *Pipeline) topReplay(ctx context.Context, c *model.PendingChange) ([]byte, error) {
	file := path.Join(p.ghostDir, p.fileName(c.Login, c.BestTimeMs))

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEnrichment, err)
	}
	if err := p.host.SaveTopReplay(ctx, c.Login, file); err != nil {
		return nil, fmt.Errorf("%w: save top replay of %s: %w", ErrEnrichment, c.Login, err)
	}
	data, err := p.host.ReadFile(ctx, path.Join(replaysDir, file))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrEnrichment, file, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty top replay %s", ErrEnrichment, file)
	}
	return data, nil
}

// Reconcile applies an outcome on the engine loop: success attaches the
// replays to the queued change, failure rolls it back. It reports whether
// the leaderboard changed.
func Reconcile(board repository.Board, queue Queue, out Outcome) bool { //nolint:gocritic // hugeParam: outcome travels by value
	if out.Err == nil {
		queue.Attach(out.Login, out.Ticket, out.Top, out.Validation)
		return false
	}
	if !queue.Rollback(board, out.Login, out.Ticket) {
		return false
	}
	metrics.RecordRollback()
	return true
}
