// Package ranking classifies finished runs against the current leaderboard
// and applies the accepted ones.
package ranking

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/laprank/internal/adapters/repository"
	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/pkg/logger"
	"github.com/okian/laprank/pkg/metrics"
)

// Default ranking rules.
const (
	defaultAuthorTimeFloorMs = 6200
	defaultMinFinishMs       = 6000
	defaultMinCheckpoints    = 2
	defaultDisplayLimit      = 50
	defaultLabel             = "Dedimania"
)

// State of the engine for the current map.
type State int

// Engine states.
const (
	StateInactive State = iota
	StateActive
)

func (s State) String() string {
	if s == StateActive {
		return "active"
	}
	return "inactive"
}

// Kind classifies a finish.
type Kind string

// Finish classifications.
const (
	KindNew      Kind = "new"
	KindImproved Kind = "improved"
	KindGained   Kind = "gained"
	KindEqual    Kind = "equal"
	KindIgnored  Kind = "ignored"
)

// RunSource exposes the open runs.
type RunSource interface {
	Current(login string) ([]int, bool)
}

// RankSource exposes the rank ceilings reported by the authority.
type RankSource interface {
	ServerMaxRank() string
	Player(login string) (model.PlayerInfo, bool)
}

// Pending receives accepted changes.
type Pending interface {
	Put(change model.PendingChange, undo repository.Change) uint64
}

// Result is the outcome of Submit.
type Result struct {
	Kind         Kind
	Record       model.Record
	Ticket       uint64
	Announcement *Announcement
}

// Accepted reports whether the leaderboard changed.
func (r *Result) Accepted() bool {
	return r.Kind != KindIgnored && r.Kind != ""
}

// Engine is the per-map classification state machine.
type Engine struct {
	state  State
	mapCtx model.MapContext

	board   repository.Board
	runs    RunSource
	ranks   RankSource
	pending Pending

	authorTimeFloorMs int
	minFinishMs       int
	minCheckpoints    int
	displayLimit      int
	label             string

	logger logger.Logger
}

// NewEngine builds an inactive engine over its collaborators.
func NewEngine(board repository.Board, runs RunSource, ranks RankSource, pending Pending, opts ...Option) *Engine {
	e := &Engine{
		board:             board,
		runs:              runs,
		ranks:             ranks,
		pending:           pending,
		authorTimeFloorMs: defaultAuthorTimeFloorMs,
		minFinishMs:       defaultMinFinishMs,
		minCheckpoints:    defaultMinCheckpoints,
		displayLimit:      defaultDisplayLimit,
		label:             defaultLabel,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = logger.Get().Named("ranking")
	}
	return e
}

// MapCheck decides whether the map is rankable and moves the engine to
// Active or Inactive accordingly.
func (e *Engine) MapCheck(ctx context.Context, m model.MapContext) (model.MapContext, error) {
	m.Active = m.AuthorTimeMs >= e.authorTimeFloorMs && m.CheckpointCount >= e.minCheckpoints
	e.mapCtx = m
	metrics.UpdateMapActive(m.Active)

	if !m.Active {
		e.state = StateInactive
		e.logger.Info(ctx, "map not rankable",
			logger.String("map", m.MapID),
			logger.Int("authorTimeMs", m.AuthorTimeMs),
			logger.Int("checkpoints", m.CheckpointCount),
		)
		return m, fmt.Errorf("%w: %s", ErrMapNotRankable, m.MapID)
	}
	e.state = StateActive
	return m, nil
}

// MapEnd deactivates the engine.
func (e *Engine) MapEnd() {
	e.state = StateInactive
	e.mapCtx.Active = false
	metrics.UpdateMapActive(false)
}

// State returns the current state.
func (e *Engine) State() State { return e.state }

// Map returns the current map context.
func (e *Engine) Map() model.MapContext { return e.mapCtx }

// Label returns the authority name used in messages.
func (e *Engine) Label() string { return e.label }

// Submit classifies a finish and, when accepted, updates the leaderboard and
// queues a pending change. Slower or implausible finishes return KindIgnored
// with a nil error. A finish equal to the player's record keeps their current
// rank instead of taking the place after the equal times.
func (e *Engine) Submit(ctx context.Context, login string, finishMs int) (Result, error) {
	if e.state != StateActive {
		metrics.RecordRejection("inactive")
		return Result{Kind: KindIgnored}, nil
	}
	if finishMs < e.minFinishMs {
		metrics.RecordRejection("below_floor")
		return Result{Kind: KindIgnored}, nil
	}
	run, ok := e.runs.Current(login)
	if !ok {
		metrics.RecordRejection("no_run")
		return Result{Kind: KindIgnored}, nil
	}

	prev, hadPrev := e.board.Get(login)
	kind := KindNew
	if hadPrev {
		switch {
		case prev.BestTimeMs > finishMs:
			kind = KindImproved
		case prev.BestTimeMs == finishMs:
			kind = KindEqual
		default:
			metrics.RecordFinish(string(KindIgnored))
			return Result{Kind: KindIgnored}, nil
		}
	}

	if p, ok := e.ranks.Player(login); ok && p.Banned {
		metrics.RecordRejection("banned")
		return Result{Kind: KindIgnored}, nil
	}

	ceiling, err := e.ceiling(login)
	if err != nil {
		metrics.RecordRejection("rank_unavailable")
		e.logger.Warn(ctx, "rank ceiling unavailable", logger.String("login", login), logger.Error(err))
		return Result{Kind: KindIgnored}, err
	}

	rank := e.board.ProspectiveRank(finishMs)
	if kind == KindEqual {
		// An equal drive keeps the player's place.
		rank = prev.Rank
	}
	if rank > ceiling {
		metrics.RecordRejection("rank_ceiling")
		return Result{Kind: KindIgnored}, fmt.Errorf("%w: rank %d > %d for %s", ErrRankRejected, rank, ceiling, login)
	}

	nick := login
	if p, ok := e.ranks.Player(login); ok && p.NickName != "" {
		nick = p.NickName
	}

	change := e.board.Upsert(model.Record{
		Login:       login,
		NickName:    nick,
		BestTimeMs:  finishMs,
		MaxRank:     ceiling,
		Checkpoints: run,
		Vote:        -1,
	}, kind == KindEqual)

	ticket := e.pending.Put(model.PendingChange{
		Login:       login,
		NickName:    nick,
		BestTimeMs:  finishMs,
		Checkpoints: run,
	}, change)

	if kind == KindImproved && change.Record.Rank < prev.Rank {
		kind = KindGained
	}
	metrics.RecordFinish(string(kind))

	res := Result{Kind: kind, Record: change.Record, Ticket: ticket}
	res.Announcement = e.announce(kind, &change.Record, prev, hadPrev)

	e.logger.Debug(ctx, "finish accepted",
		logger.String("login", login),
		logger.String("kind", string(kind)),
		logger.Int("rank", change.Record.Rank),
		logger.Int("timeMs", finishMs),
		logger.Int("ceiling", ceiling),
	)
	return res, nil
}

// Admit reports whether login may still hold a finish of finishMs on the
// board as it stands: the player is not banned and the prospective rank is
// within the ceiling, capped at limit when limit is positive.
func (e *Engine) Admit(login string, finishMs, limit int) error {
	if p, ok := e.ranks.Player(login); ok && p.Banned {
		metrics.RecordRejection("banned")
		return fmt.Errorf("%w: %s is banned", ErrRankRejected, login)
	}
	ceiling, err := e.ceiling(login)
	if err != nil {
		metrics.RecordRejection("rank_unavailable")
		return err
	}
	if limit > 0 {
		ceiling = min(ceiling, limit)
	}
	if rank := e.board.ProspectiveRank(finishMs); rank > ceiling {
		metrics.RecordRejection("rank_ceiling")
		return fmt.Errorf("%w: rank %d > %d for %s", ErrRankRejected, rank, ceiling, login)
	}
	return nil
}

// ceiling is max(serverMaxRank, playerMaxRank).
func (e *Engine) ceiling(login string) (int, error) {
	server, err := parseRank(e.ranks.ServerMaxRank())
	if err != nil {
		return 0, fmt.Errorf("%w: server max rank: %w", ErrRankDataUnavailable, err)
	}
	p, ok := e.ranks.Player(login)
	if !ok {
		return 0, fmt.Errorf("%w: no authority data for %s", ErrRankDataUnavailable, login)
	}
	player, err := parseRank(p.MaxRank)
	if err != nil {
		return 0, fmt.Errorf("%w: player max rank: %w", ErrRankDataUnavailable, err)
	}
	return max(server, player), nil
}

func parseRank(v string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(v))
}
