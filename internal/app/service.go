// Package service runs the ranking engine: it owns the event loop, keeps the
// per-map leaderboard and talks to the authority and the game host.
package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/laprank/internal/adapters/authority"
	eventqueue "github.com/okian/laprank/internal/adapters/mq/queue"
	"github.com/okian/laprank/internal/adapters/mq/worker"
	"github.com/okian/laprank/internal/adapters/repository"
	"github.com/okian/laprank/internal/domain/dedupe"
	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/internal/domain/players"
	"github.com/okian/laprank/internal/domain/ranking"
	"github.com/okian/laprank/internal/domain/replay"
	"github.com/okian/laprank/internal/domain/runs"
	"github.com/okian/laprank/internal/domain/types"
	"github.com/okian/laprank/internal/domain/window"
	"github.com/okian/laprank/pkg/logger"
	"github.com/okian/laprank/pkg/metrics"
)

const (
	defaultQueueSize    = 10_000
	defaultDedupeSize   = 50_000
	defaultNoteBuffer   = 1024
	defaultWindowSize   = 16
	defaultWindowTop    = 3
	defaultRecordLimit  = 100
	defaultSummaryCount = 5
	stopTimeout         = 10 * time.Second
)

// Authority is the synchronization session with the ranking authority.
type Authority interface {
	FetchRecords(ctx context.Context, m *model.MapInfo, snap *model.Snapshot) (authority.RecordSet, error)
	StartSnapshots(m model.MapInfo, provider func() model.Snapshot)
	StopSnapshots()
	Flush(ctx context.Context, m *model.MapInfo, changes []model.PendingChange) error
	PlayerConnect(ctx context.Context, p *model.PlayerInfo) (model.PlayerInfo, error)
	PlayerDisconnect(ctx context.Context, login string) error
}

// mapState is everything that belongs to one played map. A drain or flush
// that outlives its map keeps working on its own state.
type mapState struct {
	gen     uint64
	info    model.MapInfo
	board   *repository.Leaderboard
	pending *repository.PendingQueue
	engine  *ranking.Engine

	// loop-owned
	dirty      bool
	ending     bool
	endDrained bool
	cancel     context.CancelFunc
}

// Service implements the API dependencies for the ranking engine.
type Service struct {
	mu sync.RWMutex

	authority Authority
	host      replay.Host
	sink      Sink

	// Core components
	deduper  dedupe.Deduper
	queue    *eventqueue.Queue
	worker   *worker.Worker
	pipeline *replay.Pipeline
	runs     *runs.Tracker
	players  *players.Registry
	notes    *notifier

	// Loop state
	cur     *mapState
	closing []*mapState
	drainer *mapState
	gen     uint64

	view     atomic.Pointer[mapState]
	draining atomic.Bool

	// Configuration
	queueSize      int
	dedupeSize     int
	noteBuffer     int
	rankingOpts    []ranking.Option
	replayOpts     []replay.Option
	windowSize     int
	windowTop      int
	recordLimit    int
	summaryCount   int
	checkpointDiff bool
	server         model.ServerInfo

	// State
	started bool
	runCtx  context.Context
	cancel  context.CancelFunc
	bg      sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service. auth and host may not be nil; sink receives the
// chat lines and, when it implements WindowRenderer, the live windows.
func New(auth Authority, host replay.Host, sink Sink, opts ...Option) *Service {
	s := &Service{
		authority:    auth,
		host:         host,
		sink:         sink,
		queueSize:    defaultQueueSize,
		dedupeSize:   defaultDedupeSize,
		noteBuffer:   defaultNoteBuffer,
		windowSize:   defaultWindowSize,
		windowTop:    defaultWindowTop,
		recordLimit:  defaultRecordLimit,
		summaryCount: defaultSummaryCount,
		runs:         runs.NewTracker(),
		players:      players.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.pipeline = replay.NewPipeline(host, s.replayOpts...)
	s.cur = s.newMapState(model.MapInfo{})
	s.view.Store(s.cur)
	return s
}

func (s *Service) newMapState(m model.MapInfo) *mapState { //nolint:gocritic // hugeParam: copied once per map
	board := repository.NewLeaderboard()
	pending := repository.NewPendingQueue()
	return &mapState{
		gen:     s.gen,
		info:    m,
		board:   board,
		pending: pending,
		engine:  ranking.NewEngine(board, s.runs, s.players, pending, s.rankingOpts...),
	}
}

// Start creates the event queue and runs the loop until Stop or until ctx is
// done.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting ranking service...")

	s.runCtx, s.cancel = context.WithCancel(ctx)
	s.queue = eventqueue.New(eventqueue.WithCapacity(s.queueSize))
	s.worker = worker.New(s.queue, s, worker.WithName("engine"))
	s.notes = newNotifier(s.sink, s.noteBuffer, s.logger)

	go s.worker.Run(s.runCtx)
	s.goAsync(s.notes.run)

	s.started = true
	s.logger.Info(ctx, "ranking service started",
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("windowSize", s.windowSize),
	)
	return nil
}

// Stop drains the queued events and shuts the loop down. Changes not yet
// flushed are dropped.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	s.logger.Info(ctx, "stopping ranking service...")

	s.authority.StopSnapshots()
	_ = s.queue.Close()
	select {
	case <-s.worker.Done():
	case <-ctx.Done():
		s.logger.Warn(ctx, "event backlog not drained before stop", logger.Int("queued", s.queue.Len()))
	}
	_ = s.worker.Shutdown(ctx)
	if n := s.view.Load().pending.Len(); n > 0 {
		s.logger.Warn(ctx, "stopping with unflushed changes", logger.Int("pending", n))
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.bg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn(ctx, "background work still running at stop")
	}

	s.started = false
	s.logger.Info(ctx, "ranking service stopped")
}

// goAsync runs fn in a tracked goroutine bound to the service lifetime.
func (s *Service) goAsync(fn func(ctx context.Context)) {
	ctx := s.runCtx
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn(ctx)
	}()
}

// post schedules fn on the event loop.
func (s *Service) post(ctx context.Context, fn worker.Task) error {
	return s.worker.Post(ctx, fn)
}

// postWait schedules fn on the event loop and waits for it to run.
func (s *Service) postWait(ctx context.Context, fn worker.Task) error {
	done := make(chan struct{})
	if err := s.worker.Post(ctx, func(ctx context.Context) {
		defer close(done)
		fn(ctx)
	}); err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-s.worker.Done():
		return worker.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SeenAndRecord atomically checks if an event id was seen and records it if not.
// Returns true if the event was already seen, false if it was newly recorded.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes an event ID from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	return s.deduper.Size()
}

// Enqueue submits a game host event for processing on the loop. It returns
// eventqueue.ErrFull under backpressure.
func (s *Service) Enqueue(ctx context.Context, e model.Event) error { //nolint:gocritic // hugeParam: events travel by value
	if err := e.Validate(); err != nil {
		return err
	}

	s.mu.RLock()
	q := s.queue
	started := s.started
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}

	if err := q.Enqueue(ctx, e); err != nil {
		s.logger.Warn(ctx, "event rejected",
			logger.String("eventID", e.EventID),
			logger.String("kind", string(e.Kind)),
			logger.Error(err),
		)
		return fmt.Errorf("enqueue %s: %w", e.EventID, err)
	}
	return nil
}

// TopN returns the top N leaderboard entries of the current map.
func (s *Service) TopN(_ context.Context, n int) ([]types.Entry, error) {
	records, err := s.view.Load().board.TopN(n)
	if err != nil {
		return nil, err
	}
	return types.FromRecords(records), nil
}

// Rank returns the record of login on the current map.
func (s *Service) Rank(_ context.Context, login string) (types.Entry, error) {
	rec, err := s.view.Load().board.Rank(login)
	if err != nil {
		return types.Entry{}, err
	}
	return types.FromRecord(&rec), nil
}

// Window returns the live window login would see.
func (s *Service) Window(_ context.Context, login string) (types.WindowView, error) {
	return s.windowView(s.view.Load().board.Records(), login), nil
}

func (s *Service) windowView(records []model.Record, login string) types.WindowView {
	params := window.Params{TopCount: s.windowTop, Size: s.windowSize, Ceiling: s.ceiling(login)}
	b := window.Select(records, login, params)
	podium := window.Podium(len(records), s.windowTop)

	view := types.WindowView{
		Login:  login,
		Podium: types.FromRecords(records[podium.Begin:podium.End]),
		Window: types.FromRecords(records[b.Begin:b.End]),
		Begin:  b.Begin,
		End:    b.End,
	}
	for i := range records {
		if records[i].Login == login {
			view.Rank = records[i].Rank
			break
		}
	}
	return view
}

// ceiling is the rank ceiling of login, or the record limit while the
// authority has not told us.
func (s *Service) ceiling(login string) int {
	c := 0
	if v, ok := parseRank(s.players.ServerMaxRank()); ok {
		c = v
	}
	if p, ok := s.players.Player(login); ok {
		if v, ok := parseRank(p.MaxRank); ok {
			c = max(c, v)
		}
	}
	if c == 0 {
		return s.recordLimit
	}
	return c
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := s.view.Load()
	stats := map[string]interface{}{
		"started":     s.started,
		"map":         st.info.UID,
		"generation":  st.gen,
		"records":     st.board.Len(),
		"pending":     st.pending.Len(),
		"players":     s.players.Len(),
		"draining":    s.draining.Load(),
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"dedupeCount": s.deduper.Size(),
	}
	if s.started {
		stats["queueLength"] = s.queue.Len()
	}
	return stats
}

// snapshotFor returns the provider the snapshot timer calls for m.
func (s *Service) snapshotFor(m *model.MapInfo) func() model.Snapshot {
	uid, mode := m.UID, m.Mode
	if mode == "" {
		mode = model.ModeTimeAttack
	}
	return func() model.Snapshot {
		info := s.server
		info.NumPlayers, info.NumSpecs = s.players.Counts()
		return model.Snapshot{
			Server:  info,
			MapUID:  uid,
			Mode:    mode,
			Players: s.players.Slots(),
		}
	}
}
