package service_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/laprank/internal/adapters/authority"
	service "github.com/okian/laprank/internal/app"
	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/internal/domain/replay"
	"github.com/okian/laprank/internal/domain/types"
)

type fakeAuthority struct {
	mu        sync.Mutex
	records   map[string][]model.Record
	players   []model.PlayerInfo
	serverMax string
	fetchErr  error
	fetchGate chan struct{}
	stopGate  chan struct{}

	flushed  map[string][]model.PendingChange
	flushes  atomic.Int32
	started  atomic.Int32
	stopped  atomic.Int32
	connects atomic.Int32
	leaves   atomic.Int32
}

func newFakeAuthority() *fakeAuthority {
	return &fakeAuthority{
		records:   map[string][]model.Record{},
		serverMax: "30",
		flushed:   map[string][]model.PendingChange{},
	}
}

func (a *fakeAuthority) FetchRecords(ctx context.Context, m *model.MapInfo, _ *model.Snapshot) (authority.RecordSet, error) {
	a.mu.Lock()
	gate := a.fetchGate
	a.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return authority.RecordSet{}, ctx.Err()
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fetchErr != nil {
		return authority.RecordSet{}, a.fetchErr
	}
	return authority.RecordSet{
		Records:       append([]model.Record(nil), a.records[m.UID]...),
		ServerMaxRank: a.serverMax,
		Players:       append([]model.PlayerInfo(nil), a.players...),
	}, nil
}

func (a *fakeAuthority) StartSnapshots(model.MapInfo, func() model.Snapshot) { a.started.Add(1) }

func (a *fakeAuthority) StopSnapshots() {
	a.mu.Lock()
	gate := a.stopGate
	a.mu.Unlock()
	if gate != nil {
		<-gate
	}
	a.stopped.Add(1)
}

func (a *fakeAuthority) gateFetch() chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fetchGate = make(chan struct{})
	return a.fetchGate
}

func (a *fakeAuthority) gateStop() chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopGate = make(chan struct{})
	return a.stopGate
}

func (a *fakeAuthority) Flush(_ context.Context, m *model.MapInfo, changes []model.PendingChange) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.flushed[m.UID] = changes
	a.flushes.Add(1)
	return nil
}

func (a *fakeAuthority) PlayerConnect(_ context.Context, p *model.PlayerInfo) (model.PlayerInfo, error) {
	a.connects.Add(1)
	return model.PlayerInfo{Login: p.Login, MaxRank: "30"}, nil
}

func (a *fakeAuthority) PlayerDisconnect(context.Context, string) error {
	a.leaves.Add(1)
	return nil
}

func (a *fakeAuthority) flushedFor(uid string) ([]model.PendingChange, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.flushed[uid]
	return c, ok
}

type fakeHost struct {
	mu       sync.Mutex
	files    map[string][]byte
	rejected map[string]bool
	gate     chan struct{}
	calls    atomic.Int32
	waiting  atomic.Int32
}

func newFakeHost() *fakeHost {
	return &fakeHost{files: map[string][]byte{}, rejected: map[string]bool{}}
}

func (h *fakeHost) reject(login string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rejected[login] = true
}

func (h *fakeHost) SaveTopReplay(_ context.Context, login, file string) error {
	h.calls.Add(1)
	h.mu.Lock()
	defer h.mu.Unlock()
	h.files["Replays/"+file] = []byte("ghost:" + login)
	return nil
}

// gateValidation blocks validation replay fetches until the returned
// channel is closed.
func (h *fakeHost) gateValidation() chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.gate = make(chan struct{})
	return h.gate
}

func (h *fakeHost) FetchValidationReplay(ctx context.Context, login string) ([]byte, error) {
	h.calls.Add(1)
	h.mu.Lock()
	gate := h.gate
	h.mu.Unlock()
	if gate != nil {
		h.waiting.Add(1)
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rejected[login] {
		return nil, errors.New("no validation replay")
	}
	return []byte("vreplay:" + login), nil
}

func (h *fakeHost) ReadFile(_ context.Context, name string) ([]byte, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	data, ok := h.files[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return data, nil
}

type sent struct {
	login string
	text  string
}

type fakeSink struct {
	mu      sync.Mutex
	lines   []sent
	windows map[string]types.WindowView
}

func newFakeSink() *fakeSink {
	return &fakeSink{windows: map[string]types.WindowView{}}
}

func (s *fakeSink) Broadcast(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, sent{text: text})
	return nil
}

func (s *fakeSink) Tell(_ context.Context, login, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, sent{login: login, text: text})
	return nil
}

func (s *fakeSink) RenderWindow(_ context.Context, login string, view types.WindowView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows[login] = view
	return nil
}

// saw reports whether a line containing text was sent to login ("" for
// broadcasts).
func (s *fakeSink) saw(login, text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.lines {
		if l.login == login && strings.Contains(l.text, text) {
			return true
		}
	}
	return false
}

func (s *fakeSink) window(login string) (types.WindowView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.windows[login]
	return v, ok
}

var (
	_ service.Authority      = (*fakeAuthority)(nil)
	_ replay.Host            = (*fakeHost)(nil)
	_ service.WindowRenderer = (*fakeSink)(nil)
)

// harness drives a started service with auto-numbered events.
type harness struct {
	svc  *service.Service
	auth *fakeAuthority
	host *fakeHost
	sink *fakeSink
	ctx  context.Context
	seq  atomic.Int64
}

func newHarness(ctx context.Context, opts ...service.Option) *harness {
	h := &harness{auth: newFakeAuthority(), host: newFakeHost(), sink: newFakeSink(), ctx: ctx}
	opts = append([]service.Option{
		service.WithReplayOptions(replay.WithRate(1000, 10)),
		service.WithCheckpointDiff(false),
	}, opts...)
	h.svc = service.New(h.auth, h.host, h.sink, opts...)
	return h
}

func (h *harness) send(e model.Event) error { //nolint:gocritic // test helper
	if e.EventID == "" {
		e.EventID = fmt.Sprintf("ev-%d", h.seq.Add(1))
	}
	return h.svc.Enqueue(h.ctx, e)
}

func (h *harness) connect(login, nick string) error {
	return h.send(model.Event{Kind: model.EventPlayerConnect, Login: login, NickName: nick})
}

func (h *harness) mapBegin(uid string) error {
	return h.send(model.Event{Kind: model.EventMapBegin, Map: &model.MapInfo{
		UID:             uid,
		Name:            uid,
		AuthorTimeMs:    30000,
		CheckpointCount: 4,
		Mode:            model.ModeTimeAttack,
	}})
}

func (h *harness) mapEnd() error {
	return h.send(model.Event{Kind: model.EventMapEnd})
}

// finish drives two checkpoints and a finish of ms.
func (h *harness) finish(login string, ms int) error {
	for i, t := range []int{ms / 3, 2 * ms / 3} {
		if err := h.send(model.Event{Kind: model.EventCheckpoint, Login: login, CheckpointIndex: i, TimeMs: t}); err != nil {
			return err
		}
	}
	return h.send(model.Event{Kind: model.EventFinish, Login: login, TimeMs: ms})
}

func (h *harness) top() []types.Entry {
	entries, _ := h.svc.TopN(h.ctx, 100)
	return entries
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func logins(entries []types.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Login
	}
	return out
}
