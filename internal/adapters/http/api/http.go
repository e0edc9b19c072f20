// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/okian/laprank/internal/adapters/repository"
	"github.com/okian/laprank/internal/domain/dedupe"
	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes a game host event for processing on the engine loop.
	Enqueue(ctx context.Context, e model.Event) error

	// Read operations expose leaderboard data of the current map.
	TopN(ctx context.Context, n int) ([]Entry, error)
	Rank(ctx context.Context, login string) (Entry, error)
	Window(ctx context.Context, login string) (types.WindowView, error)
}

// Entry mirrors the read shape returned by leaderboard queries.
type Entry = types.Entry

// Server wires HTTP routes for the engine API.
type Server struct {
	healthHandler      *HealthHandler
	statsHandler       *StatsHandler
	eventsHandler      *EventsHandler
	leaderboardHandler *LeaderboardHandler
	rankHandler        *RankHandler
	windowHandler      *WindowHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, maxLimit int) *Server {
	return &Server{
		healthHandler:      NewHealthHandler(),
		statsHandler:       NewStatsHandler(statsProvider),
		eventsHandler:      NewEventsHandler(deps),
		leaderboardHandler: NewLeaderboardHandler(deps, maxLimit),
		rankHandler:        NewRankHandler(deps),
		windowHandler:      NewWindowHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/events", MetricsMiddleware(s.eventsHandler.HandlePostEvent, "events"))
	mux.HandleFunc("/leaderboard", MetricsMiddleware(s.leaderboardHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/rank/", MetricsMiddleware(s.rankHandler.HandleGetRank, "rank"))
	mux.HandleFunc("/window/", MetricsMiddleware(s.windowHandler.HandleGetWindow, "window"))
}

// mapRequest is the map payload of a map_begin event.
type mapRequest struct {
	UID             string `json:"uid"`
	Name            string `json:"name"`
	Environment     string `json:"environment"`
	Author          string `json:"author"`
	AuthorTimeMs    int    `json:"author_time_ms"`
	CheckpointCount int    `json:"checkpoints"`
	Laps            int    `json:"laps"`
	Mode            string `json:"mode"`
}

// eventRequest is the body of POST /events.
type eventRequest struct {
	EventID         string      `json:"event_id"`
	Kind            string      `json:"kind"`
	Login           string      `json:"login,omitempty"`
	NickName        string      `json:"nick_name,omitempty"`
	Spectator       bool        `json:"spectator,omitempty"`
	CheckpointIndex int         `json:"checkpoint_index,omitempty"`
	TimeMs          int         `json:"time_ms,omitempty"`
	Map             *mapRequest `json:"map,omitempty"`
	TS              string      `json:"ts,omitempty"`
}

// event converts the request into a domain event and validates it.
func (e *eventRequest) event() (model.Event, error) {
	if strings.TrimSpace(e.EventID) == "" {
		return model.Event{}, errors.New("missing event_id")
	}
	ev := model.Event{
		EventID:         e.EventID,
		Kind:            model.EventKind(strings.TrimSpace(e.Kind)),
		Login:           e.Login,
		NickName:        e.NickName,
		Spectator:       e.Spectator,
		CheckpointIndex: e.CheckpointIndex,
		TimeMs:          e.TimeMs,
		TS:              time.Now(),
	}
	if e.TS != "" {
		ts, err := time.Parse(time.RFC3339, e.TS)
		if err != nil {
			return model.Event{}, errors.New("invalid ts; must be RFC3339")
		}
		ev.TS = ts
	}
	if e.Map != nil {
		ev.Map = &model.MapInfo{
			UID:             e.Map.UID,
			Name:            e.Map.Name,
			Environment:     e.Map.Environment,
			Author:          e.Map.Author,
			AuthorTimeMs:    e.Map.AuthorTimeMs,
			CheckpointCount: e.Map.CheckpointCount,
			Laps:            e.Map.Laps,
			Mode:            e.Map.Mode,
		}
	}
	if err := ev.Validate(); err != nil {
		return model.Event{}, fmt.Errorf("%s: %w", e.EventID, err)
	}
	return ev, nil
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// loginParam extracts the single path segment after prefix.
func loginParam(r *http.Request, prefix string) (string, bool) {
	login := strings.TrimPrefix(r.URL.Path, prefix)
	if login == "" || strings.Contains(login, "/") {
		return "", false
	}
	return login, true
}

func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
