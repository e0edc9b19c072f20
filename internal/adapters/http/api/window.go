package api

import (
	"context"
	"net/http"

	"github.com/okian/laprank/internal/domain/types"
)

// WindowDependencies defines the interface for live window reads.
type WindowDependencies interface {
	Window(ctx context.Context, login string) (types.WindowView, error)
}

// WindowHandler serves the slice of the leaderboard a player sees in game.
type WindowHandler struct {
	deps WindowDependencies
}

// NewWindowHandler creates a new window handler.
func NewWindowHandler(deps WindowDependencies) *WindowHandler {
	return &WindowHandler{deps: deps}
}

// HandleGetWindow handles GET /window/{login} requests.
func (h *WindowHandler) HandleGetWindow(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	login, ok := loginParam(r, "/window/")
	if !ok {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	view, err := h.deps.Window(r.Context(), login)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
