// Package players keeps what the engine knows about connected players and
// the rank allowance the authority reported for the server.
package players

import (
	"sort"
	"sync"

	"github.com/okian/laprank/internal/domain/model"
)

// Registry is a thread-safe login -> PlayerInfo map plus the last server
// max rank. It is written by the engine loop and read by the HTTP API.
type Registry struct {
	mu            sync.RWMutex
	players       map[string]model.PlayerInfo
	serverMaxRank string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{players: make(map[string]model.PlayerInfo)}
}

// Connect marks login online, keeping any authority data already known.
func (r *Registry) Connect(login, nickName string, spectator bool) model.PlayerInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.players[login]
	p.Login = login
	if nickName != "" {
		p.NickName = nickName
	}
	p.Spectator = spectator
	p.Online = true
	r.players[login] = p
	return p
}

// Disconnect marks login offline. The entry is kept until PruneOffline so a
// late finish can still resolve its rank ceiling.
func (r *Registry) Disconnect(login string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.players[login]; ok {
		p.Online = false
		r.players[login] = p
	}
}

// ApplyAuthority stores the max rank and ban flag returned for login.
func (r *Registry) ApplyAuthority(login, maxRank string, banned bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := r.players[login]
	p.Login = login
	p.MaxRank = maxRank
	p.Banned = banned
	r.players[login] = p
}

// Player returns the entry for login.
func (r *Registry) Player(login string) (model.PlayerInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[login]
	return p, ok
}

// SetServerMaxRank stores the server allowance as the authority returned it.
func (r *Registry) SetServerMaxRank(v string) {
	r.mu.Lock()
	r.serverMaxRank = v
	r.mu.Unlock()
}

// ServerMaxRank returns the last server allowance, "" when unknown.
func (r *Registry) ServerMaxRank() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.serverMaxRank
}

// PruneOffline drops every offline player and returns how many were removed.
func (r *Registry) PruneOffline() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for login, p := range r.players {
		if !p.Online {
			delete(r.players, login)
			n++
		}
	}
	return n
}

// Online returns the online players sorted by login.
func (r *Registry) Online() []model.PlayerInfo {
	r.mu.RLock()
	out := make([]model.PlayerInfo, 0, len(r.players))
	for _, p := range r.players {
		if p.Online {
			out = append(out, p)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Login < out[j].Login })
	return out
}

// Slots returns the snapshot entries of the online players.
func (r *Registry) Slots() []model.PlayerSlot {
	online := r.Online()
	slots := make([]model.PlayerSlot, len(online))
	for i, p := range online {
		slots[i] = model.PlayerSlot{Login: p.Login, Spectator: p.Spectator, Vote: -1}
	}
	return slots
}

// Counts returns the number of online players and spectators.
func (r *Registry) Counts() (players, spectators int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.players {
		switch {
		case !p.Online:
		case p.Spectator:
			spectators++
		default:
			players++
		}
	}
	return players, spectators
}

// Len returns the number of known players, offline included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
