// Package authority owns the authenticated channel to the external ranking
// authority: the session token, periodic snapshots and the map-end flush.
package authority

import (
	"context"

	"github.com/okian/laprank/internal/domain/model"
)

// Credentials identify the game server to the authority.
type Credentials struct {
	Game          string
	Login         string
	Code          string
	Path          string
	Packmask      string
	ServerVersion string
	ServerBuild   string
	Tool          string
	Version       string
	ServerIP      string
	ServerPort    int
}

// RecordSet is the authority's view of a map.
type RecordSet struct {
	// Records are in authority order, which is also insertion order.
	Records       []model.Record
	ServerMaxRank string
	Players       []model.PlayerInfo
}

// Client is the wire contract of the authority. Implementations must return
// promptly once ctx is done.
type Client interface {
	OpenSession(ctx context.Context, creds Credentials) (token string, err error)
	CheckSession(ctx context.Context, token string) (bool, error)
	GetChallengeRecords(ctx context.Context, token string, m *model.MapInfo, snap *model.Snapshot) (RecordSet, error)
	UpdateServerPlayers(ctx context.Context, token string, m *model.MapInfo, snap *model.Snapshot) error
	SetChallengeTimes(ctx context.Context, token string, m *model.MapInfo, changes []model.PendingChange) error
	PlayerConnect(ctx context.Context, token string, p *model.PlayerInfo) (model.PlayerInfo, error)
	PlayerDisconnect(ctx context.Context, token, login string) error
}
