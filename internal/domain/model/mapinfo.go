package model

// Game modes understood by the ranking authority.
const (
	ModeTimeAttack = "TA"
	ModeRounds     = "Rounds"
)

// MapInfo describes the map announced by map_begin.
type MapInfo struct {
	UID             string
	Name            string
	Environment     string
	Author          string
	AuthorTimeMs    int
	CheckpointCount int
	Laps            int
	Mode            string
}

// Context derives the ranking context of the map; Active is decided later.
func (m *MapInfo) Context() MapContext {
	return MapContext{
		MapID:           m.UID,
		AuthorTimeMs:    m.AuthorTimeMs,
		CheckpointCount: m.CheckpointCount,
	}
}

// MapContext is the part of the map that decides whether it is rankable.
type MapContext struct {
	MapID           string
	AuthorTimeMs    int
	CheckpointCount int
	Active          bool
}

// PlayerInfo is what the engine knows about a connected player.
// MaxRank is kept as the authority returned it; it is parsed when used.
type PlayerInfo struct {
	Login     string
	NickName  string
	Spectator bool
	Online    bool
	MaxRank   string
	Banned    bool
}

// ServerInfo is the server part of a snapshot.
type ServerInfo struct {
	Name       string
	Comment    string
	Private    bool
	MaxPlayers int
	NumPlayers int
	MaxSpecs   int
	NumSpecs   int
}

// PlayerSlot is one player entry of a snapshot.
type PlayerSlot struct {
	Login     string
	Spectator bool
	Vote      int
}

// Snapshot is the periodic server/player state pushed to the authority.
type Snapshot struct {
	Server  ServerInfo
	MapUID  string
	Mode    string
	Players []PlayerSlot
}
