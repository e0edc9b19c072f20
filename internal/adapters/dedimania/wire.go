package dedimania

import (
	"strconv"
	"strings"

	"github.com/okian/laprank/internal/domain/model"
)

type openRequest struct {
	Game          string `xmlrpc:"Game"`
	Login         string `xmlrpc:"Login"`
	Code          string `xmlrpc:"Code"`
	Path          string `xmlrpc:"Path"`
	Packmask      string `xmlrpc:"Packmask"`
	ServerVersion string `xmlrpc:"ServerVersion"`
	ServerBuild   string `xmlrpc:"ServerBuild"`
	Tool          string `xmlrpc:"Tool"`
	Version       string `xmlrpc:"Version"`
	ServerIP      string `xmlrpc:"ServerIP"`
	ServerPort    int    `xmlrpc:"ServerPort"`
}

type openResponse struct {
	SessionID string `xmlrpc:"SessionId"`
	Error     string `xmlrpc:"Error"`
}

type mapInfo struct {
	UID           string `xmlrpc:"UId"`
	Name          string `xmlrpc:"Name"`
	Environment   string `xmlrpc:"Environment"`
	Author        string `xmlrpc:"Author"`
	NbCheckpoints int    `xmlrpc:"NbCheckpoints"`
	NbLaps        int    `xmlrpc:"NbLaps"`
}

type serverInfo struct {
	SrvName    string `xmlrpc:"SrvName"`
	Comment    string `xmlrpc:"Comment"`
	Private    bool   `xmlrpc:"Private"`
	MaxPlayers int    `xmlrpc:"MaxPlayers"`
	NumPlayers int    `xmlrpc:"NumPlayers"`
	MaxSpecs   int    `xmlrpc:"MaxSpecs"`
	NumSpecs   int    `xmlrpc:"NumSpecs"`
}

type playerSlot struct {
	Login  string `xmlrpc:"Login"`
	IsSpec bool   `xmlrpc:"IsSpec"`
	Vote   int    `xmlrpc:"Vote"`
}

type votesInfo struct {
	UID      string `xmlrpc:"UId"`
	GameMode string `xmlrpc:"GameMode"`
}

type wireRecord struct {
	Login    string `xmlrpc:"Login"`
	NickName string `xmlrpc:"NickName"`
	Best     int    `xmlrpc:"Best"`
	Rank     int    `xmlrpc:"Rank"`
	MaxRank  int    `xmlrpc:"MaxRank"`
	Checks   string `xmlrpc:"Checks"`
	Vote     int    `xmlrpc:"Vote"`
}

type wirePlayer struct {
	Login   string `xmlrpc:"Login"`
	MaxRank int    `xmlrpc:"MaxRank"`
}

type recordsResponse struct {
	UID           string       `xmlrpc:"UId"`
	ServerMaxRank int          `xmlrpc:"ServerMaxRank"`
	Records       []wireRecord `xmlrpc:"Records"`
	Players       []wirePlayer `xmlrpc:"Players"`
}

type playerResponse struct {
	Login   string `xmlrpc:"Login"`
	MaxRank int    `xmlrpc:"MaxRank"`
	Banned  bool   `xmlrpc:"Banned"`
}

type wireTime struct {
	Login  string `xmlrpc:"Login"`
	Best   int    `xmlrpc:"Best"`
	Checks string `xmlrpc:"Checks"`
}

// replays carries the evidence of the best submitted time. Byte slices are
// sent as base64 by the codec.
type replays struct {
	VReplay       []byte `xmlrpc:"VReplay"`
	VReplayChecks string `xmlrpc:"VReplayChecks"`
	Top1GReplay   []byte `xmlrpc:"Top1GReplay"`
}

func toMapInfo(m *model.MapInfo) mapInfo {
	return mapInfo{
		UID:           m.UID,
		Name:          m.Name,
		Environment:   m.Environment,
		Author:        m.Author,
		NbCheckpoints: m.CheckpointCount,
		NbLaps:        m.Laps,
	}
}

func toServerInfo(s *model.ServerInfo) serverInfo {
	return serverInfo{
		SrvName:    s.Name,
		Comment:    s.Comment,
		Private:    s.Private,
		MaxPlayers: s.MaxPlayers,
		NumPlayers: s.NumPlayers,
		MaxSpecs:   s.MaxSpecs,
		NumSpecs:   s.NumSpecs,
	}
}

func toSlots(players []model.PlayerSlot) []playerSlot {
	out := make([]playerSlot, len(players))
	for i, p := range players {
		out[i] = playerSlot{Login: p.Login, IsSpec: p.Spectator, Vote: p.Vote}
	}
	return out
}

func (r *wireRecord) toRecord() model.Record {
	return model.Record{
		Login:       r.Login,
		NickName:    r.NickName,
		BestTimeMs:  r.Best,
		Rank:        r.Rank,
		MaxRank:     r.MaxRank,
		Checkpoints: parseChecks(r.Checks),
		Vote:        r.Vote,
	}
}

// parseChecks reads a comma separated split list; malformed entries are skipped.
func parseChecks(s string) []int {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func formatChecks(checks []int) string {
	parts := make([]string, len(checks))
	for i, c := range checks {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}
