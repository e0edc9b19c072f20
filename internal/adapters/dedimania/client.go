// Package dedimania talks to the Dedimania records service over XML-RPC.
package dedimania

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/kolo/xmlrpc"
	"github.com/okian/laprank/internal/adapters/authority"
	"github.com/okian/laprank/internal/domain/model"
)

// ErrRejected is returned when the service answers with an error message
// or a false status.
var ErrRejected = errors.New("dedimania rejected the request")

// Client implements authority.Client.
type Client struct {
	rpc *xmlrpc.Client
}

var _ authority.Client = (*Client)(nil)

// NewClient connects to the service at url (e.g. http://dedimania.net:8082/Dedimania).
func NewClient(url string, timeout time.Duration) (*Client, error) {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ResponseHeaderTimeout: timeout,
		IdleConnTimeout:       10 * time.Minute,
	}
	rpc, err := xmlrpc.NewClient(url, transport)
	if err != nil {
		return nil, fmt.Errorf("dedimania client: %w", err)
	}
	return &Client{rpc: rpc}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	return c.rpc.Close()
}

// call runs one request and gives up waiting when ctx is done.
func (c *Client) call(ctx context.Context, method string, args []interface{}, reply interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- c.rpc.Call(method, args, reply)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// OpenSession implements authority.Client.
func (c *Client) OpenSession(ctx context.Context, creds authority.Credentials) (string, error) { //nolint:gocritic // hugeParam: interface signature
	var res openResponse
	err := c.call(ctx, "dedimania.OpenSession", []interface{}{openRequest{
		Game:          creds.Game,
		Login:         creds.Login,
		Code:          creds.Code,
		Path:          creds.Path,
		Packmask:      creds.Packmask,
		ServerVersion: creds.ServerVersion,
		ServerBuild:   creds.ServerBuild,
		Tool:          creds.Tool,
		Version:       creds.Version,
		ServerIP:      creds.ServerIP,
		ServerPort:    creds.ServerPort,
	}}, &res)
	if err != nil {
		return "", err
	}
	if res.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrRejected, res.Error)
	}
	return res.SessionID, nil
}

// CheckSession implements authority.Client.
func (c *Client) CheckSession(ctx context.Context, token string) (bool, error) {
	var ok bool
	if err := c.call(ctx, "dedimania.CheckSession", []interface{}{token}, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// GetChallengeRecords implements authority.Client.
func (c *Client) GetChallengeRecords(ctx context.Context, token string, m *model.MapInfo, snap *model.Snapshot) (authority.RecordSet, error) {
	var res recordsResponse
	err := c.call(ctx, "dedimania.GetChallengeRecords", []interface{}{
		token,
		toMapInfo(m),
		snap.Mode,
		toServerInfo(&snap.Server),
		toSlots(snap.Players),
	}, &res)
	if err != nil {
		return authority.RecordSet{}, err
	}

	set := authority.RecordSet{
		Records:       make([]model.Record, len(res.Records)),
		ServerMaxRank: strconv.Itoa(res.ServerMaxRank),
		Players:       make([]model.PlayerInfo, len(res.Players)),
	}
	for i := range res.Records {
		set.Records[i] = res.Records[i].toRecord()
	}
	for i, p := range res.Players {
		set.Players[i] = model.PlayerInfo{
			Login:   p.Login,
			MaxRank: strconv.Itoa(p.MaxRank),
			Banned:  p.MaxRank == 0,
			Online:  true,
		}
	}
	return set, nil
}

// UpdateServerPlayers implements authority.Client.
func (c *Client) UpdateServerPlayers(ctx context.Context, token string, m *model.MapInfo, snap *model.Snapshot) error {
	var ok bool
	err := c.call(ctx, "dedimania.UpdateServerPlayers", []interface{}{
		token,
		toServerInfo(&snap.Server),
		votesInfo{UID: m.UID, GameMode: snap.Mode},
		toSlots(snap.Players),
	}, &ok)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: UpdateServerPlayers returned false", ErrRejected)
	}
	return nil
}

// SetChallengeTimes implements authority.Client. changes must be ordered by
// time; the replays of the first one are sent as the map's evidence.
func (c *Client) SetChallengeTimes(ctx context.Context, token string, m *model.MapInfo, changes []model.PendingChange) error {
	times := make([]wireTime, len(changes))
	for i := range changes {
		times[i] = wireTime{
			Login:  changes[i].Login,
			Best:   changes[i].BestTimeMs,
			Checks: formatChecks(changes[i].Checkpoints),
		}
	}
	var r replays
	if len(changes) > 0 {
		r = replays{
			VReplay:       changes[0].ValidationReplay,
			VReplayChecks: formatChecks(changes[0].Checkpoints),
			Top1GReplay:   changes[0].TopReplay,
		}
	}
	mode := model.ModeTimeAttack
	if m.Mode != "" {
		mode = m.Mode
	}

	var res interface{}
	return c.call(ctx, "dedimania.SetChallengeTimes", []interface{}{
		token, toMapInfo(m), mode, times, r,
	}, &res)
}

// PlayerConnect implements authority.Client.
func (c *Client) PlayerConnect(ctx context.Context, token string, p *model.PlayerInfo) (model.PlayerInfo, error) {
	var res playerResponse
	err := c.call(ctx, "dedimania.PlayerConnect", []interface{}{
		token, p.Login, p.NickName, "", p.Spectator,
	}, &res)
	if err != nil {
		return model.PlayerInfo{}, err
	}
	return model.PlayerInfo{
		Login:   p.Login,
		MaxRank: strconv.Itoa(res.MaxRank),
		Banned:  res.Banned || res.MaxRank == 0,
	}, nil
}

// PlayerDisconnect implements authority.Client.
func (c *Client) PlayerDisconnect(ctx context.Context, token, login string) error {
	var res interface{}
	return c.call(ctx, "dedimania.PlayerDisconnect", []interface{}{token, login, ""}, &res)
}
