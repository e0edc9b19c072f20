// Package gamehost bridges to the dedicated game server over XML-RPC: replay
// capture for the enrichment pipeline and chat for announcements.
package gamehost

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kolo/xmlrpc"
)

var (
	// ErrHostRefused is returned when the server answers false.
	ErrHostRefused = errors.New("game host refused the request")
	// ErrOutsideDataDir is returned for file names that escape the data directory.
	ErrOutsideDataDir = errors.New("path escapes the server data directory")
)

// Host is an XML-RPC connection to the dedicated server.
type Host struct {
	rpc     *xmlrpc.Client
	dataDir string
}

// New connects to the server's XML-RPC endpoint. dataDir is the server's
// UserData directory as seen from this process.
func New(url, dataDir string, timeout time.Duration) (*Host, error) {
	rpc, err := xmlrpc.NewClient(url, &http.Transport{ResponseHeaderTimeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("game host client: %w", err)
	}
	abs, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("game host data dir: %w", err)
	}
	return &Host{rpc: rpc, dataDir: abs}, nil
}

// Close releases idle connections.
func (h *Host) Close() error {
	return h.rpc.Close()
}

func (h *Host) call(ctx context.Context, method string, args []interface{}, reply interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() {
		done <- h.rpc.Call(method, args, reply)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%s: %w", method, err)
		}
		return nil
	}
}

func (h *Host) callBool(ctx context.Context, method string, args ...interface{}) error {
	var ok bool
	if err := h.call(ctx, method, args, &ok); err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrHostRefused, method)
	}
	return nil
}

// SaveTopReplay writes login's best ghost to Replays/<file>.
func (h *Host) SaveTopReplay(ctx context.Context, login, file string) error {
	return h.callBool(ctx, "SaveBestGhostsReplay", login, file)
}

// FetchValidationReplay returns the validation replay of login's last finish.
func (h *Host) FetchValidationReplay(ctx context.Context, login string) ([]byte, error) {
	var data []byte
	if err := h.call(ctx, "GetValidationReplay", []interface{}{login}, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// ReadFile reads name relative to the data directory.
func (h *Host) ReadFile(ctx context.Context, name string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	full := filepath.Join(h.dataDir, filepath.FromSlash(name))
	if full != h.dataDir && !strings.HasPrefix(full, h.dataDir+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideDataDir, name)
	}
	return os.ReadFile(full)
}

// Broadcast sends text to every player.
func (h *Host) Broadcast(ctx context.Context, text string) error {
	return h.callBool(ctx, "ChatSendServerMessage", text)
}

// Tell sends text to one player.
func (h *Host) Tell(ctx context.Context, login, text string) error {
	return h.callBool(ctx, "ChatSendServerMessageToLogin", text, login)
}
