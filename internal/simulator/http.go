package simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/laprank/pkg/logger"
)

// Submission outcomes.
const (
	resultSuccess   = "success"
	resultDuplicate = "duplicate"
	resultFailed    = "failed"
)

// HTTPClient wraps http.Client with the base URL of the service.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{client: &http.Client{Timeout: timeout}, baseURL: baseURL}
}

// Get fetches path and decodes a 200 JSON body into out.
func (c *HTTPClient) Get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: HTTP %d: %s", path, resp.StatusCode, string(body))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// Post sends body as JSON to path.
func (c *HTTPClient) Post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// send posts one event, retrying while the engine reports backpressure.
func (c *HTTPClient) send(ctx context.Context, e Event) string { //nolint:gocritic // events are small
	for {
		resp, err := c.Post(ctx, "/events", e)
		if err != nil {
			return resultFailed
		}
		body, err := readResponseBody(resp)
		if err != nil {
			return resultFailed
		}

		switch resp.StatusCode {
		case http.StatusAccepted:
			return resultSuccess
		case http.StatusOK:
			var ack AckResponse
			if err := json.Unmarshal(body, &ack); err == nil && !ack.Duplicate {
				return resultSuccess
			}
			return resultDuplicate
		case http.StatusTooManyRequests:
			select {
			case <-ctx.Done():
				return resultFailed
			case <-time.After(pollInterval):
			}
		default:
			logger.Get().Debug(ctx, "event refused",
				logger.String("eventID", e.EventID),
				logger.Int("status", resp.StatusCode),
				logger.String("body", string(body)))
			return resultFailed
		}
	}
}

// counters tracks submissions across drivers.
type counters struct {
	submitted, successful, duplicate, failed atomic.Int64
}

func (c *counters) add(result string) {
	c.submitted.Add(1)
	switch result {
	case resultSuccess:
		c.successful.Add(1)
	case resultDuplicate:
		c.duplicate.Add(1)
	default:
		c.failed.Add(1)
	}
}

func (c *counters) store(stats *Stats) {
	stats.EventsSubmitted = int(c.submitted.Load())
	stats.EventsSuccessful = int(c.successful.Load())
	stats.EventsDuplicate = int(c.duplicate.Load())
	stats.EventsFailed = int(c.failed.Load())
}

// sendOne submits a single event and fails unless it was accepted.
func sendOne(ctx context.Context, client *HTTPClient, e Event, cnt *counters) error { //nolint:gocritic // events are small
	res := client.send(ctx, e)
	cnt.add(res)
	if res != resultSuccess {
		return fmt.Errorf("%s event %s was %s", e.Kind, e.EventID, res)
	}
	return nil
}

// connectDrivers sends one player_connect per driver.
func connectDrivers(ctx context.Context, config *Config, client *HTTPClient, race *Race, cnt *counters) {
	fanOut(ctx, config.Workers, race, func(d *Driver) {
		cnt.add(client.send(ctx, connectEvent(d)))
	})
}

// driveRace sends every driver's runs. Each driver is handled by one
// worker so its checkpoints stay ordered; drivers race each other.
func driveRace(ctx context.Context, config *Config, client *HTTPClient, race *Race, cnt *counters) {
	l := logger.Get()
	l.Info(ctx, "driving race", logger.Int("drivers", len(race.Drivers)), logger.Int("workers", config.Workers))

	fanOut(ctx, config.Workers, race, func(d *Driver) {
		for _, e := range runEvents(d) {
			if ctx.Err() != nil {
				return
			}
			res := client.send(ctx, e)
			cnt.add(res)
			if res == resultFailed && config.Verbose {
				l.Warn(ctx, "event failed", logger.String("login", d.Login), logger.String("kind", e.Kind))
			}
		}
	})
}

// fanOut runs fn for every driver on workers goroutines.
func fanOut(ctx context.Context, workers int, race *Race, fn func(*Driver)) {
	jobs := make(chan *Driver, workers*2)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				fn(d)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range race.Drivers {
			select {
			case <-ctx.Done():
				return
			case jobs <- &race.Drivers[i]:
			}
		}
	}()
	wg.Wait()
}

// getLeaderboard fetches the top limit entries.
func getLeaderboard(ctx context.Context, client *HTTPClient, limit int) ([]Entry, error) {
	var entries []Entry
	if err := client.Get(ctx, fmt.Sprintf("/leaderboard?limit=%d", limit), &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// waitDrained polls /stats until the event queue is empty and the board
// stops changing, or settle elapses.
func waitDrained(ctx context.Context, client *HTTPClient, settle time.Duration) error {
	deadline := time.Now().Add(settle)
	lastRecords, stable := -1, 0
	for time.Now().Before(deadline) {
		var stats map[string]interface{}
		if err := client.Get(ctx, "/stats", &stats); err != nil {
			return err
		}
		queued, _ := stats["queueLength"].(float64)
		records, _ := stats["records"].(float64)
		if queued == 0 && int(records) == lastRecords {
			stable++
			if stable >= 3 {
				return nil
			}
		} else {
			stable = 0
		}
		lastRecords = int(records)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	return nil
}
