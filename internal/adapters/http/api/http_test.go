package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/okian/laprank/internal/adapters/http/api"
	eventqueue "github.com/okian/laprank/internal/adapters/mq/queue"
	"github.com/okian/laprank/internal/adapters/repository"
	"github.com/okian/laprank/internal/domain/model"
	"github.com/okian/laprank/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDependencies implements api.Dependencies.
type mockDependencies struct {
	seen       map[string]bool
	enqueued   []model.Event
	enqueueErr error

	top     []types.Entry
	topErr  error
	rank    types.Entry
	rankErr error
	view    types.WindowView
}

func newMock() *mockDependencies {
	return &mockDependencies{seen: map[string]bool{}}
}

func (m *mockDependencies) SeenAndRecord(_ context.Context, id string) bool {
	if m.seen[id] {
		return true
	}
	m.seen[id] = true
	return false
}

func (m *mockDependencies) Unrecord(_ context.Context, id string) { delete(m.seen, id) }

func (m *mockDependencies) Size() int64 { return int64(len(m.seen)) }

func (m *mockDependencies) Enqueue(_ context.Context, e model.Event) error { //nolint:gocritic // test mock
	if m.enqueueErr != nil {
		return m.enqueueErr
	}
	m.enqueued = append(m.enqueued, e)
	return nil
}

func (m *mockDependencies) TopN(_ context.Context, n int) ([]types.Entry, error) {
	if m.topErr != nil {
		return nil, m.topErr
	}
	return m.top[:min(n, len(m.top))], nil
}

func (m *mockDependencies) Rank(_ context.Context, login string) (types.Entry, error) {
	if m.rankErr != nil {
		return types.Entry{}, m.rankErr
	}
	return m.rank, nil
}

func (m *mockDependencies) Window(_ context.Context, login string) (types.WindowView, error) {
	v := m.view
	v.Login = login
	return v, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

func post(h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/events", bytes.NewBufferString(body))
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func TestServer_Register(t *testing.T) {
	Convey("Given a registered API server", t, func() {
		deps := newMock()
		deps.top = []types.Entry{{Rank: 1, Login: "bob", TimeMs: 30000, Time: "0:30.000"}}
		server := api.NewServer(deps, &mockStatsProvider{stats: map[string]interface{}{"started": true}}, 100)
		mux := http.NewServeMux()
		server.Register(mux)

		for _, path := range []string{"/healthz", "/stats", "/leaderboard?limit=1", "/rank/bob", "/window/bob"} {
			Convey("GET "+path+" is served", func() {
				req := httptest.NewRequest(http.MethodGet, path, nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		}

		Convey("GET /events is not served", func() {
			req := httptest.NewRequest(http.MethodGet, "/events", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("Unknown paths are not served", func() {
			req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestEventsHandler_HandlePostEvent(t *testing.T) {
	Convey("Given an events handler", t, func() {
		deps := newMock()
		handler := api.NewEventsHandler(deps).HandlePostEvent

		Convey("When posting a finish", func() {
			w := post(handler, `{"event_id":"e1","kind":"finish","login":"alice","time_ms":35000,"ts":"2024-01-01T12:00:00Z"}`)

			Convey("Then it is accepted and queued", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				var ack map[string]interface{}
				So(json.NewDecoder(w.Body).Decode(&ack), ShouldBeNil)
				So(ack["status"], ShouldEqual, "accepted")
				So(deps.enqueued, ShouldHaveLength, 1)
				So(deps.enqueued[0].Kind, ShouldEqual, model.EventFinish)
				So(deps.enqueued[0].TimeMs, ShouldEqual, 35000)
				So(deps.enqueued[0].TS.Year(), ShouldEqual, 2024)
			})

			Convey("And posting it again is acknowledged as a duplicate", func() {
				w := post(handler, `{"event_id":"e1","kind":"finish","login":"alice","time_ms":35000}`)
				So(w.Code, ShouldEqual, http.StatusOK)
				var ack map[string]interface{}
				So(json.NewDecoder(w.Body).Decode(&ack), ShouldBeNil)
				So(ack["duplicate"], ShouldEqual, true)
				So(deps.enqueued, ShouldHaveLength, 1)
			})
		})

		Convey("When posting a map begin", func() {
			w := post(handler, `{"event_id":"m1","kind":"map_begin","map":{"uid":"A01","name":"Alpha","author_time_ms":30000,"checkpoints":4,"mode":"TA"}}`)

			Convey("Then the map travels with the event", func() {
				So(w.Code, ShouldEqual, http.StatusAccepted)
				So(deps.enqueued[0].Map, ShouldNotBeNil)
				So(deps.enqueued[0].Map.UID, ShouldEqual, "A01")
				So(deps.enqueued[0].Map.CheckpointCount, ShouldEqual, 4)
			})
		})

		Convey("When the body is not JSON", func() {
			w := post(handler, `{not json`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When required fields are missing", func() {
			for _, body := range []string{
				`{"kind":"finish","login":"alice","time_ms":1}`,
				`{"event_id":"e2","kind":"finish","time_ms":1}`,
				`{"event_id":"e3","kind":"map_begin"}`,
				`{"event_id":"e4","kind":"lap","login":"alice"}`,
				`{"event_id":"e5","kind":"finish","login":"alice","ts":"yesterday"}`,
			} {
				w := post(handler, body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			}
			So(deps.enqueued, ShouldBeEmpty)
			So(deps.Size(), ShouldEqual, 0)
		})

		Convey("When the queue is full", func() {
			deps.enqueueErr = fmt.Errorf("enqueue e6: %w", eventqueue.ErrFull)
			w := post(handler, `{"event_id":"e6","kind":"player_connect","login":"alice"}`)

			Convey("Then it reports backpressure and forgets the id", func() {
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)
				So(deps.seen["e6"], ShouldBeFalse)
			})
		})

		Convey("When the engine is not running", func() {
			deps.enqueueErr = eventqueue.ErrClosed
			w := post(handler, `{"event_id":"e7","kind":"map_end"}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
		})

		Convey("When using another method", func() {
			req := httptest.NewRequest(http.MethodPut, "/events", nil)
			w := httptest.NewRecorder()
			handler(w, req)
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestLeaderboardHandler_HandleGetLeaderboard(t *testing.T) {
	Convey("Given a leaderboard handler", t, func() {
		deps := newMock()
		for i, login := range []string{"bob", "alice", "carol"} {
			deps.top = append(deps.top, types.Entry{Rank: i + 1, Login: login, TimeMs: 30000 + i*1000})
		}
		handler := api.NewLeaderboardHandler(deps, 2)

		get := func(url string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			handler.HandleGetLeaderboard(w, httptest.NewRequest(http.MethodGet, url, nil))
			return w
		}

		Convey("When requesting top N entries", func() {
			w := get("/leaderboard?limit=2")
			So(w.Code, ShouldEqual, http.StatusOK)

			var response []types.Entry
			So(json.NewDecoder(w.Body).Decode(&response), ShouldBeNil)
			So(response, ShouldHaveLength, 2)
			So(response[0].Login, ShouldEqual, "bob")
			So(response[1].Login, ShouldEqual, "alice")
		})

		Convey("When no limit is given, the default is capped by the maximum", func() {
			w := get("/leaderboard")
			So(w.Code, ShouldEqual, http.StatusOK)
			var response []types.Entry
			So(json.NewDecoder(w.Body).Decode(&response), ShouldBeNil)
			So(response, ShouldHaveLength, 2)
		})

		Convey("When the limit is invalid or too large", func() {
			So(get("/leaderboard?limit=0").Code, ShouldEqual, http.StatusBadRequest)
			So(get("/leaderboard?limit=abc").Code, ShouldEqual, http.StatusBadRequest)
			So(get("/leaderboard?limit=3").Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("When the leaderboard returns an error", func() {
			deps.topErr = fmt.Errorf("boom")
			So(get("/leaderboard?limit=1").Code, ShouldEqual, http.StatusInternalServerError)
		})
	})
}

func TestRankHandler_HandleGetRank(t *testing.T) {
	Convey("Given a rank handler", t, func() {
		deps := newMock()
		deps.rank = types.Entry{Rank: 5, Login: "alice", NickName: "Alice", TimeMs: 35000, Time: "0:35.000"}
		handler := api.NewRankHandler(deps)

		get := func(url string) *httptest.ResponseRecorder {
			w := httptest.NewRecorder()
			handler.HandleGetRank(w, httptest.NewRequest(http.MethodGet, url, nil))
			return w
		}

		Convey("When requesting the rank of a ranked player", func() {
			w := get("/rank/alice")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")

			var response types.Entry
			So(json.NewDecoder(w.Body).Decode(&response), ShouldBeNil)
			So(response.Login, ShouldEqual, "alice")
			So(response.Rank, ShouldEqual, 5)
			So(response.Time, ShouldEqual, "0:35.000")
		})

		Convey("When the player has no record", func() {
			deps.rankErr = fmt.Errorf("%w: dave", repository.ErrNotFound)
			So(get("/rank/dave").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("When the lookup fails otherwise", func() {
			deps.rankErr = fmt.Errorf("boom")
			So(get("/rank/alice").Code, ShouldEqual, http.StatusInternalServerError)
		})

		Convey("When the path is malformed", func() {
			So(get("/rank/").Code, ShouldEqual, http.StatusBadRequest)
			So(get("/rank/a/b").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestWindowHandler_HandleGetWindow(t *testing.T) {
	Convey("Given a window handler", t, func() {
		deps := newMock()
		deps.view = types.WindowView{
			Rank:   2,
			Podium: []types.Entry{{Rank: 1, Login: "bob"}},
			Window: []types.Entry{{Rank: 1, Login: "bob"}, {Rank: 2, Login: "alice"}},
			Begin:  0,
			End:    2,
		}
		handler := api.NewWindowHandler(deps)

		Convey("When requesting a player's window", func() {
			w := httptest.NewRecorder()
			handler.HandleGetWindow(w, httptest.NewRequest(http.MethodGet, "/window/alice", nil))

			So(w.Code, ShouldEqual, http.StatusOK)
			var view types.WindowView
			So(json.NewDecoder(w.Body).Decode(&view), ShouldBeNil)
			So(view.Login, ShouldEqual, "alice")
			So(view.Rank, ShouldEqual, 2)
			So(view.Window, ShouldHaveLength, 2)
			So(view.Podium[0].Login, ShouldEqual, "bob")
		})

		Convey("When the login is missing", func() {
			w := httptest.NewRecorder()
			handler.HandleGetWindow(w, httptest.NewRequest(http.MethodGet, "/window/", nil))
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	Convey("Given a health handler", t, func() {
		handler := api.NewHealthHandler()

		Convey("Then it serves the metrics exposition", func() {
			w := httptest.NewRecorder()
			handler.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "laprank_")
		})
	})
}

func TestStatsHandler_HandleStats(t *testing.T) {
	Convey("Given a stats handler", t, func() {
		handler := api.NewStatsHandler(&mockStatsProvider{stats: map[string]interface{}{
			"records": 12,
			"map":     "A01",
		}})

		Convey("Then it returns the stats as JSON", func() {
			w := httptest.NewRecorder()
			handler.HandleStats(w, httptest.NewRequest(http.MethodGet, "/stats", nil))
			So(w.Code, ShouldEqual, http.StatusOK)

			var response map[string]interface{}
			So(json.NewDecoder(w.Body).Decode(&response), ShouldBeNil)
			So(response["records"], ShouldEqual, 12)
			So(response["map"], ShouldEqual, "A01")
		})
	})
}
