package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatsServer struct {
	leaderboardHits atomic.Int32
	release         chan struct{}

	mu      sync.Mutex
	upserts []string
}

func (f *fakeStatsServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Route("/api/games", func(r chi.Router) {
		r.Get("/leaderboard", func(w http.ResponseWriter, r *http.Request) {
			f.leaderboardHits.Add(1)
			if f.release != nil {
				<-f.release
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []LeaderboardEntry{
				{ID: "1", Username: "alice", Wins: 3, TotalGames: 4, WinRate: 0.75},
				{ID: "2", Username: "bob", Wins: 1, Losses: 3, TotalGames: 4, WinRate: 0.25},
			}})
		})
		r.Get("/players/{username}/stats", func(w http.ResponseWriter, r *http.Request) {
			name := chi.URLParam(r, "username")
			if name != "alice smith" {
				http.Error(w, `{"error":"Player not found"}`, http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": PlayerStats{Username: name, Wins: 2, TotalGames: 2, WinRate: 1}})
		})
		r.Get("/players/{username}/history", func(w http.ResponseWriter, r *http.Request) {
			if chi.URLParam(r, "username") == "bob" {
				_, _ = w.Write([]byte(`{"data":[],"page":` + r.URL.Query().Get("page") + `}`))
				return
			}
			http.Error(w, "not implemented", http.StatusNotImplemented)
		})
		r.Post("/players", func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Username string `json:"username"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" {
				http.Error(w, "bad body", http.StatusBadRequest)
				return
			}
			f.mu.Lock()
			f.upserts = append(f.upserts, body.Username)
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		})
	})
	return r
}

func newClient(t *testing.T, f *fakeStatsServer) *Client {
	t.Helper()
	srv := httptest.NewServer(f.routes())
	t.Cleanup(srv.Close)
	return New(srv.URL+"/", srv.Client(), nil)
}

func TestLeaderboard(t *testing.T) {
	c := newClient(t, &fakeStatsServer{})
	entries, err := c.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "alice", entries[0].Username)
	assert.InDelta(t, 0.75, entries[0].WinRate, 1e-9)
}

func TestLeaderboard_ConcurrentCallsShareOneRequest(t *testing.T) {
	f := &fakeStatsServer{release: make(chan struct{})}
	c := newClient(t, f)

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Leaderboard(context.Background(), 10)
			assert.NoError(t, err)
		}()
	}
	// Let the callers pile up behind the first request.
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.leaderboardHits.Load())
}

func TestLeaderboard_CancelledCallerDoesNotFailOthers(t *testing.T) {
	f := &fakeStatsServer{release: make(chan struct{})}
	c := newClient(t, f)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Leaderboard(firstCtx, 10)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.leaderboardHits.Load() == 1 }, time.Second, 5*time.Millisecond)

	type result struct {
		entries []LeaderboardEntry
		err     error
	}
	second := make(chan result, 1)
	go func() {
		entries, err := c.Leaderboard(context.Background(), 10)
		second <- result{entries, err}
	}()
	// Let the second caller join the in-flight request.
	time.Sleep(50 * time.Millisecond)

	cancelFirst()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatalf("cancelled caller did not return")
	}

	close(f.release)
	select {
	case r := <-second:
		require.NoError(t, r.err)
		assert.Len(t, r.entries, 2)
	case <-time.After(time.Second):
		t.Fatalf("second caller did not return")
	}
	assert.Equal(t, int32(1), f.leaderboardHits.Load())
}

func TestPlayerStats(t *testing.T) {
	c := newClient(t, &fakeStatsServer{})

	stats, err := c.PlayerStats(context.Background(), "alice smith")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Wins)

	_, err = c.PlayerStats(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestGameHistory(t *testing.T) {
	c := newClient(t, &fakeStatsServer{})

	_, err := c.GameHistory(context.Background(), "alice", 1, 10)
	assert.ErrorIs(t, err, ErrHistoryUnavailable)

	raw, err := c.GameHistory(context.Background(), "bob", 2, 5)
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[],"page":2}`, string(raw))
}

func TestCreateOrUpdatePlayer(t *testing.T) {
	f := &fakeStatsServer{}
	c := newClient(t, f)

	require.NoError(t, c.CreateOrUpdatePlayer(context.Background(), "alice"))
	err := c.CreateOrUpdatePlayer(context.Background(), "")
	assert.ErrorIs(t, err, ErrUnexpectedStatus)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, []string{"alice"}, f.upserts)
}
