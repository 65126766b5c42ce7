// Package apiclient talks to the game server's REST side: leaderboard,
// per-player stats, player registration and match history. Every response
// body is wrapped as {"data": ...}.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	apiPrefix          = "/api/games"
	sharedFetchTimeout = 10 * time.Second
)

var (
	ErrPlayerNotFound     = errors.New("player not found")
	ErrHistoryUnavailable = errors.New("game history not available yet")
	ErrUnexpectedStatus   = errors.New("unexpected status")
)

type LeaderboardEntry struct {
	ID         string  `json:"_id"`
	Username   string  `json:"username"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Draws      int     `json:"draws"`
	TotalGames int     `json:"totalGames"`
	WinRate    float64 `json:"winRate"`
}

type PlayerStats struct {
	Username   string  `json:"username"`
	Wins       int     `json:"wins"`
	Losses     int     `json:"losses"`
	Draws      int     `json:"draws"`
	TotalGames int     `json:"totalGames"`
	WinRate    float64 `json:"winRate"`
}

type Client struct {
	base string
	http *http.Client
	log  *zap.Logger

	leaderboard singleflight.Group
}

// New returns a client rooted at baseURL. hc and log may be nil.
func New(baseURL string, hc *http.Client, log *zap.Logger) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/") + apiPrefix,
		http: hc,
		log:  log.Named("apiclient"),
	}
}

// Leaderboard fetches the top players. Concurrent calls with the same limit
// share one request; a caller that gives up does not cancel it for the rest.
func (c *Client) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	key := strconv.Itoa(limit)
	fetchCtx := context.WithoutCancel(ctx)

	ch := c.leaderboard.DoChan(key, func() (any, error) {
		fctx, cancel := context.WithTimeout(fetchCtx, sharedFetchTimeout)
		defer cancel()

		var out []LeaderboardEntry
		q := url.Values{"limit": {key}}
		if err := c.get(fctx, "/leaderboard?"+q.Encode(), &out); err != nil {
			return nil, fmt.Errorf("leaderboard: %w", err)
		}
		return out, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	if res.Shared {
		c.log.Debug("leaderboard request shared", zap.Int("limit", limit))
	}
	entries, _ := res.Val.([]LeaderboardEntry)
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	return entries, nil
}

func (c *Client) PlayerStats(ctx context.Context, username string) (PlayerStats, error) {
	var out PlayerStats
	err := c.get(ctx, "/players/"+url.PathEscape(username)+"/stats", &out)
	if errors.Is(err, errNotFound) {
		return PlayerStats{}, ErrPlayerNotFound
	}
	if err != nil {
		return PlayerStats{}, fmt.Errorf("player stats: %w", err)
	}
	return out, nil
}

// CreateOrUpdatePlayer registers username with the stats service.
func (c *Client) CreateOrUpdatePlayer(ctx context.Context, username string) error {
	body, err := json.Marshal(map[string]string{"username": username})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/players", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("upsert player: %w %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

// GameHistory returns the raw history payload; the server does not serve it yet.
func (c *Client) GameHistory(ctx context.Context, username string, page, limit int) (json.RawMessage, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 10
	}
	q := url.Values{"page": {strconv.Itoa(page)}, "limit": {strconv.Itoa(limit)}}
	path := "/players/" + url.PathEscape(username) + "/history?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("game history: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotImplemented:
		return nil, ErrHistoryUnavailable
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("game history: %w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("game history: %w", err)
	}
	if !json.Valid(raw) {
		return nil, errors.New("game history: invalid json")
	}
	return raw, nil
}

var errNotFound = errors.New("not found")

// get fetches path and decodes the {"data": ...} wrapper into out.
func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%w %d", ErrUnexpectedStatus, resp.StatusCode)
	}

	var wrapped struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&wrapped); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if len(wrapped.Data) == 0 || string(wrapped.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(wrapped.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
