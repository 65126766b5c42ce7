package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/DoyleJ11/tictactoe-client/internal/protocol"
)

// ErrSessionGone means the server no longer knows our polling session.
var ErrSessionGone = errors.New("polling session gone")

var errPollClosed = errors.New("polling connection closed")

const (
	defaultPollTimeout = 25 * time.Second
	closeTimeout       = 2 * time.Second
)

// PollingDialer speaks the long-polling fallback:
//
//	POST   {URL}          opens a session, replies {"sid": "..."}
//	GET    {URL}?sid=...  long-polls, replies a JSON array of envelopes
//	POST   {URL}?sid=...  sends one envelope, replies 204
//	DELETE {URL}?sid=...  closes the session
type PollingDialer struct {
	URL         string
	Client      *http.Client
	PollTimeout time.Duration
}

func (PollingDialer) Name() string { return "polling" }

func (d PollingDialer) Dial(ctx context.Context) (Conn, error) {
	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	timeout := d.PollTimeout
	if timeout <= 0 {
		timeout = defaultPollTimeout
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("open session: unexpected status %d", resp.StatusCode)
	}

	var open struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&open); err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	if open.SID == "" {
		return nil, errors.New("open session: empty sid")
	}

	u, err := url.Parse(d.URL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("sid", open.SID)
	u.RawQuery = q.Encode()

	return &pollConn{
		url:     u.String(),
		client:  client,
		timeout: timeout,
		closed:  make(chan struct{}),
	}, nil
}

type pollConn struct {
	url     string
	client  *http.Client
	timeout time.Duration

	// queue is only touched by the single reader.
	queue []protocol.Envelope

	closeOnce sync.Once
	closed    chan struct{}
}

func (c *pollConn) Send(ctx context.Context, env protocol.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrSessionGone
	case resp.StatusCode >= 300:
		return fmt.Errorf("send: unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *pollConn) Recv(ctx context.Context) (protocol.Envelope, error) {
	for len(c.queue) == 0 {
		select {
		case <-c.closed:
			return protocol.Envelope{}, errPollClosed
		default:
		}

		batch, err := c.poll(ctx)
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// Our own poll window lapsed; ask again.
			continue
		}
		if err != nil {
			return protocol.Envelope{}, err
		}
		c.queue = batch
	}

	env := c.queue[0]
	c.queue = c.queue[1:]
	return env, nil
}

func (c *pollConn) poll(ctx context.Context) ([]protocol.Envelope, error) {
	pctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(pctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return nil, ErrSessionGone
	case resp.StatusCode == http.StatusNoContent:
		return nil, nil
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("poll: unexpected status %d", resp.StatusCode)
	}

	var batch []protocol.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return batch, nil
}

func (c *pollConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		req, rerr := http.NewRequestWithContext(ctx, http.MethodDelete, c.url, nil)
		if rerr != nil {
			err = rerr
			return
		}
		resp, rerr := c.client.Do(req)
		if rerr != nil {
			err = rerr
			return
		}
		_ = resp.Body.Close()
	})
	return err
}
