package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tictactoe-client/internal/protocol"
	"github.com/DoyleJ11/tictactoe-client/internal/reconcile"
	"github.com/DoyleJ11/tictactoe-client/internal/session"
	"github.com/DoyleJ11/tictactoe-client/internal/transport"
)

const (
	minBackoff      = 500 * time.Millisecond
	maxBackoff      = 15 * time.Second
	teardownTimeout = 2 * time.Second
)

// Channel is the subset of *transport.Channel the client drives.
type Channel interface {
	Connect(ctx context.Context) error
	Disconnect() error
	IsConnected() bool
	Send(ctx context.Context, event string, payload any) error
	Subscribe(event string, h transport.Handler) func()
	OnConnect(fn func())
	OnDisconnect(fn func())
}

// Client binds one transport channel to one session store.
type Client struct {
	ch    Channel
	store *session.Store
	log   *zap.Logger

	lost      chan struct{}
	unsub     []func()
	closeOnce sync.Once
	closeErr  error
}

// New builds the store and subscribes it to every inbound event. The store
// outlives any caller context so teardown can still reach the server.
func New(ch Channel, players session.PlayerUpserter, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		ch:    ch,
		store: session.NewStore(context.Background(), ch, players, log),
		log:   log.Named("client"),
		lost:  make(chan struct{}, 1),
	}

	for _, name := range protocol.InboundEvents {
		c.unsub = append(c.unsub, ch.Subscribe(name, func(data json.RawMessage) {
			c.onEvent(name, data)
		}))
	}
	ch.OnConnect(func() { c.store.SetConnected(true) })
	ch.OnDisconnect(func() {
		c.store.SetConnected(false)
		select {
		case c.lost <- struct{}{}:
		default:
		}
	})
	return c
}

func (c *Client) Store() *session.Store { return c.store }

func (c *Client) onEvent(name string, data json.RawMessage) {
	in, err := protocol.Decode(protocol.Envelope{Event: name, Data: data})
	if err != nil {
		c.log.Warn("undecodable server event", zap.String("event", name), zap.Error(err))
		c.store.Notify(reconcile.Notice{
			Kind:    reconcile.NoticeTransport,
			Message: fmt.Sprintf("Ignored malformed %s from server", name),
		})
		return
	}
	c.store.Deliver(in)
}

// Run keeps the channel connected until ctx is done, backing off between
// failed attempts. It returns nil on cancellation.
func (c *Client) Run(ctx context.Context) error {
	backoff := minBackoff
	for {
		if !c.ch.IsConnected() {
			if err := c.ch.Connect(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				c.log.Warn("connect failed", zap.Duration("retry_in", backoff), zap.Error(err))
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoff):
				}
				backoff = min(backoff*2, maxBackoff)
				continue
			}
			backoff = minBackoff
		}

		select {
		case <-ctx.Done():
			return nil
		case <-c.lost:
		}
	}
}

// Close cancels matchmaking best-effort, drops the connection and stops the
// store. It is safe to call more than once.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()

		var errs error
		if err := c.store.Teardown(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("teardown: %w", err))
		}
		for _, off := range c.unsub {
			off()
		}
		if err := c.ch.Disconnect(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("disconnect: %w", err))
		}
		c.store.Close()
		c.closeErr = errs
	})
	return c.closeErr
}
