package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tictactoe-client/internal/protocol"
)

var ErrNotConnected = errors.New("not connected")
var ErrNoTransport = errors.New("no transport could connect")

// ErrBadFrame marks a frame that could not be parsed. The connection survives it.
var ErrBadFrame = errors.New("bad frame")

const (
	defaultDialTimeout  = 10 * time.Second
	defaultWriteTimeout = 5 * time.Second
)

// Handler receives the raw payload of one inbound event.
type Handler func(data json.RawMessage)

// Conn is one established connection, whatever carries it.
type Conn interface {
	Send(ctx context.Context, env protocol.Envelope) error
	// Recv blocks for the next frame. Errors other than ErrBadFrame end the connection.
	Recv(ctx context.Context) (protocol.Envelope, error)
	Close() error
}

type Dialer interface {
	Name() string
	Dial(ctx context.Context) (Conn, error)
}

type Options struct {
	// Dialers are tried in order; the first to connect wins.
	Dialers      []Dialer
	DialTimeout  time.Duration
	WriteTimeout time.Duration
	Logger       *zap.Logger
}

type subscription struct {
	id uint64
	fn Handler
}

// Channel is a single persistent event connection to one server.
type Channel struct {
	dialers      []Dialer
	dialTimeout  time.Duration
	writeTimeout time.Duration
	log          *zap.Logger

	mu        sync.Mutex
	conn      Conn
	transport string
	gen       uint64
	stopRead  context.CancelFunc
	connected atomic.Bool

	hmu          sync.RWMutex
	nextID       uint64
	handlers     map[string][]subscription
	onConnect    []func()
	onDisconnect []func()
}

func NewChannel(opts Options) *Channel {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Channel{
		dialers:      opts.Dialers,
		dialTimeout:  opts.DialTimeout,
		writeTimeout: opts.WriteTimeout,
		log:          log.Named("transport"),
		handlers:     make(map[string][]subscription),
	}
}

// Connect establishes the connection, or does nothing if one is up.
func (c *Channel) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}

	var errs error
	for _, d := range c.dialers {
		dctx, cancel := context.WithTimeout(ctx, c.dialTimeout)
		conn, err := d.Dial(dctx)
		cancel()
		if err != nil {
			c.log.Warn("transport failed, trying next", zap.String("transport", d.Name()), zap.Error(err))
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", d.Name(), err))
			if ctx.Err() != nil {
				break
			}
			continue
		}

		c.gen++
		readCtx, stop := context.WithCancel(context.Background())
		c.conn = conn
		c.transport = d.Name()
		c.stopRead = stop
		c.connected.Store(true)
		go c.readLoop(readCtx, conn, c.gen)
		c.mu.Unlock()

		c.log.Info("connected", zap.String("transport", d.Name()))
		c.fire(true)
		return nil
	}
	c.mu.Unlock()

	if errs == nil {
		return ErrNoTransport
	}
	return fmt.Errorf("%w: %v", ErrNoTransport, errs)
}

// Disconnect tears the connection down. Calling it again is a no-op.
func (c *Channel) Disconnect() error {
	c.mu.Lock()
	conn := c.detach()
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	err := conn.Close()
	c.log.Info("disconnected")
	c.fire(false)
	return err
}

// detach clears the current connection; c.mu must be held.
func (c *Channel) detach() Conn {
	conn := c.conn
	if conn == nil {
		return nil
	}
	c.conn = nil
	c.transport = ""
	c.gen++
	c.stopRead()
	c.connected.Store(false)
	return conn
}

func (c *Channel) IsConnected() bool {
	return c.connected.Load()
}

// Transport names the transport currently in use, or "" when down.
func (c *Channel) Transport() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transport
}

// Send emits one named event. There is no delivery acknowledgment.
func (c *Channel) Send(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}

	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	wctx, cancel := context.WithTimeout(ctx, c.writeTimeout)
	defer cancel()
	if err := conn.Send(wctx, protocol.Envelope{Event: event, Data: data}); err != nil {
		return fmt.Errorf("send %s: %w", event, err)
	}
	return nil
}

// Subscribe registers h for every inbound occurrence of event. Handlers for
// the same event run in registration order. The returned func unsubscribes.
func (c *Channel) Subscribe(event string, h Handler) func() {
	c.hmu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[event] = append(c.handlers[event], subscription{id: id, fn: h})
	c.hmu.Unlock()

	return func() {
		c.hmu.Lock()
		defer c.hmu.Unlock()
		c.handlers[event] = slices.DeleteFunc(c.handlers[event], func(s subscription) bool { return s.id == id })
	}
}

func (c *Channel) OnConnect(fn func()) {
	c.hmu.Lock()
	c.onConnect = append(c.onConnect, fn)
	c.hmu.Unlock()
}

func (c *Channel) OnDisconnect(fn func()) {
	c.hmu.Lock()
	c.onDisconnect = append(c.onDisconnect, fn)
	c.hmu.Unlock()
}

func (c *Channel) fire(connected bool) {
	c.hmu.RLock()
	fns := c.onDisconnect
	if connected {
		fns = c.onConnect
	}
	fns = slices.Clone(fns)
	c.hmu.RUnlock()

	for _, fn := range fns {
		fn()
	}
}

func (c *Channel) readLoop(ctx context.Context, conn Conn, gen uint64) {
	for {
		env, err := conn.Recv(ctx)
		if errors.Is(err, ErrBadFrame) {
			c.log.Warn("discarding malformed frame", zap.Error(err))
			continue
		}
		if err != nil {
			c.lost(gen, err)
			return
		}
		c.dispatch(env)
	}
}

// lost handles a connection that died underneath us.
func (c *Channel) lost(gen uint64, cause error) {
	c.mu.Lock()
	if c.gen != gen {
		// Disconnect already ran for this connection.
		c.mu.Unlock()
		return
	}
	conn := c.detach()
	c.mu.Unlock()
	if conn == nil {
		return
	}

	c.log.Warn("connection lost", zap.Error(cause))
	if err := conn.Close(); err != nil {
		c.log.Debug("close after loss", zap.Error(err))
	}
	c.fire(false)
}

func (c *Channel) dispatch(env protocol.Envelope) {
	c.hmu.RLock()
	subs := slices.Clone(c.handlers[env.Event])
	c.hmu.RUnlock()

	if len(subs) == 0 {
		c.log.Debug("no handler for event", zap.String("event", env.Event))
		return
	}
	for _, s := range subs {
		s.fn(env.Data)
	}
}
