package session

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/tictactoe-client/internal/protocol"
	"github.com/DoyleJ11/tictactoe-client/internal/reconcile"
)

var ErrClosed = errors.New("session store closed")

// ErrSendFailed wraps a transport error for an intent whose event was not sent.
var ErrSendFailed = errors.New("send failed")

const upsertTimeout = 5 * time.Second

// Sender is the outbound half of the transport channel.
type Sender interface {
	Send(ctx context.Context, event string, payload any) error
}

// PlayerUpserter registers a username with the stats service.
type PlayerUpserter interface {
	CreateOrUpdatePlayer(ctx context.Context, username string) error
}

// Store owns the Session. Every mutation runs on the loop goroutine; readers
// load an immutable snapshot through an atomic pointer.
type Store struct {
	inbox    chan Msg
	state    atomic.Pointer[reconcile.Session]
	version  int
	watchers map[string]chan Update
	tx       Sender
	players  PlayerUpserter
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewStore starts the store loop. players and log may be nil.
func NewStore(parent context.Context, tx Sender, players PlayerUpserter, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)

	st := &Store{
		inbox:    make(chan Msg, 64),
		watchers: make(map[string]chan Update),
		tx:       tx,
		players:  players,
		log:      log.Named("session"),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	initial := reconcile.NewSession()
	st.state.Store(&initial)

	go st.loop()
	return st
}

// Snapshot returns a consistent copy of the current session.
func (st *Store) Snapshot() reconcile.Session {
	return st.state.Load().Clone()
}

func (st *Store) loop() {
	defer close(st.done)
	for {
		select {
		case <-st.ctx.Done():
			st.shutdown()
			return

		case m := <-st.inbox:
			switch msg := m.(type) {
			case StartMatchmaking:
				r, err := reconcile.StartMatchmaking(st.current(), msg.Username)
				st.commit(r, false)
				if err == nil {
					st.upsertPlayer(r.Session.Identity)
				}
				msg.Reply <- err

			case CancelMatchmaking:
				st.commit(reconcile.CancelMatchmaking(st.current()), true)
				msg.Reply <- nil

			case SubmitMove:
				r, err := reconcile.SubmitMove(st.current(), msg.Position)
				notices, sendErr := st.send(r.Outbound, false)
				if sendErr != nil {
					// The server never saw the move, so no answer will clear it.
					r.Session = reconcile.MoveNotSent(r.Session)
					err = sendErr
				}
				st.install(r.Session, append(r.Notices, notices...))
				msg.Reply <- err

			case LeaveGame:
				st.commit(reconcile.LeaveGame(st.current()), true)
				msg.Reply <- nil

			case RefreshGame:
				r, err := reconcile.RefreshGame(st.current())
				st.commit(r, false)
				msg.Reply <- err

			case ShowLeaderboard:
				st.commit(reconcile.ShowLeaderboard(st.current()), false)
				msg.Reply <- nil

			case CloseLeaderboard:
				st.commit(reconcile.CloseLeaderboard(st.current()), false)
				msg.Reply <- nil

			case FromServer:
				r := reconcile.Apply(st.current(), msg.Event)
				if r.Dropped != "" {
					st.log.Debug("inbound event ignored",
						zap.String("event", msg.Event.EventName()),
						zap.String("reason", r.Dropped))
					break
				}
				if r.PendingOutcome != "" {
					st.log.Debug("pending move resolved",
						zap.String("event", msg.Event.EventName()),
						zap.String("outcome", r.PendingOutcome))
				}
				st.commit(r, false)

			case ConnectionChanged:
				st.commit(reconcile.ConnectionChanged(st.current(), msg.Connected), false)

			case Report:
				st.commit(reconcile.Result{Session: st.current(), Notices: []reconcile.Notice{msg.Notice}}, false)

			case Watch:
				st.watchers[msg.ID] = msg.Outbox
				// New observers get the current session right away.
				msg.Outbox <- Update{Version: st.version, Session: st.Snapshot()}

			case Unwatch:
				if ch, ok := st.watchers[msg.ID]; ok {
					close(ch)
					delete(st.watchers, msg.ID)
				}

			case Teardown:
				st.commit(reconcile.Teardown(st.current()), true)
				msg.Reply <- nil

			case Shutdown:
				st.shutdown()
				return
			}
		}
	}
}

func (st *Store) current() reconcile.Session {
	return *st.state.Load()
}

// commit sends r's outbound events, then installs r.Session and tells observers.
// bestEffort sends only log their failures.
func (st *Store) commit(r reconcile.Result, bestEffort bool) {
	notices, _ := st.send(r.Outbound, bestEffort)
	st.install(r.Session, append(r.Notices, notices...))
}

// send emits each event in order. Failed non-best-effort sends come back as
// transport notices along with the first error.
func (st *Store) send(out []protocol.Outbound, bestEffort bool) ([]reconcile.Notice, error) {
	var notices []reconcile.Notice
	var first error
	for _, m := range out {
		err := st.tx.Send(st.ctx, m.EventName(), m)
		if err == nil {
			st.log.Debug("sent", zap.String("event", m.EventName()))
			continue
		}
		if bestEffort {
			st.log.Debug("best-effort send failed", zap.String("event", m.EventName()), zap.Error(err))
			continue
		}
		st.log.Warn("send failed", zap.String("event", m.EventName()), zap.Error(err))
		notices = append(notices, reconcile.Notice{
			Kind:    reconcile.NoticeTransport,
			Message: fmt.Sprintf("Could not reach server (%s): %v", m.EventName(), err),
		})
		if first == nil {
			first = fmt.Errorf("%w: %w", ErrSendFailed, err)
		}
	}
	return notices, first
}

func (st *Store) install(next reconcile.Session, notices []reconcile.Notice) {
	st.state.Store(&next)
	st.version++

	for _, n := range notices {
		fields := []zap.Field{zap.String("kind", string(n.Kind)), zap.String("message", n.Message)}
		switch n.Kind {
		case reconcile.NoticeWarning, reconcile.NoticeIdentityMismatch:
			st.log.Warn("notice", fields...)
		default:
			st.log.Info("notice", fields...)
		}
	}

	st.broadcast(Update{Version: st.version, Session: next.Clone(), Notices: notices})
}

func (st *Store) broadcast(u Update) {
	for id, ch := range st.watchers {
		select {
		case ch <- u:
			// ok
		default:
			// Observer is slow/full - drop it.
			st.log.Debug("dropping slow observer", zap.String("watcher_id", id))
			close(ch)
			delete(st.watchers, id)
		}
	}
}

func (st *Store) upsertPlayer(username string) {
	if st.players == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(st.ctx, upsertTimeout)
		defer cancel()
		if err := st.players.CreateOrUpdatePlayer(ctx, username); err != nil {
			st.log.Debug("player upsert failed (best-effort)", zap.String("username", username), zap.Error(err))
		}
	}()
}

func (st *Store) shutdown() {
	for id, ch := range st.watchers {
		close(ch) // no more updates
		delete(st.watchers, id)
	}
	st.cancel()
}

// Inbox exposes the loop's mailbox for the transport bridge and tests.
func (st *Store) Inbox() chan<- Msg { return st.inbox }

// Done is closed once the loop has exited.
func (st *Store) Done() <-chan struct{} { return st.done }

func (st *Store) post(ctx context.Context, m Msg) error {
	select {
	case st.inbox <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-st.done:
		return ErrClosed
	}
}

func (st *Store) call(ctx context.Context, build func(reply chan error) Msg) error {
	reply := make(chan error, 1)
	if err := st.post(ctx, build(reply)); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-st.done:
		return ErrClosed
	}
}

func (st *Store) StartMatchmaking(ctx context.Context, username string) error {
	return st.call(ctx, func(reply chan error) Msg { return StartMatchmaking{Username: username, Reply: reply} })
}

func (st *Store) CancelMatchmaking(ctx context.Context) error {
	return st.call(ctx, func(reply chan error) Msg { return CancelMatchmaking{Reply: reply} })
}

func (st *Store) SubmitMove(ctx context.Context, position int) error {
	return st.call(ctx, func(reply chan error) Msg { return SubmitMove{Position: position, Reply: reply} })
}

func (st *Store) LeaveGame(ctx context.Context) error {
	return st.call(ctx, func(reply chan error) Msg { return LeaveGame{Reply: reply} })
}

func (st *Store) RefreshGame(ctx context.Context) error {
	return st.call(ctx, func(reply chan error) Msg { return RefreshGame{Reply: reply} })
}

func (st *Store) ShowLeaderboard(ctx context.Context) error {
	return st.call(ctx, func(reply chan error) Msg { return ShowLeaderboard{Reply: reply} })
}

func (st *Store) CloseLeaderboard(ctx context.Context) error {
	return st.call(ctx, func(reply chan error) Msg { return CloseLeaderboard{Reply: reply} })
}

func (st *Store) Teardown(ctx context.Context) error {
	return st.call(ctx, func(reply chan error) Msg { return Teardown{Reply: reply} })
}

// Deliver queues an inbound server event. It blocks rather than drop, so
// events are applied strictly in the order they were delivered.
func (st *Store) Deliver(in protocol.Inbound) {
	if err := st.post(st.ctx, FromServer{Event: in}); err != nil {
		st.log.Debug("inbound event lost after shutdown", zap.String("event", in.EventName()))
	}
}

func (st *Store) SetConnected(connected bool) {
	_ = st.post(st.ctx, ConnectionChanged{Connected: connected})
}

func (st *Store) Notify(n reconcile.Notice) {
	_ = st.post(st.ctx, Report{Notice: n})
}

// Watch registers an observer. The returned channel receives the current
// session immediately and every update after; it is closed when the observer
// falls behind, stop is called, or the store shuts down.
func (st *Store) Watch(ctx context.Context, buffer int) (<-chan Update, func(), error) {
	if buffer < 1 {
		buffer = 1
	}
	id := uuid.NewString()
	out := make(chan Update, buffer)
	if err := st.post(ctx, Watch{ID: id, Outbox: out}); err != nil {
		return nil, func() {}, err
	}
	stop := func() { _ = st.post(context.Background(), Unwatch{ID: id}) }
	return out, stop, nil
}

// Close stops the loop and waits for it to exit.
func (st *Store) Close() {
	select {
	case st.inbox <- Shutdown{}:
	case <-st.done:
	}
	<-st.done
}
