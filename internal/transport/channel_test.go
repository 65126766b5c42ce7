package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DoyleJ11/tictactoe-client/internal/protocol"
)

// echoReply turns join_queue into queue_joined so tests can see a round trip.
func echoReply(env protocol.Envelope) protocol.Envelope {
	var in struct {
		Username string `json:"username"`
	}
	_ = json.Unmarshal(env.Data, &in)
	data, _ := json.Marshal(map[string]string{"message": "queued " + in.Username})
	return protocol.Envelope{Event: protocol.EvtQueueJoined, Data: data}
}

func wsEcho(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Event == "garbage" {
			_ = conn.Write(r.Context(), websocket.MessageText, []byte("not json"))
			continue
		}
		out, _ := json.Marshal(echoReply(env))
		if err := conn.Write(r.Context(), websocket.MessageText, out); err != nil {
			return
		}
	}
}

// wsHangup accepts and immediately goes away.
func wsHangup(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	conn.Close(websocket.StatusGoingAway, "server restarting")
}

type pollServer struct {
	mu       sync.Mutex
	sessions map[string]chan protocol.Envelope
}

func (p *pollServer) handle(w http.ResponseWriter, r *http.Request) {
	sid := r.URL.Query().Get("sid")
	if sid == "" {
		if r.Method != http.MethodPost {
			http.Error(w, "missing sid", http.StatusBadRequest)
			return
		}
		sid = uuid.NewString()
		p.mu.Lock()
		p.sessions[sid] = make(chan protocol.Envelope, 16)
		p.mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]string{"sid": sid})
		return
	}

	p.mu.Lock()
	out, ok := p.sessions[sid]
	p.mu.Unlock()
	if !ok {
		http.Error(w, "unknown sid", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var env protocol.Envelope
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		out <- echoReply(env)
		w.WriteHeader(http.StatusNoContent)

	case http.MethodGet:
		select {
		case env := <-out:
			_ = json.NewEncoder(w).Encode([]protocol.Envelope{env})
		case <-time.After(200 * time.Millisecond):
			_ = json.NewEncoder(w).Encode([]protocol.Envelope{})
		case <-r.Context().Done():
		}

	case http.MethodDelete:
		p.mu.Lock()
		delete(p.sessions, sid)
		p.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	ps := &pollServer{sessions: make(map[string]chan protocol.Envelope)}

	r := chi.NewRouter()
	r.Get("/ws", wsEcho)
	r.Get("/hangup", wsHangup)
	r.HandleFunc("/poll", ps.handle)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func recv[T any](t *testing.T, ch <-chan T, within time.Duration) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(within):
		t.Fatalf("timed out waiting")
		var zero T
		return zero
	}
}

func TestChannel_WebSocketRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	ch := NewChannel(Options{Dialers: []Dialer{WebSocketDialer{URL: wsURL(srv, "/ws")}}})

	connected := make(chan struct{}, 1)
	ch.OnConnect(func() { connected <- struct{}{} })

	order := make(chan string, 2)
	ch.Subscribe(protocol.EvtQueueJoined, func(data json.RawMessage) { order <- "first:" + string(data) })
	ch.Subscribe(protocol.EvtQueueJoined, func(json.RawMessage) { order <- "second" })

	ctx := context.Background()
	require.NoError(t, ch.Connect(ctx))
	defer ch.Disconnect()

	recv(t, connected, time.Second)
	assert.True(t, ch.IsConnected())
	assert.Equal(t, "websocket", ch.Transport())

	require.NoError(t, ch.Send(ctx, protocol.EvtJoinQueue, protocol.JoinQueue{Username: "alice"}))

	assert.Equal(t, `first:{"message":"queued alice"}`, recv(t, order, time.Second))
	assert.Equal(t, "second", recv(t, order, time.Second))
}

func TestChannel_FallsBackToPolling(t *testing.T) {
	srv := newTestServer(t)
	ch := NewChannel(Options{Dialers: []Dialer{
		WebSocketDialer{URL: wsURL(srv, "/missing")},
		PollingDialer{URL: srv.URL + "/poll", PollTimeout: time.Second},
	}})

	got := make(chan json.RawMessage, 1)
	ch.Subscribe(protocol.EvtQueueJoined, func(data json.RawMessage) { got <- data })

	ctx := context.Background()
	require.NoError(t, ch.Connect(ctx))
	defer ch.Disconnect()
	assert.Equal(t, "polling", ch.Transport())

	require.NoError(t, ch.Send(ctx, protocol.EvtJoinQueue, protocol.JoinQueue{Username: "bob"}))
	assert.JSONEq(t, `{"message":"queued bob"}`, string(recv(t, got, 2*time.Second)))
}

func TestChannel_NoTransport(t *testing.T) {
	srv := newTestServer(t)
	ch := NewChannel(Options{Dialers: []Dialer{
		WebSocketDialer{URL: wsURL(srv, "/missing")},
		PollingDialer{URL: srv.URL + "/missing"},
	}})

	err := ch.Connect(context.Background())
	require.ErrorIs(t, err, ErrNoTransport)
	assert.False(t, ch.IsConnected())
}

func TestChannel_SendWhileDisconnected(t *testing.T) {
	ch := NewChannel(Options{})
	err := ch.Send(context.Background(), protocol.EvtLeaveQueue, protocol.LeaveQueue{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestChannel_DisconnectIsIdempotent(t *testing.T) {
	srv := newTestServer(t)
	ch := NewChannel(Options{Dialers: []Dialer{WebSocketDialer{URL: wsURL(srv, "/ws")}}})

	var mu sync.Mutex
	downs := 0
	ch.OnDisconnect(func() {
		mu.Lock()
		downs++
		mu.Unlock()
	})

	require.NoError(t, ch.Connect(context.Background()))
	require.NoError(t, ch.Disconnect())
	require.NoError(t, ch.Disconnect())

	assert.False(t, ch.IsConnected())
	assert.Equal(t, "", ch.Transport())
	mu.Lock()
	assert.Equal(t, 1, downs)
	mu.Unlock()
}

func TestChannel_ServerHangupFiresDisconnect(t *testing.T) {
	srv := newTestServer(t)
	ch := NewChannel(Options{Dialers: []Dialer{WebSocketDialer{URL: wsURL(srv, "/hangup")}}})

	down := make(chan struct{}, 1)
	ch.OnDisconnect(func() { down <- struct{}{} })

	require.NoError(t, ch.Connect(context.Background()))
	recv(t, down, 2*time.Second)
	assert.False(t, ch.IsConnected())

	// Reconnecting after a loss is allowed.
	up := make(chan struct{}, 1)
	ch.OnConnect(func() { up <- struct{}{} })
	require.NoError(t, ch.Connect(context.Background()))
	recv(t, up, time.Second)
}

func TestChannel_Unsubscribe(t *testing.T) {
	srv := newTestServer(t)
	ch := NewChannel(Options{Dialers: []Dialer{WebSocketDialer{URL: wsURL(srv, "/ws")}}})

	removed := make(chan struct{}, 1)
	kept := make(chan struct{}, 1)
	off := ch.Subscribe(protocol.EvtQueueJoined, func(json.RawMessage) { removed <- struct{}{} })
	ch.Subscribe(protocol.EvtQueueJoined, func(json.RawMessage) { kept <- struct{}{} })
	off()

	ctx := context.Background()
	require.NoError(t, ch.Connect(ctx))
	defer ch.Disconnect()
	require.NoError(t, ch.Send(ctx, protocol.EvtJoinQueue, protocol.JoinQueue{Username: "carol"}))

	recv(t, kept, time.Second)
	select {
	case <-removed:
		t.Fatalf("unsubscribed handler ran")
	default:
	}
}

func TestChannel_MalformedFrameKeepsConnection(t *testing.T) {
	srv := newTestServer(t)
	ch := NewChannel(Options{Dialers: []Dialer{WebSocketDialer{URL: wsURL(srv, "/ws")}}})

	got := make(chan struct{}, 1)
	ch.Subscribe(protocol.EvtQueueJoined, func(json.RawMessage) { got <- struct{}{} })

	ctx := context.Background()
	require.NoError(t, ch.Connect(ctx))
	defer ch.Disconnect()

	require.NoError(t, ch.Send(ctx, "garbage", nil))
	require.NoError(t, ch.Send(ctx, protocol.EvtJoinQueue, protocol.JoinQueue{Username: "dave"}))

	recv(t, got, time.Second)
	assert.True(t, ch.IsConnected())
}
