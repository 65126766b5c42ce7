package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"

	"github.com/DoyleJ11/tictactoe-client/internal/protocol"
)

const maxFrameBytes = 1 << 20

// WebSocketDialer opens a text-frame websocket carrying one JSON envelope per message.
type WebSocketDialer struct {
	URL    string
	Header http.Header
	Client *http.Client
}

func (WebSocketDialer) Name() string { return "websocket" }

func (d WebSocketDialer) Dial(ctx context.Context) (Conn, error) {
	ws, resp, err := websocket.Dial(ctx, d.URL, &websocket.DialOptions{
		HTTPClient: d.Client,
		HTTPHeader: d.Header,
	})
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(maxFrameBytes)
	return &wsConn{ws: ws}, nil
}

type wsConn struct {
	ws *websocket.Conn
}

func (c *wsConn) Send(ctx context.Context, env protocol.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.ws.Write(ctx, websocket.MessageText, b)
}

func (c *wsConn) Recv(ctx context.Context) (protocol.Envelope, error) {
	typ, data, err := c.ws.Read(ctx)
	if err != nil {
		return protocol.Envelope{}, err
	}
	if typ != websocket.MessageText {
		return protocol.Envelope{}, fmt.Errorf("%w: binary message", ErrBadFrame)
	}
	var env protocol.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return protocol.Envelope{}, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}
	return env, nil
}

func (c *wsConn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "bye")
}
