package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/joasgard/basisdesk/internal/domain"
)

const (
	// writeWait is the time allowed to write a control message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// pingPeriod sends pings to the peer at this interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
)

// WSTransport is a single live connection to the engine push stream. The
// stream is receive-only: the engine pushes JSON events and the client never
// sends application messages. Reconnection policy lives in the push channel,
// not here; a transport is used once and discarded.
type WSTransport struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	done      chan struct{}
}

// DialPush opens a push stream connection. token is sent as a bearer header
// during the handshake.
func DialPush(ctx context.Context, wsURL, token string) (*WSTransport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 15 * time.Second,
	}

	header := http.Header{}
	if token != "" {
		header.Set("Authorization", "Bearer "+token)
	}

	conn, _, err := dialer.DialContext(ctx, wsURL, header)
	if err != nil {
		return nil, fmt.Errorf("engine/ws: connect: %w", err)
	}

	t := &WSTransport{
		conn: conn,
		done: make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	go t.pingLoop()

	return t, nil
}

// ReadEvent blocks until the next push event arrives. It returns an error
// when the connection drops or Close is called.
func (t *WSTransport) ReadEvent() (domain.PushEvent, error) {
	_, raw, err := t.conn.ReadMessage()
	if err != nil {
		return domain.PushEvent{}, fmt.Errorf("engine/ws: read: %w", err)
	}

	var evt domain.PushEvent
	if err := json.Unmarshal(raw, &evt); err != nil {
		return domain.PushEvent{}, fmt.Errorf("engine/ws: decode event: %w", err)
	}
	return evt, nil
}

// Close shuts down the connection. Safe to call more than once.
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		_ = t.conn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
		err = t.conn.Close()
	})
	return err
}

// pingLoop sends periodic pings to keep the connection alive.
func (t *WSTransport) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			t.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := t.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
