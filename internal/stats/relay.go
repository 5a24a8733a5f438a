// Package stats feeds the operator-facing stats channel: a WebSocket relay
// off the upstream pipeline feed plus a cron poller that synthesizes queue
// snapshots when the feed is quiet.
package stats

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"reviewdeck/internal/middleware"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second

	relayPongWait = 60 * time.Second
	relayPingTick = 25 * time.Second
)

// Publisher pushes a serialized snapshot to the stats channel.
// *notifications.Notifier satisfies it.
type Publisher interface {
	PublishStats(ctx context.Context, payload string) error
}

// Relay maintains a client WebSocket connection to the upstream stats feed
// and republishes every frame to the local stats channel. Reconnects with
// exponential backoff; frames that are not valid JSON are dropped.
type Relay struct {
	url  string
	pub  Publisher
	dial func(ctx context.Context, url string) (*websocket.Conn, error)
}

func NewRelay(url string, pub Publisher) *Relay {
	return &Relay{
		url: url,
		pub: pub,
		dial: func(ctx context.Context, url string) (*websocket.Conn, error) {
			conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
			if resp != nil && resp.Body != nil {
				_ = resp.Body.Close()
			}
			return conn, err
		},
	}
}

// Run connects, pumps, and reconnects until the context is canceled.
// Intended to be started as a goroutine from main.
func (r *Relay) Run(ctx context.Context) {
	if r.url == "" {
		middleware.Logger.Info("stats relay disabled: no upstream feed URL configured")
		return
	}

	backoff := initialBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := r.dial(ctx, r.url)
		if err != nil {
			middleware.Logger.Warn("stats relay dial failed",
				"url", r.url, "backoff", backoff.String(), "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}

		middleware.Logger.Info("stats relay connected", "url", r.url)
		backoff = initialBackoff
		r.pump(ctx, conn)
	}
}

// pump reads frames off one connection until it breaks.
func (r *Relay) pump(ctx context.Context, conn *websocket.Conn) {
	defer func() { _ = conn.Close() }()

	// Unblock the read loop when the context is canceled.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
		case <-stop:
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(relayPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(relayPongWait))
	})

	ping := time.NewTicker(relayPingTick)
	defer ping.Stop()
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-ping.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				middleware.Logger.Warn("stats relay connection lost", "error", err)
			}
			return
		}
		if !json.Valid(message) {
			middleware.Logger.Warn("stats relay dropped malformed frame", "bytes", len(message))
			continue
		}
		if err := r.pub.PublishStats(ctx, string(message)); err != nil {
			middleware.Logger.Warn("stats relay publish failed", "error", err)
		}
	}
}
