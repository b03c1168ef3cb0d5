package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 10 * time.Second

// wsTransport carries envelopes as JSON text frames over a websocket. Every
// inbound message is stamped with the origin of the remote end.
type wsTransport struct {
	conn   *websocket.Conn
	origin string

	in        chan Inbound
	done      chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

func newWSTransport(conn *websocket.Conn, remoteOrigin string) *wsTransport {
	t := &wsTransport{
		conn:   conn,
		origin: remoteOrigin,
		in:     make(chan Inbound, pipeBuffer),
		done:   make(chan struct{}),
	}
	go t.readLoop()
	return t
}

func (t *wsTransport) readLoop() {
	defer t.Close()
	for {
		var env Envelope
		if err := t.conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("bridge: websocket read failed", slog.Any("error", err))
			}
			return
		}
		select {
		case t.in <- Inbound{Origin: t.origin, Envelope: env}:
		case <-t.done:
			return
		}
	}
}

func (t *wsTransport) Send(ctx context.Context, env Envelope) error {
	select {
	case <-t.done:
		return ErrClosed
	default:
	}
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	deadline := time.Now().Add(wsWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = t.conn.SetWriteDeadline(deadline)
	return t.conn.WriteJSON(env)
}

func (t *wsTransport) Inbound() <-chan Inbound { return t.in }
func (t *wsTransport) Done() <-chan struct{}   { return t.done }

func (t *wsTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.done)
		err = t.conn.Close()
	})
	return err
}

// ServeWS returns an HTTP handler that upgrades each connection and serves
// host over it. The browser-supplied Origin header becomes the origin of every
// message on that connection, so the host's OriginPolicy applies per message.
func ServeWS(host *Host) http.Handler {
	upgrader := websocket.Upgrader{
		// Origins are checked per message by the host policy.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Debug("bridge: websocket upgrade failed", slog.Any("error", err))
			return
		}
		t := newWSTransport(conn, r.Header.Get("Origin"))
		defer t.Close()
		_ = host.Serve(r.Context(), t)
	})
}

// DialWS connects to a bridge endpoint announcing origin as the local origin.
// Replies are stamped with the endpoint's own origin (scheme and host of rawURL).
func DialWS(ctx context.Context, rawURL, origin string) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("bridge: parse %q: %w", rawURL, err)
	}
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, rawURL, header)
	if err != nil {
		return nil, fmt.Errorf("bridge: dial %s: %w", rawURL, err)
	}
	return newWSTransport(conn, RemoteOrigin(u)), nil
}

// RemoteOrigin maps a ws/wss URL to the http/https origin of that endpoint.
func RemoteOrigin(u *url.URL) string {
	scheme := u.Scheme
	switch scheme {
	case "ws":
		scheme = "http"
	case "wss":
		scheme = "https"
	}
	return scheme + "://" + u.Host
}
