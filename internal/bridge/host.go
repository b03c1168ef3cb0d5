package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Handler answers one request. The returned fields are flattened into the
// reply; a non-nil error produces an ok=false reply carrying its message.
type Handler func(ctx context.Context, req *Envelope) (map[string]any, error)

// Host dispatches inbound requests to handlers. Messages are taken off the
// transport in order by a single loop, but each handler runs in its own
// goroutine, so replies may complete out of order.
type Host struct {
	name    string
	origins OriginPolicy

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewHost returns a host that accepts requests only from origins trusted by policy.
func NewHost(name string, policy OriginPolicy) *Host {
	return &Host{name: name, origins: policy, handlers: make(map[string]Handler)}
}

// Handle registers fn for action, replacing any previous handler.
func (h *Host) Handle(action string, fn Handler) {
	h.mu.Lock()
	h.handlers[action] = fn
	h.mu.Unlock()
}

func (h *Host) handler(action string) (Handler, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fn, ok := h.handlers[action]
	return fn, ok
}

// Serve consumes t until ctx ends or the transport closes. In-flight
// handlers keep running and their replies are dropped if t is gone.
func (h *Host) Serve(ctx context.Context, t Transport) error {
	for {
		select {
		case in := <-t.Inbound():
			h.accept(ctx, t, in)
		case <-t.Done():
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *Host) accept(ctx context.Context, t Transport, in Inbound) {
	if !h.origins.Trusted(in.Origin) {
		counters.Untrusted.Add(1)
		slog.Debug("bridge: dropped request from untrusted origin",
			slog.String("host", h.name), slog.String("origin", in.Origin))
		return
	}
	env := in.Envelope
	if env.Action == "" || env.IsReply() {
		return
	}
	fn, ok := h.handler(env.Action)
	if !ok {
		slog.Warn("bridge: unsupported action",
			slog.String("host", h.name), slog.String("action", env.Action))
		return
	}
	go h.dispatch(ctx, t, &env, fn)
}

func (h *Host) dispatch(ctx context.Context, t Transport, req *Envelope, fn Handler) {
	counters.Handled.Add(1)
	fields, err := h.run(ctx, req, fn)
	if req.RequestID == "" {
		if err != nil {
			slog.Debug("bridge: notification handler failed",
				slog.String("host", h.name), slog.String("action", req.Action), slog.Any("error", err))
		}
		return
	}

	var reply Envelope
	if err != nil {
		reply = ReplyError(req, err)
	} else if reply, err = Reply(req, fields); err != nil {
		reply = ReplyError(req, err)
	}
	// The requester may be gone already; a failed post is not an error here.
	if err := t.Send(ctx, reply); err != nil {
		slog.Debug("bridge: reply not delivered",
			slog.String("host", h.name), slog.String("action", reply.Action), slog.Any("error", err))
	}
}

func (h *Host) run(ctx context.Context, req *Envelope, fn Handler) (fields map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("bridge: handler panic",
				slog.String("host", h.name), slog.String("action", req.Action), slog.Any("panic", r))
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return fn(ctx, req)
}

// Forward returns a handler that re-issues each request as action on c, with
// its own timeout, and hands back the reply fields. The caller of the outer
// request never sees the nested hop.
func Forward(c *Client, action string, timeout time.Duration) Handler {
	return func(ctx context.Context, req *Envelope) (map[string]any, error) {
		env, err := c.Call(ctx, action, req.Payload, timeout)
		if err != nil {
			return nil, err
		}
		fields := make(map[string]any, len(env.Fields))
		for k, v := range env.Fields {
			fields[k] = v
		}
		return fields, nil
	}
}
