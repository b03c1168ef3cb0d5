package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultTimeout applies when Call is given a non-positive timeout.
const DefaultTimeout = 10 * time.Second

// Client issues requests over a Transport and routes replies back to the
// waiting caller. A pending entry resolves at most once: the first matching
// reply or the timeout removes it, and anything arriving later is dropped.
type Client struct {
	name    string
	t       Transport
	origins OriginPolicy

	seq       atomic.Uint64
	listeners atomic.Int32
	listen    sync.Once

	mu      sync.Mutex
	pending map[string]chan Envelope
}

// NewClient returns a client for t that accepts replies only from origins
// trusted by policy.
func NewClient(name string, t Transport, policy OriginPolicy) *Client {
	return &Client{
		name:    name,
		t:       t,
		origins: policy,
		pending: make(map[string]chan Envelope),
	}
}

func pendingKey(resultAction, requestID string) string {
	return resultAction + ":" + requestID
}

// nextID is unique within the process lifetime: wall-clock millis plus a
// per-client counter.
func (c *Client) nextID() string {
	return strconv.FormatInt(time.Now().UnixMilli(), 10) + "_" + strconv.FormatUint(c.seq.Add(1), 10)
}

// Listen installs the reply listener. Only the first call has an effect.
func (c *Client) Listen() {
	c.listen.Do(func() {
		c.listeners.Add(1)
		go c.loop()
	})
}

func (c *Client) loop() {
	for {
		select {
		case in := <-c.t.Inbound():
			c.route(in)
		case <-c.t.Done():
			return
		}
	}
}

func (c *Client) route(in Inbound) {
	if !c.origins.Trusted(in.Origin) {
		counters.Untrusted.Add(1)
		slog.Debug("bridge: dropped message from untrusted origin",
			slog.String("client", c.name), slog.String("origin", in.Origin))
		return
	}
	env := in.Envelope
	if env.Action == "" || env.RequestID == "" {
		return
	}
	key := pendingKey(env.Action, env.RequestID)

	c.mu.Lock()
	ch, ok := c.pending[key]
	if ok {
		delete(c.pending, key)
	}
	c.mu.Unlock()

	if !ok {
		counters.Unroutable.Add(1)
		slog.Debug("bridge: no pending request for reply",
			slog.String("client", c.name), slog.String("key", key))
		return
	}
	ch <- env
}

// forget removes key and reports whether it was still pending.
func (c *Client) forget(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[key]; !ok {
		return false
	}
	delete(c.pending, key)
	return true
}

// Pending returns the number of requests awaiting a reply.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Call sends action with payload and waits for the matching reply.
// It fails with ErrTimeout after timeout, with *RemoteError when the reply
// has ok=false, and with ctx.Err() when ctx ends first.
func (c *Client) Call(ctx context.Context, action string, payload any, timeout time.Duration) (*Envelope, error) {
	c.Listen()
	counters.Calls.Add(1)
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	id := c.nextID()
	req, err := NewRequest(action, id, payload)
	if err != nil {
		return nil, err
	}

	// Register before sending so the earliest possible reply finds its entry.
	key := pendingKey(ResultAction(action), id)
	ch := make(chan Envelope, 1)
	c.mu.Lock()
	c.pending[key] = ch
	c.mu.Unlock()

	if err := c.t.Send(ctx, req); err != nil {
		c.forget(key)
		return nil, fmt.Errorf("bridge: send %s: %w", action, err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case env := <-ch:
		return settle(action, env)
	case <-timer.C:
		if !c.forget(key) {
			// The reply won the race and is already buffered.
			return settle(action, <-ch)
		}
		counters.Timeouts.Add(1)
		return nil, fmt.Errorf("%s after %s: %w", action, timeout, ErrTimeout)
	case <-ctx.Done():
		c.forget(key)
		return nil, ctx.Err()
	case <-c.t.Done():
		c.forget(key)
		return nil, ErrClosed
	}
}

// Notify sends action as a one-way message. It carries no request id, so the
// receiving host runs its handler without replying.
func (c *Client) Notify(ctx context.Context, action string, payload any) error {
	req, err := NewRequest(action, "", payload)
	if err != nil {
		return err
	}
	if err := c.t.Send(ctx, req); err != nil {
		return fmt.Errorf("bridge: send %s: %w", action, err)
	}
	return nil
}

func settle(action string, env Envelope) (*Envelope, error) {
	if !env.OK {
		msg := env.Error
		if msg == "" {
			msg = "request failed"
		}
		return &env, &RemoteError{Action: action, Message: msg}
	}
	return &env, nil
}
