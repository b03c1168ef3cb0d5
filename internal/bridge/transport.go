package bridge

import (
	"context"
	"sync"
)

// Inbound is a received envelope together with the origin of its sender.
type Inbound struct {
	Origin   string
	Envelope Envelope
}

// Transport is one end of a message channel between two contexts. Each end has
// exactly one consumer of Inbound.
type Transport interface {
	Send(ctx context.Context, env Envelope) error
	Inbound() <-chan Inbound
	// Done is closed once the transport can no longer deliver messages.
	Done() <-chan struct{}
	Close() error
}

const pipeBuffer = 64

// pipeEnd is an in-memory Transport end. Messages sent from one end arrive at
// the other stamped with the sender's origin.
type pipeEnd struct {
	origin string
	peer   *pipeEnd
	in     chan Inbound
	done   chan struct{}
	once   *sync.Once
}

// NewPipe connects two in-memory transports. Messages sent on a arrive at b
// with origin originA, and the other way round.
func NewPipe(originA, originB string) (a, b Transport) {
	done := make(chan struct{})
	once := &sync.Once{}
	ea := &pipeEnd{origin: originA, in: make(chan Inbound, pipeBuffer), done: done, once: once}
	eb := &pipeEnd{origin: originB, in: make(chan Inbound, pipeBuffer), done: done, once: once}
	ea.peer, eb.peer = eb, ea
	return ea, eb
}

func (p *pipeEnd) Send(ctx context.Context, env Envelope) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}
	select {
	case p.peer.in <- Inbound{Origin: p.origin, Envelope: env}:
		return nil
	case <-p.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeEnd) Inbound() <-chan Inbound { return p.in }
func (p *pipeEnd) Done() <-chan struct{}   { return p.done }

// Close shuts down both ends.
func (p *pipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
