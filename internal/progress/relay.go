// Package progress bridges extraction-side events into the goroutine that
// owns the client connection.
package progress

import "sync"

// Sink receives normalized progress messages. Send is called from the
// goroutine driving the job, so implementations backed by a live connection
// must be drained from that connection's own goroutine via a Relay.
type Sink interface {
	Send(msg any) error
}

// Discard is a Sink that drops every message. The plain request/response
// endpoint uses it: the terminal result is returned directly, and the
// in-flight progress has no reader.
type Discard struct{}

func (Discard) Send(any) error { return nil }

// Relay is a FIFO handoff between the worker goroutine producing events and
// the connection goroutine delivering them. Publishing blocks when the
// buffer is full, so emission order is preserved per job.
type Relay struct {
	ch        chan any
	closeOnce sync.Once
}

func NewRelay(buffer int) *Relay {
	if buffer <= 0 {
		buffer = 64
	}
	return &Relay{ch: make(chan any, buffer)}
}

// Send queues a message for delivery. It implements Sink and never fails;
// delivery problems belong to the draining side.
func (r *Relay) Send(msg any) error {
	r.ch <- msg
	return nil
}

// Close marks the end of the event stream. Idempotent. The publishing side
// must not Send after Close.
func (r *Relay) Close() {
	r.closeOnce.Do(func() { close(r.ch) })
}

// Forward drains the relay into sink until the stream ends. Once a send
// fails the connection is considered gone: remaining events are still
// drained, so the publisher never blocks, but nothing more is written.
// The job itself completes regardless; the store stays authoritative.
func (r *Relay) Forward(sink Sink) {
	dead := false
	for msg := range r.ch {
		if dead {
			continue
		}
		if err := sink.Send(msg); err != nil {
			dead = true
		}
	}
}
