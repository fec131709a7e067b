// Package reactor implements the single-threaded cooperative event loop
// that owns ingress dispatch, FSM/session timers, and egress queues
// (spec.md section 5): one goroutine drains a single channel fed by
// Deliver, timer expiries, and collaborator-completion callbacks, so no
// two handlers ever run concurrently.
package reactor

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/vbng/control-plane/registry"
)

// Handler processes one ingress frame to completion. It must not block;
// any work requiring a suspension point (forwarder RPC, AAA call) is
// started here and its result delivered back via Post.
type Handler func(IngressFrame)

// Reactor is the single-threaded event loop. Construct with New, start
// with Run in its own goroutine, feed it with Deliver and Post.
type Reactor struct {
	events  chan event
	handler Handler
	log     zerolog.Logger
}

// New builds a Reactor. queueSize bounds how many undelivered events may
// queue before Deliver/Post block; 0 chooses a small default.
func New(handler Handler, log zerolog.Logger, queueSize int) *Reactor {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Reactor{
		events:  make(chan event, queueSize),
		handler: handler,
		log:     log.With().Str("component", "reactor").Logger(),
	}
}

// Run drains the event channel until ctx is cancelled. It is the only
// goroutine that ever touches FSM, session or registry state.
func (r *Reactor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.events:
			r.dispatch(ev)
		}
	}
}

func (r *Reactor) dispatch(ev event) {
	switch {
	case ev.ingress != nil:
		r.handler(*ev.ingress)
	case ev.callback != nil:
		ev.callback()
	default:
		r.log.Warn().Msg("empty event dispatched")
	}
}

// Deliver posts an ingress frame onto the reactor. Safe to call from any
// goroutine (the forwarder's read loop).
func (r *Reactor) Deliver(f IngressFrame) {
	r.events <- event{ingress: &f}
}

// Post schedules fn to run on the reactor goroutine, for a collaborator
// (forwarder RPC, AAA response) delivering a completed result. Safe to
// call from any goroutine.
func (r *Reactor) Post(fn func()) {
	r.events <- event{callback: fn}
}

// After implements registry.Scheduler: it arms a real timer on a
// background goroutine but always delivers the firing as a Post'd
// callback, so the callback itself still runs serialized on the reactor.
func (r *Reactor) After(d time.Duration, fn func()) registry.CancelFunc {
	timer := time.AfterFunc(d, func() {
		r.Post(fn)
	})
	return func() {
		timer.Stop()
	}
}
