// Package registry owns the session identifier allocator, the active
// session map, and the pending-cookie table shared by the PPPoE
// discovery handler and the reactor (spec.md section 4.7).
package registry

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vbng/control-plane/session"
)

// Sentinel errors surfaced by Registry operations.
var (
	ErrExhausted        = errors.New("session id space exhausted")
	ErrSessionNotFound  = errors.New("no active session for key")
	ErrSessionExists    = errors.New("session already active for key")
	ErrPendingNotFound  = errors.New("no pending entry for key")
)

const (
	minSessionID = 1
	maxSessionID = 65535

	// PendingTTL is how long a PADO-issued cookie remains redeemable
	// before the pending entry is dropped (spec.md section 4.6/4.7).
	PendingTTL = 10 * time.Second

	deallocRateWindow    = 10 * time.Second
	deallocRateThreshold = 10
)

// CancelFunc stops a scheduled timer. Calling it after the timer already
// fired is a no-op.
type CancelFunc func()

// Scheduler is the narrow timer facility the registry needs from the
// reactor (spec.md section 5: timer events are delivered through the
// single-threaded event reactor, never via ad hoc goroutine timers).
type Scheduler interface {
	After(d time.Duration, fn func()) CancelFunc
}

// AAAStopper is the narrow collaborator the registry needs to stop
// accounting when a session is deallocated.
type AAAStopper interface {
	Stop(aaaSessionID string)
}

type pendingEntry struct {
	cancel CancelFunc
}

// Registry is the single owner of session identifiers, the active
// session map, and the pending-connection table. Observers (timers, AAA
// callbacks) must go through Registry methods; they never hold a
// strong reference that outlives a Deallocate call.
type Registry struct {
	mu sync.Mutex

	usedIDs map[uint16]session.Key
	active  map[session.Key]*session.Session
	pending map[session.PendingKey]*pendingEntry
	hint    uint16

	deallocTimes []time.Time

	sched Scheduler
	aaa   AAAStopper
	log   zerolog.Logger
}

// New constructs an empty Registry. sched schedules pending-entry expiry;
// aaa is notified to stop accounting on deallocation.
func New(sched Scheduler, aaa AAAStopper, log zerolog.Logger) *Registry {
	return &Registry{
		usedIDs: make(map[uint16]session.Key),
		active:  make(map[session.Key]*session.Session),
		pending: make(map[session.PendingKey]*pendingEntry),
		hint:    minSessionID,
		sched:   sched,
		aaa:     aaa,
		log:     log.With().Str("component", "registry").Logger(),
	}
}

// allocateIDLocked implements the rolling-hint linear-probe allocator
// (spec.md section 4.7): starting from the hint, the first id in
// 1..65535 not already in usedIDs wins; the hint advances to winner+1,
// wrapping 65535 -> 1. Correctness never depends on the hint, only on
// the usedIDs set, so a restart with hint reset to 1 is always safe.
func (r *Registry) allocateIDLocked() (uint16, error) {
	start := r.hint
	if start == 0 {
		start = minSessionID
	}
	id := start
	for {
		if _, taken := r.usedIDs[id]; !taken {
			r.hint = id + 1
			if r.hint == 0 {
				r.hint = minSessionID
			}
			return id, nil
		}
		id++
		if id == 0 {
			id = minSessionID
		}
		if id == start {
			return 0, ErrExhausted
		}
	}
}

// CreateSession allocates a session id, builds the session via build, and
// inserts it into the active map. If build fails the allocated id is
// rolled back (spec.md section 4.7's atomicity invariant); no partial
// state is left behind.
func (r *Registry) CreateSession(encap session.Encap, build func(id uint16) (*session.Session, error)) (*session.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prevHint := r.hint
	id, err := r.allocateIDLocked()
	if err != nil {
		return nil, err
	}
	key := session.NewKey(encap, id)
	if _, exists := r.active[key]; exists {
		r.hint = prevHint
		return nil, fmt.Errorf("create session %s: %w", key, ErrSessionExists)
	}

	sess, err := build(id)
	if err != nil {
		r.hint = prevHint
		delete(r.usedIDs, id)
		return nil, fmt.Errorf("create session %s: %w", key, err)
	}

	r.usedIDs[id] = key
	r.active[key] = sess
	return sess, nil
}

// Lookup returns the active session for key, if any.
func (r *Registry) Lookup(key session.Key) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, ok := r.active[key]
	return sess, ok
}

// Deallocate removes the session identified by key from the active map
// and the id space, and directs the AAA client to stop accounting. A
// deallocation rate exceeding the threshold is logged as an anomaly.
func (r *Registry) Deallocate(key session.Key) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.active[key]
	if !ok {
		return fmt.Errorf("deallocate %s: %w", key, ErrSessionNotFound)
	}
	delete(r.active, key)
	delete(r.usedIDs, key.SessionID)

	if r.aaa != nil && sess.AAASessionID != "" {
		r.aaa.Stop(sess.AAASessionID)
	}
	r.recordDeallocationLocked()
	return nil
}

func (r *Registry) recordDeallocationLocked() {
	now := time.Now()
	r.deallocTimes = append(r.deallocTimes, now)

	cutoff := now.Add(-deallocRateWindow)
	i := 0
	for i < len(r.deallocTimes) && r.deallocTimes[i].Before(cutoff) {
		i++
	}
	r.deallocTimes = r.deallocTimes[i:]

	if len(r.deallocTimes) > deallocRateThreshold {
		r.log.Warn().
			Int("count", len(r.deallocTimes)).
			Dur("window", deallocRateWindow).
			Msg("deallocation rate anomaly")
	}
}

// RegisterPending records a pending connection (issued after a PADO) and
// arms its 10-second expiry. If the timer fires before TakePending
// consumes the entry, the entry is silently removed.
func (r *Registry) RegisterPending(key session.PendingKey) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry := &pendingEntry{}
	entry.cancel = r.sched.After(PendingTTL, func() {
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()
	})
	r.pending[key] = entry
}

// TakePending consumes a pending entry if present, cancelling its expiry
// timer, and reports whether it was found.
func (r *Registry) TakePending(key session.PendingKey) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.pending[key]
	if !ok {
		return false
	}
	entry.cancel()
	delete(r.pending, key)
	return true
}

// Sessions returns a snapshot of every active session, for diagnostics
// and the CLI's "session list" command. The returned slice is a copy;
// mutating it does not affect the registry.
func (r *Registry) Sessions() []*session.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*session.Session, 0, len(r.active))
	for _, sess := range r.active {
		out = append(out, sess)
	}
	return out
}

// FindByID looks up the active session with the given session id,
// regardless of its MAC/VLAN key, for the CLI's "session show <id>" and
// "session clear <id>" commands.
func (r *Registry) FindByID(id uint16) (*session.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key, ok := r.usedIDs[id]
	if !ok {
		return nil, false
	}
	sess, ok := r.active[key]
	return sess, ok
}

// DeallocateByID is Deallocate keyed by session id alone, for the CLI.
func (r *Registry) DeallocateByID(id uint16) error {
	r.mu.Lock()
	key, ok := r.usedIDs[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("deallocate session %d: %w", id, ErrSessionNotFound)
	}
	return r.Deallocate(key)
}

// PendingCount reports the number of outstanding pending entries. Used
// by tests and diagnostics.
func (r *Registry) PendingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// ActiveCount reports the number of active sessions.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active)
}

// Shutdown stops every AAA session and drops all registry state
// (spec.md section 5, global shutdown sequence steps 2-3). Per-session
// forwarder deprovisioning is the caller's responsibility before
// Shutdown is invoked, since the registry itself does not hold a
// forwarder handle.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.aaa != nil {
		for _, sess := range r.active {
			if sess.AAASessionID != "" {
				r.aaa.Stop(sess.AAASessionID)
			}
		}
	}
	for _, entry := range r.pending {
		entry.cancel()
	}

	r.usedIDs = make(map[uint16]session.Key)
	r.active = make(map[session.Key]*session.Session)
	r.pending = make(map[session.PendingKey]*pendingEntry)
}
