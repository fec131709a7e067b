package registry_test

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vbng/control-plane/registry"
	"github.com/vbng/control-plane/session"
)

// fakeScheduler runs every armed timer only when fired explicitly, so
// tests control expiry deterministically instead of racing real time.
type fakeScheduler struct {
	armed []func()
}

func (f *fakeScheduler) After(d time.Duration, fn func()) registry.CancelFunc {
	idx := len(f.armed)
	f.armed = append(f.armed, fn)
	cancelled := false
	return func() {
		if !cancelled {
			f.armed[idx] = nil
			cancelled = true
		}
	}
}

func (f *fakeScheduler) fireAll() {
	pending := f.armed
	f.armed = nil
	for _, fn := range pending {
		if fn != nil {
			fn()
		}
	}
}

type fakeAAA struct {
	stopped []string
}

func (f *fakeAAA) Stop(aaaSessionID string) {
	f.stopped = append(f.stopped, aaaSessionID)
}

func testEncap(mac string) session.Encap {
	hw, _ := net.ParseMAC(mac)
	return session.Encap{SrcMAC: hw, EtherType: 0x8863}
}

func newTestRegistry() (*registry.Registry, *fakeScheduler, *fakeAAA) {
	sched := &fakeScheduler{}
	aaa := &fakeAAA{}
	r := registry.New(sched, aaa, zerolog.Nop())
	return r, sched, aaa
}

func TestCreateSessionAllocatesAndInserts(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry()
	encap := testEncap("00:11:22:33:44:55")

	sess, err := r.CreateSession(encap, func(id uint16) (*session.Session, error) {
		return session.New(id, encap, nil, nil, nil, nil), nil
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sess.ID != 1 {
		t.Errorf("first allocated id = %d, want 1", sess.ID)
	}
	if r.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", r.ActiveCount())
	}

	got, ok := r.Lookup(sess.Key())
	if !ok || got != sess {
		t.Error("Lookup did not return the created session")
	}
}

func TestCreateSessionRollsBackOnBuildFailure(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry()
	encap := testEncap("00:11:22:33:44:66")

	_, err := r.CreateSession(encap, func(id uint16) (*session.Session, error) {
		return nil, errBuildFailed
	})
	if err == nil {
		t.Fatal("CreateSession with failing build = nil error, want error")
	}
	if r.ActiveCount() != 0 {
		t.Fatalf("ActiveCount after rollback = %d, want 0", r.ActiveCount())
	}

	// The id must be available for reuse after rollback.
	sess, err := r.CreateSession(encap, func(id uint16) (*session.Session, error) {
		return session.New(id, encap, nil, nil, nil, nil), nil
	})
	if err != nil {
		t.Fatalf("CreateSession after rollback: %v", err)
	}
	if sess.ID != 1 {
		t.Errorf("id after rollback = %d, want 1 (reused)", sess.ID)
	}
}

var errBuildFailed = &buildError{"build failed"}

type buildError struct{ msg string }

func (e *buildError) Error() string { return e.msg }

func TestAllocatorRollingHintSkipsFreedID(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry()
	encap := testEncap("00:11:22:33:44:77")

	// Fill ids 1 and 2, then deallocate 1; the rolling hint should still
	// hand out 3 next, not reuse 1 until the hint wraps back around.
	var sessions []*session.Session
	for i := 0; i < 2; i++ {
		sess, err := r.CreateSession(encap, func(id uint16) (*session.Session, error) {
			return session.New(id, encap, nil, nil, nil, nil), nil
		})
		if err != nil {
			t.Fatalf("CreateSession #%d: %v", i, err)
		}
		sessions = append(sessions, sess)
	}
	if sessions[0].ID != 1 || sessions[1].ID != 2 {
		t.Fatalf("ids = %d,%d want 1,2", sessions[0].ID, sessions[1].ID)
	}

	if err := r.Deallocate(sessions[0].Key()); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}

	next, err := r.CreateSession(encap, func(id uint16) (*session.Session, error) {
		return session.New(id, encap, nil, nil, nil, nil), nil
	})
	if err != nil {
		t.Fatalf("CreateSession after dealloc: %v", err)
	}
	if next.ID != 3 {
		t.Errorf("id after dealloc of 1 = %d, want 3 (rolling hint does not reuse immediately)", next.ID)
	}
}

func TestDeallocateStopsAAAAndRemoves(t *testing.T) {
	t.Parallel()

	r, _, aaa := newTestRegistry()
	encap := testEncap("00:11:22:33:44:88")

	sess, err := r.CreateSession(encap, func(id uint16) (*session.Session, error) {
		s := session.New(id, encap, nil, nil, nil, nil)
		s.AAASessionID = "aaa-session-1"
		return s, nil
	})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := r.Deallocate(sess.Key()); err != nil {
		t.Fatalf("Deallocate: %v", err)
	}
	if len(aaa.stopped) != 1 || aaa.stopped[0] != "aaa-session-1" {
		t.Errorf("aaa.stopped = %v, want [aaa-session-1]", aaa.stopped)
	}
	if _, ok := r.Lookup(sess.Key()); ok {
		t.Error("session still found in registry after Deallocate")
	}
	if err := r.Deallocate(sess.Key()); err != registry.ErrSessionNotFound {
		t.Errorf("second Deallocate: err = %v, want ErrSessionNotFound", err)
	}
}

func TestPendingRegisterAndTakeRoundTrip(t *testing.T) {
	t.Parallel()

	r, _, _ := newTestRegistry()
	encap := testEncap("00:11:22:33:44:99")
	key := session.NewPendingKey(encap, "cookie-1")

	r.RegisterPending(key)
	if r.PendingCount() != 1 {
		t.Fatalf("PendingCount = %d, want 1", r.PendingCount())
	}
	if !r.TakePending(key) {
		t.Fatal("TakePending = false, want true")
	}
	if r.PendingCount() != 0 {
		t.Errorf("PendingCount after take = %d, want 0", r.PendingCount())
	}
	if r.TakePending(key) {
		t.Error("second TakePending = true, want false (already consumed)")
	}
}

func TestPendingExpiresOnSchedulerFire(t *testing.T) {
	t.Parallel()

	r, sched, _ := newTestRegistry()
	encap := testEncap("00:11:22:33:44:aa")
	key := session.NewPendingKey(encap, "cookie-2")

	r.RegisterPending(key)
	sched.fireAll()

	if r.PendingCount() != 0 {
		t.Errorf("PendingCount after expiry = %d, want 0", r.PendingCount())
	}
	if r.TakePending(key) {
		t.Error("TakePending after expiry = true, want false")
	}
}

func TestShutdownStopsAllAndClears(t *testing.T) {
	t.Parallel()

	r, sched, aaa := newTestRegistry()
	encap := testEncap("00:11:22:33:44:bb")

	for i := 0; i < 3; i++ {
		_, err := r.CreateSession(encap, func(id uint16) (*session.Session, error) {
			s := session.New(id, encap, nil, nil, nil, nil)
			s.AAASessionID = "aaa-" + s.Key().MAC
			return s, nil
		})
		if err != nil {
			t.Fatalf("CreateSession #%d: %v", i, err)
		}
	}
	r.RegisterPending(session.NewPendingKey(encap, "cookie-3"))

	r.Shutdown()

	if r.ActiveCount() != 0 || r.PendingCount() != 0 {
		t.Fatalf("after Shutdown: active=%d pending=%d, want 0,0", r.ActiveCount(), r.PendingCount())
	}
	if len(aaa.stopped) != 3 {
		t.Errorf("aaa.stopped count = %d, want 3", len(aaa.stopped))
	}
	// The pending timer must not fire after Shutdown freed its slot.
	sched.fireAll()
}
