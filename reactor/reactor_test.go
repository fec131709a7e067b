package reactor_test

import (
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vbng/control-plane/reactor"
	"github.com/vbng/control-plane/session"
)

func testEncap(mac string) session.Encap {
	hw, _ := net.ParseMAC(mac)
	return session.Encap{SrcMAC: hw, EtherType: 0x8864}
}

func TestReactorDispatchesIngressInOrder(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var got []int

	r := reactor.New(func(f reactor.IngressFrame) {
		mu.Lock()
		got = append(got, int(f.Payload[0]))
		mu.Unlock()
	}, zerolog.Nop(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	encap := testEncap("00:11:22:33:44:55")
	for i := 0; i < 5; i++ {
		r.Deliver(reactor.IngressFrame{Encap: encap, Payload: []byte{byte(i)}, Kind: reactor.KindSession})
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n == 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("got %d frames, want 5", n)
		}
		time.Sleep(time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Errorf("frame %d = %d, want %d (order must be preserved)", i, v, i)
		}
	}
}

func TestReactorPostRunsOnReactorGoroutine(t *testing.T) {
	t.Parallel()

	done := make(chan struct{})
	r := reactor.New(func(reactor.IngressFrame) {}, zerolog.Nop(), 8)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Post callback never ran")
	}
}

func TestAfterFiresAndCancels(t *testing.T) {
	t.Parallel()

	r := reactor.New(func(reactor.IngressFrame) {}, zerolog.Nop(), 8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	fired := make(chan struct{})
	r.After(10*time.Millisecond, func() { close(fired) })
	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("After callback never fired")
	}

	cancelled := make(chan struct{})
	cancelFn := r.After(50*time.Millisecond, func() { close(cancelled) })
	cancelFn()
	select {
	case <-cancelled:
		t.Fatal("cancelled timer fired anyway")
	case <-time.After(100 * time.Millisecond):
	}
}
