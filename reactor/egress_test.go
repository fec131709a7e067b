package reactor_test

import (
	"net"
	"testing"

	"github.com/rs/zerolog"

	"github.com/vbng/control-plane/reactor"
	"github.com/vbng/control-plane/wire"
)

func testWireEncap(mac string) wire.Encap {
	hw, _ := net.ParseMAC(mac)
	return wire.Encap{SrcMAC: hw, DstMAC: hw, EtherType: 0x8864}
}

func TestPushDiscoveryPrependsEthernetHeader(t *testing.T) {
	t.Parallel()

	q := reactor.NewEgressQueues(4, zerolog.Nop())
	encap := testWireEncap("00:11:22:33:44:55")
	q.PushDiscovery(encap, []byte{0xde, 0xad})

	select {
	case frame := <-q.Discovery:
		if len(frame) <= 2 {
			t.Fatalf("frame too short to carry an ethernet header: %d bytes", len(frame))
		}
		if frame[len(frame)-2] != 0xde || frame[len(frame)-1] != 0xad {
			t.Errorf("payload not preserved at tail of frame: %x", frame)
		}
	default:
		t.Fatal("no frame pushed to Discovery queue")
	}
}

func TestPushSessionDropsWhenFull(t *testing.T) {
	t.Parallel()

	q := reactor.NewEgressQueues(1, zerolog.Nop())
	encap := testWireEncap("00:11:22:33:44:66")

	q.PushSession(encap, []byte{1})
	q.PushSession(encap, []byte{2}) // queue capacity 1: this one must be dropped, not block

	frame := <-q.Session
	if frame[len(frame)-1] != 1 {
		t.Errorf("got frame tail %x, want first frame preserved", frame)
	}
	select {
	case <-q.Session:
		t.Fatal("a second frame was enqueued despite capacity 1")
	default:
	}
}
