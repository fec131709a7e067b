package ipcp_test

import (
	"net"
	"testing"

	"github.com/vbng/control-plane/ipcp"
	"github.com/vbng/control-plane/ppp"
)

// TestPoolAddressNakThenAck walks scenario 4 from spec.md section 8: the
// peer offers 0.0.0.0, we Nak with the pool address; the peer retries
// with that address and we Ack.
func TestPoolAddressNakThenAck(t *testing.T) {
	t.Parallel()

	pool := net.IPv4(100, 64, 0, 10).To4()
	m := ipcp.New(ipcp.Config{Address: pool})
	m.LowerUp()
	m.Open()

	zero := &ppp.Packet{Code: ppp.CodeConfigureRequest, ID: 1, Options: []ppp.Option{
		{Type: ipcp.OptIPAddress, Value: []byte{0, 0, 0, 0}},
	}}
	out := m.Dispatch(zero)
	if len(out.Send) != 1 || out.Send[0].Code != ppp.CodeConfigureNak {
		t.Fatalf("first request: Send = %v, want one Configure-Nak", out.Send)
	}
	nakked, ok := out.Send[0].Option(ipcp.OptIPAddress)
	if !ok || !net.IP(nakked.Value).Equal(pool) {
		t.Fatalf("Nak address = %v, want %v", nakked.Value, pool)
	}

	retry := &ppp.Packet{Code: ppp.CodeConfigureRequest, ID: 2, Options: []ppp.Option{
		{Type: ipcp.OptIPAddress, Value: nakked.Value},
	}}
	out = m.Dispatch(retry)
	if len(out.Send) != 1 || out.Send[0].Code != ppp.CodeConfigureAck {
		t.Fatalf("retry: Send = %v, want one Configure-Ack", out.Send)
	}
}

// TestIPCompressionAlwaysRejected verifies IPCP rejects
// IP-Compression-Protocol outright, per spec.md section 4.5.
func TestIPCompressionAlwaysRejected(t *testing.T) {
	t.Parallel()

	m := ipcp.New(ipcp.Config{Address: net.IPv4(10, 0, 0, 1)})
	req := &ppp.Packet{Code: ppp.CodeConfigureRequest, ID: 1, Options: []ppp.Option{
		{Type: ipcp.OptIPCompression, Value: []byte{0x00, 0x2d, 0x0f, 0x01}},
	}}
	out := m.Dispatch(req)
	if len(out.Send) != 1 || out.Send[0].Code != ppp.CodeConfigureReject {
		t.Fatalf("Send = %v, want one Configure-Reject", out.Send)
	}
}

// TestDesiredOffersAddressAndDNS verifies our own Configure-Request
// carries the pool address and both configured DNS servers.
func TestDesiredOffersAddressAndDNS(t *testing.T) {
	t.Parallel()

	p := ipcp.NewPolicy(ipcp.Config{
		Address: net.IPv4(100, 64, 0, 5),
		DNS1:    net.IPv4(8, 8, 8, 8),
		DNS2:    net.IPv4(8, 8, 4, 4),
	})

	opts := p.Desired()
	want := map[uint8]bool{ipcp.OptIPAddress: false, ipcp.OptPrimaryDNS: false, ipcp.OptSecondaryDNS: false}
	for _, o := range opts {
		if _, ok := want[o.Type]; ok {
			want[o.Type] = true
		}
	}
	for typ, seen := range want {
		if !seen {
			t.Errorf("Desired() missing option type %d", typ)
		}
	}
}
