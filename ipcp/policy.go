// Package ipcp specializes the generic ppp Option Negotiation kernel for
// the IP Control Protocol: peer IPv4 address and DNS servers (spec.md
// section 4.5).
package ipcp

import (
	"net"

	"github.com/vbng/control-plane/ppp"
)

// IPCP option types (RFC 1332, RFC 1877).
const (
	OptIPCompression uint8 = 2
	OptIPAddress     uint8 = 3
	OptPrimaryDNS    uint8 = 129
	OptSecondaryDNS  uint8 = 131
)

// Config holds the addresses this session offers and accepts.
type Config struct {
	Address net.IP // pool-allocated address for this subscriber
	DNS1    net.IP
	DNS2    net.IP
}

// Policy implements ppp.OptionPolicy for IPCP.
type Policy struct {
	cfg Config
}

// NewPolicy builds an IPCP Policy bound to the pool-allocated address and
// configured DNS servers for one session.
func NewPolicy(cfg Config) *Policy {
	return &Policy{cfg: cfg}
}

func (p *Policy) Desired() []ppp.Option {
	var opts []ppp.Option
	if p.cfg.Address != nil {
		opts = append(opts, ppp.Option{Type: OptIPAddress, Value: ip4Bytes(p.cfg.Address)})
	}
	if p.cfg.DNS1 != nil {
		opts = append(opts, ppp.Option{Type: OptPrimaryDNS, Value: ip4Bytes(p.cfg.DNS1)})
	}
	if p.cfg.DNS2 != nil {
		opts = append(opts, ppp.Option{Type: OptSecondaryDNS, Value: ip4Bytes(p.cfg.DNS2)})
	}
	return opts
}

func (p *Policy) Recognized(t uint8) bool {
	switch t {
	case OptIPCompression, OptIPAddress, OptPrimaryDNS, OptSecondaryDNS:
		return true
	default:
		return false
	}
}

// Acceptable implements spec.md section 4.5's rule for the peer's
// Configure-Request: IP-Compression-Protocol is always rejected; a
// 0.0.0.0 address is never acceptable (it is Nak'd with the pool
// address); any other address is acceptable only if it matches the
// pool-allocated one.
func (p *Policy) Acceptable(o ppp.Option) bool {
	switch o.Type {
	case OptIPAddress:
		if len(o.Value) != 4 {
			return false
		}
		addr := net.IP(o.Value)
		if addr.Equal(net.IPv4zero) {
			return false
		}
		return p.cfg.Address != nil && addr.Equal(p.cfg.Address)
	default:
		return false
	}
}

func (p *Policy) NakHint(o ppp.Option) (ppp.Option, bool) {
	switch o.Type {
	case OptIPAddress:
		if p.cfg.Address == nil {
			return ppp.Option{}, false
		}
		return ppp.Option{Type: OptIPAddress, Value: ip4Bytes(p.cfg.Address)}, true
	default:
		return ppp.Option{}, false
	}
}

func ip4Bytes(ip net.IP) []byte {
	v4 := ip.To4()
	if v4 == nil {
		return make([]byte, 4)
	}
	return []byte{v4[0], v4[1], v4[2], v4[3]}
}
