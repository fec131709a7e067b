// Package session implements the per-subscriber PPPoE/PPP session entity:
// the encapsulation tuple, session and pending-connection keys, and the
// Session itself, which owns the four PPP sub-protocol machines.
package session

import (
	"fmt"
	"net"

	"github.com/vbng/control-plane/wire"
)

// Encap is the encapsulation tuple an ingress frame carries: source and
// destination MAC, outer/inner VLAN (0 == absent) and EtherType. It is
// immutable once constructed.
type Encap struct {
	SrcMAC    net.HardwareAddr
	DstMAC    net.HardwareAddr
	OuterVLAN uint16
	InnerVLAN uint16
	EtherType uint16
}

// String renders the tuple for logging.
func (e Encap) String() string {
	return fmt.Sprintf("%s outer=%d inner=%d", e.SrcMAC, e.OuterVLAN, e.InnerVLAN)
}

// ToWire converts to the lower-level framing type the wire package uses
// to build/strip Ethernet headers. The subscriber's address (e.SrcMAC)
// becomes the destination for anything this side sends, and localMAC the
// source.
func (e Encap) ToWire(localMAC net.HardwareAddr) wire.Encap {
	return wire.Encap{
		SrcMAC:    localMAC,
		DstMAC:    e.SrcMAC,
		OuterVLAN: e.OuterVLAN,
		InnerVLAN: e.InnerVLAN,
		EtherType: e.EtherType,
	}
}
