// Package wire implements the shared Ethernet/VLAN framing helpers used to
// wrap outgoing PPPoE discovery and session frames before they are pushed to
// the forwarder, and to strip that framing from ingress frames.
package wire

import (
	"encoding/binary"
	"errors"
	"net"
)

// ErrShortFrame is returned when a buffer is too small to contain a valid
// Ethernet header plus any declared VLAN tags.
var ErrShortFrame = errors.New("wire: frame shorter than ethernet header")

const (
	// EtherTypeVLAN is the 802.1Q tag protocol identifier.
	EtherTypeVLAN = 0x8100
	// EtherTypePPPoEDiscovery and EtherTypePPPoESession are the two
	// EtherTypes PPPoE runs over (RFC 2516 section 4).
	EtherTypePPPoEDiscovery = 0x8863
	EtherTypePPPoESession   = 0x8864
	// macLen is the length in bytes of an Ethernet MAC address.
	macLen = 6
)

// Encap carries the minimal encapsulation parameters needed to build or
// strip an Ethernet frame: addressing and VLAN tags. It has no notion of
// session identity; callers needing that build on top of it (see the
// session package).
type Encap struct {
	SrcMAC     net.HardwareAddr
	DstMAC     net.HardwareAddr
	OuterVLAN  uint16 // 0 == untagged
	InnerVLAN  uint16 // 0 == none
	EtherType  uint16
}

// BuildEthernetHeader renders dst||src||[outer 802.1Q][inner 802.1Q]||ethertype
// ready to be prepended to a discovery or session payload.
func BuildEthernetHeader(e Encap) []byte {
	size := 2*macLen + 2
	if e.OuterVLAN != 0 {
		size += 4
	}
	if e.InnerVLAN != 0 {
		size += 4
	}
	buf := make([]byte, size)
	off := 0
	copy(buf[off:], e.DstMAC)
	off += macLen
	copy(buf[off:], e.SrcMAC)
	off += macLen
	if e.OuterVLAN != 0 {
		binary.BigEndian.PutUint16(buf[off:], EtherTypeVLAN)
		binary.BigEndian.PutUint16(buf[off+2:], e.OuterVLAN)
		off += 4
	}
	if e.InnerVLAN != 0 {
		binary.BigEndian.PutUint16(buf[off:], EtherTypeVLAN)
		binary.BigEndian.PutUint16(buf[off+2:], e.InnerVLAN)
		off += 4
	}
	binary.BigEndian.PutUint16(buf[off:], e.EtherType)
	return buf
}

// ParseEthernetHeader parses an Ethernet header with up to two stacked
// 802.1Q tags and returns the Encap describing it plus the byte offset of
// the payload that follows.
func ParseEthernetHeader(buf []byte) (Encap, int, error) {
	if len(buf) < 2*macLen+2 {
		return Encap{}, 0, ErrShortFrame
	}
	var e Encap
	e.DstMAC = append(net.HardwareAddr(nil), buf[0:macLen]...)
	e.SrcMAC = append(net.HardwareAddr(nil), buf[macLen:2*macLen]...)
	off := 2 * macLen

	for i := 0; i < 2; i++ {
		if len(buf) < off+4 {
			return Encap{}, 0, ErrShortFrame
		}
		et := binary.BigEndian.Uint16(buf[off:])
		if et != EtherTypeVLAN {
			break
		}
		vlan := binary.BigEndian.Uint16(buf[off+2:]) & 0x0fff
		if e.OuterVLAN == 0 {
			e.OuterVLAN = vlan
		} else {
			e.InnerVLAN = vlan
		}
		off += 4
	}

	if len(buf) < off+2 {
		return Encap{}, 0, ErrShortFrame
	}
	e.EtherType = binary.BigEndian.Uint16(buf[off:])
	off += 2
	return e, off, nil
}
