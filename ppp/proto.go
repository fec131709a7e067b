// Package ppp implements the PPP session-stage codec and the generic RFC
// 1661 section 4 Option Negotiation finite state machine shared by LCP and
// IPCP.
package ppp

// ProtocolNumber is the 16-bit PPP protocol field carried right after the
// PPPoE session header.
type ProtocolNumber uint16

// Protocol numbers in scope for this system (RFC 1661, RFC 1332, RFC 1334,
// RFC 1994).
const (
	ProtoIPv4 ProtocolNumber = 0x0021
	ProtoIPCP ProtocolNumber = 0x8021
	ProtoLCP  ProtocolNumber = 0xc021
	ProtoPAP  ProtocolNumber = 0xc023
	ProtoCHAP ProtocolNumber = 0xc223
)

func (p ProtocolNumber) String() string {
	switch p {
	case ProtoIPv4:
		return "IPv4"
	case ProtoIPCP:
		return "IPCP"
	case ProtoLCP:
		return "LCP"
	case ProtoPAP:
		return "PAP"
	case ProtoCHAP:
		return "CHAP"
	default:
		return "Unknown"
	}
}
