package ppp

import (
	"encoding/binary"
	"fmt"
)

// Code is a PPP Option Negotiation packet code (RFC 1661 section 4).
type Code uint8

// Packet codes shared by every Option Negotiation protocol (LCP, IPCP).
const (
	CodeConfigureRequest Code = 1
	CodeConfigureAck     Code = 2
	CodeConfigureNak     Code = 3
	CodeConfigureReject  Code = 4
	CodeTerminateRequest Code = 5
	CodeTerminateAck     Code = 6
	CodeCodeReject       Code = 7
	CodeProtocolReject   Code = 8 // LCP only, but decoded generically
	CodeEchoRequest      Code = 9 // LCP only
	CodeEchoReply        Code = 10
	CodeDiscardRequest   Code = 11
)

func (c Code) String() string {
	switch c {
	case CodeConfigureRequest:
		return "Configure-Request"
	case CodeConfigureAck:
		return "Configure-Ack"
	case CodeConfigureNak:
		return "Configure-Nak"
	case CodeConfigureReject:
		return "Configure-Reject"
	case CodeTerminateRequest:
		return "Terminate-Request"
	case CodeTerminateAck:
		return "Terminate-Ack"
	case CodeCodeReject:
		return "Code-Reject"
	case CodeProtocolReject:
		return "Protocol-Reject"
	case CodeEchoRequest:
		return "Echo-Request"
	case CodeEchoReply:
		return "Echo-Reply"
	case CodeDiscardRequest:
		return "Discard-Request"
	default:
		return fmt.Sprintf("Code(%d)", uint8(c))
	}
}

// hasOptions reports whether this code carries a TLV option list rather
// than an opaque Data blob.
func (c Code) hasOptions() bool {
	switch c {
	case CodeConfigureRequest, CodeConfigureAck, CodeConfigureNak, CodeConfigureReject:
		return true
	default:
		return false
	}
}

// Option is a single negotiated option: a 1-byte type and its value, not
// including the 2-byte type+length option header.
type Option struct {
	Type  uint8
	Value []byte
}

// Equal compares two options by type and value.
func (o Option) Equal(other Option) bool {
	if o.Type != other.Type || len(o.Value) != len(other.Value) {
		return false
	}
	for i := range o.Value {
		if o.Value[i] != other.Value[i] {
			return false
		}
	}
	return true
}

func (o Option) encodedLen() int {
	return 2 + len(o.Value)
}

// Packet is the generic PPP Option Negotiation payload shared by LCP and
// IPCP (RFC 1661 section 4): code, identifier, declared length, and either
// a TLV option list (Configure-*) or an opaque data blob (everything
// else).
type Packet struct {
	Code    Code
	ID      uint8
	Options []Option // valid when Code.hasOptions()
	Data    []byte   // valid otherwise: term-req/ack, code-rej, protocol-rej, echo, discard
}

const optionPacketHeaderLen = 4

// DecodeOptionPacket parses buf (the payload immediately following the PPP
// protocol number) as a Packet.
func DecodeOptionPacket(buf []byte) (*Packet, error) {
	if len(buf) < optionPacketHeaderLen {
		return nil, fmt.Errorf("ppp: option packet shorter than header (%d bytes)", len(buf))
	}
	p := &Packet{
		Code: Code(buf[0]),
		ID:   buf[1],
	}
	declared := int(binary.BigEndian.Uint16(buf[2:4]))
	if declared < optionPacketHeaderLen {
		return nil, fmt.Errorf("ppp: option packet declares length %d shorter than header", declared)
	}
	if declared > len(buf) {
		return nil, fmt.Errorf("ppp: option packet declares length %d exceeds frame (%d)", declared, len(buf))
	}
	body := buf[optionPacketHeaderLen:declared]

	if !p.Code.hasOptions() {
		p.Data = append([]byte(nil), body...)
		return p, nil
	}

	for len(body) > 0 {
		if len(body) < 2 {
			return nil, fmt.Errorf("ppp: truncated option header")
		}
		typ := body[0]
		optLen := int(body[1])
		if optLen < 2 {
			return nil, fmt.Errorf("ppp: option %d declares length %d shorter than its own header", typ, optLen)
		}
		if optLen > len(body) {
			return nil, fmt.Errorf("ppp: option %d declares length %d overruns packet", typ, optLen)
		}
		val := make([]byte, optLen-2)
		copy(val, body[2:optLen])
		p.Options = append(p.Options, Option{Type: typ, Value: val})
		body = body[optLen:]
	}

	return p, nil
}

// Encode serializes p back into wire form, computing the length field.
func (p *Packet) Encode() []byte {
	bodyLen := len(p.Data)
	if p.Code.hasOptions() {
		bodyLen = 0
		for _, o := range p.Options {
			bodyLen += o.encodedLen()
		}
	}

	out := make([]byte, optionPacketHeaderLen, optionPacketHeaderLen+bodyLen)
	out[0] = byte(p.Code)
	out[1] = p.ID
	binary.BigEndian.PutUint16(out[2:4], uint16(optionPacketHeaderLen+bodyLen))

	if p.Code.hasOptions() {
		for _, o := range p.Options {
			out = append(out, o.Type, uint8(o.encodedLen()))
			out = append(out, o.Value...)
		}
		return out
	}
	return append(out, p.Data...)
}

// Option returns the first option of the given type and whether it was
// present.
func (p *Packet) Option(t uint8) (Option, bool) {
	for _, o := range p.Options {
		if o.Type == t {
			return o, true
		}
	}
	return Option{}, false
}
