package pppoe

import (
	"encoding/binary"
	"fmt"
)

// verTypeByte is the fixed version(4 bits)<<4 | type(4 bits) byte that
// precedes every PPPoE discovery header (RFC 2516 section 4.1: both fields
// are always 0x1).
const verTypeByte = 0x11

// headerLen is the length of the fixed PPPoE discovery header: ver/type,
// code, session-id, payload length.
const headerLen = 6

// Packet is a decoded PPPoE discovery frame (PADI/PADO/PADR/PADS/PADT).
type Packet struct {
	Code      Code
	SessionID uint16
	Tags      []Tag
}

// Decode parses buf as a PPPoE discovery frame. It fails with
// ErrMalformedFrame if any TLV extends beyond the frame or the declared
// payload length, or if a tag type appears twice.
func Decode(buf []byte) (*Packet, error) {
	if len(buf) < headerLen {
		return nil, fmt.Errorf("%w: short header", ErrMalformedFrame)
	}
	if buf[0] != verTypeByte {
		return nil, fmt.Errorf("%w: bad version/type byte %#x", ErrMalformedFrame, buf[0])
	}

	p := &Packet{
		Code:      Code(buf[1]),
		SessionID: binary.BigEndian.Uint16(buf[2:4]),
	}
	payloadLen := int(binary.BigEndian.Uint16(buf[4:6]))
	if headerLen+payloadLen > len(buf) {
		return nil, fmt.Errorf("%w: declared length %d exceeds frame", ErrMalformedFrame, payloadLen)
	}

	body := buf[headerLen : headerLen+payloadLen]
	seen := make(map[TagType]bool, 4)
	for len(body) > 0 {
		if len(body) < 4 {
			return nil, fmt.Errorf("%w: truncated tag header", ErrMalformedFrame)
		}
		typ := TagType(binary.BigEndian.Uint16(body[0:2]))
		if typ == TagEndOfList {
			break
		}
		vlen := int(binary.BigEndian.Uint16(body[2:4]))
		if 4+vlen > len(body) {
			return nil, fmt.Errorf("%w: tag %#x value overruns payload", ErrMalformedFrame, typ)
		}
		if seen[typ] {
			return nil, fmt.Errorf("%w: duplicate tag %#x", ErrMalformedFrame, typ)
		}
		seen[typ] = true

		val := make([]byte, vlen)
		copy(val, body[4:4+vlen])
		p.Tags = append(p.Tags, Tag{Type: typ, Value: val})

		body = body[4+vlen:]
	}

	return p, nil
}

// Encode serializes p, emitting tags in the order given by p.Tags and
// filling in the payload-length field.
func (p *Packet) Encode() []byte {
	var payload []byte
	for _, t := range p.Tags {
		hdr := make([]byte, 4)
		binary.BigEndian.PutUint16(hdr[0:2], uint16(t.Type))
		binary.BigEndian.PutUint16(hdr[2:4], uint16(len(t.Value)))
		payload = append(payload, hdr...)
		payload = append(payload, t.Value...)
	}

	out := make([]byte, headerLen, headerLen+len(payload))
	out[0] = verTypeByte
	out[1] = byte(p.Code)
	binary.BigEndian.PutUint16(out[2:4], p.SessionID)
	binary.BigEndian.PutUint16(out[4:6], uint16(len(payload)))
	return append(out, payload...)
}

// Tag returns the first tag of the given type and whether it was present.
func (p *Packet) Tag(t TagType) (Tag, bool) {
	for _, tag := range p.Tags {
		if tag.Type == t {
			return tag, true
		}
	}
	return Tag{}, false
}
