package ppp

import (
	"encoding/binary"
	"fmt"
)

// Frame is a PPP session-stage frame: the sub-protocol number plus its raw
// payload, as carried inside a PPPoE session packet.
type Frame struct {
	Proto   ProtocolNumber
	Payload []byte
}

// DecodeFrame parses buf (the PPPoE session payload, i.e. everything after
// the 6-byte PPPoE header) into a Frame.
func DecodeFrame(buf []byte) (*Frame, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("ppp: frame shorter than protocol field (%d bytes)", len(buf))
	}
	return &Frame{
		Proto:   ProtocolNumber(binary.BigEndian.Uint16(buf[:2])),
		Payload: buf[2:],
	}, nil
}

// Encode serializes the frame back into wire form.
func (f *Frame) Encode() []byte {
	out := make([]byte, 2, 2+len(f.Payload))
	binary.BigEndian.PutUint16(out, uint16(f.Proto))
	return append(out, f.Payload...)
}
