// Package chap implements the active CHAP authenticator (RFC 1994): on
// Open we issue a Challenge, validate the peer's Response against the
// AAA-supplied secret with a constant-time compare, and answer Success or
// Failure (spec.md section 4.4).
package chap

import (
	"encoding/binary"
	"fmt"
)

// Packet codes (RFC 1994 section 2).
const (
	CodeChallenge uint8 = 1
	CodeResponse  uint8 = 2
	CodeSuccess   uint8 = 3
	CodeFailure   uint8 = 4
)

// Algorithm identifiers (RFC 1994 section 2.3).
const AlgorithmMD5 uint8 = 5

const packetHeaderLen = 4

// challengeOrResponse is the shared wire shape of Challenge and Response:
// code, identifier, length, then a length-prefixed Value followed by Name.
type challengeOrResponse struct {
	ID    uint8
	Value []byte
	Name  []byte
}

func encodeChallengeOrResponse(code, id uint8, value, name []byte) []byte {
	body := append([]byte{uint8(len(value))}, value...)
	body = append(body, name...)
	out := make([]byte, packetHeaderLen, packetHeaderLen+len(body))
	out[0] = code
	out[1] = id
	binary.BigEndian.PutUint16(out[2:4], uint16(packetHeaderLen+len(body)))
	return append(out, body...)
}

func decodeChallengeOrResponse(wantCode uint8, buf []byte) (*challengeOrResponse, error) {
	if len(buf) < packetHeaderLen {
		return nil, fmt.Errorf("chap: packet shorter than header (%d bytes)", len(buf))
	}
	if buf[0] != wantCode {
		return nil, fmt.Errorf("chap: code %d, want %d", buf[0], wantCode)
	}
	declared := int(binary.BigEndian.Uint16(buf[2:4]))
	if declared < packetHeaderLen || declared > len(buf) {
		return nil, fmt.Errorf("chap: declared length %d inconsistent with frame (%d)", declared, len(buf))
	}
	body := buf[packetHeaderLen:declared]

	if len(body) < 1 {
		return nil, fmt.Errorf("chap: truncated value-size")
	}
	valueSize := int(body[0])
	body = body[1:]
	if valueSize > len(body) {
		return nil, fmt.Errorf("chap: value-size %d overruns packet", valueSize)
	}

	return &challengeOrResponse{
		ID:    buf[1],
		Value: append([]byte(nil), body[:valueSize]...),
		Name:  append([]byte(nil), body[valueSize:]...),
	}, nil
}

// encodeResult builds a Success or Failure carrying an optional message.
func encodeResult(code, id uint8, message string) []byte {
	msg := []byte(message)
	out := make([]byte, packetHeaderLen, packetHeaderLen+len(msg))
	out[0] = code
	out[1] = id
	binary.BigEndian.PutUint16(out[2:4], uint16(packetHeaderLen+len(msg)))
	return append(out, msg...)
}
