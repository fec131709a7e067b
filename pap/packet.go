// Package pap implements the passive PAP authenticator (RFC 1334):
// Authenticate-Request in, Authenticate-Ack or -Nak out, no retransmission
// on our side (spec.md section 4.4).
package pap

import (
	"encoding/binary"
	"fmt"
)

// Packet codes (RFC 1334 section 2).
const (
	CodeAuthenticateRequest uint8 = 1
	CodeAuthenticateAck     uint8 = 2
	CodeAuthenticateNak     uint8 = 3
)

const packetHeaderLen = 4

// request is a decoded Authenticate-Request.
type request struct {
	ID       uint8
	PeerID   string
	Password string
}

// decodeRequest parses buf (the payload immediately following the PPP
// protocol number) as an Authenticate-Request.
func decodeRequest(buf []byte) (*request, error) {
	if len(buf) < packetHeaderLen {
		return nil, fmt.Errorf("pap: packet shorter than header (%d bytes)", len(buf))
	}
	if buf[0] != CodeAuthenticateRequest {
		return nil, fmt.Errorf("pap: code %d is not Authenticate-Request", buf[0])
	}
	declared := int(binary.BigEndian.Uint16(buf[2:4]))
	if declared < packetHeaderLen || declared > len(buf) {
		return nil, fmt.Errorf("pap: declared length %d inconsistent with frame (%d)", declared, len(buf))
	}
	body := buf[packetHeaderLen:declared]

	if len(body) < 1 {
		return nil, fmt.Errorf("pap: truncated peer-id length")
	}
	peerIDLen := int(body[0])
	body = body[1:]
	if peerIDLen > len(body) {
		return nil, fmt.Errorf("pap: peer-id length %d overruns packet", peerIDLen)
	}
	peerID := string(body[:peerIDLen])
	body = body[peerIDLen:]

	if len(body) < 1 {
		return nil, fmt.Errorf("pap: truncated password length")
	}
	passwdLen := int(body[0])
	body = body[1:]
	if passwdLen > len(body) {
		return nil, fmt.Errorf("pap: password length %d overruns packet", passwdLen)
	}
	password := string(body[:passwdLen])

	return &request{ID: buf[1], PeerID: peerID, Password: password}, nil
}

// encodeReply builds an Authenticate-Ack or -Nak carrying an optional
// human-readable message.
func encodeReply(code uint8, id uint8, message string) []byte {
	msg := []byte(message)
	body := append([]byte{uint8(len(msg))}, msg...)
	out := make([]byte, packetHeaderLen, packetHeaderLen+len(body))
	out[0] = code
	out[1] = id
	binary.BigEndian.PutUint16(out[2:4], uint16(packetHeaderLen+len(body)))
	return append(out, body...)
}
