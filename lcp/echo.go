package lcp

import (
	"crypto/rand"
	"encoding/binary"
	"math/big"
	"time"

	"github.com/vbng/control-plane/ppp"
	"github.com/vbng/control-plane/session"
)

// Echo base interval and jitter range (spec.md section 4.3: "20 +
// uniform(0,10) seconds"). The jitter is mandatory, not cosmetic: it
// de-synchronizes the keepalive ticks of a large subscriber fleet.
const (
	EchoBaseInterval = 20 * time.Second
	echoJitterMax    = 10 * time.Second
)

// NextEchoInterval returns a jittered interval for arming the next Echo
// tick.
func NextEchoInterval() time.Duration {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(echoJitterMax)))
	if err != nil {
		return EchoBaseInterval
	}
	return EchoBaseInterval + time.Duration(n.Int64())
}

// BuildEchoRequest increments the session's outstanding-echo counter and
// returns the wire bytes of an Echo-Request carrying the session's magic
// number.
func BuildEchoRequest(sess *session.Session, id uint8) []byte {
	sess.Echo.Counter++
	pkt := &ppp.Packet{Code: ppp.CodeEchoRequest, ID: id, Data: magicBytes(sess.Echo.Magic)}
	return pkt.Encode()
}

// HandleEchoReply resets the consecutive-miss counter when raw is a
// well-formed Echo-Reply carrying the session's own magic number
// (spec.md section 8: "the acceptance test for the reply requires magic
// = M"). It reports whether the reply was accepted.
func HandleEchoReply(sess *session.Session, raw []byte) bool {
	pkt, err := ppp.DecodeOptionPacket(raw)
	if err != nil || pkt.Code != ppp.CodeEchoReply {
		return false
	}
	if len(pkt.Data) < 4 {
		return false
	}
	if binary.BigEndian.Uint32(pkt.Data) != sess.Echo.Magic {
		return false
	}
	sess.Echo.Counter = 0
	return true
}

// ReplyToEchoRequest answers a peer-originated Echo-Request with an
// Echo-Reply of the same identifier, carrying this side's magic number.
func ReplyToEchoRequest(sess *session.Session, peerReq *ppp.Packet) []byte {
	pkt := &ppp.Packet{Code: ppp.CodeEchoReply, ID: peerReq.ID, Data: magicBytes(sess.Echo.Magic)}
	return pkt.Encode()
}

// Exhausted reports whether the session has missed enough consecutive
// Echo-Replies to declare the link down (spec.md section 4.3: "exceeds
// 6").
func Exhausted(sess *session.Session) bool {
	return sess.Echo.Counter > session.EchoFailureThreshold
}
