// Package lcp specializes the generic ppp Option Negotiation kernel for
// the Link Control Protocol: MRU, Magic-Number and Auth-Protocol
// options, plus the Echo keepalive (spec.md section 4.3).
package lcp

import (
	"crypto/rand"
	"encoding/binary"

	"github.com/vbng/control-plane/ppp"
)

// LCP option types (RFC 1661 section 6).
const (
	OptMRU          uint8 = 1
	OptAuthProtocol uint8 = 3
	OptMagicNumber  uint8 = 5
)

// AuthMode selects which authentication protocol LCP offers/accepts.
type AuthMode uint8

const (
	AuthNone AuthMode = iota
	AuthPAP
	AuthCHAP
)

// chapAlgoMD5 is the CHAP algorithm octet for MD5 (RFC 1994).
const chapAlgoMD5 = 5

// Config holds the locally configured LCP option values (spec.md section
// 4.3).
type Config struct {
	MRU          uint16
	MagicEnabled bool
	Auth         AuthMode
}

// DefaultConfig matches the values spec.md's worked examples use.
func DefaultConfig() Config {
	return Config{MRU: 1492, MagicEnabled: true, Auth: AuthCHAP}
}

// Policy implements ppp.OptionPolicy for LCP.
type Policy struct {
	cfg   Config
	magic uint32
}

// NewPolicy builds an LCP Policy. magic is this side's magic number,
// normally a nonzero random value generated once per session.
func NewPolicy(cfg Config, magic uint32) *Policy {
	return &Policy{cfg: cfg, magic: magic}
}

func (p *Policy) Desired() []ppp.Option {
	var opts []ppp.Option

	mru := make([]byte, 2)
	binary.BigEndian.PutUint16(mru, p.cfg.MRU)
	opts = append(opts, ppp.Option{Type: OptMRU, Value: mru})

	if p.cfg.MagicEnabled {
		opts = append(opts, ppp.Option{Type: OptMagicNumber, Value: magicBytes(p.magic)})
	}

	if authOpt, ok := p.authOption(); ok {
		opts = append(opts, authOpt)
	}

	return opts
}

func (p *Policy) Recognized(t uint8) bool {
	switch t {
	case OptMRU, OptAuthProtocol, OptMagicNumber:
		return true
	default:
		return false
	}
}

func (p *Policy) Acceptable(o ppp.Option) bool {
	switch o.Type {
	case OptMRU:
		return len(o.Value) == 2
	case OptMagicNumber:
		if len(o.Value) != 4 {
			return false
		}
		// A peer echoing our own magic number indicates a looped-back
		// link (RFC 1661 section 6.5); reject so NakHint proposes a
		// fresh value and breaks the loop.
		return binary.BigEndian.Uint32(o.Value) != p.magic
	case OptAuthProtocol:
		return p.acceptableAuth(o.Value)
	default:
		return false
	}
}

func (p *Policy) acceptableAuth(v []byte) bool {
	if len(v) < 2 {
		return false
	}
	proto := ppp.ProtocolNumber(binary.BigEndian.Uint16(v))
	switch p.cfg.Auth {
	case AuthCHAP:
		return proto == ppp.ProtoCHAP && len(v) == 3 && v[2] == chapAlgoMD5
	case AuthPAP:
		return proto == ppp.ProtoPAP && len(v) == 2
	default:
		return false
	}
}

func (p *Policy) NakHint(o ppp.Option) (ppp.Option, bool) {
	switch o.Type {
	case OptMRU:
		v := make([]byte, 2)
		binary.BigEndian.PutUint16(v, p.cfg.MRU)
		return ppp.Option{Type: OptMRU, Value: v}, true
	case OptMagicNumber:
		fresh := make([]byte, 4)
		if _, err := rand.Read(fresh); err != nil {
			return ppp.Option{}, false
		}
		return ppp.Option{Type: OptMagicNumber, Value: fresh}, true
	case OptAuthProtocol:
		return p.authOption()
	default:
		return ppp.Option{}, false
	}
}

func (p *Policy) authOption() (ppp.Option, bool) {
	switch p.cfg.Auth {
	case AuthCHAP:
		v := make([]byte, 3)
		binary.BigEndian.PutUint16(v, uint16(ppp.ProtoCHAP))
		v[2] = chapAlgoMD5
		return ppp.Option{Type: OptAuthProtocol, Value: v}, true
	case AuthPAP:
		v := make([]byte, 2)
		binary.BigEndian.PutUint16(v, uint16(ppp.ProtoPAP))
		return ppp.Option{Type: OptAuthProtocol, Value: v}, true
	default:
		return ppp.Option{}, false
	}
}

func magicBytes(m uint32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, m)
	return b
}

// NewMagic generates a random nonzero magic number.
func NewMagic() uint32 {
	var b [4]byte
	for {
		if _, err := rand.Read(b[:]); err != nil {
			return 1
		}
		m := binary.BigEndian.Uint32(b[:])
		if m != 0 {
			return m
		}
	}
}
