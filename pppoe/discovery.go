// Package pppoe implements the PPPoE discovery wire codec and the
// discovery handler: PADI -> PADO, PADR -> PADS, and PADT teardown
// (spec.md section 4.6), ported from original_source/pppoe.cpp's
// process_padi/process_padr onto the registry.Registry instead of the
// original's global maps.
package pppoe

import (
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/vbng/control-plane/registry"
	"github.com/vbng/control-plane/session"
)

// cookiePrintable is the alphabet randomCookie draws from: 64 values so a
// single random byte can be reduced into it without modulo bias.
const cookiePrintable = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// Policy configures how a Handler answers discovery frames; its fields
// mirror original_source's PPPOEPolicy. A Handler holds a single Policy
// and applies it to frames on every VLAN; it does not select a policy by
// VLAN.
type Policy struct {
	ACName            string
	ServiceNames      []string
	IgnoreServiceName bool
	InsertCookie      bool
}

// SessionBuilder constructs the negotiation machinery (LCP/PAP/CHAP/IPCP)
// for a newly admitted session. It is supplied by the composition root so
// this package never imports lcp/pap/chap/ipcp directly.
type SessionBuilder func(id uint16, encap session.Encap) (*session.Session, error)

// Handler answers PPPoE discovery frames for one PPPoE instance.
type Handler struct {
	policy   Policy
	registry *registry.Registry
	build    SessionBuilder
	log      zerolog.Logger
}

// NewHandler builds a discovery Handler bound to a session registry and a
// session-construction callback.
func NewHandler(policy Policy, reg *registry.Registry, build SessionBuilder, log zerolog.Logger) *Handler {
	return &Handler{policy: policy, registry: reg, build: build, log: log.With().Str("component", "pppoed").Logger()}
}

// HandlePADI answers a PADI with a PADO, registering a pending entry keyed
// on the AC-Cookie this side issues (if Policy.InsertCookie is set).
func (h *Handler) HandlePADI(encap session.Encap, in *Packet) (*Packet, error) {
	h.log.Debug().Str("peer", encap.SrcMAC.String()).Msg("processing PADI")

	out := &Packet{Code: CodePADO}
	out.Tags = append(out.Tags, Tag{Type: TagACName, Value: []byte(h.policy.ACName)})

	if hostUniq, ok := in.Tag(TagHostUniq); ok {
		out.Tags = append(out.Tags, hostUniq)
	}

	if svcTag, ok := in.Tag(TagServiceName); ok {
		selected, err := h.selectServiceName(string(svcTag.Value))
		if err != nil {
			return nil, err
		}
		out.Tags = append(out.Tags, Tag{Type: TagServiceName, Value: []byte(selected)})
	}

	var cookie string
	if h.policy.InsertCookie {
		var err error
		cookie, err = randomCookie()
		if err != nil {
			return nil, fmt.Errorf("pppoe: generating AC-Cookie: %w", err)
		}
		out.Tags = append(out.Tags, Tag{Type: TagACCookie, Value: []byte(cookie)})
	}

	h.registry.RegisterPending(session.NewPendingKey(encap, cookie))
	return out, nil
}

// selectServiceName mirrors original_source's service-name matching: the
// first configured name equal to the requested one wins; otherwise
// IgnoreServiceName falls back to echoing the request. An empty requested
// name is matched like any other, so it is accepted only when "" is
// configured or IgnoreServiceName is set.
func (h *Handler) selectServiceName(requested string) (string, error) {
	for _, svc := range h.policy.ServiceNames {
		if svc == requested {
			return requested, nil
		}
	}
	if h.policy.IgnoreServiceName {
		return requested, nil
	}
	return "", ErrWrongServiceName
}

// HandlePADR validates the client's AC-Cookie against a pending entry,
// allocates a session id, builds the session via the SessionBuilder, and
// answers with a PADS.
func (h *Handler) HandlePADR(encap session.Encap, in *Packet) (*Packet, *session.Session, error) {
	h.log.Debug().Str("peer", encap.SrcMAC.String()).Msg("processing PADR")

	var cookie string
	if tag, ok := in.Tag(TagACCookie); ok {
		cookie = string(tag.Value)
	}

	if !h.registry.TakePending(session.NewPendingKey(encap, cookie)) {
		return nil, nil, ErrUnexpectedSession
	}

	sess, err := h.registry.CreateSession(encap, func(id uint16) (*session.Session, error) {
		return h.build(id, encap)
	})
	if err != nil {
		if errors.Is(err, registry.ErrExhausted) {
			return nil, nil, ErrExhausted
		}
		return nil, nil, fmt.Errorf("pppoe: allocating session: %w", err)
	}

	out := &Packet{Code: CodePADS, SessionID: sess.ID}
	if tag, ok := in.Tag(TagServiceName); ok {
		out.Tags = append(out.Tags, tag)
	}
	if tag, ok := in.Tag(TagHostUniq); ok {
		out.Tags = append(out.Tags, tag)
	}

	return out, sess, nil
}

// HandlePADT deallocates the session named by the discovery header's
// session id, per spec.md section 4.6. A PADT for an unknown session is
// logged and otherwise ignored, since the peer may be retransmitting a
// teardown we already processed.
func (h *Handler) HandlePADT(encap session.Encap, in *Packet) error {
	key := session.NewKey(encap, in.SessionID)
	if err := h.registry.Deallocate(key); err != nil {
		h.log.Debug().Str("key", key.String()).Err(err).Msg("PADT for unknown session")
		return nil
	}
	return nil
}

// randomCookie returns a 16-byte random printable string for the
// AC-Cookie anti-spoofing tag (spec.md section 4.6).
func randomCookie() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, 16)
	for i, b := range buf {
		out[i] = cookiePrintable[b&0x3f]
	}
	return string(out), nil
}
