package chap

import (
	"context"
	"crypto/md5"
	"crypto/rand"
	"crypto/subtle"
	"fmt"
)

// SecretLookup is the AAA collaborator CHAP consults for the shared secret
// associated with a peer-id. It is satisfied by aaa.Client.
type SecretLookup interface {
	Secret(ctx context.Context, peerID string) (secret string, err error)
}

const challengeLen = 16

// Machine is the active CHAP authenticator for one session: it generates
// the challenge and judges the response.
type Machine struct {
	lookup SecretLookup
	name   string

	id            uint8
	challenge     []byte
	Authenticated bool
	PeerID        string
}

// New builds a CHAP Machine. name identifies us to the peer in the
// Challenge packet (RFC 1994 section 4.1).
func New(lookup SecretLookup, name string) *Machine {
	return &Machine{lookup: lookup, name: name}
}

// BuildChallenge generates a fresh 16-byte random challenge and returns the
// wire bytes of the Challenge packet, per spec.md section 4.4 ("on open,
// generate a 16-byte random challenge, send Challenge with a fresh
// identifier").
func (m *Machine) BuildChallenge(id uint8) ([]byte, error) {
	value := make([]byte, challengeLen)
	if _, err := rand.Read(value); err != nil {
		return nil, fmt.Errorf("chap: generating challenge: %w", err)
	}
	m.id = id
	m.challenge = value
	return encodeChallengeOrResponse(CodeChallenge, id, value, []byte(m.name)), nil
}

// Outcome is what the caller must do in response to a Response packet.
type Outcome struct {
	Reply         []byte
	Authenticated bool
	Failed        bool
}

// HandleResponse decodes a Response, computes MD5(identifier || secret ||
// challenge), and compares it constant-time to the response value (RFC
// 1994 section 4.2, spec.md section 4.4). It answers Success or Failure.
func (m *Machine) HandleResponse(ctx context.Context, raw []byte) (Outcome, error) {
	resp, err := decodeChallengeOrResponse(CodeResponse, raw)
	if err != nil {
		return Outcome{}, err
	}
	if resp.ID != m.id {
		return Outcome{}, fmt.Errorf("chap: response id %d does not match outstanding challenge %d", resp.ID, m.id)
	}

	peerID := string(resp.Name)
	secret, err := m.lookup.Secret(ctx, peerID)
	if err != nil {
		return Outcome{Reply: encodeResult(CodeFailure, resp.ID, "authentication backend error"), Failed: true}, nil
	}

	want := expectedResponse(resp.ID, secret, m.challenge)
	if subtle.ConstantTimeCompare(want, resp.Value) != 1 {
		return Outcome{Reply: encodeResult(CodeFailure, resp.ID, "authentication failed"), Failed: true}, nil
	}

	m.Authenticated = true
	m.PeerID = peerID
	return Outcome{Reply: encodeResult(CodeSuccess, resp.ID, ""), Authenticated: true}, nil
}

func expectedResponse(id uint8, secret string, challenge []byte) []byte {
	h := md5.New()
	h.Write([]byte{id})
	h.Write([]byte(secret))
	h.Write(challenge)
	return h.Sum(nil)
}
