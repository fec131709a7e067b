package pap_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vbng/control-plane/pap"
)

type fakeAuth struct {
	ok  bool
	err error
}

func (f fakeAuth) Authenticate(ctx context.Context, peerID, password string) (bool, error) {
	return f.ok, f.err
}

func encodeRequest(id uint8, peerID, password string) []byte {
	body := []byte{uint8(len(peerID))}
	body = append(body, peerID...)
	body = append(body, uint8(len(password)))
	body = append(body, password...)
	out := []byte{pap.CodeAuthenticateRequest, id, 0, 0}
	out = append(out, body...)
	ln := len(out)
	out[2] = uint8(ln >> 8)
	out[3] = uint8(ln)
	return out
}

func TestHandleRequestSuccess(t *testing.T) {
	t.Parallel()

	m := pap.New(fakeAuth{ok: true})
	req := encodeRequest(7, "alice", "hunter2")

	out, err := m.HandleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if !out.Authenticated || !m.Authenticated {
		t.Error("Authenticated = false, want true")
	}
	if out.Reply[0] != pap.CodeAuthenticateAck {
		t.Errorf("reply code = %d, want Ack", out.Reply[0])
	}
	if m.PeerID != "alice" {
		t.Errorf("PeerID = %q, want alice", m.PeerID)
	}
}

func TestHandleRequestFailure(t *testing.T) {
	t.Parallel()

	m := pap.New(fakeAuth{ok: false})
	req := encodeRequest(3, "bob", "wrong")

	out, err := m.HandleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if out.Authenticated || m.Authenticated {
		t.Error("Authenticated = true, want false")
	}
	if out.Reply[0] != pap.CodeAuthenticateNak {
		t.Errorf("reply code = %d, want Nak", out.Reply[0])
	}
}

func TestHandleRequestBackendError(t *testing.T) {
	t.Parallel()

	m := pap.New(fakeAuth{err: errors.New("aaa unreachable")})
	req := encodeRequest(1, "carol", "secret")

	out, err := m.HandleRequest(context.Background(), req)
	if err != nil {
		t.Fatalf("HandleRequest: %v", err)
	}
	if out.Authenticated {
		t.Error("Authenticated = true on backend error, want false")
	}
	if out.Reply[0] != pap.CodeAuthenticateNak {
		t.Errorf("reply code = %d, want Nak", out.Reply[0])
	}
}

func TestHandleRequestMalformed(t *testing.T) {
	t.Parallel()

	m := pap.New(fakeAuth{ok: true})
	if _, err := m.HandleRequest(context.Background(), []byte{1, 2}); err == nil {
		t.Error("HandleRequest(short packet) = nil error, want error")
	}
}
