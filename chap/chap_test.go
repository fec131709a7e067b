package chap_test

import (
	"context"
	"crypto/md5"
	"testing"

	"github.com/vbng/control-plane/chap"
)

type fakeLookup struct {
	secret string
	err    error
}

func (f fakeLookup) Secret(ctx context.Context, peerID string) (string, error) {
	return f.secret, f.err
}

func encodeResponse(id uint8, value, name []byte) []byte {
	body := append([]byte{uint8(len(value))}, value...)
	body = append(body, name...)
	out := []byte{chap.CodeResponse, id, 0, 0}
	out = append(out, body...)
	ln := len(out)
	out[2] = uint8(ln >> 8)
	out[3] = uint8(ln)
	return out
}

func computeResponse(id uint8, secret string, challenge []byte) []byte {
	h := md5.New()
	h.Write([]byte{id})
	h.Write([]byte(secret))
	h.Write(challenge)
	return h.Sum(nil)
}

func TestChallengeResponseSuccess(t *testing.T) {
	t.Parallel()

	m := chap.New(fakeLookup{secret: "s3cr3t"}, "bng1")
	challengePkt, err := m.BuildChallenge(9)
	if err != nil {
		t.Fatalf("BuildChallenge: %v", err)
	}
	if challengePkt[0] != chap.CodeChallenge || challengePkt[1] != 9 {
		t.Fatalf("challenge packet header = %v, want code=%d id=9", challengePkt[:2], chap.CodeChallenge)
	}
	valueSize := int(challengePkt[4])
	value := challengePkt[5 : 5+valueSize]

	resp := encodeResponse(9, computeResponse(9, "s3cr3t", value), []byte("subscriber1"))
	out, err := m.HandleResponse(context.Background(), resp)
	if err != nil {
		t.Fatalf("HandleResponse: %v", err)
	}
	if !out.Authenticated || out.Failed {
		t.Errorf("Outcome = %+v, want Authenticated", out)
	}
	if out.Reply[0] != chap.CodeSuccess {
		t.Errorf("reply code = %d, want Success", out.Reply[0])
	}
	if m.PeerID != "subscriber1" {
		t.Errorf("PeerID = %q, want subscriber1", m.PeerID)
	}
}

func TestChallengeResponseWrongSecret(t *testing.T) {
	t.Parallel()

	m := chap.New(fakeLookup{secret: "s3cr3t"}, "bng1")
	challengePkt, err := m.BuildChallenge(1)
	if err != nil {
		t.Fatalf("BuildChallenge: %v", err)
	}
	valueSize := int(challengePkt[4])
	value := challengePkt[5 : 5+valueSize]

	resp := encodeResponse(1, computeResponse(1, "wrong-secret", value), []byte("subscriber1"))
	out, err := m.HandleResponse(context.Background(), resp)
	if err != nil {
		t.Fatalf("HandleResponse: %v", err)
	}
	if out.Authenticated || !out.Failed {
		t.Errorf("Outcome = %+v, want Failed", out)
	}
	if out.Reply[0] != chap.CodeFailure {
		t.Errorf("reply code = %d, want Failure", out.Reply[0])
	}
}

func TestChallengeResponseStaleID(t *testing.T) {
	t.Parallel()

	m := chap.New(fakeLookup{secret: "s3cr3t"}, "bng1")
	if _, err := m.BuildChallenge(5); err != nil {
		t.Fatalf("BuildChallenge: %v", err)
	}

	resp := encodeResponse(6, []byte("garbage-of-16-bytes"), []byte("subscriber1"))
	if _, err := m.HandleResponse(context.Background(), resp); err == nil {
		t.Error("HandleResponse(stale id) = nil error, want error")
	}
}
