package pppoe_test

import (
	"bytes"
	"testing"

	"github.com/vbng/control-plane/pppoe"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	p := &pppoe.Packet{
		Code:      pppoe.CodePADO,
		SessionID: 0,
		Tags: []pppoe.Tag{
			{Type: pppoe.TagACName, Value: []byte("bng1")},
			{Type: pppoe.TagServiceName, Value: []byte("internet")},
		},
	}

	buf := p.Encode()
	got, err := pppoe.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Code != p.Code || got.SessionID != p.SessionID {
		t.Fatalf("got = %+v, want code/session matching %+v", got, p)
	}
	if len(got.Tags) != len(p.Tags) {
		t.Fatalf("got %d tags, want %d", len(got.Tags), len(p.Tags))
	}
	for i, tag := range got.Tags {
		if tag.Type != p.Tags[i].Type || !bytes.Equal(tag.Value, p.Tags[i].Value) {
			t.Errorf("tag %d = %+v, want %+v", i, tag, p.Tags[i])
		}
	}
}

func TestDecodeRejectsShortHeader(t *testing.T) {
	t.Parallel()

	if _, err := pppoe.Decode([]byte{0x11, 0x09}); err == nil {
		t.Error("Decode(short header) = nil error, want error")
	}
}

func TestDecodeRejectsBadVersionType(t *testing.T) {
	t.Parallel()

	buf := []byte{0x00, byte(pppoe.CodePADI), 0, 0, 0, 0}
	if _, err := pppoe.Decode(buf); err == nil {
		t.Error("Decode(bad ver/type byte) = nil error, want error")
	}
}

func TestDecodeRejectsTruncatedTag(t *testing.T) {
	t.Parallel()

	buf := []byte{0x11, byte(pppoe.CodePADI), 0, 0, 0, 6, 0x01, 0x01, 0, 10, 'a', 'b'}
	if _, err := pppoe.Decode(buf); err == nil {
		t.Error("Decode(tag overruns payload) = nil error, want error")
	}
}

func TestDecodeStopsAtEndOfList(t *testing.T) {
	t.Parallel()

	// service-name tag (5 bytes value) followed by an end-of-list tag,
	// all declared within the payload length.
	payload := []byte{0x01, 0x01, 0, 5, 'h', 'e', 'l', 'l', 'o', 0x00, 0x00, 0, 0}
	buf := []byte{0x11, byte(pppoe.CodePADI), 0, 0, 0, byte(len(payload))}
	buf = append(buf, payload...)

	got, err := pppoe.Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got.Tags) != 1 {
		t.Fatalf("got %d tags, want 1 (stop at end-of-list)", len(got.Tags))
	}
}
