package pppoe_test

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vbng/control-plane/pppoe"
	"github.com/vbng/control-plane/registry"
	"github.com/vbng/control-plane/session"
)

type immediateScheduler struct{}

func (immediateScheduler) After(d time.Duration, fn func()) registry.CancelFunc {
	return func() {}
}

func testEncap(mac string) session.Encap {
	hw, _ := net.ParseMAC(mac)
	return session.Encap{SrcMAC: hw, DstMAC: hw, EtherType: 0x8863}
}

func newHandler(t *testing.T, policy pppoe.Policy) (*pppoe.Handler, *registry.Registry) {
	t.Helper()
	reg := registry.New(immediateScheduler{}, nil, zerolog.Nop())
	build := func(id uint16, encap session.Encap) (*session.Session, error) {
		return session.New(id, encap, nil, nil, nil, nil), nil
	}
	return pppoe.NewHandler(policy, reg, build, zerolog.Nop()), reg
}

func TestPADIAcceptedServiceName(t *testing.T) {
	t.Parallel()

	h, reg := newHandler(t, pppoe.Policy{
		ACName:       "bng1",
		ServiceNames: []string{"internet"},
		InsertCookie: true,
	})

	in := &pppoe.Packet{Code: pppoe.CodePADI, Tags: []pppoe.Tag{
		{Type: pppoe.TagServiceName, Value: []byte("internet")},
		{Type: pppoe.TagHostUniq, Value: []byte{1, 2, 3}},
	}}

	out, err := h.HandlePADI(testEncap("00:11:22:33:44:55"), in)
	if err != nil {
		t.Fatalf("HandlePADI: %v", err)
	}
	if out.Code != pppoe.CodePADO {
		t.Fatalf("reply code = %s, want PADO", out.Code)
	}
	if _, ok := out.Tag(pppoe.TagACCookie); !ok {
		t.Error("reply missing AC-Cookie despite InsertCookie policy")
	}
	if _, ok := out.Tag(pppoe.TagHostUniq); !ok {
		t.Error("reply did not echo Host-Uniq")
	}
	if reg.PendingCount() != 1 {
		t.Errorf("PendingCount = %d, want 1", reg.PendingCount())
	}
}

func TestPADIWrongServiceNameRejected(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, pppoe.Policy{ACName: "bng1", ServiceNames: []string{"internet"}})

	in := &pppoe.Packet{Code: pppoe.CodePADI, Tags: []pppoe.Tag{
		{Type: pppoe.TagServiceName, Value: []byte("voip")},
	}}
	if _, err := h.HandlePADI(testEncap("00:11:22:33:44:66"), in); err != pppoe.ErrWrongServiceName {
		t.Errorf("HandlePADI err = %v, want ErrWrongServiceName", err)
	}
}

func TestPADIIgnoreServiceNameAcceptsAnything(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, pppoe.Policy{ACName: "bng1", IgnoreServiceName: true})

	in := &pppoe.Packet{Code: pppoe.CodePADI, Tags: []pppoe.Tag{
		{Type: pppoe.TagServiceName, Value: []byte("whatever")},
	}}
	out, err := h.HandlePADI(testEncap("00:11:22:33:44:77"), in)
	if err != nil {
		t.Fatalf("HandlePADI: %v", err)
	}
	tag, _ := out.Tag(pppoe.TagServiceName)
	if string(tag.Value) != "whatever" {
		t.Errorf("echoed service name = %q, want whatever", tag.Value)
	}
}

func TestPADRWithValidCookieAllocatesSession(t *testing.T) {
	t.Parallel()

	h, reg := newHandler(t, pppoe.Policy{ACName: "bng1", InsertCookie: true})
	encap := testEncap("00:11:22:33:44:88")

	padiOut, err := h.HandlePADI(encap, &pppoe.Packet{Code: pppoe.CodePADI})
	if err != nil {
		t.Fatalf("HandlePADI: %v", err)
	}
	cookieTag, _ := padiOut.Tag(pppoe.TagACCookie)

	padrIn := &pppoe.Packet{Code: pppoe.CodePADR, Tags: []pppoe.Tag{cookieTag}}
	padsOut, sess, err := h.HandlePADR(encap, padrIn)
	if err != nil {
		t.Fatalf("HandlePADR: %v", err)
	}
	if padsOut.Code != pppoe.CodePADS {
		t.Fatalf("reply code = %s, want PADS", padsOut.Code)
	}
	if sess.ID != padsOut.SessionID {
		t.Errorf("session id mismatch: sess.ID=%d padsOut.SessionID=%d", sess.ID, padsOut.SessionID)
	}
	if reg.ActiveCount() != 1 {
		t.Errorf("ActiveCount = %d, want 1", reg.ActiveCount())
	}
	if reg.PendingCount() != 0 {
		t.Errorf("PendingCount after PADR = %d, want 0", reg.PendingCount())
	}
}

func TestPADRWithoutPendingCookieRejected(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, pppoe.Policy{ACName: "bng1", InsertCookie: true})
	encap := testEncap("00:11:22:33:44:99")

	padrIn := &pppoe.Packet{Code: pppoe.CodePADR, Tags: []pppoe.Tag{
		{Type: pppoe.TagACCookie, Value: []byte("never-issued")},
	}}
	if _, _, err := h.HandlePADR(encap, padrIn); err != pppoe.ErrUnexpectedSession {
		t.Errorf("HandlePADR err = %v, want ErrUnexpectedSession", err)
	}
}

func TestPADTDeallocatesSession(t *testing.T) {
	t.Parallel()

	h, reg := newHandler(t, pppoe.Policy{ACName: "bng1"})
	encap := testEncap("00:11:22:33:44:aa")

	padiOut, err := h.HandlePADI(encap, &pppoe.Packet{Code: pppoe.CodePADI})
	if err != nil {
		t.Fatalf("HandlePADI: %v", err)
	}
	var cookie string
	if tag, ok := padiOut.Tag(pppoe.TagACCookie); ok {
		cookie = string(tag.Value)
	}
	_, sess, err := h.HandlePADR(encap, &pppoe.Packet{Code: pppoe.CodePADR, Tags: []pppoe.Tag{
		{Type: pppoe.TagACCookie, Value: []byte(cookie)},
	}})
	if err != nil {
		t.Fatalf("HandlePADR: %v", err)
	}

	padt := &pppoe.Packet{Code: pppoe.CodePADT, SessionID: sess.ID}
	if err := h.HandlePADT(encap, padt); err != nil {
		t.Fatalf("HandlePADT: %v", err)
	}
	if reg.ActiveCount() != 0 {
		t.Errorf("ActiveCount after PADT = %d, want 0", reg.ActiveCount())
	}
}

func TestPADTUnknownSessionIgnored(t *testing.T) {
	t.Parallel()

	h, _ := newHandler(t, pppoe.Policy{ACName: "bng1"})
	encap := testEncap("00:11:22:33:44:bb")

	if err := h.HandlePADT(encap, &pppoe.Packet{Code: pppoe.CodePADT, SessionID: 999}); err != nil {
		t.Errorf("HandlePADT(unknown) = %v, want nil", err)
	}
}
