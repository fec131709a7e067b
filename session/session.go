package session

import (
	"net"
	"time"

	"github.com/vbng/control-plane/chap"
	"github.com/vbng/control-plane/pap"
	"github.com/vbng/control-plane/ppp"
)

// IfIndexUnset is the sentinel value for a Session that has not yet had
// forwarder state provisioned (spec.md section 3).
const IfIndexUnset = -1

// Address holds the negotiated IPCP result and the provisioning
// parameters that came back from the AAA backend for this subscriber.
type Address struct {
	PeerIP           net.IP
	DNS1             net.IP
	DNS2             net.IP
	VRF              string // optional
	UnnumberedParent string // optional
	Pool             string
}

// EchoState tracks the LCP Echo keepalive (spec.md section 4.3). Counter
// is incremented on every tick and reset to zero on any valid
// Echo-Reply; once it exceeds EchoFailureThreshold, lcp.Exhausted reports
// true and the session is torn down.
type EchoState struct {
	Magic     uint32
	Counter   int
	ArmedAt   time.Time
	CancelFn  func()
}

// EchoFailureThreshold is the largest number of consecutive unanswered
// Echo-Requests a session survives; one more triggers session teardown
// (spec.md section 4.3: "exceeds 6").
const EchoFailureThreshold = 6

// Session is the per-subscriber entity: encapsulation, identifiers,
// the four PPP sub-protocol machines, and forwarder/AAA linkage
// (spec.md section 3). It is constructed by the discovery handler after
// session-id allocation and owned exclusively by the registry; every
// other holder (timers, AAA callbacks) keeps a session.Key and looks the
// session up again rather than keeping a raw pointer past a suspension
// point, per spec.md section 9's "non-owning weak handle" guidance.
type Session struct {
	ID      uint16
	Encap   Encap
	IfIndex int

	Address      Address
	AAASessionID string
	Started      bool

	LCP  *ppp.Machine
	PAP  *pap.Machine
	CHAP *chap.Machine
	IPCP *ppp.Machine

	Echo EchoState

	// RestartCancel cancels the currently armed FSM restart/retransmit
	// timer, if any. Rearmed on every ArmRestartTimer outcome.
	RestartCancel func()
}

// New constructs a Session in its pre-negotiation state. The sub-protocol
// machines are built by the caller (the lcp, pap, chap and ipcp packages
// own their respective policies and AAA bindings) to keep this package
// free of a dependency on any of them.
func New(id uint16, encap Encap, lcp *ppp.Machine, p *pap.Machine, c *chap.Machine, ipcp *ppp.Machine) *Session {
	return &Session{
		ID:      id,
		Encap:   encap,
		IfIndex: IfIndexUnset,
		LCP:     lcp,
		PAP:     p,
		CHAP:    c,
		IPCP:    ipcp,
	}
}

// Key returns this session's registry key.
func (s *Session) Key() Key {
	return NewKey(s.Encap, s.ID)
}
