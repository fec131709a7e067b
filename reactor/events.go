package reactor

import "github.com/vbng/control-plane/session"

// FrameKind classifies an ingress frame's payload (spec.md section 6:
// "deliver(encap, payload, kind in {Discovery, Session})").
type FrameKind int

const (
	KindDiscovery FrameKind = iota
	KindSession
)

func (k FrameKind) String() string {
	switch k {
	case KindDiscovery:
		return "discovery"
	case KindSession:
		return "session"
	default:
		return "unknown"
	}
}

// IngressFrame is a single frame punted up by the forwarder, already
// stripped of its Ethernet/VLAN framing.
type IngressFrame struct {
	Encap   session.Encap
	Payload []byte
	Kind    FrameKind
}

// event is the single type multiplexed onto the reactor's channel: an
// ingress frame, an armed timer firing, or a collaborator completion
// callback (forwarder RPC result, AAA response). Exactly one field is
// set.
type event struct {
	ingress  *IngressFrame
	callback func()
}
