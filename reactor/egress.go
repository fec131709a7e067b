package reactor

import (
	"github.com/rs/zerolog"

	"github.com/vbng/control-plane/wire"
)

// EgressQueues holds the two single-producer single-consumer byte queues
// named in spec.md section 6: pppoe_discovery_out and pppoe_session_out.
// Frames are pushed Ethernet-ready; the forwarder adapter only needs to
// write them to the wire.
type EgressQueues struct {
	Discovery chan []byte
	Session   chan []byte
	log       zerolog.Logger
}

// NewEgressQueues builds a pair of bounded egress queues.
func NewEgressQueues(capacity int, log zerolog.Logger) *EgressQueues {
	if capacity <= 0 {
		capacity = 256
	}
	return &EgressQueues{
		Discovery: make(chan []byte, capacity),
		Session:   make(chan []byte, capacity),
		log:       log.With().Str("component", "egress").Logger(),
	}
}

// PushDiscovery prepends the Ethernet/VLAN header derived from encap and
// enqueues the frame for the discovery queue. The reactor never blocks on
// this: a full queue drops the frame and logs at Warn, since the core
// must never suspend waiting for the I/O collaborator to drain
// (spec.md section 5).
func (q *EgressQueues) PushDiscovery(encap wire.Encap, payload []byte) {
	q.push(q.Discovery, "discovery", encap, payload)
}

// PushSession is PushDiscovery's counterpart for session-stage frames.
func (q *EgressQueues) PushSession(encap wire.Encap, payload []byte) {
	q.push(q.Session, "session", encap, payload)
}

func (q *EgressQueues) push(ch chan []byte, queueName string, encap wire.Encap, payload []byte) {
	frame := append(wire.BuildEthernetHeader(encap), payload...)
	select {
	case ch <- frame:
	default:
		q.log.Warn().Str("queue", queueName).Msg("egress queue full, dropping frame")
	}
}
