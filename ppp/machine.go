package ppp

import "time"

// OptionPolicy parameterizes the generic Option Negotiation kernel with the
// set of options a specific protocol (LCP, IPCP) cares about (spec.md
// section 4.2).
type OptionPolicy interface {
	// Desired returns the options this side wants to send in its next
	// Configure-Request.
	Desired() []Option
	// Recognized reports whether option type t is understood at all. An
	// unrecognized option is always Configure-Rejected.
	Recognized(t uint8) bool
	// Acceptable reports whether a recognized option's value is
	// acceptable as offered.
	Acceptable(o Option) bool
	// NakHint returns the counter-proposal for an unacceptable recognized
	// option, or false if none can be offered (in which case it is
	// rejected instead).
	NakHint(o Option) (Option, bool)
}

// Config holds the RFC 1661 section 4.1 retransmission constants.
type Config struct {
	MaxConfigure int
	MaxTerminate int
	MaxFailure   int
	// RestartTimer is how long the caller waits for a Configure-Request
	// or Terminate-Request to be acknowledged before calling
	// RestartTimerExpired (spec.md section 4.2).
	RestartTimer time.Duration
}

// DefaultConfig returns the constants mandated by spec.md section 4.2.
func DefaultConfig() Config {
	return Config{MaxConfigure: 10, MaxTerminate: 2, MaxFailure: 5, RestartTimer: 3 * time.Second}
}

// Machine is a generic RFC 1661 Option Negotiation FSM bound to one
// OptionPolicy. It never calls back into its owner: every method returns
// an Outcome describing what the caller must do (send frames, arm/cancel
// the restart timer, notify this-layer-up/down). This is the message-
// passing structure spec.md's design notes require in place of a back
// reference from the FSM to the owning session.
type Machine struct {
	Proto  ProtocolNumber
	policy OptionPolicy
	cfg    Config

	state State

	nextID             uint8
	lastReqID          uint8
	haveOutstandingReq bool

	restartCounter int
	terminating    bool
	failureCounter int
}

// NewMachine constructs a Machine in the Initial state.
func NewMachine(proto ProtocolNumber, policy OptionPolicy, cfg Config) *Machine {
	return &Machine{Proto: proto, policy: policy, cfg: cfg, state: StateInitial}
}

// State returns the current FSM state.
func (m *Machine) State() State { return m.state }

// RestartInterval returns the configured restart-timer duration, for
// callers arming the retransmit timer on ArmRestartTimer outcomes.
func (m *Machine) RestartInterval() time.Duration { return m.cfg.RestartTimer }

// Outcome bundles the side effects the caller must perform after an event.
type Outcome struct {
	Send []*Packet

	LayerUp       bool
	LayerDown     bool
	LayerStarted  bool
	LayerFinished bool

	ArmRestartTimer    bool
	CancelRestartTimer bool

	// PolicyViolated is set when the peer has resent an unacceptable
	// Configure-Request more than Config.MaxFailure times in a row
	// (spec.md section 7, "PolicyViolation"). The caller should initiate
	// teardown (e.g. Close followed by session deallocation once
	// Terminate-Ack/timeout lands).
	PolicyViolated bool
}

func hasAction(actions []Action, a Action) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}

func (m *Machine) apply(event Event, trigger *Packet) Outcome {
	res := Apply(m.state, event)
	m.state = res.New
	return m.execute(res.Actions, trigger)
}

func (m *Machine) execute(actions []Action, trigger *Packet) Outcome {
	var out Outcome
	for _, a := range actions {
		switch a {
		case ActionTLU:
			out.LayerUp = true
		case ActionTLD:
			out.LayerDown = true
		case ActionTLS:
			out.LayerStarted = true
		case ActionTLF:
			out.LayerFinished = true
		case ActionIRC:
			m.terminating = hasAction(actions, ActionSTR)
			if m.terminating {
				m.restartCounter = m.cfg.MaxTerminate
			} else {
				m.restartCounter = m.cfg.MaxConfigure
			}
			out.ArmRestartTimer = true
		case ActionZRC:
			m.restartCounter = 0
			out.CancelRestartTimer = true
		case ActionSCR:
			m.nextID++
			m.lastReqID = m.nextID
			m.haveOutstandingReq = true
			out.Send = append(out.Send, &Packet{Code: CodeConfigureRequest, ID: m.lastReqID, Options: m.policy.Desired()})
			out.ArmRestartTimer = true
		case ActionSCA:
			out.Send = append(out.Send, &Packet{Code: CodeConfigureAck, ID: trigger.ID, Options: trigger.Options})
			m.failureCounter = 0
		case ActionSCN:
			reply, violated := m.buildNakOrReject(trigger)
			out.Send = append(out.Send, reply)
			out.PolicyViolated = out.PolicyViolated || violated
		case ActionSTR:
			m.nextID++
			out.Send = append(out.Send, &Packet{Code: CodeTerminateRequest, ID: m.nextID})
		case ActionSTA:
			id := uint8(0)
			if trigger != nil {
				id = trigger.ID
			}
			out.Send = append(out.Send, &Packet{Code: CodeTerminateAck, ID: id})
		case ActionSCJ:
			id, data := uint8(0), []byte(nil)
			if trigger != nil {
				id = trigger.ID
				data = trigger.Encode()
			}
			out.Send = append(out.Send, &Packet{Code: CodeCodeReject, ID: id, Data: data})
		}
	}
	return out
}

// buildNakOrReject implements spec.md section 4.3's option-evaluation
// policy: any option the policy does not recognize is Configure-Rejected;
// otherwise unacceptable recognized options are Configure-Nak'd with the
// policy's counter-proposal. Once the peer has been Nak'd more than
// Config.MaxFailure times in a row for the same negotiation, the reply
// escalates to Configure-Reject and violated is true.
func (m *Machine) buildNakOrReject(trigger *Packet) (reply *Packet, violated bool) {
	var rejects, naks []Option
	for _, o := range trigger.Options {
		if !m.policy.Recognized(o.Type) {
			rejects = append(rejects, o)
			continue
		}
		if m.policy.Acceptable(o) {
			continue
		}
		if hint, ok := m.policy.NakHint(o); ok {
			naks = append(naks, hint)
		} else {
			rejects = append(rejects, o)
		}
	}

	if len(rejects) > 0 {
		return &Packet{Code: CodeConfigureReject, ID: trigger.ID, Options: rejects}, false
	}

	m.failureCounter++
	if m.failureCounter > m.cfg.MaxFailure {
		return &Packet{Code: CodeConfigureReject, ID: trigger.ID, Options: naks}, true
	}
	return &Packet{Code: CodeConfigureNak, ID: trigger.ID, Options: naks}, false
}

func (m *Machine) evaluateRequest(pkt *Packet) Event {
	for _, o := range pkt.Options {
		if !m.policy.Recognized(o.Type) || !m.policy.Acceptable(o) {
			return EventRCRMinus
		}
	}
	return EventRCRPlus
}

// Open is the administrative Open event.
func (m *Machine) Open() Outcome { return m.apply(EventOpen, nil) }

// Close is the administrative Close event.
func (m *Machine) Close() Outcome { return m.apply(EventClose, nil) }

// LowerUp signals the lower layer (PPPoE session) became ready.
func (m *Machine) LowerUp() Outcome { return m.apply(EventUp, nil) }

// LowerDown signals the lower layer is gone.
func (m *Machine) LowerDown() Outcome { return m.apply(EventDown, nil) }

// RestartTimerExpired handles a retransmission timer firing: it
// decrements the restart counter and dispatches TO+ or TO- accordingly.
func (m *Machine) RestartTimerExpired() Outcome {
	m.restartCounter--
	if m.restartCounter > 0 {
		return m.apply(EventTOPlus, nil)
	}
	return m.apply(EventTOMinus, nil)
}

// Receive decodes raw as an option-negotiation packet and dispatches it.
// A non-nil error indicates a parse failure; the FSM state is left
// unchanged (spec.md section 4.2's error contract: callers log and
// continue, the FSM is never torn down by a bad frame).
func (m *Machine) Receive(raw []byte) (Outcome, error) {
	pkt, err := DecodeOptionPacket(raw)
	if err != nil {
		return Outcome{}, err
	}
	return m.Dispatch(pkt), nil
}

// Dispatch routes an already-decoded Packet to the FSM. Exposed
// separately from Receive so LCP's Echo subsystem (which intercepts
// Echo-Request/Reply/Discard-Request before they reach here) can still
// reuse the same Machine.
func (m *Machine) Dispatch(pkt *Packet) Outcome {
	switch pkt.Code {
	case CodeConfigureRequest:
		return m.apply(m.evaluateRequest(pkt), pkt)
	case CodeConfigureAck:
		if !m.haveOutstandingReq || pkt.ID != m.lastReqID {
			return Outcome{}
		}
		m.haveOutstandingReq = false
		return m.apply(EventRCA, pkt)
	case CodeConfigureNak, CodeConfigureReject:
		if !m.haveOutstandingReq || pkt.ID != m.lastReqID {
			return Outcome{}
		}
		m.haveOutstandingReq = false
		return m.apply(EventRCN, pkt)
	case CodeTerminateRequest:
		return m.apply(EventRTR, pkt)
	case CodeTerminateAck:
		return m.apply(EventRTA, pkt)
	case CodeCodeReject:
		if len(pkt.Data) > 0 && (Code(pkt.Data[0]) == CodeConfigureRequest || Code(pkt.Data[0]) == CodeTerminateRequest) {
			return m.apply(EventRXJMinus, pkt)
		}
		return m.apply(EventRXJPlus, pkt)
	case CodeProtocolReject:
		return m.apply(EventRXJMinus, pkt)
	case CodeEchoRequest, CodeEchoReply, CodeDiscardRequest:
		return m.apply(EventRXR, pkt)
	default:
		return m.apply(EventRUC, pkt)
	}
}
