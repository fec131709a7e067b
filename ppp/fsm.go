package ppp

// State is a PPP Option Negotiation FSM state (RFC 1661 section 4.1).
type State uint8

// The ten states of the Option Negotiation FSM.
const (
	StateInitial State = iota
	StateStarting
	StateClosed
	StateStopped
	StateClosing
	StateStopping
	StateReqSent
	StateAckRcvd
	StateAckSent
	StateOpened
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "Initial"
	case StateStarting:
		return "Starting"
	case StateClosed:
		return "Closed"
	case StateStopped:
		return "Stopped"
	case StateClosing:
		return "Closing"
	case StateStopping:
		return "Stopping"
	case StateReqSent:
		return "Request-Sent"
	case StateAckRcvd:
		return "Ack-Received"
	case StateAckSent:
		return "Ack-Sent"
	case StateOpened:
		return "Opened"
	default:
		return "Unknown"
	}
}

// Event is an input to the Option Negotiation FSM (RFC 1661 section 4.1,
// spec.md section 4.2).
type Event uint8

const (
	EventUp        Event = iota // lower layer ready
	EventDown                   // lower layer gone
	EventOpen                   // administrative open
	EventClose                  // administrative close
	EventTOPlus                 // retransmit timer, restart counter > 0
	EventTOMinus                // retransmit timer, restart counter exhausted
	EventRCRPlus                // Configure-Request, all options acceptable
	EventRCRMinus                // Configure-Request, some option unacceptable
	EventRCA                    // Configure-Ack, matches outstanding request
	EventRCN                    // Configure-Nak or Configure-Reject
	EventRTR                    // Terminate-Request received
	EventRTA                    // Terminate-Ack received
	EventRUC                    // unrecognized code received
	EventRXJPlus                // Code-Reject/Protocol-Reject, tolerable
	EventRXJMinus                // Code-Reject/Protocol-Reject, catastrophic
	EventRXR                    // Echo-Request/Discard-Request received
)

func (e Event) String() string {
	switch e {
	case EventUp:
		return "Up"
	case EventDown:
		return "Down"
	case EventOpen:
		return "Open"
	case EventClose:
		return "Close"
	case EventTOPlus:
		return "TO+"
	case EventTOMinus:
		return "TO-"
	case EventRCRPlus:
		return "RCR+"
	case EventRCRMinus:
		return "RCR-"
	case EventRCA:
		return "RCA"
	case EventRCN:
		return "RCN"
	case EventRTR:
		return "RTR"
	case EventRTA:
		return "RTA"
	case EventRUC:
		return "RUC"
	case EventRXJPlus:
		return "RXJ+"
	case EventRXJMinus:
		return "RXJ-"
	case EventRXR:
		return "RXR"
	default:
		return "Unknown"
	}
}

// Action is a side effect the Machine must perform after a transition.
type Action uint8

const (
	ActionTLU Action = iota + 1 // this-layer-up
	ActionTLD                   // this-layer-down
	ActionTLS                   // this-layer-started
	ActionTLF                   // this-layer-finished
	ActionIRC                   // initialize restart counter
	ActionZRC                   // zero restart counter
	ActionSCR                   // send Configure-Request
	ActionSCA                   // send Configure-Ack
	ActionSCN                   // send Configure-Nak/Reject
	ActionSTR                   // send Terminate-Request
	ActionSTA                   // send Terminate-Ack
	ActionSCJ                   // send Code-Reject
)

func (a Action) String() string {
	switch a {
	case ActionTLU:
		return "TLU"
	case ActionTLD:
		return "TLD"
	case ActionTLS:
		return "TLS"
	case ActionTLF:
		return "TLF"
	case ActionIRC:
		return "IRC"
	case ActionZRC:
		return "ZRC"
	case ActionSCR:
		return "SCR"
	case ActionSCA:
		return "SCA"
	case ActionSCN:
		return "SCN"
	case ActionSTR:
		return "STR"
	case ActionSTA:
		return "STA"
	case ActionSCJ:
		return "SCJ"
	default:
		return "Unknown"
	}
}

type stateEvent struct {
	state State
	event Event
}

type transition struct {
	next    State
	actions []Action
}

// table is the Option Negotiation FSM transition table (RFC 1661 section 4,
// Appendix B; behavior cross-checked against the reference pppd fsm.c
// implementation of the same RFC). Every (state, event) pair present here
// is a defined transition; absent pairs leave the state unchanged with no
// actions, matching RFC 1661's instruction to silently ignore
// inapplicable events.
var table = map[stateEvent]transition{
	// --- Up / Down: lower layer availability -------------------------------
	{StateInitial, EventUp}:  {StateClosed, nil},
	{StateStarting, EventUp}: {StateReqSent, []Action{ActionIRC, ActionSCR}},

	{StateClosed, EventDown}:   {StateInitial, nil},
	{StateClosing, EventDown}:  {StateInitial, nil},
	{StateStopped, EventDown}:  {StateStarting, []Action{ActionTLS}},
	{StateStopping, EventDown}: {StateStarting, nil},
	{StateReqSent, EventDown}:  {StateStarting, nil},
	{StateAckRcvd, EventDown}:  {StateStarting, nil},
	{StateAckSent, EventDown}:  {StateStarting, nil},
	{StateOpened, EventDown}:   {StateStarting, []Action{ActionTLD}},

	// --- Open / Close: administrative control ------------------------------
	{StateInitial, EventOpen}: {StateStarting, []Action{ActionTLS}},
	{StateClosed, EventOpen}:  {StateReqSent, []Action{ActionIRC, ActionSCR}},
	{StateClosing, EventOpen}: {StateStopping, nil},

	{StateStarting, EventClose}: {StateInitial, []Action{ActionTLF}},
	{StateStopped, EventClose}:  {StateClosed, nil},
	{StateStopping, EventClose}: {StateClosing, nil},
	{StateReqSent, EventClose}:  {StateClosing, []Action{ActionIRC, ActionSTR}},
	{StateAckRcvd, EventClose}:  {StateClosing, []Action{ActionIRC, ActionSTR}},
	{StateAckSent, EventClose}:  {StateClosing, []Action{ActionIRC, ActionSTR}},
	{StateOpened, EventClose}:   {StateClosing, []Action{ActionTLD, ActionIRC, ActionSTR}},

	// --- Retransmission timer -----------------------------------------------
	{StateClosing, EventTOPlus}:  {StateClosing, []Action{ActionSTR}},
	{StateStopping, EventTOPlus}: {StateStopping, []Action{ActionSTR}},
	{StateReqSent, EventTOPlus}:  {StateReqSent, []Action{ActionSCR}},
	{StateAckRcvd, EventTOPlus}:  {StateReqSent, []Action{ActionSCR}},
	{StateAckSent, EventTOPlus}:  {StateAckSent, []Action{ActionSCR}},

	{StateClosing, EventTOMinus}:  {StateClosed, []Action{ActionTLF}},
	{StateStopping, EventTOMinus}: {StateStopped, []Action{ActionTLF}},
	{StateReqSent, EventTOMinus}:  {StateStopped, []Action{ActionTLF}},
	{StateAckRcvd, EventTOMinus}:  {StateStopped, []Action{ActionTLF}},
	{StateAckSent, EventTOMinus}:  {StateStopped, []Action{ActionTLF}},

	// --- Receive Configure-Request, options acceptable ----------------------
	{StateClosed, EventRCRPlus}:   {StateClosed, []Action{ActionSTA}},
	{StateStopped, EventRCRPlus}:  {StateAckSent, []Action{ActionIRC, ActionSCR, ActionSCA}},
	{StateReqSent, EventRCRPlus}:  {StateAckSent, []Action{ActionSCA}},
	{StateAckRcvd, EventRCRPlus}:  {StateOpened, []Action{ActionSCA, ActionTLU}},
	{StateAckSent, EventRCRPlus}:  {StateAckSent, []Action{ActionSCA}},
	{StateOpened, EventRCRPlus}:   {StateAckSent, []Action{ActionTLD, ActionSCR, ActionSCA}},

	// --- Receive Configure-Request, options unacceptable --------------------
	{StateClosed, EventRCRMinus}:  {StateClosed, []Action{ActionSTA}},
	{StateStopped, EventRCRMinus}: {StateReqSent, []Action{ActionIRC, ActionSCR, ActionSCN}},
	{StateReqSent, EventRCRMinus}: {StateReqSent, []Action{ActionSCN}},
	{StateAckRcvd, EventRCRMinus}: {StateAckRcvd, []Action{ActionSCN}},
	{StateAckSent, EventRCRMinus}: {StateReqSent, []Action{ActionSCN}},
	{StateOpened, EventRCRMinus}:  {StateReqSent, []Action{ActionTLD, ActionSCR, ActionSCN}},

	// --- Receive Configure-Ack -----------------------------------------------
	{StateClosed, EventRCA}:  {StateClosed, []Action{ActionSTA}},
	{StateStopped, EventRCA}: {StateStopped, []Action{ActionSTA}},
	{StateReqSent, EventRCA}: {StateAckRcvd, []Action{ActionIRC}},
	{StateAckRcvd, EventRCA}: {StateReqSent, []Action{ActionSCR}},
	{StateAckSent, EventRCA}: {StateOpened, []Action{ActionIRC, ActionTLU}},
	{StateOpened, EventRCA}:  {StateReqSent, []Action{ActionTLD, ActionSCR}},

	// --- Receive Configure-Nak / Configure-Reject ----------------------------
	{StateClosed, EventRCN}:  {StateClosed, []Action{ActionSTA}},
	{StateStopped, EventRCN}: {StateStopped, []Action{ActionSTA}},
	{StateReqSent, EventRCN}: {StateReqSent, []Action{ActionIRC, ActionSCR}},
	{StateAckRcvd, EventRCN}: {StateReqSent, []Action{ActionSCR}},
	{StateAckSent, EventRCN}: {StateAckSent, []Action{ActionIRC, ActionSCR}},
	{StateOpened, EventRCN}:  {StateReqSent, []Action{ActionTLD, ActionSCR}},

	// --- Receive Terminate-Request --------------------------------------------
	{StateClosed, EventRTR}:   {StateClosed, []Action{ActionSTA}},
	{StateStopped, EventRTR}:  {StateStopped, []Action{ActionSTA}},
	{StateClosing, EventRTR}:  {StateClosing, []Action{ActionSTA}},
	{StateStopping, EventRTR}: {StateStopping, []Action{ActionSTA}},
	{StateReqSent, EventRTR}:  {StateReqSent, []Action{ActionSTA}},
	{StateAckRcvd, EventRTR}:  {StateReqSent, []Action{ActionSTA}},
	{StateAckSent, EventRTR}:  {StateReqSent, []Action{ActionSTA}},
	{StateOpened, EventRTR}:   {StateStopping, []Action{ActionTLD, ActionZRC, ActionSTA}},

	// --- Receive Terminate-Ack ------------------------------------------------
	{StateClosing, EventRTA}:  {StateClosed, []Action{ActionTLF}},
	{StateStopping, EventRTA}: {StateStopped, []Action{ActionTLF}},
	{StateAckRcvd, EventRTA}:  {StateReqSent, nil},
	{StateAckSent, EventRTA}:  {StateAckSent, nil},
	{StateOpened, EventRTA}:   {StateReqSent, []Action{ActionTLD, ActionSCR}},

	// --- Receive unrecognized code --------------------------------------------
	{StateInitial, EventRUC}:  {StateInitial, []Action{ActionSCJ}},
	{StateStarting, EventRUC}: {StateStarting, []Action{ActionSCJ}},
	{StateClosed, EventRUC}:   {StateClosed, []Action{ActionSCJ}},
	{StateStopped, EventRUC}:  {StateStopped, []Action{ActionSCJ}},
	{StateClosing, EventRUC}:  {StateClosing, []Action{ActionSCJ}},
	{StateStopping, EventRUC}: {StateStopping, []Action{ActionSCJ}},
	{StateReqSent, EventRUC}:  {StateReqSent, []Action{ActionSCJ}},
	{StateAckRcvd, EventRUC}:  {StateAckRcvd, []Action{ActionSCJ}},
	{StateAckSent, EventRUC}:  {StateAckSent, []Action{ActionSCJ}},
	{StateOpened, EventRUC}:   {StateOpened, []Action{ActionSCJ}},

	// --- Receive Code-Reject / Protocol-Reject, catastrophic ------------------
	{StateClosed, EventRXJMinus}:   {StateClosed, []Action{ActionTLF}},
	{StateStopped, EventRXJMinus}:  {StateStopped, []Action{ActionTLF}},
	{StateClosing, EventRXJMinus}:  {StateClosed, []Action{ActionTLF}},
	{StateStopping, EventRXJMinus}: {StateStopped, []Action{ActionTLF}},
	{StateReqSent, EventRXJMinus}:  {StateStopped, []Action{ActionTLF}},
	{StateAckRcvd, EventRXJMinus}:  {StateStopped, []Action{ActionTLF}},
	{StateAckSent, EventRXJMinus}:  {StateStopped, []Action{ActionTLF}},
	{StateOpened, EventRXJMinus}:   {StateStopped, []Action{ActionTLD, ActionTLF}},

	// --- Receive Code-Reject / Protocol-Reject, tolerable ---------------------
	{StateAckRcvd, EventRXJPlus}: {StateReqSent, nil},

	// EventRXJPlus in every other state, and EventRXR (echo/discard request)
	// in every state, leave the FSM state unchanged with no actions, so they
	// have no entries: an absent (state, event) pair already yields "no
	// change, no actions". Echo-Requests are answered by the caller
	// (cmd/vbngd's handleLCPFrame) before a packet reaches Machine.Dispatch.
}

// Result is the outcome of applying an event to the FSM.
type Result struct {
	Old     State
	New     State
	Actions []Action
	Changed bool
}

// Apply runs the pure FSM transition function: given the current state and
// an event, it returns the next state and the actions to execute. It has
// no side effects; the Machine (see machine.go) executes the actions.
func Apply(current State, event Event) Result {
	tr, ok := table[stateEvent{current, event}]
	if !ok {
		return Result{Old: current, New: current}
	}
	return Result{
		Old:     current,
		New:     tr.next,
		Actions: tr.actions,
		Changed: tr.next != current,
	}
}
