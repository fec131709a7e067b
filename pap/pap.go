package pap

import "context"

// Authenticator is the AAA collaborator PAP consults for each
// Authenticate-Request. It is satisfied by aaa.Client.
type Authenticator interface {
	Authenticate(ctx context.Context, peerID, password string) (ok bool, err error)
}

// Machine is the passive PAP authenticator for one session: it never
// initiates, it only answers Authenticate-Request with Ack or Nak.
type Machine struct {
	auth          Authenticator
	Authenticated bool
	PeerID        string
}

// New builds a PAP Machine bound to the AAA collaborator that will decide
// whether credentials are valid.
func New(auth Authenticator) *Machine {
	return &Machine{auth: auth}
}

// Outcome is what the caller must do in response to an incoming request.
type Outcome struct {
	Reply         []byte
	Authenticated bool
}

// HandleRequest decodes an Authenticate-Request, consults the AAA
// collaborator, and returns the wire bytes of the Ack or Nak to send back.
func (m *Machine) HandleRequest(ctx context.Context, raw []byte) (Outcome, error) {
	req, err := decodeRequest(raw)
	if err != nil {
		return Outcome{}, err
	}

	ok, err := m.auth.Authenticate(ctx, req.PeerID, req.Password)
	if err != nil {
		return Outcome{Reply: encodeReply(CodeAuthenticateNak, req.ID, "authentication backend error")}, nil
	}
	if !ok {
		return Outcome{Reply: encodeReply(CodeAuthenticateNak, req.ID, "authentication failed")}, nil
	}

	m.Authenticated = true
	m.PeerID = req.PeerID
	return Outcome{Reply: encodeReply(CodeAuthenticateAck, req.ID, ""), Authenticated: true}, nil
}
