package ipcp

import "github.com/vbng/control-plane/ppp"

// New builds the IPCP Machine for a session: a generic ppp.Machine bound
// to an IPCP-specific Policy.
func New(cfg Config) *ppp.Machine {
	return ppp.NewMachine(ppp.ProtoIPCP, NewPolicy(cfg), ppp.DefaultConfig())
}
