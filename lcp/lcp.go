package lcp

import "github.com/vbng/control-plane/ppp"

// New builds the LCP Machine for a session: a generic ppp.Machine bound
// to an LCP-specific Policy, with the RFC 1661 section 4.1 retransmit
// constants from spec.md section 4.2.
func New(cfg Config, magic uint32) *ppp.Machine {
	return ppp.NewMachine(ppp.ProtoLCP, NewPolicy(cfg, magic), ppp.DefaultConfig())
}

// NegotiatedAuth reports which auth protocol, if any, this side offers in
// its Configure-Request: the one configured in cfg.Auth. It reads only cfg
// and does not inspect any packet sent or received.
func NegotiatedAuth(cfg Config) AuthMode {
	return cfg.Auth
}
