package main

import (
	"fmt"

	"github.com/vbng/control-plane/cli"
	"github.com/vbng/control-plane/forwarder"
	"github.com/vbng/control-plane/registry"
	"github.com/vbng/control-plane/session"
)

// controlBackend implements cli.Backend on top of the live registry and
// the uplink's link state, for the "session" and "link" control socket
// commands.
type controlBackend struct {
	registry   *registry.Registry
	uplinkName string
}

func (b *controlBackend) ListSessions() []cli.SessionInfo {
	sessions := b.registry.Sessions()
	out := make([]cli.SessionInfo, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, sessionInfoFor(sess))
	}
	return out
}

func (b *controlBackend) GetSession(id uint16) (cli.SessionInfo, bool) {
	sess, ok := b.registry.FindByID(id)
	if !ok {
		return cli.SessionInfo{}, false
	}
	return sessionInfoFor(sess), true
}

func (b *controlBackend) ClearSession(id uint16) error {
	if err := b.registry.DeallocateByID(id); err != nil {
		return fmt.Errorf("clear session %d: %w", id, err)
	}
	return nil
}

func (b *controlBackend) LinkInfo() (string, uint32, string, error) {
	info, err := forwarder.ReadLinkInfo(b.uplinkName)
	if err != nil {
		return "", 0, "", err
	}
	return info.Name, info.SpeedMbps, info.Duplex, nil
}

func sessionInfoFor(sess *session.Session) cli.SessionInfo {
	info := cli.SessionInfo{
		ID:      sess.ID,
		PeerMAC: sess.Encap.SrcMAC.String(),
		IfIndex: sess.IfIndex,
		VRF:     sess.Address.VRF,
	}
	if sess.Address.PeerIP != nil {
		info.Address = sess.Address.PeerIP.String()
	}
	if sess.LCP != nil {
		info.LCPState = sess.LCP.State().String()
	}
	if sess.IPCP != nil {
		info.IPCPState = sess.IPCP.State().String()
	}
	return info
}
