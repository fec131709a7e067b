// Package main wires the control plane's packages into the vbngd daemon:
// config/logging at startup, then the reactor driving pppoe/ppp/lcp/ipcp/
// pap/chap/registry/forwarder/aaa for the life of the process.
package main

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/rs/zerolog"

	"github.com/vbng/control-plane/aaa"
	"github.com/vbng/control-plane/chap"
	"github.com/vbng/control-plane/forwarder"
	"github.com/vbng/control-plane/ipcp"
	"github.com/vbng/control-plane/lcp"
	"github.com/vbng/control-plane/pap"
	"github.com/vbng/control-plane/ppp"
	"github.com/vbng/control-plane/pppoe"
	"github.com/vbng/control-plane/reactor"
	"github.com/vbng/control-plane/registry"
	"github.com/vbng/control-plane/session"
	"github.com/vbng/control-plane/wire"
)

// Engine owns the live objects the reactor drives: the discovery handler,
// the session registry, and the collaborators a Session's sub-protocol
// machines need once they reach the session stage.
type Engine struct {
	pppoed   *pppoe.Handler
	registry *registry.Registry
	egress   *reactor.EgressQueues
	reactor  *reactor.Reactor
	fwd      forwarder.Adapter
	aaaC     aaa.Client
	localMAC []byte

	lcpCfg   lcp.Config
	ipcpCfg  ipcp.Config
	chapName string

	log zerolog.Logger
}

// HandleIngress is the reactor.Handler installed at startup: it classifies
// the frame by Kind and routes to the discovery or session path.
func (e *Engine) HandleIngress(f reactor.IngressFrame) {
	switch f.Kind {
	case reactor.KindDiscovery:
		e.handleDiscovery(f.Encap, f.Payload)
	case reactor.KindSession:
		e.handleSessionFrame(f.Encap, f.Payload)
	}
}

func (e *Engine) handleDiscovery(encap session.Encap, payload []byte) {
	pkt, err := pppoe.Decode(payload)
	if err != nil {
		e.log.Debug().Err(err).Msg("dropping malformed discovery frame")
		return
	}

	var reply *pppoe.Packet
	var sess *session.Session

	switch pkt.Code {
	case pppoe.CodePADI:
		reply, err = e.pppoed.HandlePADI(encap, pkt)
	case pppoe.CodePADR:
		reply, sess, err = e.pppoed.HandlePADR(encap, pkt)
	case pppoe.CodePADT:
		err = e.pppoed.HandlePADT(encap, pkt)
	default:
		e.log.Debug().Str("code", pkt.Code.String()).Msg("ignoring unhandled discovery code")
		return
	}
	if err != nil {
		e.log.Warn().Err(err).Str("code", pkt.Code.String()).Msg("discovery handler error")
		return
	}
	if reply != nil {
		e.egress.PushDiscovery(encap.ToWire(e.localMAC), reply.Encode())
	}
	if sess != nil {
		sess.LCP.LowerUp()
		e.drainLCP(sess, sess.LCP.Open())
	}
}

func (e *Engine) handleSessionFrame(encap session.Encap, payload []byte) {
	// payload starts with the 6-byte PPPoE session header: ver/type 0x11,
	// code 0, session id, then the length of the PPP frame that follows.
	if len(payload) < 6 || payload[0] != 0x11 || payload[1] != 0 {
		e.log.Debug().Msg("dropping session frame with malformed PPPoE header")
		return
	}
	sid := binary.BigEndian.Uint16(payload[2:4])
	plen := int(binary.BigEndian.Uint16(payload[4:6]))
	if 6+plen > len(payload) {
		e.log.Debug().Msg("dropping session frame shorter than its PPPoE length")
		return
	}
	frame, err := ppp.DecodeFrame(payload[6 : 6+plen])
	if err != nil {
		e.log.Debug().Err(err).Msg("dropping malformed session frame")
		return
	}

	sess, ok := e.lookupSession(encap)
	if !ok || sess.ID != sid {
		e.log.Debug().Str("peer", encap.SrcMAC.String()).Msg("session frame for unknown session")
		return
	}

	switch frame.Proto {
	case ppp.ProtoLCP:
		e.handleLCPFrame(sess, frame.Payload)
	case ppp.ProtoPAP:
		e.handlePAP(sess, frame.Payload)
	case ppp.ProtoCHAP:
		e.handleCHAP(sess, frame.Payload)
	case ppp.ProtoIPCP:
		out, err := sess.IPCP.Receive(frame.Payload)
		if err != nil {
			e.log.Debug().Err(err).Msg("malformed IPCP packet")
			return
		}
		e.drainIPCP(sess, out)
	default:
		e.log.Debug().Str("proto", frame.Proto.String()).Msg("unhandled session protocol")
	}
}

// handleLCPFrame decodes an incoming LCP packet and intercepts the Echo
// family (Echo-Request, Echo-Reply, Discard-Request) before it ever
// reaches the Option Negotiation FSM: ppp.Machine.Dispatch maps all
// three to the no-op EventRXR, so the Echo subsystem (lcp.HandleEchoReply
// / lcp.ReplyToEchoRequest) must see them first (spec.md section 4.3).
func (e *Engine) handleLCPFrame(sess *session.Session, payload []byte) {
	pkt, err := ppp.DecodeOptionPacket(payload)
	if err != nil {
		e.log.Debug().Err(err).Msg("malformed LCP packet")
		return
	}
	switch pkt.Code {
	case ppp.CodeEchoReply:
		lcp.HandleEchoReply(sess, payload)
	case ppp.CodeEchoRequest:
		e.sendRaw(sess, ppp.ProtoLCP, lcp.ReplyToEchoRequest(sess, pkt))
	case ppp.CodeDiscardRequest:
		// No reply required; the peer is only probing the link.
	default:
		e.drainLCP(sess, sess.LCP.Dispatch(pkt))
	}
}

// lookupSession resolves the session for an ingress frame by the peer's
// MAC and VLAN tags only, returning the first match in registry.Sessions()
// order; handleSessionFrame then compares that session's id with the one
// in the frame's PPPoE header.
func (e *Engine) lookupSession(encap session.Encap) (*session.Session, bool) {
	for _, sess := range e.registry.Sessions() {
		if sess.Encap.SrcMAC.String() == encap.SrcMAC.String() &&
			sess.Encap.OuterVLAN == encap.OuterVLAN &&
			sess.Encap.InnerVLAN == encap.InnerVLAN {
			return sess, true
		}
	}
	return nil, false
}

// drainLCP sends LCP's outgoing packets and reacts to layer transitions:
// LayerUp starts the configured auth protocol (or IPCP directly if none).
func (e *Engine) drainLCP(sess *session.Session, out ppp.Outcome) {
	e.sendOptionPackets(sess, ppp.ProtoLCP, out.Send)
	if out.ArmRestartTimer {
		e.armRestartTimer(sess, ppp.ProtoLCP)
	}
	if out.CancelRestartTimer {
		e.cancelRestartTimer(sess)
	}
	if out.LayerUp {
		e.startAuthOrIPCP(sess)
	}
	if out.PolicyViolated {
		e.drainLCP(sess, sess.LCP.Close())
		return
	}
	if out.LayerDown || out.LayerFinished {
		e.teardown(sess)
	}
}

func (e *Engine) drainIPCP(sess *session.Session, out ppp.Outcome) {
	e.sendOptionPackets(sess, ppp.ProtoIPCP, out.Send)
	if out.ArmRestartTimer {
		e.armRestartTimer(sess, ppp.ProtoIPCP)
	}
	if out.CancelRestartTimer {
		e.cancelRestartTimer(sess)
	}
	if out.LayerUp {
		e.provisionForwarder(sess)
	}
	if out.PolicyViolated {
		e.drainIPCP(sess, sess.IPCP.Close())
		return
	}
	if out.LayerDown || out.LayerFinished {
		e.teardown(sess)
	}
}

// armRestartTimer arms sess's shared FSM restart/retransmit timer for the
// named protocol's machine (spec.md section 4.2: Max-Configure=10,
// Max-Terminate=2, Restart-Timer=3s). LCP and IPCP never negotiate
// concurrently, so one timer slot on the session suffices. The fired
// callback looks the session back up by key instead of closing over the
// *session.Session directly, since it may be deallocated while the timer
// is pending (spec.md section 9).
func (e *Engine) armRestartTimer(sess *session.Session, proto ppp.ProtocolNumber) {
	e.cancelRestartTimer(sess)

	var interval time.Duration
	switch proto {
	case ppp.ProtoLCP:
		interval = sess.LCP.RestartInterval()
	case ppp.ProtoIPCP:
		interval = sess.IPCP.RestartInterval()
	}

	key := sess.Key()
	sess.RestartCancel = e.reactor.After(interval, func() { e.restartTimerExpired(key, proto) })
}

// cancelRestartTimer cancels and clears sess's restart timer, if armed.
func (e *Engine) cancelRestartTimer(sess *session.Session) {
	if sess.RestartCancel != nil {
		sess.RestartCancel()
		sess.RestartCancel = nil
	}
}

// restartTimerExpired fires when a restart timer's deadline elapses: it
// drives the named protocol's Machine.RestartTimerExpired() (TO+/TO-)
// and drains the resulting Outcome exactly as an incoming packet would.
func (e *Engine) restartTimerExpired(key session.Key, proto ppp.ProtocolNumber) {
	sess, ok := e.registry.Lookup(key)
	if !ok {
		return
	}
	switch proto {
	case ppp.ProtoLCP:
		e.drainLCP(sess, sess.LCP.RestartTimerExpired())
	case ppp.ProtoIPCP:
		e.drainIPCP(sess, sess.IPCP.RestartTimerExpired())
	}
}

func (e *Engine) startAuthOrIPCP(sess *session.Session) {
	switch {
	case sess.CHAP != nil:
		raw, err := sess.CHAP.BuildChallenge(1)
		if err != nil {
			e.log.Warn().Err(err).Msg("failed to build CHAP challenge")
			return
		}
		e.sendRaw(sess, ppp.ProtoCHAP, raw)
	case sess.PAP != nil:
		// PAP is passive: nothing to send, we wait for Authenticate-Request.
	default:
		// No authentication configured: open IPCP with no AAA-leased
		// address, offering only the configured DNS servers.
		e.beginIPCP(sess, ipcp.Config{DNS1: e.ipcpCfg.DNS1, DNS2: e.ipcpCfg.DNS2})
	}
}

func (e *Engine) handlePAP(sess *session.Session, payload []byte) {
	if sess.PAP == nil {
		return
	}
	ctx := context.Background()
	out, err := sess.PAP.HandleRequest(ctx, payload)
	if err != nil {
		e.log.Debug().Err(err).Msg("malformed PAP request")
		return
	}
	e.sendRaw(sess, ppp.ProtoPAP, out.Reply)
	if out.Authenticated {
		e.startAccounting(sess, aaa.CredentialPAP, sess.PAP.PeerID)
	}
}

func (e *Engine) handleCHAP(sess *session.Session, payload []byte) {
	if sess.CHAP == nil {
		return
	}
	ctx := context.Background()
	out, err := sess.CHAP.HandleResponse(ctx, payload)
	if err != nil {
		e.log.Debug().Err(err).Msg("malformed CHAP response")
		return
	}
	e.sendRaw(sess, ppp.ProtoCHAP, out.Reply)
	if out.Authenticated {
		e.startAccounting(sess, aaa.CredentialCHAP, sess.CHAP.PeerID)
	}
	if out.Failed {
		e.teardown(sess)
	}
}

// startAccounting leases a provisioning profile from AAA now that the
// peer has authenticated, then opens IPCP with the leased address so the
// peer never sees an address it wasn't assigned (spec.md section 4.6).
func (e *Engine) startAccounting(sess *session.Session, kind aaa.CredentialKind, peerID string) {
	ctx := context.Background()
	started, err := e.aaaC.Start(ctx, aaa.Credentials{Kind: kind, PeerID: peerID}, sess.Address.Pool, sess.Address.VRF)
	if err != nil {
		e.log.Warn().Err(err).Str("peer", peerID).Msg("AAA Start failed, tearing down session")
		e.teardown(sess)
		return
	}
	sess.AAASessionID = started.AAASessionID
	sess.Address.PeerIP = started.Profile.Address
	sess.Address.DNS1 = started.Profile.DNS1
	sess.Address.DNS2 = started.Profile.DNS2
	sess.Address.VRF = started.Profile.VRF

	e.beginIPCP(sess, ipcp.Config{
		Address: sess.Address.PeerIP,
		DNS1:    sess.Address.DNS1,
		DNS2:    sess.Address.DNS2,
	})
}

// beginIPCP rebuilds the session's IPCP machine against cfg (the address
// is only known once AAA has leased one) and opens it.
func (e *Engine) beginIPCP(sess *session.Session, cfg ipcp.Config) {
	sess.IPCP = ipcp.New(cfg)
	sess.IPCP.LowerUp()
	e.drainIPCP(sess, sess.IPCP.Open())
}

// provisionForwarder wires the forwarder up once IPCP negotiation
// completes, per spec.md section 4.6/4.7's admission sequence.
func (e *Engine) provisionForwarder(sess *session.Session) {
	ctx := context.Background()

	ifindex, err := e.fwd.AddPPPoESession(ctx, sess.Address.PeerIP, sess.ID, sess.Encap.SrcMAC, sess.Address.VRF, true)
	if err != nil {
		e.log.Warn().Err(err).Uint16("session", sess.ID).Msg("forwarder provisioning failed, tearing down session")
		if sess.AAASessionID != "" {
			_ = e.aaaC.Stop(ctx, sess.AAASessionID)
		}
		e.teardown(sess)
		return
	}
	sess.IfIndex = ifindex
	sess.Started = true
	e.armEchoTimer(sess)

	if sess.AAASessionID == "" {
		return
	}
	if err := e.aaaC.MapIface(ctx, sess.AAASessionID, ifindex); err != nil {
		e.log.Warn().Err(err).Msg("AAA MapIface failed")
	}
}

// teardown cancels the session's timers, deprovisions the forwarder,
// stops AAA accounting, and drops the session from the registry
// (spec.md section 4's shutdown/destruction cancellation contract).
func (e *Engine) teardown(sess *session.Session) {
	ctx := context.Background()
	if sess.Echo.CancelFn != nil {
		sess.Echo.CancelFn()
		sess.Echo.CancelFn = nil
	}
	e.cancelRestartTimer(sess)
	if sess.Started {
		_, _ = e.fwd.AddPPPoESession(ctx, nil, sess.ID, nil, "", false)
	}
	if err := e.registry.Deallocate(sess.Key()); err != nil {
		e.log.Debug().Err(err).Msg("teardown: session already gone from registry")
	}
}

// sendOptionPackets encodes each LCP/IPCP option-negotiation packet and
// pushes it to the session egress queue wrapped in a PPP frame.
func (e *Engine) sendOptionPackets(sess *session.Session, proto ppp.ProtocolNumber, packets []*ppp.Packet) {
	for _, pkt := range packets {
		e.sendRaw(sess, proto, pkt.Encode())
	}
}

// sendRaw wraps an already-encoded sub-protocol payload (PAP/CHAP, or a
// pre-encoded option packet) in a PPP frame behind a PPPoE session header
// and pushes it to egress.
func (e *Engine) sendRaw(sess *session.Session, proto ppp.ProtocolNumber, payload []byte) {
	frame := (&ppp.Frame{Proto: proto, Payload: payload}).Encode()
	pkt := make([]byte, 6, 6+len(frame))
	pkt[0] = 0x11 // version 1, type 1; code 0 is session data
	binary.BigEndian.PutUint16(pkt[2:4], sess.ID)
	binary.BigEndian.PutUint16(pkt[4:6], uint16(len(frame)))
	encap := sess.Encap.ToWire(e.localMAC)
	encap.EtherType = wire.EtherTypePPPoESession
	e.egress.PushSession(encap, append(pkt, frame...))
}

// buildSession is the pppoe.SessionBuilder the composition root installs:
// it constructs this session's LCP/PAP-or-CHAP/IPCP machines and wraps
// them in a session.Session.
func (e *Engine) buildSession(id uint16, encap session.Encap) (*session.Session, error) {
	magic := lcp.NewMagic()
	lcpMachine := lcp.New(e.lcpCfg, magic)

	var papMachine *pap.Machine
	var chapMachine *chap.Machine
	switch e.lcpCfg.Auth {
	case lcp.AuthPAP:
		papMachine = pap.New(e.aaaC)
	case lcp.AuthCHAP:
		chapMachine = chap.New(e.aaaC, e.chapName)
	}

	// The real per-session address isn't known until AAA leases one after
	// authentication; this placeholder machine only ever fields a
	// Configure-Request before that happens, which startAuthOrIPCP /
	// startAccounting replace via beginIPCP.
	ipcpMachine := ipcp.New(ipcp.Config{DNS1: e.ipcpCfg.DNS1, DNS2: e.ipcpCfg.DNS2})

	sess := session.New(id, encap, lcpMachine, papMachine, chapMachine, ipcpMachine)
	sess.Echo.Magic = magic
	return sess, nil
}

// armEchoTimer (re)arms sess's LCP Echo keepalive tick. spec.md section
// 4.5 places the first arming at IPCP's Opened/LayerUp transition
// (provisionForwarder); each subsequent tick re-arms itself with a fresh
// jittered interval until the session is torn down.
func (e *Engine) armEchoTimer(sess *session.Session) {
	if sess.Echo.CancelFn != nil {
		sess.Echo.CancelFn()
	}
	sess.Echo.ArmedAt = time.Now()
	key := sess.Key()
	sess.Echo.CancelFn = e.reactor.After(lcp.NextEchoInterval(), func() { e.echoTick(key) })
}

// echoTick fires on every Echo timer tick: it sends an Echo-Request and
// either re-arms for the next tick or, once lcp.Exhausted reports too
// many consecutive unanswered requests, tears the session down
// (spec.md section 4.3, section 8's "every Opened(LCP) session has
// exactly one armed Echo timer" invariant).
func (e *Engine) echoTick(key session.Key) {
	sess, ok := e.registry.Lookup(key)
	if !ok {
		return
	}
	id := uint8(sess.Echo.Counter)
	raw := lcp.BuildEchoRequest(sess, id)
	e.sendRaw(sess, ppp.ProtoLCP, raw)
	if lcp.Exhausted(sess) {
		e.log.Warn().Uint16("session", sess.ID).Msg("LCP echo keepalive exhausted, tearing down session")
		e.teardown(sess)
		return
	}
	e.armEchoTimer(sess)
}
