package forwarder

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"
	"github.com/songgao/water"
	"github.com/vishvananda/netlink"
)

// sessionIface is the per-session tap device LinuxAdapter owns, the
// counterpart of datapath.TUNInterface but one tap per PPPoE session
// instead of one shared TUN.
type sessionIface struct {
	tap       *water.Interface
	link      netlink.Link
	sessionID uint16
}

// LinuxAdapter implements Adapter on top of vishvananda/netlink and
// songgao/water: one tap device per provisioned session, VRF assignment
// via netlink.LinkSetMaster, unnumbered borrowing by copying the parent's
// IPv4 address onto the session's interface.
type LinuxAdapter struct {
	mu         sync.Mutex
	log        zerolog.Logger
	byIfIndex  map[int]*sessionIface
	unnumbered map[int]int // ifindex -> parent ifindex
}

// NewLinuxAdapter builds an adapter with no provisioned sessions.
func NewLinuxAdapter(log zerolog.Logger) *LinuxAdapter {
	return &LinuxAdapter{
		log:        log.With().Str("component", "forwarder").Logger(),
		byIfIndex:  make(map[int]*sessionIface),
		unnumbered: make(map[int]int),
	}
}

// AddPPPoESession creates (add=true) or tears down (add=false) the tap
// device backing one session, following NewTUNIf's structure: create the
// device, bring the link up, assign the peer's address, then optionally
// bind it to vrf.
func (a *LinuxAdapter) AddPPPoESession(ctx context.Context, peerIP net.IP, sessionID uint16, mac net.HardwareAddr, vrf string, add bool) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !add {
		for ifindex, si := range a.byIfIndex {
			if si.sessionID != sessionID {
				continue
			}
			if err := si.tap.Close(); err != nil {
				a.log.Warn().Err(err).Int("ifindex", ifindex).Msg("failed to close tap device")
			}
			delete(a.byIfIndex, ifindex)
			delete(a.unnumbered, ifindex)
			return NoIfIndex, nil
		}
		return NoIfIndex, fmt.Errorf("forwarder: no interface provisioned for session %d", sessionID)
	}

	name := fmt.Sprintf("vbng%d", sessionID)
	cfg := water.Config{
		DeviceType: water.TAP,
		PlatformSpecificParams: water.PlatformSpecificParams{
			Name: name,
		},
	}

	tap, err := water.New(cfg)
	if err != nil {
		return NoIfIndex, fmt.Errorf("failed to create tap interface %s: %w", name, err)
	}

	link, err := netlink.LinkByName(name)
	if err != nil {
		return NoIfIndex, fmt.Errorf("failed to look up tap interface %s: %w", name, err)
	}

	if len(mac) > 0 {
		if err := netlink.LinkSetHardwareAddr(link, mac); err != nil {
			return NoIfIndex, fmt.Errorf("failed to set hardware address on %s: %w", name, err)
		}
	}

	if err := netlink.LinkSetUp(link); err != nil {
		return NoIfIndex, fmt.Errorf("failed to bring %s up: %w", name, err)
	}

	if peerIP != nil && !peerIP.IsUnspecified() {
		addr, err := netlink.ParseAddr(peerIP.String() + "/32")
		if err != nil {
			return NoIfIndex, fmt.Errorf("failed to parse peer address %s: %w", peerIP, err)
		}
		if err := netlink.AddrAdd(link, addr); err != nil {
			return NoIfIndex, fmt.Errorf("failed to add peer address to %s: %w", name, err)
		}
	}

	ifindex := link.Attrs().Index
	a.byIfIndex[ifindex] = &sessionIface{tap: tap, link: link, sessionID: sessionID}

	if vrf != "" {
		if err := a.setInterfaceTableLocked(ifindex, vrf); err != nil {
			return NoIfIndex, err
		}
	}

	return ifindex, nil
}

// SetInterfaceTable binds ifindex to vrf's routing table via
// netlink.LinkSetMaster, the standard Linux VRF-enslavement mechanism.
func (a *LinuxAdapter) SetInterfaceTable(ctx context.Context, ifindex int, vrf string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.setInterfaceTableLocked(ifindex, vrf)
}

func (a *LinuxAdapter) setInterfaceTableLocked(ifindex int, vrf string) error {
	si, ok := a.byIfIndex[ifindex]
	if !ok {
		return fmt.Errorf("forwarder: unknown ifindex %d", ifindex)
	}
	vrfLink, err := netlink.LinkByName(vrf)
	if err != nil {
		return fmt.Errorf("failed to look up vrf %s: %w", vrf, err)
	}
	if err := netlink.LinkSetMaster(si.link, vrfLink); err != nil {
		return fmt.Errorf("failed to enslave %s to vrf %s: %w", si.link.Attrs().Name, vrf, err)
	}
	return nil
}

// SetUnnumbered turns IP-unnumbered borrowing on or off between ifindex
// and parentIfindex: on enable, the parent's first IPv4 address is added to
// ifindex so it answers to that address; on disable, the parent's
// addresses are deleted from ifindex and the bookkeeping is removed.
func (a *LinuxAdapter) SetUnnumbered(ctx context.Context, ifindex, parentIfindex int, on bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	si, ok := a.byIfIndex[ifindex]
	if !ok {
		return fmt.Errorf("forwarder: unknown ifindex %d", ifindex)
	}
	parent, ok := a.byIfIndex[parentIfindex]
	if !ok {
		return fmt.Errorf("forwarder: unknown parent ifindex %d", parentIfindex)
	}

	addrs, err := netlink.AddrList(parent.link, netlink.FAMILY_V4)
	if err != nil {
		return fmt.Errorf("failed to list addresses on parent ifindex %d: %w", parentIfindex, err)
	}

	if !on {
		delete(a.unnumbered, ifindex)
		for _, addr := range addrs {
			_ = netlink.AddrDel(si.link, &addr)
		}
		return nil
	}

	if len(addrs) == 0 {
		return fmt.Errorf("forwarder: parent ifindex %d has no address to borrow", parentIfindex)
	}
	if err := netlink.AddrAdd(si.link, &addrs[0]); err != nil {
		return fmt.Errorf("failed to add borrowed address to ifindex %d: %w", ifindex, err)
	}
	a.unnumbered[ifindex] = parentIfindex
	return nil
}

// DumpUnnumbered lists the sessions currently borrowing their address
// from parentIfindex. It reads only the bindings this adapter recorded
// through SetUnnumbered, so state left over from a previous run is not
// listed.
func (a *LinuxAdapter) DumpUnnumbered(ctx context.Context, parentIfindex int) ([]UnnumberedEntry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []UnnumberedEntry
	for ifindex, parent := range a.unnumbered {
		if parent == parentIfindex {
			out = append(out, UnnumberedEntry{IfIndex: ifindex, ParentIfIndex: parent})
		}
	}
	return out, nil
}

// GetIfaceByName resolves an interface name via netlink.
func (a *LinuxAdapter) GetIfaceByName(ctx context.Context, name string) (int, bool) {
	link, err := netlink.LinkByName(name)
	if err != nil {
		return 0, false
	}
	return link.Attrs().Index, true
}
