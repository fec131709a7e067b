// Package forwarder wraps the external data-plane program the control
// plane drives: creating per-session tap interfaces, attaching VRFs and
// unnumbered routes, and reading/writing the forwarder's control channel
// (spec.md section 6, "forwarder adapter").
package forwarder

import (
	"context"
	"net"
)

// NoIfIndex is the sentinel ifindex for a session with no forwarder state
// provisioned yet (spec.md section 3).
const NoIfIndex = -1

// UnnumberedEntry is one entry returned by DumpUnnumbered: an interface
// borrowing its address from parentIfindex.
type UnnumberedEntry struct {
	IfIndex       int
	ParentIfIndex int
}

// Adapter is the narrow surface the control plane drives the data-plane
// program through (spec.md section 6).
type Adapter interface {
	// AddPPPoESession provisions (add=true) or deprovisions (add=false)
	// forwarding state for one session and returns its interface handle.
	AddPPPoESession(ctx context.Context, peerIP net.IP, sessionID uint16, mac net.HardwareAddr, vrf string, add bool) (ifindex int, err error)
	// SetInterfaceTable binds ifindex to the named VRF's routing table.
	SetInterfaceTable(ctx context.Context, ifindex int, vrf string) error
	// SetUnnumbered turns unnumbered borrowing on or off between ifindex
	// and parentIfindex.
	SetUnnumbered(ctx context.Context, ifindex, parentIfindex int, on bool) error
	// DumpUnnumbered lists the unnumbered bindings currently active for
	// ifindex.
	DumpUnnumbered(ctx context.Context, ifindex int) ([]UnnumberedEntry, error)
	// GetIfaceByName resolves an interface name to its ifindex.
	GetIfaceByName(ctx context.Context, name string) (ifindex int, ok bool)
}
