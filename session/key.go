package session

import "fmt"

// Key uniquely identifies an active session: MAC, session ID and VLAN
// tags. It is comparable and usable directly as a map key; the registry
// keys its active-session map on it.
type Key struct {
	MAC       string // net.HardwareAddr.String(), kept comparable
	SessionID uint16
	OuterVLAN uint16
	InnerVLAN uint16
}

// NewKey builds a Key from an Encap and an allocated session ID.
func NewKey(e Encap, sessionID uint16) Key {
	return Key{
		MAC:       e.SrcMAC.String(),
		SessionID: sessionID,
		OuterVLAN: e.OuterVLAN,
		InnerVLAN: e.InnerVLAN,
	}
}

func (k Key) String() string {
	return fmt.Sprintf("%s/vlan(%d,%d)/sid=%d", k.MAC, k.OuterVLAN, k.InnerVLAN, k.SessionID)
}

// Less gives Key the total lexicographic order spec.md requires:
// (MAC, session-id, outer VLAN, inner VLAN).
func (k Key) Less(o Key) bool {
	if k.MAC != o.MAC {
		return k.MAC < o.MAC
	}
	if k.SessionID != o.SessionID {
		return k.SessionID < o.SessionID
	}
	if k.OuterVLAN != o.OuterVLAN {
		return k.OuterVLAN < o.OuterVLAN
	}
	return k.InnerVLAN < o.InnerVLAN
}

// PendingKey identifies a client that received a PADO but has not yet sent
// a valid PADR: (MAC, outer VLAN, inner VLAN, AC-cookie).
type PendingKey struct {
	MAC       string
	OuterVLAN uint16
	InnerVLAN uint16
	Cookie    string
}

// NewPendingKey builds a PendingKey from an Encap and the cookie issued in
// the PADO.
func NewPendingKey(e Encap, cookie string) PendingKey {
	return PendingKey{
		MAC:       e.SrcMAC.String(),
		OuterVLAN: e.OuterVLAN,
		InnerVLAN: e.InnerVLAN,
		Cookie:    cookie,
	}
}
