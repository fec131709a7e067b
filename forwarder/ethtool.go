package forwarder

import (
	"fmt"

	"github.com/safchain/ethtool"
)

// LinkInfo is the uplink snapshot exposed over the CLI socket (spec.md
// section 6, "show interface").
type LinkInfo struct {
	Name      string
	SpeedMbps uint32
	Duplex    string
	Driver    string
}

func duplexName(d uint32) string {
	switch d {
	case 0x00:
		return "half"
	case 0x01:
		return "full"
	default:
		return "unknown"
	}
}

// ReadLinkInfo snapshots speed, duplex and driver for the named uplink
// interface via ethtool ioctls.
func ReadLinkInfo(name string) (LinkInfo, error) {
	e, err := ethtool.NewEthtool()
	if err != nil {
		return LinkInfo{}, fmt.Errorf("failed to open ethtool handle: %w", err)
	}
	defer e.Close()

	driver, err := e.DriverInfo(name)
	if err != nil {
		return LinkInfo{}, fmt.Errorf("failed to read driver info for %s: %w", name, err)
	}

	fields, err := e.CmdGetMapped(name)
	if err != nil {
		return LinkInfo{}, fmt.Errorf("failed to read link settings for %s: %w", name, err)
	}

	return LinkInfo{
		Name:      name,
		SpeedMbps: uint32(fields["Speed"]),
		Duplex:    duplexName(uint32(fields["Duplex"])),
		Driver:    driver.Driver,
	}, nil
}
