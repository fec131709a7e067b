// Package config loads the daemon's YAML configuration: the uplink
// interface, per-VLAN PPPoE policies, LCP/IPCP defaults, the AAA backend
// address, and VRFs with their static routes (spec.md section 9).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete daemon configuration.
type Config struct {
	Uplink  UplinkConfig  `yaml:"uplink"`
	PPPoE   PPPoEConfig   `yaml:"pppoe"`
	LCP     LCPConfig     `yaml:"lcp"`
	IPCP    IPCPConfig    `yaml:"ipcp"`
	AAA     AAAConfig     `yaml:"aaa"`
	VRFs    []VRFConfig   `yaml:"vrfs"`
	Log     LogConfig     `yaml:"log"`
	Control ControlConfig `yaml:"control"`
}

// UplinkConfig names the physical/bonded interface subscriber traffic
// arrives on and how many AF_XDP queues to open against it.
type UplinkConfig struct {
	Interface  string `yaml:"interface"`
	QueueCount int    `yaml:"queue_count"`
}

// VLANPolicy maps one outer (and optional inner) VLAN range to a PPPoE
// discovery policy and the VRF its sessions land in.
type VLANPolicy struct {
	OuterVLAN int    `yaml:"outer_vlan"`
	InnerVLAN int    `yaml:"inner_vlan"`
	ACName    string `yaml:"ac_name"`
	VRF       string `yaml:"vrf"`
	Pool      string `yaml:"pool"`
}

// PPPoEConfig holds discovery-stage policy.
type PPPoEConfig struct {
	ServiceNames      []string     `yaml:"service_names"`
	IgnoreServiceName bool         `yaml:"ignore_service_name"`
	InsertCookie      bool         `yaml:"insert_cookie"`
	VLANPolicies      []VLANPolicy `yaml:"vlan_policies"`
}

// LCPConfig holds the LCP negotiation and keepalive settings. cmd/vbngd
// reads MRU and MagicNumber; EchoInterval and EchoFailThreshold are parsed
// and validated but not read by the daemon, whose keepalive runs on
// lcp.NextEchoInterval and session.EchoFailureThreshold.
type LCPConfig struct {
	MRU               uint16        `yaml:"mru"`
	MagicNumber       bool          `yaml:"magic_number"`
	EchoInterval      time.Duration `yaml:"echo_interval"`
	EchoFailThreshold int           `yaml:"echo_fail_threshold"`
}

// IPCPConfig holds the IPCP pool/DNS defaults.
type IPCPConfig struct {
	DNS1 string `yaml:"dns1"`
	DNS2 string `yaml:"dns2"`
}

// AAAConfig addresses the AAA backend collaborator.
type AAAConfig struct {
	Address string        `yaml:"address"`
	Timeout time.Duration `yaml:"timeout"`
}

// StaticRoute is one route installed into a VRF's table at startup.
type StaticRoute struct {
	Prefix  string `yaml:"prefix"`
	NextHop string `yaml:"next_hop"`
}

// VRFConfig describes one VRF: its pool of subscriber addresses and the
// static routes installed into its table.
type VRFConfig struct {
	Name         string        `yaml:"name"`
	PoolStart    string        `yaml:"pool_start"`
	PoolEnd      string        `yaml:"pool_end"`
	StaticRoutes []StaticRoute `yaml:"static_routes"`
}

// LogConfig controls zerolog's level and output format.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// ControlConfig is the CLI's UNIX-domain socket path.
type ControlConfig struct {
	SocketPath string `yaml:"socket_path"`
}

// Default validation errors.
var (
	ErrEmptyUplinkInterface = errors.New("config: uplink.interface must not be empty")
	ErrNoServiceNames       = errors.New("config: pppoe.service_names must not be empty unless ignore_service_name is set")
	ErrInvalidEchoInterval  = errors.New("config: lcp.echo_interval must be > 0")
	ErrInvalidVRF           = errors.New("config: vrf entry missing a name")
	ErrDuplicateVRFName     = errors.New("config: duplicate vrf name")
	ErrEmptyAAAAddress      = errors.New("config: aaa.address must not be empty")
)

// Default returns a Config populated with conservative defaults; a loaded
// file only needs to override what it cares about.
func Default() *Config {
	return &Config{
		Uplink: UplinkConfig{QueueCount: 1},
		PPPoE: PPPoEConfig{
			ServiceNames: []string{""},
		},
		LCP: LCPConfig{
			MRU:               1492,
			MagicNumber:       true,
			EchoInterval:      10 * time.Second,
			EchoFailThreshold: 3,
		},
		Log: LogConfig{
			Level: "info",
		},
		Control: ControlConfig{
			SocketPath: "/var/run/vbngd.sock",
		},
	}
}

// Load reads path, merges it on top of Default(), and validates the
// result.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for logical errors, returning the
// first one encountered.
func Validate(cfg *Config) error {
	if cfg.Uplink.Interface == "" {
		return ErrEmptyUplinkInterface
	}
	if !cfg.PPPoE.IgnoreServiceName && len(cfg.PPPoE.ServiceNames) == 0 {
		return ErrNoServiceNames
	}
	if cfg.LCP.EchoInterval <= 0 {
		return ErrInvalidEchoInterval
	}
	if cfg.AAA.Address == "" {
		return ErrEmptyAAAAddress
	}
	return validateVRFs(cfg.VRFs)
}

func validateVRFs(vrfs []VRFConfig) error {
	seen := make(map[string]struct{}, len(vrfs))
	for _, v := range vrfs {
		if v.Name == "" {
			return ErrInvalidVRF
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateVRFName, v.Name)
		}
		seen[v.Name] = struct{}{}
	}
	return nil
}
