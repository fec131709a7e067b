// Package aaa defines the collaborator interface the control plane uses to
// authenticate subscribers, start/stop accounting, and obtain their
// provisioning parameters, plus an in-memory implementation for tests and
// small deployments (spec.md section 6, "AAA backend").
package aaa

import (
	"context"
	"errors"
	"net"
	"sync"
)

// ErrUnknownSubscriber is returned when no record exists for a peer-id.
var ErrUnknownSubscriber = errors.New("aaa: unknown subscriber")

// ErrUnknownAAASession is returned by MapIface/Stop for an aaaSessionID
// that Start never issued (or that Stop already retired).
var ErrUnknownAAASession = errors.New("aaa: unknown AAA session")

// CredentialKind distinguishes which PPP authentication protocol produced
// a Credentials value.
type CredentialKind int

const (
	CredentialPAP CredentialKind = iota
	CredentialCHAP
)

// Credentials carries whatever the authenticating sub-protocol already
// validated (or, for CHAP, the materials needed so the caller's own
// comparison result is trusted) when asking the backend to start
// accounting.
type Credentials struct {
	Kind   CredentialKind
	PeerID string
}

// Session is what Start returns once accounting begins: an opaque
// AAA-assigned identifier and the provisioning profile for this
// subscriber.
type Session struct {
	AAASessionID string
	Profile      Profile
}

// Profile is what the AAA backend hands back once a subscriber
// authenticates: the parameters the IPCP policy and forwarder need to
// provision the session (spec.md section 3, Address fields).
type Profile struct {
	Address          net.IP
	DNS1             net.IP
	DNS2             net.IP
	VRF              string
	UnnumberedParent string
	Pool             string
}

// Client is the AAA surface the control plane depends on (spec.md section
// 6). PAP and CHAP consume Authenticate/Secret directly during
// negotiation; the session construction path calls Start once
// authentication succeeds, MapIface once the forwarder has provisioned
// the session, and Stop/StopAll on teardown.
type Client interface {
	// Authenticate validates a PAP peer-id/password pair.
	Authenticate(ctx context.Context, peerID, password string) (ok bool, err error)
	// Secret returns the shared secret CHAP needs to compute a response.
	Secret(ctx context.Context, peerID string) (secret string, err error)
	// Start records the start of accounting for an already-authenticated
	// subscriber and leases a provisioning profile from poolName/vrf.
	Start(ctx context.Context, creds Credentials, poolName, vrf string) (Session, error)
	// MapIface associates the forwarder ifindex provisioned for a
	// session with its AAA accounting record.
	MapIface(ctx context.Context, aaaSessionID string, ifindex int) error
	// Stop records the end of accounting for a previously started
	// session, releasing any leased address back to its pool.
	Stop(ctx context.Context, aaaSessionID string) error
	// StopAll stops every outstanding session, for use during shutdown.
	StopAll(ctx context.Context) error
}

// MemoryClient is an in-memory Client backed by a static subscriber table
// and a PoolAllocator, suitable for tests and small fixed-subscriber
// deployments (spec.md section 6 calls out AAA as an external collaborator
// behind an interface; this is the in-memory stand-in named in the
// expanded component list).
type MemoryClient struct {
	mu      sync.Mutex
	records map[string]subscriberRecord
	pool    *PoolAllocator
	leases  map[string]net.IP // peer-id -> leased address, for Stop to release
	started map[string]string // aaaSessionID -> peer-id
	ifaces  map[string]int    // aaaSessionID -> ifindex
	nextID  uint64
}

type subscriberRecord struct {
	password string
	secret   string
	profile  Profile
}

// NewMemoryClient builds a MemoryClient with no subscribers registered.
// Use AddSubscriber to populate it before serving requests.
func NewMemoryClient(pool *PoolAllocator) *MemoryClient {
	return &MemoryClient{
		records: make(map[string]subscriberRecord),
		pool:    pool,
		leases:  make(map[string]net.IP),
		started: make(map[string]string),
		ifaces:  make(map[string]int),
	}
}

// AddSubscriber registers a subscriber record. profile.Address is ignored
// if pool is non-nil: the address is leased from the pool at Start time
// instead.
func (c *MemoryClient) AddSubscriber(peerID, password, secret string, profile Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[peerID] = subscriberRecord{password: password, secret: secret, profile: profile}
}

func (c *MemoryClient) Authenticate(ctx context.Context, peerID, password string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[peerID]
	if !ok {
		return false, nil
	}
	return rec.password == password, nil
}

func (c *MemoryClient) Secret(ctx context.Context, peerID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.records[peerID]
	if !ok {
		return "", ErrUnknownSubscriber
	}
	return rec.secret, nil
}

func (c *MemoryClient) Start(ctx context.Context, creds Credentials, poolName, vrf string) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.records[creds.PeerID]
	if !ok {
		return Session{}, ErrUnknownSubscriber
	}

	profile := rec.profile
	profile.VRF = vrf
	profile.Pool = poolName
	if c.pool != nil {
		addr, err := c.pool.Lease()
		if err != nil {
			return Session{}, err
		}
		profile.Address = addr
		c.leases[creds.PeerID] = addr
	}

	c.nextID++
	id := sessionIDFor(c.nextID)
	c.started[id] = creds.PeerID
	return Session{AAASessionID: id, Profile: profile}, nil
}

func (c *MemoryClient) MapIface(ctx context.Context, aaaSessionID string, ifindex int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.started[aaaSessionID]; !ok {
		return ErrUnknownAAASession
	}
	c.ifaces[aaaSessionID] = ifindex
	return nil
}

func (c *MemoryClient) Stop(ctx context.Context, aaaSessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopLocked(aaaSessionID)
}

func (c *MemoryClient) stopLocked(aaaSessionID string) error {
	peerID, ok := c.started[aaaSessionID]
	if !ok {
		return ErrUnknownAAASession
	}
	delete(c.started, aaaSessionID)
	delete(c.ifaces, aaaSessionID)

	if c.pool != nil {
		if addr, leased := c.leases[peerID]; leased {
			c.pool.Release(addr)
			delete(c.leases, peerID)
		}
	}
	return nil
}

func (c *MemoryClient) StopAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id := range c.started {
		_ = c.stopLocked(id)
	}
	return nil
}

func sessionIDFor(n uint64) string {
	const hex = "0123456789abcdef"
	buf := make([]byte, 16)
	for i := 15; i >= 0; i-- {
		buf[i] = hex[n&0xf]
		n >>= 4
	}
	return "aaa-" + string(buf)
}
