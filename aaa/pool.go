package aaa

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
)

// ErrPoolExhausted is returned by Lease when no free address remains.
var ErrPoolExhausted = errors.New("aaa: address pool exhausted")

// PoolAllocator hands out IPv4 addresses from a contiguous range: a
// start/end bound plus a set of leased addresses that Lease scans
// linearly, rather than a bitmap, since subscriber pools are small enough
// that linear scan cost is negligible.
type PoolAllocator struct {
	mu       sync.Mutex
	start    uint32
	end      uint32
	leased   map[uint32]bool
	nextScan uint32
}

// NewPoolAllocator builds a PoolAllocator over the inclusive IPv4 range
// [start, end].
func NewPoolAllocator(start, end net.IP) (*PoolAllocator, error) {
	s := start.To4()
	e := end.To4()
	if s == nil || e == nil {
		return nil, fmt.Errorf("aaa: pool bounds must be IPv4")
	}
	sv := binary.BigEndian.Uint32(s)
	ev := binary.BigEndian.Uint32(e)
	if ev < sv {
		return nil, fmt.Errorf("aaa: pool end %s precedes start %s", end, start)
	}
	return &PoolAllocator{start: sv, end: ev, leased: make(map[uint32]bool), nextScan: sv}, nil
}

// Lease returns the next free address in the range, scanning forward from
// the last handed-out address and wrapping around.
func (p *PoolAllocator) Lease() (net.IP, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	scanStart := p.nextScan
	v := scanStart
	for {
		if !p.leased[v] {
			p.leased[v] = true
			p.nextScan = v + 1
			if p.nextScan > p.end {
				p.nextScan = p.start
			}
			return uint32ToIP(v), nil
		}
		v++
		if v > p.end {
			v = p.start
		}
		if v == scanStart {
			return nil, ErrPoolExhausted
		}
	}
}

// Release returns addr to the free pool. Releasing an address not
// currently leased is a no-op.
func (p *PoolAllocator) Release(addr net.IP) {
	v4 := addr.To4()
	if v4 == nil {
		return
	}
	v := binary.BigEndian.Uint32(v4)

	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.leased, v)
}

// Available reports the number of unleased addresses remaining.
func (p *PoolAllocator) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := int(p.end-p.start) + 1
	return total - len(p.leased)
}

func uint32ToIP(v uint32) net.IP {
	ip := make(net.IP, 4)
	binary.BigEndian.PutUint32(ip, v)
	return ip
}
