package forwarder

import (
	"fmt"
	"sync"

	"github.com/asavie/xdp"
	"github.com/cilium/ebpf"
	"github.com/cilium/ebpf/link"
	"github.com/rs/zerolog"
)

// XDPReader wraps an AF_XDP socket for the uplink's ingress path: each
// queue gets its own socket and shares one attached XDP program, mirroring
// the pattern asavie/xdp's own examples use for multi-queue NICs.
type XDPReader struct {
	mu      sync.Mutex
	log     zerolog.Logger
	program *xdp.Program
	sockets map[int]*xdp.Socket // queue ID -> socket
	ifindex int
}

// NewXDPReader attaches an XDP program to ifindex covering queueCount
// queues and returns a reader with no sockets opened yet.
func NewXDPReader(ifindex, queueCount int, log zerolog.Logger) (*XDPReader, error) {
	program, err := xdp.NewProgram(queueCount)
	if err != nil {
		return nil, fmt.Errorf("failed to build xdp program for %d queues: %w", queueCount, err)
	}
	if err := program.Attach(ifindex); err != nil {
		return nil, fmt.Errorf("failed to attach xdp program to ifindex %d: %w", ifindex, err)
	}
	return &XDPReader{
		log:     log.With().Str("component", "xdp").Int("ifindex", ifindex).Logger(),
		program: program,
		sockets: make(map[int]*xdp.Socket),
		ifindex: ifindex,
	}, nil
}

// OpenQueue opens and registers an AF_XDP socket for queueID.
func (r *XDPReader) OpenQueue(queueID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sockets[queueID]; exists {
		return fmt.Errorf("forwarder: queue %d already open", queueID)
	}
	sock, err := xdp.NewSocket(r.ifindex, queueID, nil)
	if err != nil {
		return fmt.Errorf("failed to open xdp socket on queue %d: %w", queueID, err)
	}
	if err := r.program.Register(queueID, sock.FD()); err != nil {
		return fmt.Errorf("failed to register xdp socket on queue %d: %w", queueID, err)
	}
	r.sockets[queueID] = sock
	return nil
}

// Poll drains one round of completed receives from queueID, returning the
// raw Ethernet frames. Poll tops up the fill ring itself before waiting,
// and the returned frames are copies, so the caller has nothing to hand
// back to the socket.
func (r *XDPReader) Poll(queueID int) ([][]byte, error) {
	r.mu.Lock()
	sock, ok := r.sockets[queueID]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("forwarder: queue %d not open", queueID)
	}

	if n := sock.NumFreeFillSlots(); n > 0 {
		sock.Fill(sock.GetDescs(n, true))
	}

	numRx, _, err := sock.Poll(-1)
	if err != nil {
		return nil, fmt.Errorf("xdp poll on queue %d failed: %w", queueID, err)
	}
	if numRx == 0 {
		return nil, nil
	}

	descs := sock.Receive(numRx)
	frames := make([][]byte, 0, len(descs))
	for _, d := range descs {
		buf := sock.GetFrame(d)
		frame := make([]byte, len(buf))
		copy(frame, buf)
		frames = append(frames, frame)
	}
	return frames, nil
}

// Transmit writes frames out on queueID, blocking until the driver has
// room in the transmit ring.
func (r *XDPReader) Transmit(queueID int, frames [][]byte) error {
	r.mu.Lock()
	sock, ok := r.sockets[queueID]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("forwarder: queue %d not open", queueID)
	}

	for _, frame := range frames {
		for sock.NumFreeTxSlots() < 1 {
			if _, _, err := sock.Poll(-1); err != nil {
				return fmt.Errorf("xdp poll while waiting for tx slot: %w", err)
			}
		}
		descs := sock.GetDescs(1, false)
		descs[0].Len = uint32(len(frame))
		copy(sock.GetFrame(descs[0]), frame)
		sock.Transmit(descs)
	}
	return nil
}

// filterProgram is the optional custom eBPF object (compiled separately;
// no object file ships with this module) that drops everything but PPPoE discovery
// and session EtherTypes before a frame reaches an AF_XDP socket. It
// replaces asavie/xdp's built-in redirect-only program when present.
type filterProgram struct {
	coll *ebpf.Collection
	link link.Link
}

// AttachPPPoEFilter loads objPath (a cilium/ebpf-compiled object exposing
// an "xdp_pppoe_filter" program and an "xsks_map" BPF_MAP_TYPE_XSKMAP) and
// attaches it to ifindex in place of the reader's default program.
func AttachPPPoEFilter(ifindex int, objPath string) (*filterProgram, error) {
	spec, err := ebpf.LoadCollectionSpec(objPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load xdp object %s: %w", objPath, err)
	}
	coll, err := ebpf.NewCollection(spec)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate xdp collection from %s: %w", objPath, err)
	}
	prog, ok := coll.Programs["xdp_pppoe_filter"]
	if !ok {
		coll.Close()
		return nil, fmt.Errorf("object %s has no xdp_pppoe_filter program", objPath)
	}
	lk, err := link.AttachXDP(link.XDPOptions{Program: prog, Interface: ifindex})
	if err != nil {
		coll.Close()
		return nil, fmt.Errorf("failed to attach xdp_pppoe_filter to ifindex %d: %w", ifindex, err)
	}
	return &filterProgram{coll: coll, link: lk}, nil
}

// RegisterQueue updates the filter's xsks_map so queueID redirects into
// sock's AF_XDP ring.
func (f *filterProgram) RegisterQueue(queueID int, sock *xdp.Socket) error {
	m, ok := f.coll.Maps["xsks_map"]
	if !ok {
		return fmt.Errorf("forwarder: filter object has no xsks_map")
	}
	key := uint32(queueID)
	fd := uint32(sock.FD())
	if err := m.Update(&key, &fd, ebpf.UpdateAny); err != nil {
		return fmt.Errorf("failed to register queue %d in xsks_map: %w", queueID, err)
	}
	return nil
}

// Close detaches the filter program and releases its collection.
func (f *filterProgram) Close() error {
	if err := f.link.Close(); err != nil {
		f.coll.Close()
		return err
	}
	f.coll.Close()
	return nil
}

// Close detaches the program and releases every open queue.
func (r *XDPReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for queueID, sock := range r.sockets {
		sock.Close()
		delete(r.sockets, queueID)
	}
	if err := r.program.Detach(r.ifindex); err != nil {
		return fmt.Errorf("failed to detach xdp program from ifindex %d: %w", r.ifindex, err)
	}
	return nil
}
