// Package cli serves the daemon's UNIX-domain control socket: a small
// line-oriented protocol for listing, inspecting and clearing sessions,
// in the vein of gobfdctl's session subcommands but speaking plain text
// over net.Listen("unix", ...) instead of gRPC (the teacher carries no
// CLI of its own).
package cli

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// SessionInfo is the subset of session state the CLI reports.
type SessionInfo struct {
	ID        uint16
	PeerMAC   string
	IfIndex   int
	Address   string
	VRF       string
	LCPState  string
	IPCPState string
}

// Backend is the narrow surface the control socket drives; cmd/vbngd
// wires it to the registry and forwarder.
type Backend interface {
	ListSessions() []SessionInfo
	GetSession(id uint16) (SessionInfo, bool)
	ClearSession(id uint16) error
	LinkInfo() (name string, speedMbps uint32, duplex string, err error)
}

// Server listens on a UNIX-domain socket and dispatches one command per
// line of input.
type Server struct {
	path     string
	listener net.Listener
	backend  Backend
	log      zerolog.Logger

	mu     sync.Mutex
	closed bool
}

// NewServer removes any stale socket file at path and binds a new one.
func NewServer(path string, backend Backend, log zerolog.Logger) (*Server, error) {
	_ = os.Remove(path)
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on control socket %s: %w", path, err)
	}
	return &Server{
		path:     path,
		listener: ln,
		backend:  backend,
		log:      log.With().Str("component", "cli").Logger(),
	}, nil
}

// Serve accepts connections until the listener is closed, handling each
// on its own goroutine. It returns nil once Close has been called.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return fmt.Errorf("control socket accept: %w", err)
		}
		go s.handle(conn)
	}
}

// Close shuts the listener down and removes the socket file.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	err := s.listener.Close()
	_ = os.Remove(s.path)
	return err
}

func (s *Server) handle(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		s.dispatch(conn, line)
	}
}

func (s *Server) dispatch(w io.Writer, line string) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return
	}

	switch fields[0] {
	case "session":
		s.dispatchSession(w, fields[1:])
	case "link":
		s.dispatchLink(w, fields[1:])
	default:
		fmt.Fprintf(w, "ERR unknown command %q\n", fields[0])
	}
}

func (s *Server) dispatchSession(w io.Writer, args []string) {
	if len(args) == 0 {
		fmt.Fprintln(w, "ERR session requires a subcommand: list, show <id>, clear <id>")
		return
	}

	switch args[0] {
	case "list":
		for _, info := range s.backend.ListSessions() {
			writeSessionLine(w, info)
		}
		fmt.Fprintln(w, "OK")
	case "show":
		id, err := parseSessionID(args)
		if err != nil {
			fmt.Fprintf(w, "ERR %v\n", err)
			return
		}
		info, ok := s.backend.GetSession(id)
		if !ok {
			fmt.Fprintf(w, "ERR no such session %d\n", id)
			return
		}
		writeSessionLine(w, info)
		fmt.Fprintln(w, "OK")
	case "clear":
		id, err := parseSessionID(args)
		if err != nil {
			fmt.Fprintf(w, "ERR %v\n", err)
			return
		}
		if err := s.backend.ClearSession(id); err != nil {
			fmt.Fprintf(w, "ERR %v\n", err)
			return
		}
		fmt.Fprintln(w, "OK")
	default:
		fmt.Fprintf(w, "ERR unknown session subcommand %q\n", args[0])
	}
}

func (s *Server) dispatchLink(w io.Writer, args []string) {
	if len(args) == 0 || args[0] != "show" {
		fmt.Fprintln(w, "ERR link requires subcommand: show")
		return
	}
	name, speed, duplex, err := s.backend.LinkInfo()
	if err != nil {
		fmt.Fprintf(w, "ERR %v\n", err)
		return
	}
	fmt.Fprintf(w, "%s speed=%dMbps duplex=%s\n", name, speed, duplex)
	fmt.Fprintln(w, "OK")
}

func parseSessionID(args []string) (uint16, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("missing session id")
	}
	n, err := strconv.ParseUint(args[1], 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid session id %q: %w", args[1], err)
	}
	return uint16(n), nil
}

func writeSessionLine(w io.Writer, info SessionInfo) {
	fmt.Fprintf(w, "%d mac=%s ifindex=%d addr=%s vrf=%s lcp=%s ipcp=%s\n",
		info.ID, info.PeerMAC, info.IfIndex, info.Address, info.VRF, info.LCPState, info.IPCPState)
}
