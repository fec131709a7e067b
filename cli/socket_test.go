package cli_test

import (
	"bufio"
	"errors"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vbng/control-plane/cli"
)

type fakeBackend struct {
	sessions map[uint16]cli.SessionInfo
	cleared  []uint16
}

func (b *fakeBackend) ListSessions() []cli.SessionInfo {
	out := make([]cli.SessionInfo, 0, len(b.sessions))
	for _, v := range b.sessions {
		out = append(out, v)
	}
	return out
}

func (b *fakeBackend) GetSession(id uint16) (cli.SessionInfo, bool) {
	info, ok := b.sessions[id]
	return info, ok
}

func (b *fakeBackend) ClearSession(id uint16) error {
	if _, ok := b.sessions[id]; !ok {
		return errors.New("no such session")
	}
	b.cleared = append(b.cleared, id)
	delete(b.sessions, id)
	return nil
}

func (b *fakeBackend) LinkInfo() (string, uint32, string, error) {
	return "eth0", 10000, "full", nil
}

func startServer(t *testing.T, backend *fakeBackend) (*cli.Server, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vbngd.sock")
	srv, err := cli.NewServer(path, backend, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	go srv.Serve()
	t.Cleanup(func() { srv.Close() })
	return srv, path
}

func sendCommand(t *testing.T, path, cmd string) []string {
	t.Helper()
	conn, err := net.DialTimeout("unix", path, time.Second)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(cmd + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(time.Second))

	var lines []string
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		line := scanner.Text()
		lines = append(lines, line)
		if line == "OK" || (len(line) >= 3 && line[:3] == "ERR") {
			break
		}
	}
	return lines
}

func TestSessionShowAndClear(t *testing.T) {
	backend := &fakeBackend{sessions: map[uint16]cli.SessionInfo{
		7: {ID: 7, PeerMAC: "00:11:22:33:44:55", IfIndex: 4, Address: "100.64.0.5", VRF: "vrf-red"},
	}}
	_, path := startServer(t, backend)

	lines := sendCommand(t, path, "session show 7")
	if len(lines) < 2 {
		t.Fatalf("got %v, want a session line plus OK", lines)
	}
	if lines[len(lines)-1] != "OK" {
		t.Errorf("last line = %q, want OK", lines[len(lines)-1])
	}

	lines = sendCommand(t, path, "session clear 7")
	if lines[len(lines)-1] != "OK" {
		t.Errorf("clear: got %v", lines)
	}
	if len(backend.cleared) != 1 || backend.cleared[0] != 7 {
		t.Errorf("cleared = %v, want [7]", backend.cleared)
	}
}

func TestSessionShowUnknownErrors(t *testing.T) {
	backend := &fakeBackend{sessions: map[uint16]cli.SessionInfo{}}
	_, path := startServer(t, backend)

	lines := sendCommand(t, path, "session show 99")
	if len(lines) == 0 || lines[0][:3] != "ERR" {
		t.Errorf("got %v, want an ERR response", lines)
	}
}

func TestLinkShow(t *testing.T) {
	backend := &fakeBackend{sessions: map[uint16]cli.SessionInfo{}}
	_, path := startServer(t, backend)

	lines := sendCommand(t, path, "link show")
	if len(lines) < 2 {
		t.Fatalf("got %v, want a link line plus OK", lines)
	}
}

func TestUnknownCommandErrors(t *testing.T) {
	backend := &fakeBackend{sessions: map[uint16]cli.SessionInfo{}}
	_, path := startServer(t, backend)

	lines := sendCommand(t, path, "bogus")
	if len(lines) == 0 || lines[0][:3] != "ERR" {
		t.Errorf("got %v, want an ERR response", lines)
	}
}
