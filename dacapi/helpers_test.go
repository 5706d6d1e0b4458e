package dacapi

import (
	"bufio"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-lnhrdac/dacnet"
)

// fakeDAC is a minimal in-process instrument: it acknowledges write commands
// with "0" and answers queries from a test-supplied handler. It records every
// command line it receives.
type fakeDAC struct {
	t  *testing.T
	ln net.Listener

	// query answers one query command; nil answers make the test fail.
	query func(cmd string) string
	// reject marks command prefixes answered with an error token.
	reject string

	mu       sync.Mutex
	commands []string

	connCount atomic.Int64
}

func newFakeDAC(t *testing.T) *fakeDAC {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("newFakeDAC: %v", err)
	}

	f := &fakeDAC{t: t, ln: ln}
	go f.acceptLoop()

	t.Cleanup(func() { _ = ln.Close() })

	return f
}

func (f *fakeDAC) acceptLoop() {
	for {
		conn, err := f.ln.Accept()
		if err != nil {
			return
		}

		f.connCount.Add(1)
		go f.serve(conn)
	}
}

func (f *fakeDAC) serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	for {
		raw, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		cmd := strings.TrimSpace(raw)

		f.mu.Lock()
		f.commands = append(f.commands, cmd)
		f.mu.Unlock()

		resp := f.answer(cmd)
		if _, err := conn.Write([]byte(resp)); err != nil {
			return
		}
	}
}

func (f *fakeDAC) answer(cmd string) string {
	if f.reject != "" && strings.HasPrefix(cmd, f.reject) {
		return "?1\r\n"
	}

	if strings.Contains(cmd, "?") {
		if f.query == nil {
			f.t.Errorf("unexpected query %q", cmd)

			return "?1\r\n"
		}

		return f.query(cmd) + "\r\n"
	}

	return "0\r\n"
}

// received returns a snapshot of the command lines seen so far.
func (f *fakeDAC) received() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.commands...)
}

// newTestClient wires a Client to a fresh fake instrument.
func newTestClient(t *testing.T) (*Client, *fakeDAC) {
	t.Helper()

	f := newFakeDAC(t)
	tcpAddr := f.ln.Addr().(*net.TCPAddr)

	cfg, err := dacnet.NewConnectionConfig(tcpAddr.IP.String(), tcpAddr.Port,
		dacnet.WithReplyTimeout(dacnet.MinReplyTimeout),
		dacnet.WithConnectTimeout(time.Second),
		dacnet.WithDisconnectDelay(0),
		dacnet.WithCtrlSettleDelay(0),
		dacnet.WithMemWriteSettleDelay(0),
		dacnet.WithPollInterval(2*time.Millisecond),
	)
	if err != nil {
		t.Fatalf("newTestClient: %v", err)
	}

	d, err := dacnet.NewDriver(cfg)
	if err != nil {
		t.Fatalf("newTestClient: %v", err)
	}

	return NewClient(d), f
}
