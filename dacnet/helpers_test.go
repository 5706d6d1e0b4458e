package dacnet

import (
	"bufio"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// Mock device handler directives. A handler returns the bytes to write
// verbatim (tests append the terminator themselves), or one of these
// markers.
const (
	// respDrop closes the connection without answering.
	respDrop = "\x00drop"
	// respSilent keeps the connection open but never answers.
	respSilent = "\x00silent"
)

// ok is the device's write-command acknowledgement line.
func ok() string { return "0\r\n" }

// line frames a single-line answer.
func line(s string) string { return s + "\r\n" }

// mockDevice is an in-process stand-in for the instrument: a TCP listener
// that reads command lines and answers via a test-supplied handler.
type mockDevice struct {
	t  *testing.T
	ln net.Listener

	handler func(cmd string) string

	connCount atomic.Int64
	cmdCount  atomic.Int64
}

// newMockDevice starts a mock device on a loopback port.
func newMockDevice(t *testing.T, handler func(cmd string) string) *mockDevice {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("newMockDevice: %v", err)
	}

	md := &mockDevice{t: t, ln: ln, handler: handler}
	go md.acceptLoop()

	t.Cleanup(md.close)

	return md
}

func (md *mockDevice) acceptLoop() {
	for {
		conn, err := md.ln.Accept()
		if err != nil {
			return
		}

		md.connCount.Add(1)
		go md.serve(conn)
	}
}

func (md *mockDevice) serve(conn net.Conn) {
	defer func() { _ = conn.Close() }()

	reader := bufio.NewReader(conn)
	for {
		raw, err := reader.ReadString('\n')
		if err != nil {
			return
		}

		md.cmdCount.Add(1)

		resp := md.handler(strings.TrimSpace(raw))
		switch resp {
		case respDrop:
			return
		case respSilent:
			continue
		}

		if _, err := conn.Write([]byte(resp)); err != nil {
			return
		}
	}
}

func (md *mockDevice) close() {
	_ = md.ln.Close()
}

// addr returns the listener's host and port.
func (md *mockDevice) addr() (string, int) {
	tcpAddr := md.ln.Addr().(*net.TCPAddr)

	return tcpAddr.IP.String(), tcpAddr.Port
}

// newTestConfig creates a ConnectionConfig pointed at the mock device, with
// delays and timeouts shortened for tests.
func newTestConfig(t *testing.T, md *mockDevice, opts ...ConnOption) *ConnectionConfig {
	t.Helper()

	host, port := md.addr()

	defaults := []ConnOption{
		WithReplyTimeout(MinReplyTimeout), // 100ms
		WithConnectTimeout(time.Second),
		WithDisconnectDelay(0),
		WithCtrlSettleDelay(0),
		WithMemWriteSettleDelay(0),
		WithPollInterval(5 * time.Millisecond),
	}

	cfg, err := NewConnectionConfig(host, port, append(defaults, opts...)...)
	if err != nil {
		t.Fatalf("newTestConfig: %v", err)
	}

	return cfg
}

// newTestDriver creates a Driver wired to a fresh mock device.
func newTestDriver(t *testing.T, handler func(cmd string) string, opts ...ConnOption) (*Driver, *mockDevice) {
	t.Helper()

	md := newMockDevice(t, handler)

	d, err := NewDriver(newTestConfig(t, md, opts...))
	if err != nil {
		t.Fatalf("newTestDriver: %v", err)
	}

	return d, md
}
