package dacnet

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/arloliu/go-lnhrdac/logger"
)

// transport owns one TCP connection to the instrument for its lifetime.
//
// It provides deadline-bounded line reads with Telnet sequence stripping.
// The socket is exclusively owned: a transport is never shared between
// sessions, and close is idempotent.
//
// transport is NOT goroutine-safe. The Driver serializes all access through
// its session mutex, consistent with the half-duplex protocol.
type transport struct {
	conn   net.Conn
	reader *bufio.Reader
	filter telnetFilter
	cfg    *ConnectionConfig
	logger logger.Logger
	closed bool
}

// dialTransport establishes a TCP connection to the configured endpoint.
//
// Dial failures (refused, unreachable, DNS failure, dial timeout) surface
// as ErrConnection.
func dialTransport(ctx context.Context, cfg *ConnectionConfig, l logger.Logger, m *ConnectionMetrics) (*transport, error) {
	address := net.JoinHostPort(cfg.host, strconv.Itoa(cfg.port))
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.connectTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", address)
	if err != nil {
		l.Debug("dacnet: dial failed", "address", address, "error", err)

		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnection, address, err)
	}

	m.incDialCount()

	l.Debug("dacnet: connected",
		"localAddr", conn.LocalAddr(),
		"remoteAddr", conn.RemoteAddr())

	return &transport{
		conn:   conn,
		reader: bufio.NewReader(conn),
		cfg:    cfg,
		logger: l,
	}, nil
}

// write sends all bytes in data to the device.
func (tr *transport) write(data []byte) error {
	if tr.closed {
		return ErrClosed
	}

	for written := 0; written < len(data); {
		n, err := tr.conn.Write(data[written:])
		written += n

		if err != nil {
			return fmt.Errorf("%w: write: %w", ErrConnection, err)
		}
	}

	return nil
}

// readLine reads one response line, bounded by timeout.
//
// The read deadline is reset before each Read call so that the timeout
// bounds the gap to the next inbound byte rather than the whole line; on
// this protocol a response line arrives in one burst, so the distinction
// only matters for slow links.
//
// A deadline expiry maps to ErrTimeout; a closed or reset connection maps
// to ErrConnection. Telnet sequences are stripped, and negotiation requests
// are refused inline.
func (tr *transport) readLine(timeout time.Duration) ([]byte, error) {
	if tr.closed {
		return nil, ErrClosed
	}

	var line []byte

	for {
		if err := tr.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("%w: set read deadline: %w", ErrConnection, err)
		}

		b, err := tr.reader.ReadByte()
		if err != nil {
			return nil, classifyReadError(err)
		}

		data, ok, response := tr.filter.feed(b)
		if len(response) > 0 {
			if werr := tr.write(response); werr != nil {
				return nil, werr
			}
		}

		if !ok {
			continue
		}

		line = append(line, data)
		if data == '\n' {
			return line, nil
		}
	}
}

// readBlock reads a multi-line answer terminated by CR CR (an empty line on
// the wire), bounded by timeout per read call. It returns the decoded lines
// without terminators.
//
// A small set of informational queries (idn?, health?, ...) answer this way;
// see MultiLineQueries.
func (tr *transport) readBlock(timeout time.Duration) ([]string, error) {
	var lines []string
	var cur []byte
	var prev byte

	if tr.closed {
		return nil, ErrClosed
	}

	for {
		if err := tr.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return nil, fmt.Errorf("%w: set read deadline: %w", ErrConnection, err)
		}

		b, err := tr.reader.ReadByte()
		if err != nil {
			return nil, classifyReadError(err)
		}

		data, ok, response := tr.filter.feed(b)
		if len(response) > 0 {
			if werr := tr.write(response); werr != nil {
				return nil, werr
			}
		}

		if !ok {
			continue
		}

		// CR CR marks end of block.
		if data == '\r' && prev == '\r' {
			if len(cur) > 0 {
				text, derr := decodeBlockLine(cur)
				if derr != nil {
					return nil, derr
				}

				lines = append(lines, text)
			}

			return lines, nil
		}

		if data == '\n' {
			text, derr := decodeBlockLine(cur)
			if derr != nil {
				return nil, derr
			}

			lines = append(lines, text)
			cur = cur[:0]
			prev = 0

			continue
		}

		if data != '\r' {
			cur = append(cur, data)
		}

		prev = data
	}
}

// close tears down the TCP connection. It is idempotent.
//
// After closing, the transport sleeps for the configured disconnect delay
// before returning; the firmware needs a short settle period between a
// disconnect and the next connect on the same port.
func (tr *transport) close() {
	if tr.closed {
		return
	}

	tr.closed = true
	remote := tr.conn.RemoteAddr().String()

	if err := tr.conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		tr.logger.Error("dacnet: failed to close connection", "error", err)
	}

	tr.logger.Debug("dacnet: disconnected", "remoteAddr", remote)

	if tr.cfg.disconnectDelay > 0 {
		time.Sleep(tr.cfg.disconnectDelay)
	}
}

// classifyReadError maps a raw read error onto the driver's error taxonomy:
// deadline expiry is the recoverable ErrTimeout, everything else (EOF,
// reset, closed socket) is ErrConnection.
func classifyReadError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: no response line within deadline: %w", ErrTimeout, err)
	}

	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: connection closed by device: %w", ErrConnection, err)
	}

	return fmt.Errorf("%w: read: %w", ErrConnection, err)
}
