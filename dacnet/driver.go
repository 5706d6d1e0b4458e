package dacnet

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-lnhrdac/logger"
)

// multiLineQueries is the fixed set of informational queries whose answer is
// a multi-line block terminated by CR CR instead of a single line.
var multiLineQueries = map[string]struct{}{
	"?":        {},
	"help?":    {},
	"soft?":    {},
	"hard?":    {},
	"idn?":     {},
	"health?":  {},
	"ip?":      {},
	"serial?":  {},
	"contact?": {},
}

// IsMultiLineQuery reports whether query answers with a multi-line block.
func IsMultiLineQuery(query string) bool {
	_, ok := multiLineQueries[strings.ToLower(strings.TrimSpace(query))]

	return ok
}

// Driver is the public entry point for communicating with one LNHR DAC II.
//
// All operations default to one-shot mode: each command opens a fresh TCP
// session and closes it after the response. Use [Driver.Hold] for held-
// connection mode when issuing long sequences of commands (bulk waveform
// uploads in particular).
//
// A Driver is safe for concurrent use; command execution is serialized so
// that at most one request is outstanding on the device at any time.
type Driver struct {
	cfg    *ConnectionConfig
	logger logger.Logger

	// mu serializes all exchanges against the instrument. The firmware
	// processes commands strictly sequentially; interleaved requests corrupt
	// response matching.
	mu     sync.Mutex
	closed atomic.Bool

	metrics ConnectionMetrics
}

// NewDriver creates a Driver from the given configuration.
func NewDriver(cfg *ConnectionConfig) (*Driver, error) {
	if cfg == nil {
		return nil, errors.New("dacnet: connection config is nil")
	}

	return &Driver{
		cfg:    cfg,
		logger: cfg.logger,
	}, nil
}

// Open verifies that the instrument is reachable by establishing and closing
// one TCP session. When the configuration enables probe-on-open, it also
// queries "all s?" and logs the per-channel status banner.
//
// Open is optional: every operation dials on its own, so a driver can be
// used without calling Open first.
func (d *Driver) Open(ctx context.Context) error {
	if d.closed.Load() {
		return ErrClosed
	}

	if !d.cfg.probeOnOpen {
		d.mu.Lock()
		defer d.mu.Unlock()

		tr, err := dialTransport(ctx, d.cfg, d.logger, &d.metrics)
		if err != nil {
			return err
		}
		tr.close()

		return nil
	}

	status, err := d.SendQuery(ctx, "all s?")
	if err != nil {
		return err
	}

	d.logger.Info("dacnet: connected to DAC",
		"address", d.cfg.Addr(),
		"channelStatus", status)

	return nil
}

// Close marks the driver closed. Subsequent operations return ErrClosed.
// Close is idempotent. It does not interrupt an exchange already in flight;
// the device has begun processing by the time a caller could cancel.
func (d *Driver) Close() error {
	d.closed.Store(true)

	return nil
}

// Metrics returns the metrics associated with the driver.
func (d *Driver) Metrics() *ConnectionMetrics {
	return &d.metrics
}

// Config returns the driver's connection configuration.
func (d *Driver) Config() *ConnectionConfig {
	return d.cfg
}

// SendCommand sends a write command and consumes its acknowledgement.
//
// cmd must not contain "?"; queries go through SendQuery. A device-side
// rejection surfaces as *CommandRejectedError; the session stays usable.
func (d *Driver) SendCommand(ctx context.Context, cmd string) error {
	if strings.Contains(cmd, "?") {
		return ErrQueryNotAllowed
	}

	resp, err := d.exchangeOneShot(ctx, cmd)
	if err != nil {
		return err
	}

	return d.interpretCommandResponse(cmd, resp)
}

// SendQuery sends a query command and returns the answer text.
//
// query must contain "?". Multi-line informational queries (see
// IsMultiLineQuery) are answered with their lines joined by "\n".
func (d *Driver) SendQuery(ctx context.Context, query string) (string, error) {
	if !strings.Contains(query, "?") {
		return "", ErrNotQuery
	}

	if IsMultiLineQuery(query) {
		lines, err := d.exchangeBlockOneShot(ctx, query)
		if err != nil {
			return "", err
		}

		d.metrics.incQuerySendCount()

		return strings.Join(lines, "\n"), nil
	}

	resp, err := d.exchangeOneShot(ctx, query)
	if err != nil {
		return "", err
	}

	return d.interpretQueryResponse(query, resp)
}

// QueryLines sends a multi-line informational query and returns the answer
// block line by line.
func (d *Driver) QueryLines(ctx context.Context, query string) ([]string, error) {
	if !strings.Contains(query, "?") {
		return nil, ErrNotQuery
	}

	lines, err := d.exchangeBlockOneShot(ctx, query)
	if err != nil {
		return nil, err
	}

	d.metrics.incQuerySendCount()

	return lines, nil
}

// Hold runs fn with exclusive ownership of one open session.
//
// The session mutex is held for the whole scope, so no other command can
// interleave, and the TCP connection is reused for every command issued
// through the HeldSession. The session is released on every exit path,
// including panics unwinding through fn and error returns mid-transfer.
//
// The driver's own operations (SendCommand etc.) must not be called from
// inside fn; they would deadlock on the session mutex. Use the HeldSession.
func (d *Driver) Hold(ctx context.Context, fn func(*HeldSession) error) error {
	if d.closed.Load() {
		return ErrClosed
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	tr, err := dialTransport(ctx, d.cfg, d.logger, &d.metrics)
	if err != nil {
		return err
	}

	d.metrics.incHeldSessionGauge()

	hs := &HeldSession{d: d, tr: tr}
	defer func() {
		hs.released = true
		tr.close()
		d.metrics.decHeldSessionGauge()
	}()

	return fn(hs)
}

// HeldSession exposes the driver operations over one held connection.
//
// It is only valid inside the scope of the Hold call that produced it and is
// not goroutine-safe; the holder owns the session exclusively.
type HeldSession struct {
	d        *Driver
	tr       *transport
	released bool
}

// SendCommand is Driver.SendCommand over the held session.
func (hs *HeldSession) SendCommand(ctx context.Context, cmd string) error {
	if hs.released {
		return ErrClosed
	}
	if strings.Contains(cmd, "?") {
		return ErrQueryNotAllowed
	}

	resp, err := hs.d.exchange(ctx, hs.tr, cmd)
	if err != nil {
		return err
	}

	return hs.d.interpretCommandResponse(cmd, resp)
}

// SendQuery is Driver.SendQuery over the held session.
func (hs *HeldSession) SendQuery(ctx context.Context, query string) (string, error) {
	if hs.released {
		return "", ErrClosed
	}
	if !strings.Contains(query, "?") {
		return "", ErrNotQuery
	}

	if IsMultiLineQuery(query) {
		lines, err := hs.d.exchangeBlock(ctx, hs.tr, query)
		if err != nil {
			return "", err
		}

		hs.d.metrics.incQuerySendCount()

		return strings.Join(lines, "\n"), nil
	}

	resp, err := hs.d.exchange(ctx, hs.tr, query)
	if err != nil {
		return "", err
	}

	return hs.d.interpretQueryResponse(query, resp)
}

// QueryLines is Driver.QueryLines over the held session.
func (hs *HeldSession) QueryLines(ctx context.Context, query string) ([]string, error) {
	if hs.released {
		return nil, ErrClosed
	}
	if !strings.Contains(query, "?") {
		return nil, ErrNotQuery
	}

	lines, err := hs.d.exchangeBlock(ctx, hs.tr, query)
	if err != nil {
		return nil, err
	}

	hs.d.metrics.incQuerySendCount()

	return lines, nil
}
