package dacnet

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-lnhrdac/logger"
)

func TestSendCommand_Acknowledged(t *testing.T) {
	d, md := newTestDriver(t, func(cmd string) string {
		assert.Equal(t, "all off", cmd)
		return ok()
	})

	require.NoError(t, d.SendCommand(context.Background(), "all off"))

	assert.Equal(t, uint64(1), d.Metrics().CmdSendCount.Load())
	assert.Equal(t, int64(1), md.connCount.Load())
}

// One-shot mode opens and closes exactly one session per command.
func TestSendCommand_OneSessionPerCommand(t *testing.T) {
	d, md := newTestDriver(t, func(string) string { return ok() })

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, d.SendCommand(ctx, "all off"))
	}

	assert.Equal(t, int64(5), md.connCount.Load())
	assert.Equal(t, uint64(5), d.Metrics().DialCount.Load())
}

func TestSendCommand_Rejected(t *testing.T) {
	answers := []string{line("ERR 3"), ok()}
	d, _ := newTestDriver(t, func(string) string {
		resp := answers[0]
		answers = answers[1:]
		return resp
	})

	ctx := context.Background()

	err := d.SendCommand(ctx, "al off")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCommandRejected)

	var rejected *CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 3, rejected.Code)
	assert.Equal(t, "ERR 3", rejected.Token)
	assert.Equal(t, "al off", rejected.Cmd)

	// The rejection must not poison the connection: the next command works.
	require.NoError(t, d.SendCommand(ctx, "all off"))
	assert.Equal(t, uint64(1), d.Metrics().CmdRejectCount.Load())
}

func TestSendCommand_QueryGuard(t *testing.T) {
	d, md := newTestDriver(t, func(string) string { return ok() })

	err := d.SendCommand(context.Background(), "all s?")
	assert.ErrorIs(t, err, ErrQueryNotAllowed)

	// The guard fires before any connection is made.
	assert.Equal(t, int64(0), md.connCount.Load())
}

func TestSendCommand_UnexpectedAnswer(t *testing.T) {
	d, _ := newTestDriver(t, func(string) string { return line("ON") })

	err := d.SendCommand(context.Background(), "all off")
	require.Error(t, err)

	var unexpected *UnexpectedAnswerError
	require.ErrorAs(t, err, &unexpected)
	assert.Equal(t, "ON", unexpected.Raw)
}

func TestSendQuery(t *testing.T) {
	d, _ := newTestDriver(t, func(cmd string) string {
		assert.Equal(t, "1 s?", cmd)
		return line("ON")
	})

	answer, err := d.SendQuery(context.Background(), "1 s?")
	require.NoError(t, err)
	assert.Equal(t, "ON", answer)
	assert.Equal(t, uint64(1), d.Metrics().QuerySendCount.Load())
}

func TestSendQuery_CommandGuard(t *testing.T) {
	d, md := newTestDriver(t, func(string) string { return line("ON") })

	_, err := d.SendQuery(context.Background(), "all off")
	assert.ErrorIs(t, err, ErrNotQuery)
	assert.Equal(t, int64(0), md.connCount.Load())
}

// A genuine query answer of "0" classifies as the ack token but must still
// be returned as the answer text.
func TestSendQuery_ZeroAnswer(t *testing.T) {
	d, _ := newTestDriver(t, func(string) string { return line("0") })

	answer, err := d.SendQuery(context.Background(), "wav-a busy?")
	require.NoError(t, err)
	assert.Equal(t, "0", answer)
}

func TestSendQuery_Rejected(t *testing.T) {
	d, _ := newTestDriver(t, func(string) string { return line("?1") })

	_, err := d.SendQuery(context.Background(), "al s?")
	require.Error(t, err)

	var rejected *CommandRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, 1, rejected.Code)
}

func TestSendQuery_MultiLine(t *testing.T) {
	d, _ := newTestDriver(t, func(cmd string) string {
		assert.Equal(t, "idn?", cmd)
		return "LNHR DAC II\r\nSN 10023\r\r"
	})

	answer, err := d.SendQuery(context.Background(), "idn?")
	require.NoError(t, err)
	assert.Equal(t, "LNHR DAC II\nSN 10023", answer)
}

func TestQueryLines(t *testing.T) {
	d, _ := newTestDriver(t, func(string) string {
		return "line one\r\nline two\r\nline three\r\r"
	})

	lines, err := d.QueryLines(context.Background(), "health?")
	require.NoError(t, err)
	assert.Equal(t, []string{"line one", "line two", "line three"}, lines)
}

func TestIsMultiLineQuery(t *testing.T) {
	assert.True(t, IsMultiLineQuery("idn?"))
	assert.True(t, IsMultiLineQuery(" IDN? "))
	assert.True(t, IsMultiLineQuery("?"))
	assert.False(t, IsMultiLineQuery("1 s?"))
	assert.False(t, IsMultiLineQuery("all s?"))
}

func TestDriver_Timeout(t *testing.T) {
	d, _ := newTestDriver(t, func(string) string { return respSilent })

	start := time.Now()
	err := d.SendCommand(context.Background(), "all off")

	assert.ErrorIs(t, err, ErrTimeout)
	assert.GreaterOrEqual(t, time.Since(start), MinReplyTimeout)
	assert.Equal(t, uint64(1), d.Metrics().TimeoutCount.Load())
}

// A connection dropped by the device surfaces as ErrConnection, never
// ErrTimeout, even though the drop happens before the reply deadline.
func TestDriver_DroppedConnection(t *testing.T) {
	d, _ := newTestDriver(t, func(string) string { return respDrop })

	err := d.SendCommand(context.Background(), "all off")
	assert.ErrorIs(t, err, ErrConnection)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestDriver_ConnectionRefused(t *testing.T) {
	// Reserve a port, then close the listener so dialing it fails.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	require.NoError(t, ln.Close())

	cfg, err := NewConnectionConfig(addr.IP.String(), addr.Port, WithConnectTimeout(time.Second))
	require.NoError(t, err)

	d, err := NewDriver(cfg)
	require.NoError(t, err)

	cmdErr := d.SendCommand(context.Background(), "all off")
	assert.ErrorIs(t, cmdErr, ErrConnection)
}

func TestDriver_ProtocolError(t *testing.T) {
	d, _ := newTestDriver(t, func(string) string { return "\r\n" })

	err := d.SendCommand(context.Background(), "all off")
	assert.ErrorIs(t, err, ErrProtocol)
	assert.Equal(t, uint64(1), d.Metrics().ProtocolErrCount.Load())
}

func TestDriver_Closed(t *testing.T) {
	d, _ := newTestDriver(t, func(string) string { return ok() })

	require.NoError(t, d.Close())
	require.NoError(t, d.Close()) // idempotent

	assert.ErrorIs(t, d.SendCommand(context.Background(), "all off"), ErrClosed)

	_, err := d.SendQuery(context.Background(), "all s?")
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, d.Hold(context.Background(), func(*HeldSession) error { return nil }), ErrClosed)
}

func TestDriver_OpenPlain(t *testing.T) {
	d, md := newTestDriver(t, func(string) string { return ok() })

	require.NoError(t, d.Open(context.Background()))
	assert.Equal(t, int64(1), md.connCount.Load())
	assert.Equal(t, int64(0), md.cmdCount.Load())
}

func TestDriver_OpenProbe(t *testing.T) {
	d, md := newTestDriver(t, func(cmd string) string {
		assert.Equal(t, "all s?", cmd)
		return line("ON;OFF;ON")
	}, WithProbeOnOpen(true))

	require.NoError(t, d.Open(context.Background()))
	assert.Equal(t, int64(1), md.cmdCount.Load())
}

func TestDriver_OpenProbeLogsBanner(t *testing.T) {
	mockLogger := logger.NewMockLogger()
	mockLogger.On("Debug", mock.Anything, mock.Anything)
	mockLogger.On("Info", mock.Anything, mock.Anything)

	d, _ := newTestDriver(t, func(string) string { return line("ON;OFF") },
		WithProbeOnOpen(true),
		WithLogger(mockLogger),
	)

	require.NoError(t, d.Open(context.Background()))

	mockLogger.AssertCalled(t, "Info", "dacnet: connected to DAC", mock.Anything)
}

func TestDriver_SettleDelay(t *testing.T) {
	d, _ := newTestDriver(t, func(string) string { return ok() },
		WithCtrlSettleDelay(50*time.Millisecond),
		WithMemWriteSettleDelay(30*time.Millisecond),
	)

	ctx := context.Background()

	// Non-control command: no settle delay.
	start := time.Now()
	require.NoError(t, d.SendCommand(ctx, "all off"))
	assert.Less(t, time.Since(start), 40*time.Millisecond)

	// Control command: control settle delay applies.
	start = time.Now()
	require.NoError(t, d.SendCommand(ctx, "c swg freq 100.0"))
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)

	// Memory-write control command: both delays apply.
	start = time.Now()
	require.NoError(t, d.SendCommand(ctx, "c wav-a write"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestDriver_ContextCancelled(t *testing.T) {
	d, _ := newTestDriver(t, func(string) string { return ok() })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := d.SendCommand(ctx, "all off")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewDriver_NilConfig(t *testing.T) {
	_, err := NewDriver(nil)
	assert.Error(t, err)
}

// Telnet negotiation emitted by the device on connect must be stripped and
// refused without disturbing the command exchange.
func TestDriver_TelnetNegotiation(t *testing.T) {
	md := newMockDevice(t, nil)
	md.handler = func(string) string {
		// WILL echo before the acknowledgement.
		return string([]byte{telIAC, telWILL, 1}) + ok()
	}

	d, err := NewDriver(newTestConfig(t, md))
	require.NoError(t, err)

	require.NoError(t, d.SendCommand(context.Background(), "all off"))
}

func TestDriver_ErrorsUnwrap(t *testing.T) {
	rejected := &CommandRejectedError{Code: 3, Token: "ERR 3", Cmd: "x"}
	assert.True(t, errors.Is(rejected, ErrCommandRejected))
	assert.Contains(t, rejected.Error(), "ERR 3")

	unexpected := &UnexpectedAnswerError{Cmd: "x", Raw: "ON"}
	assert.Contains(t, unexpected.Error(), "ON")
}
