// Package dacnet implements the Telnet (raw TCP) command protocol of the
// LNHR DAC II, a 24-channel low-noise high-resolution digital-to-analog
// converter instrument.
//
// The device speaks a line-oriented ASCII protocol: each command is one line
// terminated by CR LF, and each command is answered by exactly one response
// line (or, for a small set of informational queries, a multi-line block).
// The firmware processes commands strictly sequentially, so the protocol is
// half-duplex request/response with no pipelining: a second command must not
// be issued before the response to the first has been consumed.
//
// # Response Handshaking
//
// Write commands are acknowledged with the single token "0". Rejected
// commands are answered with an error token from a fixed vocabulary (a line
// starting with "?", or "ERR <code>"). Query commands (lines ending in "?")
// are answered with the value text itself. [Classify] maps every response
// line onto exactly one of these three shapes.
//
// # Connection Lifetime Modes
//
// The driver supports two transmission modes:
//
//   - One-shot: every command opens a fresh TCP connection and closes it
//     after the response is read. This bounds resource usage for sparse
//     command traffic and is the default for all [Driver] operations.
//   - Held connection: [Driver.Hold] transfers exclusive ownership of one
//     open session into a caller-controlled scope. All commands issued
//     through the [HeldSession] reuse that session. This mode is required
//     for high-rate sequential transfers such as waveform sample uploads,
//     where per-command connection setup would dominate and risk device-side
//     timing violations.
//
// In both modes all command execution against a driver is serialized; the
// single-outstanding-request invariant holds even when the host process is
// multi-threaded.
//
// # Errors
//
// Failures are classified into four kinds: [ErrConnection] (socket could not
// be opened or was lost), [ErrTimeout] (no response within the configured
// ceiling, or a poll wait exceeded its deadline), [CommandRejectedError]
// (the device explicitly rejected a command), and [ErrProtocol] (a response
// line could not be decoded; the session's request/response alignment can no
// longer be trusted). All four propagate to the caller; the driver never
// retries automatically, since retry safety depends on command idempotency
// the protocol does not provide.
package dacnet
