package dacnet

import (
	"errors"
	"fmt"
)

// Sentinel errors for the DAC line protocol.
var (
	// ErrConnection indicates the TCP connection could not be established or
	// was lost mid-session. Fatal to the current session; the driver does not
	// reconnect automatically.
	ErrConnection = errors.New("dacnet: connection error")

	// ErrTimeout indicates no response line arrived within the reply timeout,
	// or a poll wait exceeded its deadline. Recoverable.
	ErrTimeout = errors.New("dacnet: timeout")

	// ErrProtocol indicates a response line could not be decoded. The
	// request/response alignment of the session can no longer be trusted;
	// treat with the same severity as ErrConnection.
	ErrProtocol = errors.New("dacnet: protocol desynchronization")

	// ErrCommandRejected is the sentinel matched by errors.Is for
	// *CommandRejectedError values.
	ErrCommandRejected = errors.New("dacnet: command rejected by device")

	// ErrClosed is returned for operations on a closed driver or a released
	// held session.
	ErrClosed = errors.New("dacnet: driver closed")

	// ErrQueryNotAllowed is returned when a query command (containing "?")
	// is passed to SendCommand.
	ErrQueryNotAllowed = errors.New("dacnet: query commands are not allowed with SendCommand, use SendQuery instead")

	// ErrNotQuery is returned when a write command (no "?") is passed to
	// SendQuery or ExpectQueryAnswer.
	ErrNotQuery = errors.New("dacnet: non-query commands are not allowed with SendQuery, use SendCommand instead")
)

// CommandRejectedError reports that the device explicitly rejected a command
// or query with an error token from its documented vocabulary.
//
// A rejection is not a transport failure: the session remains usable for the
// next command. The driver never retries a rejected command on its own,
// since retry safety depends on command idempotency.
type CommandRejectedError struct {
	// Code is the numeric error code parsed from the token, 0 when absent.
	Code int
	// Token is the raw error token as received (e.g. "?1", "ERR 3").
	Token string
	// Cmd is the command that provoked the rejection.
	Cmd string
}

func (e *CommandRejectedError) Error() string {
	return fmt.Sprintf("dacnet: device rejected %q with %q (code %d)", e.Cmd, e.Token, e.Code)
}

// Is reports a match against the ErrCommandRejected sentinel.
func (e *CommandRejectedError) Is(target error) bool {
	return target == ErrCommandRejected
}

// UnexpectedAnswerError reports that a data line arrived where a plain
// acknowledgement was expected. This is a protocol-level anomaly: the caller
// may choose to treat it as fatal (equivalent to ErrProtocol) or inspect Raw.
type UnexpectedAnswerError struct {
	// Cmd is the write command that was sent.
	Cmd string
	// Raw is the response line as received.
	Raw string
}

func (e *UnexpectedAnswerError) Error() string {
	return fmt.Sprintf("dacnet: expected acknowledgement for %q, device answered %q", e.Cmd, e.Raw)
}
