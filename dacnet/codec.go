package dacnet

import (
	"fmt"
	"strings"
)

// Line termination per the programmer's manual: commands may be sent without
// CR/LF, but the recommended form terminates with CR LF. Responses arrive
// terminated by CR LF; multi-line blocks end with CR CR.
const lineTerminator = "\r\n"

// encodeCommand frames a command payload for the wire by appending CR LF.
//
// Payloads are constrained to printable ASCII with no embedded terminator by
// the caller's contract; no escaping is performed.
func encodeCommand(payload string) []byte {
	buf := make([]byte, 0, len(payload)+len(lineTerminator))
	buf = append(buf, payload...)
	buf = append(buf, lineTerminator...)

	return buf
}

// decodeLine strips the line terminator and surrounding whitespace from a
// raw response line.
//
// An empty line or a line containing non-ASCII bytes yields ErrProtocol:
// the device only ever emits printable ASCII, so anything else means the
// session's framing is desynchronized.
func decodeLine(raw []byte) (string, error) {
	for _, b := range raw {
		if b >= 0x80 {
			return "", fmt.Errorf("%w: non-ASCII byte 0x%02X in response line", ErrProtocol, b)
		}
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "", fmt.Errorf("%w: empty response line", ErrProtocol)
	}

	return text, nil
}

// decodeBlockLine is decodeLine for lines inside a multi-line answer, where
// blank interior lines are legal.
func decodeBlockLine(raw []byte) (string, error) {
	for _, b := range raw {
		if b >= 0x80 {
			return "", fmt.Errorf("%w: non-ASCII byte 0x%02X in response block", ErrProtocol, b)
		}
	}

	return strings.TrimRight(string(raw), "\r\n"), nil
}
