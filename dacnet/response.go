package dacnet

import (
	"strconv"
	"strings"
)

// ResponseKind identifies the shape of a classified response line.
type ResponseKind int

const (
	// KindAck is the handshake acknowledgement for a write command.
	KindAck ResponseKind = iota
	// KindError is a device-reported error token.
	KindError
	// KindQueryValue is the literal value text answering a query.
	KindQueryValue
)

// String returns the kind name for logging.
func (k ResponseKind) String() string {
	switch k {
	case KindAck:
		return "ack"
	case KindError:
		return "error"
	case KindQueryValue:
		return "queryValue"
	default:
		return "unknown"
	}
}

// ackToken is the handshake acknowledgement the device sends for accepted
// write commands.
const ackToken = "0"

// Response is a classified response line. It is derived deterministically
// from the raw text and never mutated.
type Response struct {
	// Raw is the decoded response line with the terminator stripped.
	Raw string
	// Kind is the classified shape.
	Kind ResponseKind
	// Code is the numeric error code when Kind is KindError; 0 otherwise
	// and when the token carries no number.
	Code int
	// Token is the matched error vocabulary entry when Kind is KindError.
	Token string
}

// Classify maps a decoded response line onto exactly one response shape.
//
// The classification is total and context-free: it never fails, and it does
// not know which command produced the line. Ambiguity between "plain data
// answer" and "error" is resolved by the device's fixed error vocabulary
// (a line starting with "?", or the forms "ERR <n>" / "ERROR <n>"); anything
// not matching that vocabulary is a query value.
//
// Context-free classification means a query whose genuine answer is "0"
// classifies as KindAck. Callers that expect a value (SendQuery, the poller)
// therefore read Response.Raw for every non-error kind rather than
// dispatching on KindQueryValue alone.
func Classify(text string) Response {
	text = strings.TrimSpace(text)

	if text == ackToken {
		return Response{Raw: text, Kind: KindAck}
	}

	if code, ok := matchErrorToken(text); ok {
		return Response{Raw: text, Kind: KindError, Code: code, Token: text}
	}

	return Response{Raw: text, Kind: KindQueryValue}
}

// matchErrorToken tests text against the device's error vocabulary and
// parses the numeric code when present.
//
// Vocabulary:
//   - "?" optionally followed by a decimal code ("?", "?1", "? 2")
//   - "ERR <n>" or "ERROR <n>", case-insensitive
func matchErrorToken(text string) (int, bool) {
	if rest, ok := strings.CutPrefix(text, "?"); ok {
		rest = strings.TrimSpace(rest)
		if rest == "" {
			return 0, true
		}

		code, err := strconv.Atoi(rest)
		if err != nil {
			// "?"-prefixed but no clean number: still an error token,
			// just without a usable code.
			return 0, true
		}

		return code, true
	}

	fields := strings.Fields(text)
	if len(fields) != 2 {
		return 0, false
	}

	word := strings.ToUpper(fields[0])
	if word != "ERR" && word != "ERROR" {
		return 0, false
	}

	code, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, false
	}

	return code, true
}
