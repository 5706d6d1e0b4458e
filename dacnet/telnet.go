package dacnet

// Telnet command constants (RFC 854). The instrument listens on a
// Telnet-style port; some firmware revisions emit option negotiation on
// connect. The driver never negotiates: every WILL is answered with DONT and
// every DO with WONT, and all other command sequences are dropped from the
// data stream before line extraction.
const (
	telIAC  byte = 255 // Interpret As Command
	telDONT byte = 254
	telDO   byte = 253
	telWONT byte = 252
	telWILL byte = 251
	telSB   byte = 250 // Subnegotiation Begin
	telSE   byte = 240 // Subnegotiation End
)

// telnetState tracks the position inside an IAC sequence across reads.
type telnetState int

const (
	telStateData telnetState = iota
	telStateIAC              // saw IAC, expecting command byte
	telStateOpt              // saw IAC WILL/WONT/DO/DONT, expecting option byte
	telStateSubneg           // inside IAC SB ... IAC SE
	telStateSubnegIAC
)

// telnetFilter is a byte-at-a-time state machine that strips Telnet protocol
// sequences from the inbound stream and produces refusal responses for any
// negotiation request.
//
// It is not goroutine-safe; the owning transport serializes all reads.
type telnetFilter struct {
	state telnetState
	cmd   byte
}

// feed processes one inbound byte. It returns the data byte to deliver (if
// ok is true) and any negotiation refusal that must be written back to the
// device.
func (f *telnetFilter) feed(b byte) (data byte, ok bool, response []byte) {
	switch f.state {
	case telStateData:
		if b == telIAC {
			f.state = telStateIAC
			return 0, false, nil
		}

		return b, true, nil

	case telStateIAC:
		switch b {
		case telIAC:
			// Escaped 255 data byte.
			f.state = telStateData
			return telIAC, true, nil

		case telWILL, telWONT, telDO, telDONT:
			f.cmd = b
			f.state = telStateOpt

			return 0, false, nil

		case telSB:
			f.state = telStateSubneg
			return 0, false, nil

		default:
			// Two-byte command (NOP, AYT, ...): drop.
			f.state = telStateData
			return 0, false, nil
		}

	case telStateOpt:
		f.state = telStateData

		switch f.cmd {
		case telWILL:
			return 0, false, []byte{telIAC, telDONT, b}
		case telDO:
			return 0, false, []byte{telIAC, telWONT, b}
		default:
			// WONT/DONT acknowledgements need no reply.
			return 0, false, nil
		}

	case telStateSubneg:
		if b == telIAC {
			f.state = telStateSubnegIAC
		}

		return 0, false, nil

	case telStateSubnegIAC:
		if b == telSE {
			f.state = telStateData
		} else {
			f.state = telStateSubneg
		}

		return 0, false, nil
	}

	return 0, false, nil
}
