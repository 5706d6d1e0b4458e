package dacapi

import (
	"fmt"
	"strings"
)

// NumChannels is the number of independently addressable output channels.
const NumChannels = 24

// Channel addresses one DAC output channel (1..24).
type Channel int

// Validate reports whether the channel number is addressable.
func (ch Channel) Validate() error {
	if ch < 1 || ch > NumChannels {
		return fmt.Errorf("dacapi: channel %d out of range [1, %d]", ch, NumChannels)
	}

	return nil
}

// Bandwidth selects the output filter bandwidth of a channel.
type Bandwidth string

const (
	// LowBandwidth is the low-noise 100 Hz output filter.
	LowBandwidth Bandwidth = "lbw"
	// HighBandwidth is the 100 kHz output filter used for waveform playback.
	HighBandwidth Bandwidth = "hbw"
)

// Validate reports whether the bandwidth selector is known.
func (bw Bandwidth) Validate() error {
	if bw != LowBandwidth && bw != HighBandwidth {
		return fmt.Errorf("dacapi: unknown bandwidth %q", string(bw))
	}

	return nil
}

// --- Command builders ---
//
// Builders render the per-channel command vocabulary to wire strings.
// Channel validation happens in the Client; builders assume valid input.

func cmdChannelOn(ch Channel) string {
	return fmt.Sprintf("%d on", ch)
}

func cmdChannelOff(ch Channel) string {
	return fmt.Sprintf("%d off", ch)
}

const (
	cmdAllOn  = "all on"
	cmdAllOff = "all off"
)

func cmdSetBandwidth(ch Channel, bw Bandwidth) string {
	return fmt.Sprintf("%d %s", ch, bw)
}

func cmdSetCode(ch Channel, code uint32) string {
	return fmt.Sprintf("%d %s", ch, FormatCode(code))
}

func queryChannelStatus(ch Channel) string {
	return fmt.Sprintf("%d s?", ch)
}

const queryAllStatus = "all s?"

func queryChannelVoltage(ch Channel) string {
	return fmt.Sprintf("%d v?", ch)
}

func queryChannelBandwidth(ch Channel) string {
	return fmt.Sprintf("%d bw?", ch)
}

// --- Status parsing ---

// ParseOnOff parses a single channel status token ("ON"/"OFF").
func ParseOnOff(text string) (bool, error) {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "ON":
		return true, nil
	case "OFF":
		return false, nil
	default:
		return false, fmt.Errorf("dacapi: unrecognized channel status %q", text)
	}
}

// ParseAllStatus parses the semicolon-joined per-channel status list
// answering "all s?" (channel 1; channel 2; ...).
func ParseAllStatus(text string) ([]bool, error) {
	parts := strings.Split(strings.TrimSuffix(strings.TrimSpace(text), ";"), ";")

	states := make([]bool, 0, len(parts))
	for i, part := range parts {
		on, err := ParseOnOff(part)
		if err != nil {
			return nil, fmt.Errorf("dacapi: channel %d: %w", i+1, err)
		}

		states = append(states, on)
	}

	return states, nil
}
