package dacapi

import (
	"fmt"
)

// Subsystem names a configurable device subsystem.
type Subsystem string

const (
	// AWGA and AWGB are the arbitrary waveform generators, playing back
	// sampled waveform memory on a channel.
	AWGA Subsystem = "awg-a"
	AWGB Subsystem = "awg-b"

	// SWG is the standard waveform generator, computing canonical waveforms
	// (sine, ramp, ...) into wave memory.
	SWG Subsystem = "swg"

	// RampA and RampB are the ramp/step generators producing linear voltage
	// sweeps independent of the AWG.
	RampA Subsystem = "rmp-a"
	RampB Subsystem = "rmp-b"

	// WaveMemoryA and WaveMemoryB are the device-side sample buffers holding
	// waveform points before transfer into AWG playback memory.
	WaveMemoryA Subsystem = "wav-a"
	WaveMemoryB Subsystem = "wav-b"
)

// Validate reports whether the subsystem name is known.
func (s Subsystem) Validate() error {
	switch s {
	case AWGA, AWGB, SWG, RampA, RampB, WaveMemoryA, WaveMemoryB:
		return nil
	default:
		return fmt.Errorf("dacapi: unknown subsystem %q", string(s))
	}
}

// IsWaveMemory reports whether the subsystem is a wave memory buffer.
func (s Subsystem) IsWaveMemory() bool {
	return s == WaveMemoryA || s == WaveMemoryB
}

// IsGenerator reports whether the subsystem is a waveform or ramp generator.
func (s Subsystem) IsGenerator() bool {
	switch s {
	case AWGA, AWGB, SWG, RampA, RampB:
		return true
	default:
		return false
	}
}

// cmdConfigure renders a global/subsystem configuration command.
func cmdConfigure(s Subsystem, field, value string) string {
	return fmt.Sprintf("c %s %s %s", s, field, value)
}

// querySubsystem renders a subsystem field query.
func querySubsystem(s Subsystem, field string) string {
	return fmt.Sprintf("%s %s?", s, field)
}

// cmdMemoryWrite renders the control command that commits a wave memory
// buffer into AWG playback memory. The commit is asynchronous on the device;
// completion is reflected by the memory's busy flag.
func cmdMemoryWrite(mem Subsystem) string {
	return fmt.Sprintf("c %s write", mem)
}

// Well-known subsystem status fields.
const (
	// fieldBusy answers "1" while the subsystem is committing memory.
	fieldBusy = "busy"
	// fieldAvail answers "1" when a generator is available for use.
	fieldAvail = "avail"
)
