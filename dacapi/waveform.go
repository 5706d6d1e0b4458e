package dacapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/arloliu/go-lnhrdac/dacnet"
)

// WaveMemorySize is the number of sample points one wave memory buffer
// holds.
const WaveMemorySize = 34000

// formatSampleVoltage renders a sample voltage in the decimal form the
// bulk-write command expects. Six fractional digits cover the DAC's
// resolution (~1.2 µV per LSB).
func formatSampleVoltage(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// cmdWriteSample renders one per-sample bulk write:
// "<wave-memory> <hex-address> <decimal-voltage>".
func cmdWriteSample(mem Subsystem, addr int, v float64) string {
	return fmt.Sprintf("%s %X %s", mem, addr, formatSampleVoltage(v))
}

// UploadWaveform transfers samples into the given wave memory, one bulk
// write command per sample, starting at address 0.
//
// The whole transfer runs inside a held connection: per-command connection
// setup for tens of thousands of samples would dominate the transfer time
// and risk device-side timing violations. The upload aborts on the first
// failed sample — continuing past a failure would leave wave memory with a
// silent gap, which is worse than an early abort.
func (c *Client) UploadWaveform(ctx context.Context, mem Subsystem, samples []float64) error {
	if err := mem.Validate(); err != nil {
		return err
	}
	if !mem.IsWaveMemory() {
		return fmt.Errorf("dacapi: %q is not a wave memory subsystem", string(mem))
	}
	if len(samples) == 0 {
		return fmt.Errorf("dacapi: empty waveform")
	}
	if len(samples) > WaveMemorySize {
		return fmt.Errorf("dacapi: waveform of %d samples exceeds memory size %d", len(samples), WaveMemorySize)
	}

	return c.drv.Hold(ctx, func(hs *dacnet.HeldSession) error {
		for addr, v := range samples {
			if err := hs.SendCommand(ctx, cmdWriteSample(mem, addr, v)); err != nil {
				return fmt.Errorf("dacapi: upload sample %d: %w", addr, err)
			}
		}

		return nil
	})
}

// CommitWaveform commits the wave memory buffer into AWG playback memory
// and blocks until the device's busy flag clears.
//
// The commit command returns immediately; the actual memory write is
// asynchronous on the device and its completion is only visible through the
// busy flag. maxWait <= 0 waits indefinitely.
func (c *Client) CommitWaveform(ctx context.Context, mem Subsystem, maxWait time.Duration) error {
	if err := mem.Validate(); err != nil {
		return err
	}
	if !mem.IsWaveMemory() {
		return fmt.Errorf("dacapi: %q is not a wave memory subsystem", string(mem))
	}

	if err := c.drv.SendCommand(ctx, cmdMemoryWrite(mem)); err != nil {
		return err
	}

	return c.WaitMemoryIdle(ctx, mem, maxWait)
}
