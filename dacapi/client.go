package dacapi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/arloliu/go-lnhrdac/dacnet"
)

// Client exposes typed instrument operations over one dacnet.Driver.
//
// Client holds no device state: every read is a fresh query against the
// instrument. It is safe for concurrent use to the extent the underlying
// driver is; commands are serialized at the protocol layer.
type Client struct {
	drv *dacnet.Driver
}

// NewClient wraps a protocol driver in the instrument command surface.
func NewClient(d *dacnet.Driver) *Client {
	return &Client{drv: d}
}

// Driver returns the underlying protocol driver.
func (c *Client) Driver() *dacnet.Driver {
	return c.drv
}

// --- Channel operations ---

// TurnOn switches the output relay of ch on.
func (c *Client) TurnOn(ctx context.Context, ch Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}

	return c.drv.SendCommand(ctx, cmdChannelOn(ch))
}

// TurnOff switches the output relay of ch off.
func (c *Client) TurnOff(ctx context.Context, ch Channel) error {
	if err := ch.Validate(); err != nil {
		return err
	}

	return c.drv.SendCommand(ctx, cmdChannelOff(ch))
}

// AllOn switches every channel on.
func (c *Client) AllOn(ctx context.Context) error {
	return c.drv.SendCommand(ctx, cmdAllOn)
}

// AllOff switches every channel off.
func (c *Client) AllOff(ctx context.Context) error {
	return c.drv.SendCommand(ctx, cmdAllOff)
}

// SetBandwidth selects the output filter bandwidth of ch.
func (c *Client) SetBandwidth(ctx context.Context, ch Channel, bw Bandwidth) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if err := bw.Validate(); err != nil {
		return err
	}

	return c.drv.SendCommand(ctx, cmdSetBandwidth(ch, bw))
}

// SetCode writes a raw 24-bit DAC code to ch.
func (c *Client) SetCode(ctx context.Context, ch Channel, code uint32) error {
	if err := ch.Validate(); err != nil {
		return err
	}
	if code > MaxCode {
		return fmt.Errorf("dacapi: code 0x%X exceeds 24-bit range", code)
	}

	return c.drv.SendCommand(ctx, cmdSetCode(ch, code))
}

// SetVoltage sets the output voltage of ch. Voltages outside the ±10 V
// range saturate at the rails.
func (c *Client) SetVoltage(ctx context.Context, ch Channel, volts float64) error {
	if err := ch.Validate(); err != nil {
		return err
	}

	return c.drv.SendCommand(ctx, cmdSetCode(ch, VoltageToCode(volts)))
}

// ReadVoltage queries the present output voltage of ch.
func (c *Client) ReadVoltage(ctx context.Context, ch Channel) (float64, error) {
	if err := ch.Validate(); err != nil {
		return 0, err
	}

	answer, err := c.drv.SendQuery(ctx, queryChannelVoltage(ch))
	if err != nil {
		return 0, err
	}

	volts, err := strconv.ParseFloat(answer, 64)
	if err != nil {
		return 0, fmt.Errorf("dacapi: unparseable voltage answer %q: %w", answer, err)
	}

	return volts, nil
}

// ChannelStatus queries whether the output relay of ch is on.
func (c *Client) ChannelStatus(ctx context.Context, ch Channel) (bool, error) {
	if err := ch.Validate(); err != nil {
		return false, err
	}

	answer, err := c.drv.SendQuery(ctx, queryChannelStatus(ch))
	if err != nil {
		return false, err
	}

	return ParseOnOff(answer)
}

// ChannelBandwidth queries the output filter bandwidth of ch.
func (c *Client) ChannelBandwidth(ctx context.Context, ch Channel) (Bandwidth, error) {
	if err := ch.Validate(); err != nil {
		return "", err
	}

	answer, err := c.drv.SendQuery(ctx, queryChannelBandwidth(ch))
	if err != nil {
		return "", err
	}

	bw := Bandwidth(answer)
	if err := bw.Validate(); err != nil {
		return "", err
	}

	return bw, nil
}

// AllStatus queries the output relay state of every channel.
func (c *Client) AllStatus(ctx context.Context) ([]bool, error) {
	answer, err := c.drv.SendQuery(ctx, queryAllStatus)
	if err != nil {
		return nil, err
	}

	return ParseAllStatus(answer)
}

// Identify returns the multi-line identification block of the instrument.
func (c *Client) Identify(ctx context.Context) ([]string, error) {
	return c.drv.QueryLines(ctx, "idn?")
}

// Health returns the multi-line health report of the instrument.
func (c *Client) Health(ctx context.Context) ([]string, error) {
	return c.drv.QueryLines(ctx, "health?")
}

// --- Subsystem operations ---

// Configure sets one field of a device subsystem
// (e.g. Configure(ctx, SWG, "freq", "100.0")).
func (c *Client) Configure(ctx context.Context, sub Subsystem, field, value string) error {
	if err := sub.Validate(); err != nil {
		return err
	}

	return c.drv.SendCommand(ctx, cmdConfigure(sub, field, value))
}

// QueryField reads one field of a device subsystem.
func (c *Client) QueryField(ctx context.Context, sub Subsystem, field string) (string, error) {
	if err := sub.Validate(); err != nil {
		return "", err
	}

	return c.drv.SendQuery(ctx, querySubsystem(sub, field))
}

// WaitGeneratorAvailable blocks until the generator reports availability.
// maxWait <= 0 waits indefinitely.
func (c *Client) WaitGeneratorAvailable(ctx context.Context, gen Subsystem, maxWait time.Duration) error {
	if err := gen.Validate(); err != nil {
		return err
	}
	if !gen.IsGenerator() {
		return fmt.Errorf("dacapi: %q is not a generator subsystem", string(gen))
	}

	return c.drv.WaitFor(ctx, dacnet.PollSpec{
		Query:    querySubsystem(gen, fieldAvail),
		Expected: "1",
		MaxWait:  maxWait,
	})
}

// WaitMemoryIdle blocks until the wave memory's busy flag clears.
// maxWait <= 0 waits indefinitely; memory commits are bounded by the
// physical write but carry no protocol-enforced ceiling.
func (c *Client) WaitMemoryIdle(ctx context.Context, mem Subsystem, maxWait time.Duration) error {
	if err := mem.Validate(); err != nil {
		return err
	}
	if !mem.IsWaveMemory() {
		return fmt.Errorf("dacapi: %q is not a wave memory subsystem", string(mem))
	}

	return c.drv.WaitFor(ctx, dacnet.PollSpec{
		Query:    querySubsystem(mem, fieldBusy),
		Expected: "0",
		MaxWait:  maxWait,
	})
}
