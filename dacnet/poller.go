package dacnet

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-lnhrdac/internal/pool"
)

// PollSpec drives one blocking wait-until-condition loop.
//
// Several device operations are asynchronous on the device side: the command
// that triggers them (writing a waveform to memory, arming a generator)
// returns immediately, and a status query reflects completion. A PollSpec
// describes the query to repeat and the answer that signals completion.
type PollSpec struct {
	// Query is the status query to repeat. Must contain "?".
	Query string

	// Expected is the exact answer text that resolves the wait.
	Expected string

	// Interval is the pacing between attempts. Zero means the configured
	// default poll interval.
	Interval time.Duration

	// MaxWait bounds the whole wait. Zero means wait indefinitely: the
	// device's busy flags are bounded by physical operations (memory writes)
	// but carry no protocol-enforced ceiling. An unbounded wait is still
	// cancellable through the context.
	MaxWait time.Duration
}

// WaitFor repeatedly issues spec.Query in one-shot mode until the device
// answers spec.Expected.
//
// A device-reported error aborts the wait with *CommandRejectedError. When
// spec.MaxWait is set and elapses, WaitFor returns ErrTimeout at or after
// the deadline, never before. Transport failures propagate unchanged, so a
// dropped connection surfaces as ErrConnection rather than ErrTimeout.
func (d *Driver) WaitFor(ctx context.Context, spec PollSpec) error {
	if !strings.Contains(spec.Query, "?") {
		return ErrNotQuery
	}

	return waitFor(ctx, spec, d.cfg, func(ctx context.Context) (Response, error) {
		return d.exchangeOneShot(ctx, spec.Query)
	})
}

// ExpectQueryAnswer issues query in one-shot mode until the device answers
// expected, pacing attempts by interval and giving up after maxWait.
//
// interval <= 0 selects the configured default; maxWait <= 0 waits
// indefinitely. This is the facade form of [Driver.WaitFor].
func (d *Driver) ExpectQueryAnswer(ctx context.Context, query, expected string, interval, maxWait time.Duration) error {
	return d.WaitFor(ctx, PollSpec{
		Query:    query,
		Expected: expected,
		Interval: interval,
		MaxWait:  maxWait,
	})
}

// WaitFor is Driver.WaitFor over the held session: every poll attempt reuses
// the held connection instead of redialing.
func (hs *HeldSession) WaitFor(ctx context.Context, spec PollSpec) error {
	if hs.released {
		return ErrClosed
	}
	if !strings.Contains(spec.Query, "?") {
		return ErrNotQuery
	}

	return waitFor(ctx, spec, hs.d.cfg, func(ctx context.Context) (Response, error) {
		return hs.d.exchange(ctx, hs.tr, spec.Query)
	})
}

// ExpectQueryAnswer is Driver.ExpectQueryAnswer over the held session.
func (hs *HeldSession) ExpectQueryAnswer(ctx context.Context, query, expected string, interval, maxWait time.Duration) error {
	return hs.WaitFor(ctx, PollSpec{
		Query:    query,
		Expected: expected,
		Interval: interval,
		MaxWait:  maxWait,
	})
}

// waitFor is the poll loop shared by the one-shot and held-session paths.
//
// State machine per wait: polling → succeeded (expected answer observed),
// polling → failed (device reports an error), polling → timed out (deadline
// exceeded). There is no transition back to polling from a terminal state.
func waitFor(ctx context.Context, spec PollSpec, cfg *ConnectionConfig, exec func(context.Context) (Response, error)) error {
	interval := spec.Interval
	if interval <= 0 {
		interval = cfg.pollInterval
	}

	var deadline time.Time
	if spec.MaxWait > 0 {
		deadline = time.Now().Add(spec.MaxWait)
	}

	for {
		resp, err := exec(ctx)
		if err != nil {
			return err
		}

		if resp.Kind == KindError {
			return &CommandRejectedError{Code: resp.Code, Token: resp.Token, Cmd: spec.Query}
		}

		// Compare the raw answer text: a genuine answer of "0" classifies
		// as the ack token, but it is still this query's value.
		if resp.Raw == spec.Expected {
			return nil
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %q did not answer %q within %v (last answer %q)",
				ErrTimeout, spec.Query, spec.Expected, spec.MaxWait, resp.Raw)
		}

		timer := pool.GetTimer(interval)

		select {
		case <-ctx.Done():
			pool.PutTimer(timer)

			return ctx.Err()

		case <-timer.C:
			pool.PutTimer(timer)
		}

		if !deadline.IsZero() && !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %q did not answer %q within %v",
				ErrTimeout, spec.Query, spec.Expected, spec.MaxWait)
		}
	}
}
