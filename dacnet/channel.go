package dacnet

import (
	"context"
	"errors"
	"strings"

	"github.com/arloliu/go-lnhrdac/internal/pool"
)

// exchange performs one command/response round trip on the given transport:
// encode, write, read exactly one line, classify.
//
// The caller must hold the driver's session mutex; at most one exchange is
// in flight per session at any time. Responses are matched to the command
// that immediately preceded them in program order, which is the only
// ordering guarantee the firmware provides.
func (d *Driver) exchange(ctx context.Context, tr *transport, payload string) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	if err := tr.write(encodeCommand(payload)); err != nil {
		return Response{}, err
	}

	raw, err := tr.readLine(d.cfg.replyTimeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			d.metrics.incTimeoutCount()
		}

		return Response{}, err
	}

	text, err := decodeLine(raw)
	if err != nil {
		d.metrics.incProtocolErrCount()

		return Response{}, err
	}

	resp := Classify(text)

	d.logger.Debug("dacnet: exchange",
		"command", payload,
		"kind", resp.Kind.String(),
		"answer", resp.Raw)

	if err := d.applySettleDelay(ctx, payload); err != nil {
		return Response{}, err
	}

	return resp, nil
}

// exchangeBlock performs one round trip for a multi-line query: write the
// query, then read lines until the CR CR block terminator.
func (d *Driver) exchangeBlock(ctx context.Context, tr *transport, query string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := tr.write(encodeCommand(query)); err != nil {
		return nil, err
	}

	lines, err := tr.readBlock(d.cfg.replyTimeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			d.metrics.incTimeoutCount()
		}

		return nil, err
	}

	if err := d.applySettleDelay(ctx, query); err != nil {
		return nil, err
	}

	return lines, nil
}

// exchangeOneShot opens a fresh session, performs a single exchange, and
// closes the session again. This bounds resource usage for sparse command
// traffic; high-rate transfers use a held session instead.
func (d *Driver) exchangeOneShot(ctx context.Context, payload string) (Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return Response{}, ErrClosed
	}

	tr, err := dialTransport(ctx, d.cfg, d.logger, &d.metrics)
	if err != nil {
		return Response{}, err
	}
	defer tr.close()

	return d.exchange(ctx, tr, payload)
}

// exchangeBlockOneShot is exchangeOneShot for multi-line queries.
func (d *Driver) exchangeBlockOneShot(ctx context.Context, query string) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed.Load() {
		return nil, ErrClosed
	}

	tr, err := dialTransport(ctx, d.cfg, d.logger, &d.metrics)
	if err != nil {
		return nil, err
	}
	defer tr.close()

	return d.exchangeBlock(ctx, tr, query)
}

// applySettleDelay sleeps after control commands to allow for device-internal
// synchronisation: 200 ms after any "c ..." command, plus 300 ms when the
// command commits wave memory. The delays are config-tunable.
func (d *Driver) applySettleDelay(ctx context.Context, payload string) error {
	if payload == "" || (payload[0] != 'c' && payload[0] != 'C') {
		return nil
	}

	delay := d.cfg.ctrlSettleDelay
	if strings.Contains(strings.ToLower(payload), "write") {
		delay += d.cfg.memWriteSettleDelay
	}

	if delay <= 0 {
		return nil
	}

	timer := pool.GetTimer(delay)
	defer pool.PutTimer(timer)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// interpretCommandResponse maps the classified response to a write command
// onto the driver's error taxonomy.
func (d *Driver) interpretCommandResponse(cmd string, resp Response) error {
	switch resp.Kind {
	case KindAck:
		d.metrics.incCmdSendCount()

		return nil

	case KindError:
		d.metrics.incCmdRejectCount()

		return &CommandRejectedError{Code: resp.Code, Token: resp.Token, Cmd: cmd}

	default:
		// A data line where an acknowledgement was expected: the caller
		// decides whether to treat this as fatal.
		d.metrics.incProtocolErrCount()

		return &UnexpectedAnswerError{Cmd: cmd, Raw: resp.Raw}
	}
}

// interpretQueryResponse maps the classified response to a query onto the
// answer text or an error.
//
// Any non-error response yields Raw, including KindAck: classification is
// context-free, so a genuine query answer of "0" classifies as an
// acknowledgement token.
func (d *Driver) interpretQueryResponse(query string, resp Response) (string, error) {
	if resp.Kind == KindError {
		d.metrics.incCmdRejectCount()

		return "", &CommandRejectedError{Code: resp.Code, Token: resp.Token, Cmd: query}
	}

	d.metrics.incQuerySendCount()

	return resp.Raw, nil
}
