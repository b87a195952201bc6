// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transaction

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/ffutop/modbus-bitwriter/internal/diag"
	"github.com/ffutop/modbus-bitwriter/modbus"
	"github.com/ffutop/modbus-bitwriter/modbus/rtu"
	"github.com/ffutop/modbus-bitwriter/transport"
)

// DefaultTimeout bounds a transaction when Runner.Timeout is zero.
const DefaultTimeout = time.Second

// Runner executes write transactions against one device.
type Runner struct {
	// Device names the target in logs and diagnostics.
	Device    string
	Transport transport.Downstream
	Timeout   time.Duration
	Sink      diag.Sink
}

// NewRunner creates a Runner. A nil sink discards diagnostics.
func NewRunner(device string, t transport.Downstream, timeout time.Duration, sink diag.Sink) *Runner {
	if sink == nil {
		sink = diag.NopSink{}
	}
	return &Runner{
		Device:    device,
		Transport: t,
		Timeout:   timeout,
		Sink:      sink,
	}
}

type reply struct {
	pdu modbus.ProtocolDataUnit
	err error
}

// Run sends req and waits for the response or the timeout, whichever comes
// first. A response arriving after the timeout is discarded. The returned
// error is non-nil only when req has already been run.
func (r *Runner) Run(ctx context.Context, req Request) (Result, error) {
	lc := req.base()
	if err := lc.begin(); err != nil {
		return Result{}, err
	}

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pdu := req.PDU()
	slog.Debug("Sending write request", "device", r.Device, "tid", req.ID(), "slave_id", req.SlaveID(), "pdu", hex.EncodeToString(pdu.Bytes()))

	start := time.Now()
	replies := make(chan reply, 1)
	go func() {
		resp, err := r.Transport.Send(ctx, req.SlaveID(), pdu)
		replies <- reply{pdu: resp, err: err}
	}()
	lc.await()

	var out Outcome
	select {
	case rep := <-replies:
		out = classify(req, rep)
	case <-ctx.Done():
		out = contextOutcome(ctx.Err())
	}
	elapsed := time.Since(start)

	lc.finish(out.Good())

	status := StatusBad
	if out.Good() {
		status = StatusGood
	}
	res := Result{
		ID:       req.ID(),
		Outcome:  out,
		Status:   make(map[string]StatusCode, len(req.Items())),
		Duration: elapsed,
	}
	for _, item := range req.Items() {
		res.Status[item.ID] = status
	}

	slog.Debug("Write request done", "device", r.Device, "tid", req.ID(), "outcome", out.Kind, "duration", elapsed)
	r.Sink.Record(r.event(req, pdu, res))
	return res, nil
}

func classify(req Request, rep reply) Outcome {
	if rep.err != nil {
		var mbErr *modbus.Error
		var netErr net.Error
		switch {
		case errors.As(rep.err, &mbErr):
			return Outcome{Kind: KindDeviceException, ExceptionCode: mbErr.ExceptionCode, Err: rep.err}
		case errors.Is(rep.err, context.DeadlineExceeded),
			errors.Is(rep.err, rtu.ErrRequestTimedOut),
			errors.As(rep.err, &netErr) && netErr.Timeout():
			return Outcome{Kind: KindTimeout, Err: rep.err}
		default:
			return Outcome{Kind: KindTransportError, Err: rep.err}
		}
	}
	return req.evaluate(rep.pdu.Bytes())
}

func contextOutcome(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return Outcome{Kind: KindTimeout, Err: err}
	}
	return Outcome{Kind: KindTransportError, Err: err}
}

func (r *Runner) event(req Request, pdu modbus.ProtocolDataUnit, res Result) diag.Event {
	ev := diag.Event{
		Timestamp:     time.Now(),
		TransactionID: res.ID,
		Device:        r.Device,
		SlaveID:       req.SlaveID(),
		FunctionCode:  pdu.FunctionCode,
		Outcome:       res.Outcome.Kind.String(),
		Good:          res.Good(),
		Request:       pdu.Bytes(),
		Response:      res.Outcome.Raw,
		Field:         res.Outcome.Field,
		Duration:      res.Duration,
	}
	for _, item := range req.Items() {
		ev.Items = append(ev.Items, item.ID)
	}
	for _, m := range res.Outcome.Mismatches {
		ev.Mismatches = append(ev.Mismatches, diag.Mismatch{Field: m.Field, Want: m.Want, Got: m.Got})
	}
	if res.Outcome.Kind == KindDeviceException {
		code := res.Outcome.ExceptionCode
		ev.ExceptionCode = &code
	}
	if res.Outcome.Err != nil {
		ev.Error = res.Outcome.Err.Error()
	}
	return ev
}
