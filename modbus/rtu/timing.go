// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Above 19200 baud the gaps are fixed instead of scaling with the line speed.
const (
	fastCharGap  = 750 * time.Microsecond
	fastFrameGap = 1750 * time.Microsecond
)

func fastLine(baudRate int) bool {
	return baudRate <= 0 || baudRate > 19200
}

// CharGap returns the inter-character time (1.5 characters) at baudRate.
func CharGap(baudRate int) time.Duration {
	if fastLine(baudRate) {
		return fastCharGap
	}
	return time.Duration(15000000/baudRate) * time.Microsecond
}

// FrameGap returns the silent interval (3.5 characters) that separates two
// frames at baudRate.
func FrameGap(baudRate int) time.Duration {
	if fastLine(baudRate) {
		return fastFrameGap
	}
	return time.Duration(35000000/baudRate) * time.Microsecond
}

// TurnaroundDelay is how long a master waits after writing request before
// the complete response can be on the line.
func TurnaroundDelay(baudRate int, request []byte) time.Duration {
	chars := len(request) + CalculateResponseLength(request)
	return time.Duration(chars)*CharGap(baudRate) + FrameGap(baudRate)
}

// Deadline returns the read deadline for a request sent now. The context
// deadline wins when it is earlier than timeout.
func Deadline(ctx context.Context, timeout time.Duration) time.Time {
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	return deadline
}

// Exchange performs one master round trip on a half-duplex line: it writes
// req, waits out the turnaround and reads the frame answering it. An
// exception response is returned like any other response.
func Exchange(ctx context.Context, rw io.ReadWriter, req *ApplicationDataUnit, baudRate int, timeout time.Duration) (*ApplicationDataUnit, error) {
	raw, err := req.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode ADU: %w", err)
	}
	if _, err := rw.Write(raw); err != nil {
		return nil, err
	}

	turnaround := time.NewTimer(TurnaroundDelay(baudRate, raw))
	defer turnaround.Stop()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-turnaround.C:
	}

	data, err := ReadResponse(req.SlaveID, req.Pdu.FunctionCode, rw, Deadline(ctx, timeout))
	if err != nil {
		return nil, err
	}
	resp, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response ADU: %w", err)
	}
	if err := req.Verify(resp); err != nil {
		return nil, fmt.Errorf("verification failed: %w", err)
	}
	return resp, nil
}
