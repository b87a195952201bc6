// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/ffutop/modbus-bitwriter/modbus"
	"github.com/ffutop/modbus-bitwriter/modbus/crc"
)

func TestGaps(t *testing.T) {
	tests := []struct {
		baud  int
		char  time.Duration
		frame time.Duration
	}{
		{9600, 1562 * time.Microsecond, 3645 * time.Microsecond},
		{19200, 781 * time.Microsecond, 1822 * time.Microsecond},
		{115200, 750 * time.Microsecond, 1750 * time.Microsecond},
		{0, 750 * time.Microsecond, 1750 * time.Microsecond},
	}
	for _, tt := range tests {
		if got := CharGap(tt.baud); got != tt.char {
			t.Errorf("CharGap(%d) = %v, want %v", tt.baud, got, tt.char)
		}
		if got := FrameGap(tt.baud); got != tt.frame {
			t.Errorf("FrameGap(%d) = %v, want %v", tt.baud, got, tt.frame)
		}
	}
}

func TestTurnaroundDelay(t *testing.T) {
	// 10 request bytes plus a 10 byte echo
	req := crc.Append([]byte{0x01, 0x16, 0x00, 0x04, 0xFF, 0xF0, 0x00, 0x05})
	want := 20*1562*time.Microsecond + 3645*time.Microsecond
	if got := TurnaroundDelay(9600, req); got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDeadline(t *testing.T) {
	before := time.Now()
	if d := Deadline(context.Background(), time.Second); d.Before(before.Add(time.Second)) {
		t.Errorf("deadline %v earlier than timeout", d)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	want, _ := ctx.Deadline()
	if d := Deadline(ctx, time.Second); !d.Equal(want) {
		t.Errorf("got %v, want context deadline %v", d, want)
	}
}

type line struct {
	io.Reader
	bytes.Buffer
}

func (l *line) Read(p []byte) (int, error) { return l.Reader.Read(p) }

func TestExchange(t *testing.T) {
	pdu := modbus.ProtocolDataUnit{FunctionCode: 0x16, Data: []byte{0x00, 0x04, 0xFF, 0xF0, 0x00, 0x05}}
	frame := crc.Append([]byte{0x01, 0x16, 0x00, 0x04, 0xFF, 0xF0, 0x00, 0x05})
	rw := &line{Reader: bytes.NewReader(frame)}

	resp, err := Exchange(context.Background(), rw, &ApplicationDataUnit{SlaveID: 1, Pdu: pdu}, 115200, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("Exchange failed: %v", err)
	}
	if !bytes.Equal(rw.Buffer.Bytes(), frame) {
		t.Errorf("written % X, want % X", rw.Buffer.Bytes(), frame)
	}
	if !bytes.Equal(resp.Pdu.Bytes(), pdu.Bytes()) {
		t.Errorf("response % X, want % X", resp.Pdu.Bytes(), pdu.Bytes())
	}
}

func TestExchange_Errors(t *testing.T) {
	pdu := modbus.ProtocolDataUnit{FunctionCode: 0x16, Data: []byte{0x00, 0x04, 0xFF, 0xF0, 0x00, 0x05}}
	req := &ApplicationDataUnit{SlaveID: 1, Pdu: pdu}

	rw := &line{Reader: bytes.NewReader([]byte{0x01, 0x16, 0x00, 0x04, 0xFF, 0xF0, 0x00, 0x05, 0xFF, 0xFF})}
	if _, err := Exchange(context.Background(), rw, req, 115200, 100*time.Millisecond); err == nil {
		t.Error("expected CRC error")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rw = &line{Reader: bytes.NewReader(nil)}
	if _, err := Exchange(ctx, rw, req, 115200, 100*time.Millisecond); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
