// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/ffutop/modbus-bitwriter/modbus/crc"
)

func TestCalculateRequestLength(t *testing.T) {
	tests := []struct {
		name     string
		funcCode byte
		header   []byte
		want     int
		wantErr  bool
	}{
		{"ReadHoldingRegisters", 0x03, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, 8, false},
		{"WriteSingleRegister", 0x06, []byte{0x01, 0x06, 0x00, 0x00, 0xAA, 0xBB}, 8, false},
		{"MaskWriteRegister", 0x16, []byte{0x01, 0x16, 0x00, 0x04}, 10, false},
		{"WriteMultipleRegisters_ShortHeader", 0x10, []byte{0x01, 0x10, 0x00, 0x01, 0x00, 0x01}, 0, true},
		{"WriteMultipleRegisters_Valid", 0x10, []byte{0x01, 0x10, 0x00, 0x01, 0x00, 0x01, 0x02}, 7 + 2 + 2, false},
		{"UnknownFunction", 0x99, []byte{0x01, 0x99}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateRequestLength(tt.funcCode, tt.header)
			if (err != nil) != tt.wantErr {
				t.Errorf("CalculateRequestLength() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("CalculateRequestLength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateResponseLength(t *testing.T) {
	tests := []struct {
		name string
		adu  []byte
		want int
	}{
		{"MaskWriteRegister", []byte{0x01, 0x16, 0x00, 0x04, 0xFF, 0xF0, 0x00, 0x05}, 10},
		{"WriteSingleCoil", []byte{0x01, 0x05, 0x00, 0x04, 0xFF, 0x00}, 8},
		{"ReadHoldingRegisters", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x02}, 9},
		{"ReadCoils", []byte{0x01, 0x01, 0x00, 0x00, 0x00, 0x09}, 7},
		{"Unknown", []byte{0x01, 0x99}, MinSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CalculateResponseLength(tt.adu); got != tt.want {
				t.Errorf("CalculateResponseLength() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadResponse_MaskWrite(t *testing.T) {
	frame := crc.Append([]byte{0x01, 0x16, 0x00, 0x04, 0xFF, 0xF0, 0x00, 0x05})
	// line noise and a frame of another slave in front
	input := append([]byte{0x00, 0x07}, frame...)

	got, err := ReadResponse(0x01, 0x16, bytes.NewReader(input), time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	if !bytes.Equal(got, frame) {
		t.Errorf("frame mismatch.\nWant: %X\nGot:  %X", frame, got)
	}
}

func TestReadResponse_Exception(t *testing.T) {
	frame := crc.Append([]byte{0x01, 0x96, 0x02})

	got, err := ReadResponse(0x01, 0x16, bytes.NewReader(frame), time.Now().Add(time.Second))
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	if len(got) != ExceptionSize {
		t.Errorf("exception frame length = %d, want %d", len(got), ExceptionSize)
	}
}

func TestReadResponse_Deadline(t *testing.T) {
	frame := crc.Append([]byte{0x01, 0x16, 0x00, 0x04, 0xFF, 0xF0, 0x00, 0x05})

	_, err := ReadResponse(0x01, 0x16, bytes.NewReader(frame), time.Now().Add(-time.Millisecond))
	if !errors.Is(err, ErrRequestTimedOut) {
		t.Errorf("expected ErrRequestTimedOut, got %v", err)
	}
}

func TestReadResponse_InvalidLength(t *testing.T) {
	input := []byte{0x01, 0x03, 0x00}

	_, err := ReadResponse(0x01, 0x03, bytes.NewReader(input), time.Now().Add(time.Second))
	var lenErr *InvalidLengthError
	if !errors.As(err, &lenErr) {
		t.Fatalf("expected InvalidLengthError, got %v", err)
	}
}
