// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/ffutop/modbus-bitwriter/modbus"
)

var ErrRequestTimedOut = errors.New("modbus: request timed out")

const (
	stateSlaveID = 1 << iota
	stateFunctionCode
	stateReadLength
	stateReadPayload
	stateCRC
)

type InvalidLengthError struct {
	Length byte
}

func (e *InvalidLengthError) Error() string {
	return fmt.Sprintf("invalid length received: %d", e.Length)
}

// CalculateResponseLength returns the expected length of a response ADU to
// the request ADU. Byte counted responses of reads are sized from the
// requested quantity.
func CalculateResponseLength(adu []byte) int {
	length := MinSize
	if len(adu) < 2 {
		return length
	}
	layout, ok := layouts[adu[1]]
	if !ok {
		return length
	}
	if layout.response > 0 {
		return length + layout.response
	}
	if len(adu) < 6 {
		return length
	}
	count := int(binary.BigEndian.Uint16(adu[4:]))
	switch adu[1] {
	case modbus.FuncCodeReadCoils, modbus.FuncCodeReadDiscreteInputs:
		length += 1 + (count+7)/8
	default:
		length += 1 + count*2
	}
	return length
}

// CalculateRequestLength returns the expected total length of the request
// RTU ADU based on the header read so far.
func CalculateRequestLength(funcCode byte, header []byte) (int, error) {
	layout, ok := layouts[funcCode]
	if !ok {
		return 0, fmt.Errorf("unsupported function code: 0x%02X", funcCode)
	}
	// SlaveID + Func + payload + CRC
	fixed := 2 + layout.request + 2
	if !layout.requestCounted {
		return fixed, nil
	}
	countAt := 2 + layout.request - 1
	if len(header) <= countAt {
		return 0, fmt.Errorf("need %d bytes to determine length for 0x%02X, got %d", countAt+1, funcCode, len(header))
	}
	return fixed + int(header[countAt]), nil
}

// ReadResponse reads an RTU response frame byte by byte from r. Bytes before
// the expected slave id are skipped; an exception frame for functionCode is
// accepted in place of the normal response.
func ReadResponse(slaveID, functionCode byte, r io.Reader, deadline time.Time) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("reader is nil")
	}
	layout, ok := layouts[functionCode]
	if !ok {
		return nil, fmt.Errorf("functioncode not handled: %d", functionCode)
	}

	buf := make([]byte, 1)
	data := make([]byte, 0, MaxSize)

	state := stateSlaveID
	var toRead, crcCount int

	for {
		if time.Now().After(deadline) {
			return nil, ErrRequestTimedOut
		}

		n, err := r.Read(buf)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			continue
		}
		b := buf[0]

		switch state {
		case stateSlaveID:
			if b != slaveID {
				continue
			}
			state = stateFunctionCode
		case stateFunctionCode:
			switch {
			case b == functionCode && layout.response > 0:
				state, toRead = stateReadPayload, layout.response
			case b == functionCode:
				state = stateReadLength
			case b == functionCode|modbus.ExceptionFlag:
				state, toRead = stateReadPayload, 1
			default:
				// not the answer we wait for, resync on the next slave id
				data = data[:0]
				state = stateSlaveID
				continue
			}
		case stateReadLength:
			if int(b) > MaxSize-5 || b == 0 {
				return nil, &InvalidLengthError{Length: b}
			}
			state, toRead = stateReadPayload, int(b)
		case stateReadPayload:
			toRead--
			if toRead == 0 {
				state = stateCRC
			}
		case stateCRC:
			crcCount++
			if crcCount == 2 {
				return append(data, b), nil
			}
		}
		data = append(data, b)
	}
}
