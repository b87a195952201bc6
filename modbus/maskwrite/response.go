// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package maskwrite

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/modbus-bitwriter/modbus"
)

// Response is a decoded mask write response.
type Response struct {
	FunctionCode byte
	Address      uint16
	AndMask      uint16
	OrMask       uint16
}

// ReadError reports a frame that ended before Field could be read.
// Bytes holds everything received.
type ReadError struct {
	Field string
	Bytes []byte
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("modbus: error reading response at field %q, buffer=[% X]", e.Field, e.Bytes)
}

type fieldReader struct {
	raw []byte
	off int
}

func (r *fieldReader) fail(field string) error {
	bs := make([]byte, len(r.raw))
	copy(bs, r.raw)
	return &ReadError{Field: field, Bytes: bs}
}

func (r *fieldReader) readByte(field string) (byte, error) {
	if len(r.raw)-r.off < 1 {
		return 0, r.fail(field)
	}
	b := r.raw[r.off]
	r.off++
	return b, nil
}

func (r *fieldReader) readUint16(field string) (uint16, error) {
	if len(r.raw)-r.off < 2 {
		return 0, r.fail(field)
	}
	v := binary.BigEndian.Uint16(r.raw[r.off:])
	r.off += 2
	return v, nil
}

// Decode reads a response PDU (function code first). An exception frame is
// returned as *modbus.Error, a short frame as *ReadError.
func Decode(raw []byte) (Response, error) {
	r := &fieldReader{raw: raw}

	fc, err := r.readByte(FieldFunctionCode)
	if err != nil {
		return Response{}, err
	}
	if fc&modbus.ExceptionFlag != 0 {
		code, err := r.readByte(FieldExceptionCode)
		if err != nil {
			return Response{}, err
		}
		return Response{}, &modbus.Error{FunctionCode: fc, ExceptionCode: code}
	}

	resp := Response{FunctionCode: fc}
	if resp.Address, err = r.readUint16(FieldReferenceAddress); err != nil {
		return Response{}, err
	}
	if resp.AndMask, err = r.readUint16(FieldAndMask); err != nil {
		return Response{}, err
	}
	if resp.OrMask, err = r.readUint16(FieldOrMask); err != nil {
		return Response{}, err
	}
	return resp, nil
}
