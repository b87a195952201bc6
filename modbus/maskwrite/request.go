// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package maskwrite

import (
	"encoding/binary"
	"fmt"

	"github.com/ffutop/modbus-bitwriter/modbus"
)

// Length is the size of the request and of the normal response PDU,
// function code included.
const Length = 7

// Field names used in decode and validation errors.
const (
	FieldFunctionCode     = "function code"
	FieldReferenceAddress = "reference address"
	FieldAndMask          = "and mask"
	FieldOrMask           = "or mask"
	FieldExceptionCode    = "exception code"
)

// Request is a mask write request. It is a value; encoding never mutates it.
type Request struct {
	Address uint16
	AndMask uint16
	OrMask  uint16
}

// FunctionCode returns 0x16.
func (r Request) FunctionCode() byte {
	return modbus.FuncCodeMaskWriteRegister
}

// Length returns the encoded size so callers can size buffers up front.
func (r Request) Length() int {
	return Length
}

// AppendTo appends the encoded request to b.
func (r Request) AppendTo(b []byte) []byte {
	b = append(b, r.FunctionCode())
	b = binary.BigEndian.AppendUint16(b, r.Address)
	b = binary.BigEndian.AppendUint16(b, r.AndMask)
	b = binary.BigEndian.AppendUint16(b, r.OrMask)
	return b
}

// Encode returns the request PDU bytes.
func (r Request) Encode() []byte {
	return r.AppendTo(make([]byte, 0, r.Length()))
}

// PDU returns the request as a transport PDU.
func (r Request) PDU() modbus.ProtocolDataUnit {
	raw := r.Encode()
	return modbus.ProtocolDataUnit{FunctionCode: raw[0], Data: raw[1:]}
}

// Apply returns the register value a compliant device holds after
// executing r on a register containing current.
func (r Request) Apply(current uint16) uint16 {
	return (current & r.AndMask) | (r.OrMask &^ r.AndMask)
}

func (r Request) String() string {
	return fmt.Sprintf("mask write {addr=0x%04X, and=0x%04X, or=0x%04X}", r.Address, r.AndMask, r.OrMask)
}
