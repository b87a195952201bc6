// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import "github.com/ffutop/modbus-bitwriter/modbus"

const (
	MinSize = 4
	MaxSize = 256

	// ExceptionSize is SlaveID + Func + ExceptionCode + CRC.
	ExceptionSize = 5
)

// frameLayout describes how long the PDU payload (after the function code)
// of a request and of its normal response is.
type frameLayout struct {
	// request payload size; for byte counted requests the fixed part up to
	// and including the byte count field.
	request int
	// requestCounted marks requests whose last fixed byte is a byte count.
	requestCounted bool
	// response payload size, 0 when the response starts with a byte count.
	response int
}

var layouts = map[byte]frameLayout{
	modbus.FuncCodeReadCoils:              {request: 4},
	modbus.FuncCodeReadDiscreteInputs:     {request: 4},
	modbus.FuncCodeReadHoldingRegisters:   {request: 4},
	modbus.FuncCodeReadInputRegisters:     {request: 4},
	modbus.FuncCodeWriteSingleCoil:        {request: 4, response: 4},
	modbus.FuncCodeWriteSingleRegister:    {request: 4, response: 4},
	modbus.FuncCodeWriteMultipleCoils:     {request: 5, requestCounted: true, response: 4},
	modbus.FuncCodeWriteMultipleRegisters: {request: 5, requestCounted: true, response: 4},
	modbus.FuncCodeMaskWriteRegister:      {request: 6, response: 6},
}
