// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package device simulates a Modbus slave on top of a register DataModel.
// Every successful write is reported to the device's Storage so persistent
// back-ends can sync the changed range.
package device

import (
	"encoding/binary"
	"log/slog"

	"github.com/ffutop/modbus-bitwriter/internal/device/model"
	"github.com/ffutop/modbus-bitwriter/internal/device/persistence"
	"github.com/ffutop/modbus-bitwriter/modbus"
)

const (
	maxReadBits      = 2000
	maxReadRegisters = 125
	maxWriteCoils    = 1968
	maxWriteRegister = 123
)

// Device implements the Modbus protocol logic on top of a DataModel.
type Device struct {
	model   *model.DataModel
	storage persistence.Storage
}

// New creates a Device. A nil storage keeps the model in memory only.
func New(m *model.DataModel, storage persistence.Storage) *Device {
	if storage == nil {
		storage = persistence.NewMemoryStorage()
	}
	return &Device{model: m, storage: storage}
}

// Model returns the register tables.
func (d *Device) Model() *model.DataModel {
	return d.model
}

// Process executes the request PDU against the model. Protocol errors are
// returned as exception PDUs.
func (d *Device) Process(req modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	switch req.FunctionCode {
	case modbus.FuncCodeReadCoils:
		return d.handleRead(req, maxReadBits, d.model.ReadCoils), nil
	case modbus.FuncCodeReadDiscreteInputs:
		return d.handleRead(req, maxReadBits, d.model.ReadDiscreteInputs), nil
	case modbus.FuncCodeReadHoldingRegisters:
		return d.handleRead(req, maxReadRegisters, d.model.ReadHoldingRegisters), nil
	case modbus.FuncCodeReadInputRegisters:
		return d.handleRead(req, maxReadRegisters, d.model.ReadInputRegisters), nil
	case modbus.FuncCodeWriteSingleCoil:
		return d.handleWriteSingleCoil(req), nil
	case modbus.FuncCodeWriteSingleRegister:
		return d.handleWriteSingleRegister(req), nil
	case modbus.FuncCodeWriteMultipleCoils:
		return d.handleWriteMultiple(req, maxWriteCoils, model.TableCoils, d.model.WriteMultipleCoils), nil
	case modbus.FuncCodeWriteMultipleRegisters:
		return d.handleWriteMultiple(req, maxWriteRegister, model.TableHoldingRegisters, d.model.WriteMultipleRegisters), nil
	case modbus.FuncCodeMaskWriteRegister:
		return d.handleMaskWriteRegister(req), nil
	default:
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalFunction), nil
	}
}

// Close releases the storage.
func (d *Device) Close() error {
	if closer, ok := d.storage.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

type readFunc func(address, quantity uint16) ([]byte, error)

func (d *Device) handleRead(req modbus.ProtocolDataUnit, limit uint16, read readFunc) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])

	if quantity < 1 || quantity > limit {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}

	data, err := read(address, quantity)
	if err != nil {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}

	respData := make([]byte, 1+len(data))
	respData[0] = byte(len(data))
	copy(respData[1:], data)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}
}

func (d *Device) handleWriteSingleCoil(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if err := d.model.WriteSingleCoil(address, value); err != nil {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	d.storage.OnWrite(model.TableCoils, address, 1)

	return req // Echo request
}

func (d *Device) handleWriteSingleRegister(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 4 {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	value := binary.BigEndian.Uint16(req.Data[2:4])

	if err := d.model.WriteSingleRegister(address, value); err != nil {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}
	d.storage.OnWrite(model.TableHoldingRegisters, address, 1)

	return req // Echo request
}

type writeFunc func(address, quantity uint16, data []byte) error

func (d *Device) handleWriteMultiple(req modbus.ProtocolDataUnit, limit uint16, table model.TableType, write writeFunc) modbus.ProtocolDataUnit {
	if len(req.Data) < 6 {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	quantity := binary.BigEndian.Uint16(req.Data[2:4])
	byteCount := req.Data[4]

	if quantity < 1 || quantity > limit {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	if len(req.Data)-5 != int(byteCount) {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}

	if err := write(address, quantity, req.Data[5:]); err != nil {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataAddress)
	}
	d.storage.OnWrite(table, address, quantity)

	respData := make([]byte, 4)
	binary.BigEndian.PutUint16(respData[0:2], address)
	binary.BigEndian.PutUint16(respData[2:4], quantity)

	return modbus.ProtocolDataUnit{
		FunctionCode: req.FunctionCode,
		Data:         respData,
	}
}

// handleMaskWriteRegister sets register = (register AND and) OR (or AND NOT and)
// and echoes the request.
func (d *Device) handleMaskWriteRegister(req modbus.ProtocolDataUnit) modbus.ProtocolDataUnit {
	if len(req.Data) != 6 {
		return modbus.NewException(req.FunctionCode, modbus.ExceptionCodeIllegalDataValue)
	}
	address := binary.BigEndian.Uint16(req.Data[0:2])
	andMask := binary.BigEndian.Uint16(req.Data[2:4])
	orMask := binary.BigEndian.Uint16(req.Data[4:6])

	v := d.model.MaskWriteRegister(address, andMask, orMask)
	d.storage.OnWrite(model.TableHoldingRegisters, address, 1)
	slog.Debug("Mask write applied", "address", address, "and", andMask, "or", orMask, "value", v)

	return req // Echo request
}
