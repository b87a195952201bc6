// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package model

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/ffutop/modbus-bitwriter/modbus/maskwrite"
)

const (
	MaxAddress = 65535
)

var (
	ErrOutOfRange   = errors.New("address range out of bounds")
	ErrZeroQuantity = errors.New("quantity must be greater than 0")
	ErrShortData    = errors.New("insufficient data length")
)

// TableType represents the type of Modbus data table.
type TableType int

const (
	TableCoils TableType = iota
	TableDiscreteInputs
	TableHoldingRegisters
	TableInputRegisters
)

func (t TableType) String() string {
	switch t {
	case TableCoils:
		return "coils"
	case TableDiscreteInputs:
		return "discrete inputs"
	case TableHoldingRegisters:
		return "holding registers"
	case TableInputRegisters:
		return "input registers"
	}
	return "unknown"
}

// DataModel holds the register tables of a simulated device.
// It covers the full 16-bit address space of every table.
type DataModel struct {
	mu sync.RWMutex

	// 0x Coils (Read/Write). Stored as 1 (ON) or 0 (OFF).
	Coils []byte
	// 1x Discrete Inputs (Read Only). Stored as 1 (ON) or 0 (OFF).
	DiscreteInputs []byte
	// 4x Holding Registers (Read/Write).
	HoldingRegisters []uint16
	// 3x Input Registers (Read Only).
	InputRegisters []uint16
}

// NewDataModel creates a new memory model initialized to zero.
func NewDataModel() *DataModel {
	return &DataModel{
		Coils:            make([]byte, MaxAddress+1),
		DiscreteInputs:   make([]byte, MaxAddress+1),
		HoldingRegisters: make([]uint16, MaxAddress+1),
		InputRegisters:   make([]uint16, MaxAddress+1),
	}
}

// ReadCoils reads a range of coils and returns them as packed bytes.
func (m *DataModel) ReadCoils(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packBits(m.Coils, address, quantity)
}

// ReadDiscreteInputs reads a range of discrete inputs and returns them as packed bytes.
func (m *DataModel) ReadDiscreteInputs(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packBits(m.DiscreteInputs, address, quantity)
}

// ReadHoldingRegisters reads a range of holding registers as big endian bytes.
func (m *DataModel) ReadHoldingRegisters(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packWords(m.HoldingRegisters, address, quantity)
}

// ReadInputRegisters reads a range of input registers as big endian bytes.
func (m *DataModel) ReadInputRegisters(address, quantity uint16) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return packWords(m.InputRegisters, address, quantity)
}

// HoldingRegister returns a single holding register.
func (m *DataModel) HoldingRegister(address uint16) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.HoldingRegisters[address]
}

// Value returns one entry of a table.
func (m *DataModel) Value(table TableType, address uint16) uint16 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch table {
	case TableCoils:
		return uint16(m.Coils[address])
	case TableDiscreteInputs:
		return uint16(m.DiscreteInputs[address])
	case TableHoldingRegisters:
		return m.HoldingRegisters[address]
	case TableInputRegisters:
		return m.InputRegisters[address]
	}
	return 0
}

// WriteSingleCoil writes a single coil. value must be 0xFF00 (ON) or 0x0000 (OFF).
func (m *DataModel) WriteSingleCoil(address uint16, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch value {
	case 0xFF00:
		m.Coils[address] = 1
	case 0x0000:
		m.Coils[address] = 0
	default:
		return errors.New("coil value must be 0xFF00 or 0x0000")
	}
	return nil
}

// WriteMultipleCoils writes a range of coils from packed bytes.
func (m *DataModel) WriteMultipleCoils(address, quantity uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, quantity); err != nil {
		return err
	}
	if len(data) < (int(quantity)+7)/8 {
		return ErrShortData
	}

	for i := 0; i < int(quantity); i++ {
		m.Coils[int(address)+i] = (data[i/8] >> uint(i%8)) & 1
	}
	return nil
}

// WriteSingleRegister writes a single holding register.
func (m *DataModel) WriteSingleRegister(address uint16, value uint16) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.HoldingRegisters[address] = value
	return nil
}

// WriteMultipleRegisters writes a range of holding registers from big endian bytes.
func (m *DataModel) WriteMultipleRegisters(address, quantity uint16, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := validateRange(address, quantity); err != nil {
		return err
	}
	if len(data) < int(quantity)*2 {
		return ErrShortData
	}

	for i := 0; i < int(quantity); i++ {
		m.HoldingRegisters[int(address)+i] = binary.BigEndian.Uint16(data[i*2:])
	}
	return nil
}

// MaskWriteRegister applies an AND/OR mask pair to one holding register and
// returns the new value.
func (m *DataModel) MaskWriteRegister(address, andMask, orMask uint16) uint16 {
	m.mu.Lock()
	defer m.mu.Unlock()

	req := maskwrite.Request{Address: address, AndMask: andMask, OrMask: orMask}
	v := req.Apply(m.HoldingRegisters[address])
	m.HoldingRegisters[address] = v
	return v
}

func packBits(table []byte, address, quantity uint16) ([]byte, error) {
	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}

	result := make([]byte, (int(quantity)+7)/8)
	for i := 0; i < int(quantity); i++ {
		if table[int(address)+i] != 0 {
			result[i/8] |= 1 << uint(i%8)
		}
	}
	return result, nil
}

func packWords(table []uint16, address, quantity uint16) ([]byte, error) {
	if err := validateRange(address, quantity); err != nil {
		return nil, err
	}

	result := make([]byte, int(quantity)*2)
	for i := 0; i < int(quantity); i++ {
		binary.BigEndian.PutUint16(result[i*2:], table[int(address)+i])
	}
	return result, nil
}

func validateRange(address, quantity uint16) error {
	if quantity == 0 {
		return ErrZeroQuantity
	}
	// address is 0-based.
	if int(address)+int(quantity) > MaxAddress+1 {
		return ErrOutOfRange
	}
	return nil
}
