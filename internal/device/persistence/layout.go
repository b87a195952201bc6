// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/ffutop/modbus-bitwriter/internal/device/model"
)

// On-disk layout shared by FileStorage and MmapStorage:
//
//	Coils             65536 bytes      offset 0
//	DiscreteInputs    65536 bytes      offset 65536
//	HoldingRegisters  65536 * 2 bytes  offset 131072
//	InputRegisters    65536 * 2 bytes  offset 262144
const (
	sizeCoils    = model.MaxAddress + 1
	sizeDiscrete = model.MaxAddress + 1
	sizeHolding  = (model.MaxAddress + 1) * 2
	sizeInput    = (model.MaxAddress + 1) * 2
	totalSize    = sizeCoils + sizeDiscrete + sizeHolding + sizeInput

	offsetCoils    = 0
	offsetDiscrete = offsetCoils + sizeCoils
	offsetHolding  = offsetDiscrete + sizeDiscrete
	offsetInput    = offsetHolding + sizeHolding
)

// mapBytesToModel builds a DataModel whose tables alias data.
// Registers are stored in host byte order, so files are not portable
// between architectures of different endianness.
func mapBytesToModel(data []byte) *model.DataModel {
	m := &model.DataModel{}

	m.Coils = data[offsetCoils : offsetCoils+sizeCoils]
	m.DiscreteInputs = data[offsetDiscrete : offsetDiscrete+sizeDiscrete]

	holding := data[offsetHolding : offsetHolding+sizeHolding]
	m.HoldingRegisters = unsafe.Slice((*uint16)(unsafe.Pointer(&holding[0])), sizeHolding/2)

	input := data[offsetInput : offsetInput+sizeInput]
	m.InputRegisters = unsafe.Slice((*uint16)(unsafe.Pointer(&input[0])), sizeInput/2)

	return m
}

// openSized opens path read-write, creating it and growing or shrinking
// it to the layout size.
func openSized(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if fi.Size() != int64(totalSize) {
		if err := f.Truncate(int64(totalSize)); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to resize %s: %w", path, err)
		}
	}
	return f, nil
}
