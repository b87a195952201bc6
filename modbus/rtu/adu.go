// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"fmt"

	"github.com/ffutop/modbus-bitwriter/modbus"
	"github.com/ffutop/modbus-bitwriter/modbus/crc"
)

// ApplicationDataUnit is an RTU frame:
//
//	Slave Address   : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 252 bytes
//	CRC             : 2 bytes
type ApplicationDataUnit struct {
	SlaveID byte
	Pdu     modbus.ProtocolDataUnit
}

// Decode checks the CRC of raw and splits it into slave id and PDU.
func Decode(raw []byte) (*ApplicationDataUnit, error) {
	length := len(raw)
	if length < MinSize {
		return nil, fmt.Errorf("modbus: frame length '%v' does not meet minimum '%v'", length, MinSize)
	}

	var c crc.CRC
	c.Reset().PushBytes(raw[0 : length-2])
	checksum := uint16(raw[length-1])<<8 | uint16(raw[length-2])
	if checksum != c.Value() {
		return nil, fmt.Errorf("modbus: response crc '%v' does not match expected '%v'", checksum, c.Value())
	}
	data := make([]byte, length-4)
	copy(data, raw[2:length-2])
	return &ApplicationDataUnit{
		SlaveID: raw[0],
		Pdu:     modbus.ProtocolDataUnit{FunctionCode: raw[1], Data: data},
	}, nil
}

// Encode encodes the ADU and appends the CRC.
func (adu *ApplicationDataUnit) Encode() ([]byte, error) {
	length := len(adu.Pdu.Data) + 4
	if length > MaxSize {
		return nil, fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, MaxSize)
	}
	raw := make([]byte, 2, length)
	raw[0] = adu.SlaveID
	raw[1] = adu.Pdu.FunctionCode
	raw = append(raw, adu.Pdu.Data...)
	return crc.Append(raw), nil
}

// Verify checks that resp comes from the addressed slave. The PDU itself is
// left to the caller.
func (req *ApplicationDataUnit) Verify(resp *ApplicationDataUnit) error {
	if req.SlaveID != resp.SlaveID {
		return fmt.Errorf("modbus: response slave id '%v' does not match request '%v'", resp.SlaveID, req.SlaveID)
	}
	return nil
}
