// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/ffutop/modbus-bitwriter/modbus"
)

const (
	headerSize = 7 // MBAP header including unit id
	tcpMinSize = 8
	tcpMaxSize = 260
)

// ApplicationDataUnit is a Modbus TCP frame:
//
//	Transaction ID  : 2 bytes
//	Protocol ID     : 2 bytes
//	Length          : 2 bytes, unit id plus PDU
//	Unit ID         : 1 byte
//	PDU             : function code and data
type ApplicationDataUnit struct {
	TransactionID uint16
	ProtocolID    uint16
	Length        uint16
	SlaveID       byte
	Pdu           modbus.ProtocolDataUnit
}

// Decode splits raw into MBAP header and PDU. The data is copied.
func Decode(raw []byte) (*ApplicationDataUnit, error) {
	if len(raw) < tcpMinSize {
		return nil, fmt.Errorf("modbus: frame length '%v' does not meet minimum '%v'", len(raw), tcpMinSize)
	}
	adu := &ApplicationDataUnit{
		TransactionID: binary.BigEndian.Uint16(raw[0:]),
		ProtocolID:    binary.BigEndian.Uint16(raw[2:]),
		Length:        binary.BigEndian.Uint16(raw[4:]),
		SlaveID:       raw[6],
	}
	if int(adu.Length) != len(raw)-6 {
		return nil, fmt.Errorf("modbus: length in header '%v' does not match frame length '%v'", adu.Length, len(raw)-6)
	}
	adu.Pdu.FunctionCode = raw[7]
	adu.Pdu.Data = append([]byte(nil), raw[8:]...)
	return adu, nil
}

// Encode encodes the ADU. Length is derived from the PDU.
func (adu *ApplicationDataUnit) Encode() ([]byte, error) {
	length := len(adu.Pdu.Data) + tcpMinSize
	if length > tcpMaxSize {
		return nil, fmt.Errorf("modbus: length of data '%v' must not be bigger than '%v'", length, tcpMaxSize)
	}
	adu.Length = uint16(2 + len(adu.Pdu.Data))

	raw := make([]byte, 0, length)
	raw = binary.BigEndian.AppendUint16(raw, adu.TransactionID)
	raw = binary.BigEndian.AppendUint16(raw, adu.ProtocolID)
	raw = binary.BigEndian.AppendUint16(raw, adu.Length)
	raw = append(raw, adu.SlaveID, adu.Pdu.FunctionCode)
	raw = append(raw, adu.Pdu.Data...)
	return raw, nil
}

// Verify checks the MBAP header of resp against the request.
func (req *ApplicationDataUnit) Verify(resp *ApplicationDataUnit) error {
	if resp.TransactionID != req.TransactionID {
		return fmt.Errorf("modbus: response transaction id '%v' does not match request '%v'", resp.TransactionID, req.TransactionID)
	}
	if resp.ProtocolID != req.ProtocolID {
		return fmt.Errorf("modbus: response protocol id '%v' does not match request '%v'", resp.ProtocolID, req.ProtocolID)
	}
	if resp.SlaveID != req.SlaveID {
		return fmt.Errorf("modbus: response unit id '%v' does not match request '%v'", resp.SlaveID, req.SlaveID)
	}
	return nil
}

// readFrame reads one MBAP framed ADU from r.
func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, headerSize-1)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	length := int(binary.BigEndian.Uint16(header[4:]))
	if length < 2 || length+6 > tcpMaxSize {
		return nil, fmt.Errorf("modbus: length in header '%v' must be between 2 and %v", length, tcpMaxSize-6)
	}

	frame := make([]byte, 6+length)
	copy(frame, header)
	if _, err := io.ReadFull(r, frame[6:]); err != nil {
		return nil, err
	}
	return frame, nil
}
