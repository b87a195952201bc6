// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transaction

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"

	"github.com/ffutop/modbus-bitwriter/internal/address"
	"github.com/ffutop/modbus-bitwriter/modbus"
	"github.com/ffutop/modbus-bitwriter/modbus/maskwrite"
)

var errEmptyBatch = errors.New("modbus: mask write needs at least one item")

// DuplicateItemError is returned when two items of one transaction share
// an ID, which would leave one of them without a status.
type DuplicateItemError struct {
	ID string
}

func (e *DuplicateItemError) Error() string {
	return fmt.Sprintf("modbus: item id %q used more than once", e.ID)
}

// MaskWrite sets individual bits of one holding register with function 0x16.
type MaskWrite struct {
	lifecycle
	request maskwrite.Request
}

// NewMaskWrite builds a mask write for items, which must all resolve to the
// same register of slaveID.
func NewMaskWrite(r address.Resolver, slaveID byte, items []Item) (*MaskWrite, error) {
	if len(items) == 0 {
		return nil, errEmptyBatch
	}

	var ref uint16
	bits := make([]maskwrite.Bit, 0, len(items))
	ids := make(map[string]struct{}, len(items))
	for i, item := range items {
		if _, dup := ids[item.ID]; dup {
			return nil, &DuplicateItemError{ID: item.ID}
		}
		ids[item.ID] = struct{}{}
		if err := item.Address.Validate(); err != nil {
			return nil, fmt.Errorf("modbus: item %q: %w", item.ID, err)
		}
		reg, err := r.Reference(item.Address)
		if err != nil {
			return nil, fmt.Errorf("modbus: item %q: %w", item.ID, err)
		}
		if i == 0 {
			ref = reg
		} else if reg != ref {
			return nil, fmt.Errorf("modbus: item %q targets register %d, batch targets %d", item.ID, reg, ref)
		}

		v, err := cast.ToBoolE(item.Value)
		if err != nil {
			return nil, fmt.Errorf("modbus: item %q: value %v is not a bit: %w", item.ID, item.Value, err)
		}
		bits = append(bits, maskwrite.Bit{Index: item.Address.Bit, Value: v})
	}

	req, err := maskwrite.Compose(ref, bits)
	if err != nil {
		return nil, err
	}

	owned := make([]Item, len(items))
	copy(owned, items)
	return &MaskWrite{
		lifecycle: newLifecycle(slaveID, owned),
		request:   req,
	}, nil
}

// Request returns the composed request.
func (m *MaskWrite) Request() maskwrite.Request {
	return m.request
}

func (m *MaskWrite) PDU() modbus.ProtocolDataUnit {
	return m.request.PDU()
}

func (m *MaskWrite) String() string {
	return fmt.Sprintf("%s slave=%d items=%d", m.request, m.slaveID, len(m.items))
}

func (m *MaskWrite) evaluate(raw []byte) Outcome {
	resp, err := maskwrite.Decode(raw)
	if err != nil {
		var mbErr *modbus.Error
		var readErr *maskwrite.ReadError
		switch {
		case errors.As(err, &mbErr):
			return Outcome{Kind: KindDeviceException, ExceptionCode: mbErr.ExceptionCode, Raw: raw, Err: err}
		case errors.As(err, &readErr):
			return Outcome{Kind: KindMalformedFrame, Field: readErr.Field, Raw: readErr.Bytes, Err: err}
		default:
			return Outcome{Kind: KindTransportError, Raw: raw, Err: err}
		}
	}

	if mm := maskwrite.Validate(m.request, resp); len(mm) > 0 {
		return Outcome{Kind: KindMismatched, Mismatches: mm, Raw: raw}
	}
	return Outcome{Kind: KindMatched, Raw: raw}
}

var _ Request = (*MaskWrite)(nil)
