// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package maskwrite

import "fmt"

// Bit is one bit write into the register.
type Bit struct {
	// Index is reduced modulo 16, so bits of flattened multi-word
	// addresses fold back onto the register that holds them.
	Index int
	Value bool
}

// DuplicateBitError is returned when two writes of one batch target the
// same register bit.
type DuplicateBitError struct {
	Bit int
}

func (e *DuplicateBitError) Error() string {
	return fmt.Sprintf("modbus: bit %d written more than once in one mask write", e.Bit)
}

// Compose folds bit writes into a single request for the register at address.
// An empty batch yields the identity masks.
func Compose(address uint16, bits []Bit) (Request, error) {
	andMask := uint16(0xFFFF)
	orMask := uint16(0x0000)

	var seen uint16
	for _, b := range bits {
		bit := uint((b.Index%16 + 16) % 16)
		if seen&(1<<bit) != 0 {
			return Request{}, &DuplicateBitError{Bit: int(bit)}
		}
		seen |= 1 << bit

		andMask ^= 1 << bit
		if b.Value {
			orMask |= 1 << bit
		}
	}
	return Request{Address: address, AndMask: andMask, OrMask: orMask}, nil
}
