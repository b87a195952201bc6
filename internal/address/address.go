// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// HoldingRegisterOffset is the 4x prefix of classic holding register numbering.
const HoldingRegisterOffset = 40000

// Address is a bit inside a holding register value.
type Address struct {
	// Register is the configured register number of the value's first word.
	Register int
	// Bit is the bit index within the value, 0..16*Words-1.
	Bit int
	// Words is the width of the value in registers, 1 or 2.
	Words int
	// SwapWords marks a multi-word value stored low word first.
	SwapWords bool
	// Classic marks a register written in 4x numbering (HR40001). Classic
	// numbers are one-based whatever the resolver's ZeroBased setting.
	Classic bool
}

func (a Address) String() string {
	reg := a.Register
	if a.Classic {
		reg += HoldingRegisterOffset
	}
	s := fmt.Sprintf("HR%d.%d", reg, a.Bit)
	if a.Words > 1 {
		s += fmt.Sprintf(":%d", a.Words)
	}
	if a.SwapWords {
		s += ":swap"
	}
	return s
}

// Parse parses a tag address. Accepted forms:
//
//	HR40001.3   classic 4x numbering, always one-based
//	HR1.3       register 1, bit 3
//	1.3         same, prefix omitted
//	HR1.20:2    bit 20 of a 32-bit value spanning registers 1 and 2
//	HR1.20:2:swap
func Parse(s string) (Address, error) {
	in := strings.TrimSpace(s)
	rest := strings.TrimPrefix(strings.ToUpper(in), "HR")

	parts := strings.Split(rest, ":")
	regBit := strings.SplitN(parts[0], ".", 2)
	if len(regBit) != 2 {
		return Address{}, fmt.Errorf("invalid address %q: missing bit", s)
	}

	reg, err := strconv.Atoi(regBit[0])
	if err != nil {
		return Address{}, fmt.Errorf("invalid register in %q: %w", s, err)
	}
	classic := reg > HoldingRegisterOffset && reg <= HoldingRegisterOffset+65536
	if classic {
		reg -= HoldingRegisterOffset
	}
	bit, err := strconv.Atoi(regBit[1])
	if err != nil {
		return Address{}, fmt.Errorf("invalid bit in %q: %w", s, err)
	}

	a := Address{Register: reg, Bit: bit, Words: 1, Classic: classic}
	for _, opt := range parts[1:] {
		switch opt {
		case "SWAP":
			a.SwapWords = true
		case "1", "2":
			a.Words = int(opt[0] - '0')
		default:
			return Address{}, fmt.Errorf("invalid option %q in %q", opt, s)
		}
	}
	if err := a.Validate(); err != nil {
		return Address{}, fmt.Errorf("invalid address %q: %w", s, err)
	}
	return a, nil
}

// Validate checks the field ranges.
func (a Address) Validate() error {
	words := a.Words
	if words == 0 {
		words = 1
	}
	switch {
	case a.Register < 0:
		return errors.New("negative register")
	case words < 1 || words > 2:
		return fmt.Errorf("unsupported width %d", a.Words)
	case a.Bit < 0 || a.Bit >= 16*words:
		return fmt.Errorf("bit %d out of range for %d word value", a.Bit, words)
	}
	return nil
}
