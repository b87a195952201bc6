// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package address

import (
	"fmt"
)

// Resolver turns configured addresses into wire reference addresses.
type Resolver struct {
	// ZeroBased means configured register numbers are already wire addresses.
	// Otherwise register 1 is wire address 0. Classic 4x addresses are
	// one-based in both modes: HR40001 is always wire address 0.
	ZeroBased bool
	// SwapWords applies to every address, in addition to Address.SwapWords.
	SwapWords bool
}

// Reference returns the wire address of the register holding a.Bit.
func (r Resolver) Reference(a Address) (uint16, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	words := a.Words
	if words == 0 {
		words = 1
	}

	word := a.Bit / 16
	if r.SwapWords || a.SwapWords {
		word = words - 1 - word
	}

	ref := a.Register + word
	if !r.ZeroBased || a.Classic {
		if a.Register == 0 {
			return 0, fmt.Errorf("register 0 is invalid with one-based addressing")
		}
		ref--
	}
	if ref > 0xFFFF {
		return 0, fmt.Errorf("reference address %d of %v out of range", ref, a)
	}
	return uint16(ref), nil
}
