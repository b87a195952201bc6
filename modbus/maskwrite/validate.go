// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package maskwrite

import "fmt"

// Mismatch is one response field that did not echo the request.
type Mismatch struct {
	Field string
	Want  uint16
	Got   uint16
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: want 0x%04X, got 0x%04X", m.Field, m.Want, m.Got)
}

// Validate compares every echoed field with the request. The response is
// valid only if the result is empty.
func Validate(req Request, resp Response) []Mismatch {
	var mm []Mismatch
	check := func(field string, want, got uint16) {
		if want != got {
			mm = append(mm, Mismatch{Field: field, Want: want, Got: got})
		}
	}
	check(FieldFunctionCode, uint16(req.FunctionCode()), uint16(resp.FunctionCode))
	check(FieldReferenceAddress, req.Address, resp.Address)
	check(FieldAndMask, req.AndMask, resp.AndMask)
	check(FieldOrMask, req.OrMask, resp.OrMask)
	return mm
}
