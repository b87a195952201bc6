// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package diag

import "time"

// Event describes a finished transaction.
type Event struct {
	Timestamp     time.Time `cbor:"1,keyasint"`
	TransactionID string    `cbor:"2,keyasint"`
	Device        string    `cbor:"3,keyasint,omitempty"`
	SlaveID       uint8     `cbor:"4,keyasint"`
	FunctionCode  uint8     `cbor:"5,keyasint"`

	// Outcome is the outcome kind name, e.g. "matched" or "timeout".
	Outcome string `cbor:"6,keyasint"`
	// Good is true when every item of the batch got a good status.
	Good bool `cbor:"7,keyasint"`

	// Items lists the item ids of the batch.
	Items []string `cbor:"8,keyasint,omitempty"`

	Request  []byte `cbor:"9,keyasint,omitempty"`
	Response []byte `cbor:"10,keyasint,omitempty"`

	Mismatches    []Mismatch `cbor:"11,keyasint,omitempty"`
	ExceptionCode *uint8     `cbor:"12,keyasint,omitempty"`
	// Field is the first unreadable field of a malformed frame.
	Field string `cbor:"13,keyasint,omitempty"`
	Error string `cbor:"14,keyasint,omitempty"`

	Duration time.Duration `cbor:"15,keyasint"`
}

// Mismatch is a response field that differs from the request.
type Mismatch struct {
	Field string `cbor:"1,keyasint"`
	Want  uint16 `cbor:"2,keyasint"`
	Got   uint16 `cbor:"3,keyasint"`
}
