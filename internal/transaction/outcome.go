// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transaction

import (
	"fmt"
	"strings"
	"time"

	"github.com/ffutop/modbus-bitwriter/modbus"
	"github.com/ffutop/modbus-bitwriter/modbus/maskwrite"
)

// Kind classifies how a transaction ended.
type Kind int

const (
	// KindMatched: the response echoed the request exactly.
	KindMatched Kind = iota
	// KindMismatched: a well formed response differed from the request.
	KindMismatched
	// KindDeviceException: the device answered with an exception code.
	KindDeviceException
	// KindMalformedFrame: the response was too short to decode.
	KindMalformedFrame
	// KindTimeout: no response before the deadline.
	KindTimeout
	// KindTransportError: the transport failed without a response.
	KindTransportError
)

var kindNames = [...]string{"matched", "mismatched", "device exception", "malformed frame", "timeout", "transport error"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Outcome is the classified result of a transaction.
type Outcome struct {
	Kind Kind
	// Mismatches lists the differing fields for KindMismatched.
	Mismatches []maskwrite.Mismatch
	// ExceptionCode is set for KindDeviceException.
	ExceptionCode byte
	// Field is the first unreadable field for KindMalformedFrame.
	Field string
	// Raw holds the response bytes, if any were received.
	Raw []byte
	Err error
}

// Good reports whether the items were written.
func (o Outcome) Good() bool {
	return o.Kind == KindMatched
}

func (o Outcome) String() string {
	switch o.Kind {
	case KindMismatched:
		parts := make([]string, len(o.Mismatches))
		for i, m := range o.Mismatches {
			parts[i] = m.String()
		}
		return fmt.Sprintf("%s (%s)", o.Kind, strings.Join(parts, "; "))
	case KindDeviceException:
		return fmt.Sprintf("%s 0x%02X (%s)", o.Kind, o.ExceptionCode, modbus.ExceptionName(o.ExceptionCode))
	case KindMalformedFrame:
		return fmt.Sprintf("%s at %s, buffer=[% X]", o.Kind, o.Field, o.Raw)
	case KindTimeout, KindTransportError:
		if o.Err != nil {
			return fmt.Sprintf("%s: %v", o.Kind, o.Err)
		}
	}
	return o.Kind.String()
}

// Result is what Run reports for one transaction.
type Result struct {
	ID      string
	Outcome Outcome
	// Status holds one entry per item id. All entries are equal.
	Status   map[string]StatusCode
	Duration time.Duration
}

// Good reports whether every item was written.
func (r Result) Good() bool {
	return r.Outcome.Good()
}
