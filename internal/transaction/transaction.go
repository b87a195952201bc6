// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package transaction drives Modbus write requests through a transport:
// send, wait for the response or a timeout, decode, validate the echo and
// report one status for every item of the batch.
package transaction

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/ffutop/modbus-bitwriter/internal/address"
	"github.com/ffutop/modbus-bitwriter/modbus"
)

// ErrTransactionDone is returned when a finished transaction is run again.
var ErrTransactionDone = errors.New("modbus: transaction already done")

// StatusCode is the per-item result of a transaction.
type StatusCode int

const (
	StatusGood StatusCode = iota
	StatusBad
)

func (s StatusCode) String() string {
	if s == StatusGood {
		return "Good"
	}
	return "Bad"
}

// State is the lifecycle position of a transaction.
type State int

const (
	StateBuilt State = iota
	StateSent
	StateAwaitingResponse
	StateValidated
	StateFailed
	StateDone
)

var stateNames = [...]string{"built", "sent", "awaiting response", "validated", "failed", "done"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Item is one logical write: set the bit at Address to Value. ID must be
// unique within a transaction; it keys Result.Status.
type Item struct {
	ID      string
	Address address.Address
	// Value must be coercible to bool: a bool, an integer (non-zero is
	// true), or one of the strings 1, t, T, TRUE, true, True, 0, f, F,
	// FALSE, false, False. "on" and "off" are rejected.
	Value any
}

// TargetAddress implements address.Target.
func (i Item) TargetAddress() address.Address {
	return i.Address
}

// Request is a write transaction. The set of implementations is closed;
// MaskWrite is the only one.
type Request interface {
	ID() string
	SlaveID() byte
	Items() []Item
	State() State
	PDU() modbus.ProtocolDataUnit

	base() *lifecycle
	// evaluate classifies a raw response PDU.
	evaluate(raw []byte) Outcome
}

// lifecycle holds the state shared by every Request implementation.
type lifecycle struct {
	mu      sync.Mutex
	id      string
	slaveID byte
	items   []Item
	state   State
}

func newLifecycle(slaveID byte, items []Item) lifecycle {
	return lifecycle{
		id:      uuid.NewString(),
		slaveID: slaveID,
		items:   items,
		state:   StateBuilt,
	}
}

func (l *lifecycle) ID() string { return l.id }
func (l *lifecycle) SlaveID() byte { return l.slaveID }
func (l *lifecycle) Items() []Item { return l.items }
func (l *lifecycle) base() *lifecycle { return l }

func (l *lifecycle) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// begin moves a fresh transaction to Sent.
func (l *lifecycle) begin() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateBuilt {
		return ErrTransactionDone
	}
	l.state = StateSent
	return nil
}

func (l *lifecycle) await() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state == StateSent {
		l.state = StateAwaitingResponse
	}
}

// finish records the verdict and moves to Done. It reports false if the
// transaction was already finished.
func (l *lifecycle) finish(good bool) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateAwaitingResponse {
		return false
	}
	if good {
		l.state = StateValidated
	} else {
		l.state = StateFailed
	}
	l.state = StateDone
	return true
}
