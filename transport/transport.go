// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package transport defines the two sides of a Modbus link.
//
// A Downstream carries a write transaction's PDU to a device and returns
// the device's PDU. An Upstream accepts requests from a master and hands
// them to a RequestHandler; the simulator uses it to expose local devices.
// Exception responses are returned as PDUs, not as errors: an error means
// no usable response was received.
package transport

import (
	"context"
	"errors"

	"github.com/ffutop/modbus-bitwriter/modbus"
)

// RequestHandler answers one request PDU addressed to slaveID.
type RequestHandler func(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)

// Upstream represents a source of requests (a Modbus master connected to us).
// It acts as a server.
type Upstream interface {
	// Start serves until ctx is cancelled or Close is called.
	Start(ctx context.Context, handler RequestHandler) error
	Close() error
}

// Downstream represents a device we write to. It acts as a client.
type Downstream interface {
	// Send sends a PDU to slaveID and returns the response PDU.
	// Implementations must honour ctx cancellation where the link allows it.
	Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error)
	Connect(ctx context.Context) error
	Close() error
}

// ErrNoRoute is returned by a RequestHandler that serves no device for the
// requested slave id.
var ErrNoRoute = errors.New("modbus: no device for slave id")

// ExceptionResponse maps a RequestHandler error to the exception PDU sent
// back to the master.
func ExceptionResponse(functionCode byte, err error) modbus.ProtocolDataUnit {
	var mbErr *modbus.Error
	switch {
	case errors.As(err, &mbErr):
		return modbus.NewException(functionCode, mbErr.ExceptionCode)
	case errors.Is(err, ErrNoRoute):
		return modbus.NewException(functionCode, modbus.ExceptionCodeGatewayPathUnavailable)
	case errors.Is(err, context.DeadlineExceeded):
		return modbus.NewException(functionCode, modbus.ExceptionCodeGatewayTargetDeviceFailedToRespond)
	default:
		return modbus.NewException(functionCode, modbus.ExceptionCodeServerDeviceFailure)
	}
}
