// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package tcp

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/ffutop/modbus-bitwriter/modbus"
)

const (
	tcpTimeout = 10 * time.Second
)

// Client implements Downstream interface (Modbus TCP Client).
// Every Send dials its own connection, so a Client is safe for concurrent use.
type Client struct {
	Address string
	Timeout time.Duration

	transactionID atomic.Uint32
}

// NewClient allocates and initializes a TCP Client.
func NewClient(address string) *Client {
	return &Client{
		Address: address,
		Timeout: tcpTimeout,
	}
}

// Send sends a PDU to a Slave (Downstream) and returns the response PDU.
func (mb *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	adu := &ApplicationDataUnit{
		TransactionID: uint16(mb.transactionID.Add(1)),
		SlaveID:       slaveID,
		Pdu:           pdu,
	}
	aduBytes, err := adu.Encode()
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to encode ADU: %w", err)
	}

	deadline := time.Now().Add(mb.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	dialer := net.Dialer{Deadline: deadline}
	conn, err := dialer.DialContext(ctx, "tcp", mb.Address)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("modbus: failed to connect to %s: %w", mb.Address, err)
	}
	defer conn.Close()

	// unblock pending I/O when ctx is cancelled
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if err = conn.SetDeadline(deadline); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}

	slog.Debug("send to modbus tcp slave", "request", hex.EncodeToString(aduBytes))
	if _, err := conn.Write(aduBytes); err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to write to connection: %w", err)
	}

	respBytes, err := readFrame(conn)
	if err != nil {
		if ctx.Err() != nil {
			return modbus.ProtocolDataUnit{}, ctx.Err()
		}
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to read response: %w", err)
	}
	slog.Debug("recv from modbus tcp slave", "response", hex.EncodeToString(respBytes))

	respAdu, err := Decode(respBytes)
	if err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("failed to decode response ADU: %w", err)
	}
	if err := adu.Verify(respAdu); err != nil {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("verification failed: %w", err)
	}

	return respAdu.Pdu, nil
}

// Connect checks that the address resolves.
func (mb *Client) Connect(ctx context.Context) error {
	_, err := net.ResolveTCPAddr("tcp", mb.Address)
	return err
}

// Close is a no-op; connections do not outlive Send.
func (mb *Client) Close() error {
	return nil
}
