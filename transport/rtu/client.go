// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/ffutop/modbus-bitwriter/internal/config"
	"github.com/ffutop/modbus-bitwriter/modbus"
	rtupacket "github.com/ffutop/modbus-bitwriter/modbus/rtu"
)

// Client is a Modbus RTU master on one serial line. The line is half
// duplex, so one request at a time holds the port until its response frame
// is read or the read deadline passes.
type Client struct {
	serialPort
}

// NewClient returns a master for the configured port. The port is opened on
// first use and closed again after serialIdleTimeout without traffic.
func NewClient(cfg config.SerialConfig) *Client {
	client := &Client{}
	client.Config = serialConfig(cfg)
	client.IdleTimeout = serialIdleTimeout
	return client
}

// Send addresses pdu to slaveID and returns the slave's answer, which is an
// exception PDU when the slave rejected the request.
func (c *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connect(ctx); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	c.lastActivity = time.Now()
	c.startCloseTimer()

	slog.Debug("send to modbus slave", "port", c.Address, "slave", slaveID, "pdu", hex.EncodeToString(pdu.Bytes()))
	req := &rtupacket.ApplicationDataUnit{SlaveID: slaveID, Pdu: pdu}
	resp, err := rtupacket.Exchange(ctx, c.port, req, c.BaudRate, c.Timeout)
	if err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	slog.Debug("recv from modbus slave", "port", c.Address, "slave", slaveID, "pdu", hex.EncodeToString(resp.Pdu.Bytes()))
	return resp.Pdu, nil
}
