// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package local

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/ffutop/modbus-bitwriter/internal/config"
	"github.com/ffutop/modbus-bitwriter/internal/device"
	"github.com/ffutop/modbus-bitwriter/modbus"
)

// Client implements Downstream interface for an in-process device.
// Every slave id reaches the same device.
type Client struct {
	device *device.Device
}

// NewClient opens the device described by cfg.
func NewClient(cfg config.LocalConfig) (*Client, error) {
	d, err := device.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Client{device: d}, nil
}

// NewDeviceClient wraps an already opened device.
func NewDeviceClient(d *device.Device) *Client {
	return &Client{device: d}
}

// Device returns the device requests are processed by.
func (c *Client) Device() *device.Device {
	return c.device
}

// Send processes the PDU locally.
func (c *Client) Send(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	if err := ctx.Err(); err != nil {
		return modbus.ProtocolDataUnit{}, err
	}
	slog.Debug("send to local device", "slave_id", slaveID, "request", hex.EncodeToString(pdu.Bytes()))
	return c.device.Process(pdu)
}

// Connect is a no-op for a local device.
func (c *Client) Connect(ctx context.Context) error {
	return nil
}

// Close releases the device storage.
func (c *Client) Close() error {
	return c.device.Close()
}
