// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/ffutop/modbus-bitwriter/internal/address"
	"github.com/ffutop/modbus-bitwriter/internal/config"
	"github.com/ffutop/modbus-bitwriter/internal/diag"
	"github.com/ffutop/modbus-bitwriter/internal/transaction"
	"github.com/ffutop/modbus-bitwriter/transport"
	"github.com/ffutop/modbus-bitwriter/transport/local"
	"github.com/ffutop/modbus-bitwriter/transport/rtu"
	rtuovertcp "github.com/ffutop/modbus-bitwriter/transport/rtu-over-tcp"
	"github.com/ffutop/modbus-bitwriter/transport/tcp"
)

// deviceFlags are shared by the commands that talk to one device.
type deviceFlags struct {
	config  string
	device  string
	timeout time.Duration
}

func addDeviceFlags(fs *pflag.FlagSet) *deviceFlags {
	f := &deviceFlags{}
	fs.StringVarP(&f.config, "config", "c", "", "Configuration file path.")
	fs.StringVarP(&f.device, "device", "d", "", "Name of the configured device (optional with a single device).")
	fs.DurationVarP(&f.timeout, "timeout", "W", 0, "Per transaction timeout, overrides the device setting.")
	return f
}

// newDownstream creates the transport for a configured device.
func newDownstream(dev *config.DeviceConfig) (transport.Downstream, error) {
	switch dev.Type {
	case "tcp":
		c := tcp.NewClient(dev.Tcp.Address)
		c.Timeout = dev.Timeout
		return c, nil
	case "rtu-over-tcp":
		c := rtuovertcp.NewClient(dev.Tcp.Address)
		c.Timeout = dev.Timeout
		return c, nil
	case "rtu":
		return rtu.NewClient(dev.Serial), nil
	case "local":
		c, err := local.NewClient(dev.Local)
		if err != nil {
			return nil, err
		}
		return c, nil
	default:
		return nil, fmt.Errorf("device %q: unknown type %q", dev.Name, dev.Type)
	}
}

// newSink logs every transaction and, if configured, appends it to the
// diagnostics file. The returned func closes the file.
func newSink(cfg config.DiagnosticsConfig) (diag.Sink, func(), error) {
	logSink := diag.NewSlogSink(slog.Default())
	if cfg.File == "" {
		return logSink, func() {}, nil
	}
	fileSink, err := diag.NewFileSink(cfg.File)
	if err != nil {
		return nil, nil, err
	}
	return diag.NewMultiSink(logSink, fileSink), func() { fileSink.Close() }, nil
}

// session is an opened device ready for transactions.
type session struct {
	device   *config.DeviceConfig
	resolver address.Resolver
	runner   *transaction.Runner
	closers  []func()
}

func openSession(cfg *config.Config, dev *config.DeviceConfig, timeout time.Duration) (*session, error) {
	if timeout > 0 {
		dev.Timeout = timeout
	}
	ds, err := newDownstream(dev)
	if err != nil {
		return nil, err
	}
	sink, closeSink, err := newSink(cfg.Diagnostics)
	if err != nil {
		ds.Close()
		return nil, err
	}
	return &session{
		device:   dev,
		resolver: address.Resolver{ZeroBased: dev.ZeroBased, SwapWords: dev.SwapWords},
		runner:   transaction.NewRunner(dev.Name, ds, dev.Timeout, sink),
		closers:  []func(){closeSink, func() { ds.Close() }},
	}, nil
}

func (s *session) Close() {
	for _, c := range s.closers {
		c()
	}
}
