// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package simulator serves local devices to Modbus masters, so bit writes
// can be exercised without field hardware.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ffutop/modbus-bitwriter/modbus"
	"github.com/ffutop/modbus-bitwriter/transport"
)

// requestTimeout bounds a request whose upstream context has no deadline.
const requestTimeout = 2 * time.Second

// Simulator bridges Upstreams (masters) to devices selected by slave id.
type Simulator struct {
	Name         string
	Upstreams    []transport.Upstream
	Routes       map[byte]transport.Downstream
	DefaultRoute transport.Downstream
}

// New creates a Simulator. DefaultRoute answers slave ids without a route
// and may be nil.
func New(name string, upstreams []transport.Upstream, routes map[byte]transport.Downstream, defaultRoute transport.Downstream) *Simulator {
	if routes == nil {
		routes = make(map[byte]transport.Downstream)
	}
	return &Simulator{
		Name:         name,
		Upstreams:    upstreams,
		Routes:       routes,
		DefaultRoute: defaultRoute,
	}
}

// ParseSlaveIDs parses a string of slave IDs (e.g. "1,2,5-10") into a slice of bytes.
func ParseSlaveIDs(input string) ([]byte, error) {
	var ids []byte
	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := parseSlaveID(lo)
		if err != nil {
			return nil, err
		}
		end := start
		if isRange {
			if end, err = parseSlaveID(hi); err != nil {
				return nil, err
			}
			if start > end {
				return nil, fmt.Errorf("start of range %d is greater than end %d", start, end)
			}
		}
		for i := start; i <= end; i++ {
			ids = append(ids, byte(i))
		}
	}
	return ids, nil
}

func parseSlaveID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid id: %w", err)
	}
	if id < 0 || id > 255 {
		return 0, fmt.Errorf("id out of range: %d", id)
	}
	return id, nil
}

// Start runs all upstream servers until ctx is cancelled, then closes
// upstreams and devices.
func (s *Simulator) Start(ctx context.Context) error {
	devices := s.devices()
	for ds := range devices {
		if err := ds.Connect(ctx); err != nil {
			slog.Error("Failed to connect device", "simulator", s.Name, "err", err)
		}
	}

	var wg sync.WaitGroup
	for i, us := range s.Upstreams {
		wg.Add(1)
		go func(ups transport.Upstream, idx int) {
			defer wg.Done()
			slog.Info("Starting upstream", "simulator", s.Name, "index", idx)
			if err := ups.Start(ctx, s.HandleRequest); err != nil {
				slog.Error("Upstream stopped with error", "simulator", s.Name, "index", idx, "err", err)
			}
		}(us, i)
	}

	<-ctx.Done()

	for _, us := range s.Upstreams {
		us.Close()
	}
	wg.Wait()
	return s.Close()
}

// Close closes every device. Upstreams are closed by Start.
func (s *Simulator) Close() error {
	var errs []error
	for ds := range s.devices() {
		if err := ds.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// devices returns every distinct route target.
func (s *Simulator) devices() map[transport.Downstream]struct{} {
	unique := make(map[transport.Downstream]struct{})
	for _, ds := range s.Routes {
		unique[ds] = struct{}{}
	}
	if s.DefaultRoute != nil {
		unique[s.DefaultRoute] = struct{}{}
	}
	return unique
}

// HandleRequest routes one request to the device serving slaveID. It
// returns transport.ErrNoRoute when no device does.
func (s *Simulator) HandleRequest(ctx context.Context, slaveID byte, pdu modbus.ProtocolDataUnit) (modbus.ProtocolDataUnit, error) {
	target, ok := s.Routes[slaveID]
	if !ok {
		target = s.DefaultRoute
	}
	if target == nil {
		slog.Warn("No route found for slave ID", "simulator", s.Name, "slave_id", slaveID)
		return modbus.ProtocolDataUnit{}, transport.ErrNoRoute
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, requestTimeout)
		defer cancel()
	}

	respPdu, err := target.Send(ctx, slaveID, pdu)
	if err != nil {
		slog.Error("Device request failed", "simulator", s.Name, "slave_id", slaveID, "func", pdu.FunctionCode, "err", err)
		return modbus.ProtocolDataUnit{}, err
	}
	return respPdu, nil
}
