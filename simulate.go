// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ffutop/modbus-bitwriter/internal/config"
	"github.com/ffutop/modbus-bitwriter/internal/simulator"
	"github.com/ffutop/modbus-bitwriter/transport"
	"github.com/ffutop/modbus-bitwriter/transport/rtu"
	rtuovertcp "github.com/ffutop/modbus-bitwriter/transport/rtu-over-tcp"
	"github.com/ffutop/modbus-bitwriter/transport/tcp"
)

func cmdSimulate(args []string, stderr io.Writer) int {
	fs := pflag.NewFlagSet("simulate", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	configFile := fs.StringP("config", "c", "", "Configuration file path.")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to load configuration: %v\n", err)
		return 1
	}
	setupLogger(cfg.Log, stderr)

	slog.Info("Starting Modbus device simulator...")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sims, err := newSimulators(cfg.Simulators)
	if err != nil {
		slog.Error("Failed to create simulators", "err", err)
		return 1
	}
	if len(sims) == 0 {
		slog.Error("No valid simulators configured. Exiting.")
		return 1
	}

	var wg sync.WaitGroup
	for _, sim := range sims {
		wg.Add(1)
		go func(s *simulator.Simulator) {
			defer wg.Done()
			if err := s.Start(ctx); err != nil {
				slog.Error("Simulator stopped with error", "name", s.Name, "err", err)
			}
		}(sim)
	}

	<-ctx.Done()
	slog.Info("Shutting down...")
	wg.Wait()
	slog.Info("Goodbye.")
	return 0
}

func newSimulators(cfgs []config.SimulatorConfig) ([]*simulator.Simulator, error) {
	var sims []*simulator.Simulator
	for _, sc := range cfgs {
		var upstreams []transport.Upstream
		for _, uc := range sc.Upstreams {
			us, err := newUpstream(uc)
			if err != nil {
				slog.Error("Skipping upstream", "simulator", sc.Name, "err", err)
				continue
			}
			upstreams = append(upstreams, us)
		}
		if len(upstreams) == 0 {
			slog.Error("Simulator has no usable upstream", "simulator", sc.Name)
			continue
		}

		routes, defaultRoute, err := simulator.BuildRoutes(sc.Devices)
		if err != nil {
			for _, s := range sims {
				s.Close()
			}
			return nil, fmt.Errorf("simulator %q: %w", sc.Name, err)
		}
		sims = append(sims, simulator.New(sc.Name, upstreams, routes, defaultRoute))
	}
	return sims, nil
}

func newUpstream(uc config.UpstreamConfig) (transport.Upstream, error) {
	switch uc.Type {
	case "tcp":
		return tcp.NewServer(uc.Tcp.Address), nil
	case "rtu-over-tcp":
		return rtuovertcp.NewServer(uc.Tcp.Address), nil
	case "rtu":
		return rtu.NewServer(uc.Serial), nil
	default:
		return nil, fmt.Errorf("unknown upstream type %q", uc.Type)
	}
}
