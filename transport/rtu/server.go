// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package rtu

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/grid-x/serial"

	"github.com/ffutop/modbus-bitwriter/internal/config"
	rtupacket "github.com/ffutop/modbus-bitwriter/modbus/rtu"
	"github.com/ffutop/modbus-bitwriter/transport"
)

// Server implements a Modbus RTU Server (Upstream).
// It acts as a slave on the serial bus, waiting for requests from an external master.
type Server struct {
	Config config.SerialConfig

	mu   sync.Mutex
	port io.ReadWriteCloser
}

// NewServer creates a new RTU Server.
func NewServer(cfg config.SerialConfig) *Server {
	return &Server{
		Config: cfg,
	}
}

// Start opens the serial port and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, handler transport.RequestHandler) error {
	spConfig := serialConfig(s.Config)
	port, err := serial.Open(&spConfig)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", s.Config.Device, err)
	}
	s.mu.Lock()
	s.port = port
	s.mu.Unlock()
	defer s.Close()
	slog.Info("RTU Server listening", "device", s.Config.Device)

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	return s.scanLoop(ctx, port, handler)
}

// scanLoop reads request frames and answers them one at a time. Frames with
// an unknown function code or a bad CRC are dropped.
func (s *Server) scanLoop(ctx context.Context, port io.ReadWriter, handler transport.RequestHandler) error {
	buf := make([]byte, rtupacket.MaxSize)

	for {
		if ctx.Err() != nil {
			return nil
		}

		// Read 1 byte to unblock
		n, err := port.Read(buf[:1])
		if err != nil {
			if ctx.Err() != nil || err == io.EOF {
				return nil
			}
			continue
		}
		if n == 0 {
			continue
		}

		// 7 bytes cover the byte count of variable length requests
		current := readUntil(port, buf, 1, 7)
		if current < 2 {
			continue
		}

		expectedLen, err := rtupacket.CalculateRequestLength(buf[1], buf[:current])
		if err != nil {
			slog.Debug("Dropping RTU frame", "func", buf[1], "err", err)
			continue
		}
		if current = readUntil(port, buf, current, expectedLen); current != expectedLen {
			continue
		}

		adu, err := rtupacket.Decode(buf[:expectedLen])
		if err != nil {
			slog.Debug("Dropping RTU frame", "err", err)
			continue
		}

		respPdu, err := handler(ctx, adu.SlaveID, adu.Pdu)
		if err != nil {
			slog.Error("Upstream handler failed", "slave_id", adu.SlaveID, "err", err)
			respPdu = transport.ExceptionResponse(adu.Pdu.FunctionCode, err)
		}

		respAdu := &rtupacket.ApplicationDataUnit{SlaveID: adu.SlaveID, Pdu: respPdu}
		respRaw, err := respAdu.Encode()
		if err != nil {
			slog.Error("Failed to encode RTU response", "err", err)
			continue
		}
		if _, err := port.Write(respRaw); err != nil {
			slog.Error("Failed to write RTU response", "err", err)
		}
	}
}

// readUntil reads into buf[current:need] until need bytes are present or a
// read fails, and returns the number of bytes in buf.
func readUntil(r io.Reader, buf []byte, current, need int) int {
	if need > len(buf) {
		need = len(buf)
	}
	for current < need {
		n, err := r.Read(buf[current:need])
		current += n
		if err != nil {
			break
		}
	}
	return current
}

// Close closes the serial port.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}
