// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package device

import (
	"log/slog"

	"github.com/ffutop/modbus-bitwriter/internal/config"
	"github.com/ffutop/modbus-bitwriter/internal/device/persistence"
)

// Open creates a device with the configured persistence and loads its
// stored registers. If the storage cannot be loaded the device starts
// empty in memory.
func Open(cfg config.LocalConfig) (*Device, error) {
	storage, err := persistence.New(cfg.Persistence.Type, cfg.Persistence.Path)
	if err != nil {
		return nil, err
	}
	slog.Info("Initializing local device", "persistence", cfg.Persistence.Type, "path", cfg.Persistence.Path)

	m, err := storage.Load()
	if err != nil {
		slog.Error("Failed to load persistence data, falling back to memory storage", "err", err)
		storage = persistence.NewMemoryStorage()
		if m, err = storage.Load(); err != nil {
			return nil, err
		}
	}
	return New(m, storage), nil
}
