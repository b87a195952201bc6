// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import "github.com/ffutop/modbus-bitwriter/internal/device/model"

// MemoryStorage keeps nothing; the model is lost on exit.
type MemoryStorage struct{}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (ms *MemoryStorage) Load() (*model.DataModel, error) {
	return model.NewDataModel(), nil
}

func (ms *MemoryStorage) Save(*model.DataModel) error { return nil }

func (ms *MemoryStorage) OnWrite(model.TableType, uint16, uint16) {}

func (ms *MemoryStorage) Close() error { return nil }
