// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"

	"github.com/ffutop/modbus-bitwriter/internal/device/model"
)

// SQLDriver is the database/sql driver used by the "sql" storage type.
// The binary must import it.
const SQLDriver = "sqlite3"

// Storage persists the data model of a simulated device.
type Storage interface {
	// Load returns the stored model, or a zeroed one if nothing is stored yet.
	Load() (*model.DataModel, error)

	// Save writes the whole model.
	Save(m *model.DataModel) error

	// OnWrite is called after quantity entries of table starting at address
	// were modified.
	OnWrite(table model.TableType, address, quantity uint16)

	Close() error
}

// New returns the storage for a configured type: "memory" (or empty),
// "file", "mmap" or "sql". For "sql", path is the data source name.
func New(typ, path string) (Storage, error) {
	switch typ {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "file":
		return NewFileStorage(path), nil
	case "mmap":
		return NewMmapStorage(path), nil
	case "sql":
		return NewSQLStorage(SQLDriver, path), nil
	default:
		return nil, fmt.Errorf("unknown persistence type %q", typ)
	}
}
