// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/ffutop/modbus-bitwriter/internal/device/model"
)

const (
	schemaSQL = `
	CREATE TABLE IF NOT EXISTS modbus_registers (
		table_type INTEGER,
		address INTEGER,
		value INTEGER,
		PRIMARY KEY (table_type, address)
	);
	`
	selectSQL = "SELECT table_type, address, value FROM modbus_registers"
	upsertSQL = "INSERT INTO modbus_registers (table_type, address, value) VALUES (?, ?, ?) ON CONFLICT(table_type, address) DO UPDATE SET value=excluded.value"
)

// SQLStorage stores one row per non-zero table entry in a
// modbus_registers table.
type SQLStorage struct {
	driver string
	dsn    string
	db     *sql.DB
	model  *model.DataModel
}

// NewSQLStorage creates a new SQLStorage. The driver must be registered
// by the binary.
func NewSQLStorage(driver, dsn string) *SQLStorage {
	return &SQLStorage{
		driver: driver,
		dsn:    dsn,
	}
}

// Load connects to the database, creates the schema and loads all rows.
func (s *SQLStorage) Load() (*model.DataModel, error) {
	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to init schema: %w", err)
	}

	m := model.NewDataModel()
	rows, err := db.Query(selectSQL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to query registers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t, addr, val int
		if err := rows.Scan(&t, &addr, &val); err != nil {
			slog.Warn("Skipping unreadable register row", "err", err)
			continue
		}
		if addr < 0 || addr > model.MaxAddress {
			continue
		}

		switch model.TableType(t) {
		case model.TableCoils:
			m.Coils[addr] = byte(val)
		case model.TableDiscreteInputs:
			m.DiscreteInputs[addr] = byte(val)
		case model.TableHoldingRegisters:
			m.HoldingRegisters[addr] = uint16(val)
		case model.TableInputRegisters:
			m.InputRegisters[addr] = uint16(val)
		}
	}
	if err := rows.Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to read registers: %w", err)
	}

	s.db = db
	s.model = m
	return m, nil
}

// Save upserts every non-zero entry of m in one transaction.
func (s *SQLStorage) Save(m *model.DataModel) error {
	if s.db == nil {
		return fmt.Errorf("sql storage not loaded")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(upsertSQL)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	tables := []model.TableType{model.TableCoils, model.TableDiscreteInputs, model.TableHoldingRegisters, model.TableInputRegisters}
	for _, table := range tables {
		for addr := 0; addr <= model.MaxAddress; addr++ {
			v := m.Value(table, uint16(addr))
			if v == 0 {
				continue
			}
			if _, err := stmt.Exec(int(table), addr, int64(v)); err != nil {
				tx.Rollback()
				return fmt.Errorf("failed to save %v %d: %w", table, addr, err)
			}
		}
	}
	return tx.Commit()
}

// OnWrite upserts the changed entries.
func (s *SQLStorage) OnWrite(table model.TableType, address, quantity uint16) {
	if s.db == nil || s.model == nil {
		return
	}

	for i := 0; i < int(quantity); i++ {
		addr := int(address) + i
		val := s.model.Value(table, uint16(addr))
		if _, err := s.db.Exec(upsertSQL, int(table), addr, int64(val)); err != nil {
			slog.Error("Failed to persist register", "table", table, "addr", addr, "err", err)
		}
	}
}

func (s *SQLStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
