// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package batch reads bit write items from YAML files and command line
// assignments and plans them into mask write transactions.
package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ffutop/modbus-bitwriter/internal/address"
	"github.com/ffutop/modbus-bitwriter/internal/transaction"
)

// File is a batch file:
//
//	device: plc1
//	items:
//	  - id: pump.run
//	    address: HR40001.3
//	    value: true
type File struct {
	Device string     `yaml:"device"`
	Items  []FileItem `yaml:"items"`
}

// FileItem is one entry of a batch file. ID defaults to the address.
type FileItem struct {
	ID      string `yaml:"id"`
	Address string `yaml:"address"`
	Value   any    `yaml:"value"`
}

// Load reads a batch file.
func Load(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a batch document. Unknown keys are rejected.
func Decode(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var file File
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty batch file")
		}
		return nil, fmt.Errorf("failed to parse batch file: %w", err)
	}
	return &file, nil
}

// TransactionItems converts the file items, in file order.
func (f *File) TransactionItems() ([]transaction.Item, error) {
	items := make([]transaction.Item, 0, len(f.Items))
	for i, fi := range f.Items {
		if fi.Value == nil {
			return nil, fmt.Errorf("item %d (%s): missing value", i, fi.Address)
		}
		item, err := newItem(fi.ID, fi.Address, fi.Value)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}
	return items, nil
}

// ParseAssignments parses command line items of the form ADDRESS=VALUE,
// e.g. HR1.3=true or 40001.5=0.
func ParseAssignments(args []string) ([]transaction.Item, error) {
	items := make([]transaction.Item, 0, len(args))
	for _, arg := range args {
		addr, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid assignment %q, want ADDRESS=VALUE", arg)
		}
		item, err := newItem("", addr, strings.TrimSpace(value))
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func newItem(id, addr string, value any) (transaction.Item, error) {
	a, err := address.Parse(addr)
	if err != nil {
		return transaction.Item{}, err
	}
	if id == "" {
		id = strings.TrimSpace(addr)
	}
	return transaction.Item{ID: id, Address: a, Value: value}, nil
}

// Plan groups items by register and builds one mask write per register,
// in first-seen register order. Item IDs must be unique across the whole
// plan, not only within one register.
func Plan(r address.Resolver, slaveID byte, items []transaction.Item) ([]*transaction.MaskWrite, error) {
	ids := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, dup := ids[item.ID]; dup {
			return nil, &transaction.DuplicateItemError{ID: item.ID}
		}
		ids[item.ID] = struct{}{}
	}
	batches, err := address.Group(r, items)
	if err != nil {
		return nil, err
	}
	txs := make([]*transaction.MaskWrite, 0, len(batches))
	for _, b := range batches {
		tx, err := transaction.NewMaskWrite(r, slaveID, b.Items)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}
