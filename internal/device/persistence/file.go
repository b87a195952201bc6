// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/ffutop/modbus-bitwriter/internal/device/model"
)

// FileStorage keeps the model in memory and writes the whole image back
// to a file after every write.
type FileStorage struct {
	path string

	mu   sync.Mutex
	file *os.File
	data []byte
}

// NewFileStorage creates a new FileStorage.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
	}
}

// Load reads the file image, creating an empty one if needed.
func (fs *FileStorage) Load() (*model.DataModel, error) {
	f, err := openSized(fs.path)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	fs.mu.Lock()
	fs.file = f
	fs.data = data
	fs.mu.Unlock()

	return mapBytesToModel(data), nil
}

// Save flushes the data to disk.
func (fs *FileStorage) Save(*model.DataModel) error {
	return fs.sync()
}

// OnWrite syncs the file.
func (fs *FileStorage) OnWrite(table model.TableType, address, quantity uint16) {
	if err := fs.sync(); err != nil {
		slog.Error("Failed to sync file", "path", fs.path, "table", table, "address", address, "err", err)
	}
}

func (fs *FileStorage) sync() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if fs.data == nil || fs.file == nil {
		return nil
	}
	if _, err := fs.file.WriteAt(fs.data, 0); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := fs.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file to disk: %w", err)
	}
	return nil
}

// Close writes the image a last time and closes the file.
func (fs *FileStorage) Close() error {
	err := fs.sync()

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if fs.file != nil {
		if e := fs.file.Close(); e != nil && err == nil {
			err = e
		}
		fs.file = nil
	}
	return err
}
