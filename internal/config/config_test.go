// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
log:
  level: debug
diagnostics:
  file: /tmp/writes.cbor
devices:
  - name: plc1
    type: tcp
    slave_id: 3
    swap_words: true
    tcp:
      address: 192.168.1.10:502
  - name: drive
    type: rtu
    slave_id: 7
    timeout: 250ms
    serial:
      device: /dev/ttyUSB0
      baud_rate: 19200
      parity: e
  - name: sim
    type: local
    zero_based: true
    local:
      persistence:
        type: mmap
        path: /tmp/sim.mmap
simulators:
  - name: bench
    upstreams:
      - type: tcp
        tcp:
          address: 127.0.0.1:5020
      - type: rtu
        serial:
          device: /dev/ttyS1
    devices:
      - name: a
        slave_ids: "1-3"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/writes.cbor", cfg.Diagnostics.File)
	require.Len(t, cfg.Devices, 3)

	plc := cfg.Devices[0]
	assert.Equal(t, "tcp", plc.Type)
	assert.Equal(t, 3, plc.SlaveID)
	assert.True(t, plc.SwapWords)
	assert.Equal(t, DefaultDeviceTimeout, plc.Timeout)
	assert.Equal(t, "192.168.1.10:502", plc.Tcp.Address)

	drive := cfg.Devices[1]
	assert.Equal(t, 250*time.Millisecond, drive.Timeout)
	assert.Equal(t, "E", drive.Serial.Parity)
	assert.Equal(t, 500*time.Millisecond, drive.Serial.Timeout)
	assert.Equal(t, 100*time.Millisecond, drive.Serial.RqstPause)

	sim := cfg.Devices[2]
	assert.True(t, sim.ZeroBased)
	assert.Equal(t, "mmap", sim.Local.Persistence.Type)

	require.Len(t, cfg.Simulators, 1)
	assert.Len(t, cfg.Simulators[0].Upstreams, 2)
	assert.Equal(t, 500*time.Millisecond, cfg.Simulators[0].Upstreams[1].Serial.Timeout)
	assert.Equal(t, "1-3", cfg.Simulators[0].Devices[0].SlaveIDs)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown type", "devices:\n  - name: a\n    type: can\n"},
		{"missing name", "devices:\n  - type: local\n"},
		{"duplicate name", "devices:\n  - name: a\n    type: local\n  - name: a\n    type: local\n"},
		{"tcp without address", "devices:\n  - name: a\n    type: tcp\n"},
		{"rtu without device", "devices:\n  - name: a\n    type: rtu\n"},
		{"slave id", "devices:\n  - name: a\n    type: local\n    slave_id: 300\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestConfig_Device(t *testing.T) {
	cfg := &Config{Devices: []DeviceConfig{{Name: "a"}, {Name: "b"}}}

	dev, err := cfg.Device("b")
	require.NoError(t, err)
	assert.Equal(t, "b", dev.Name)

	_, err = cfg.Device("")
	assert.Error(t, err)
	_, err = cfg.Device("c")
	assert.Error(t, err)

	single := &Config{Devices: []DeviceConfig{{Name: "only"}}}
	dev, err = single.Device("")
	require.NoError(t, err)
	assert.Equal(t, "only", dev.Name)
}
