// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package device

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ffutop/modbus-bitwriter/internal/config"
	"github.com/ffutop/modbus-bitwriter/internal/device/model"
	"github.com/ffutop/modbus-bitwriter/modbus"
	"github.com/ffutop/modbus-bitwriter/modbus/maskwrite"
)

type mockStorage struct {
	mock.Mock
}

func (m *mockStorage) Load() (*model.DataModel, error) { return model.NewDataModel(), nil }
func (m *mockStorage) Save(*model.DataModel) error     { return nil }
func (m *mockStorage) Close() error                    { return nil }

func (m *mockStorage) OnWrite(table model.TableType, address, quantity uint16) {
	m.Called(table, address, quantity)
}

func newDevice(t *testing.T) (*Device, *mockStorage) {
	t.Helper()
	s := &mockStorage{}
	return New(model.NewDataModel(), s), s
}

func TestDevice_MaskWrite(t *testing.T) {
	d, s := newDevice(t)
	s.On("OnWrite", model.TableHoldingRegisters, uint16(4), uint16(1)).Return()

	require.NoError(t, d.Model().WriteSingleRegister(4, 0x0012))

	req := maskwrite.Request{Address: 4, AndMask: 0x00F2, OrMask: 0x0025}
	resp, err := d.Process(req.PDU())
	require.NoError(t, err)
	assert.Equal(t, req.PDU(), resp)
	assert.Equal(t, uint16(0x0017), d.Model().HoldingRegister(4))
	s.AssertExpectations(t)
}

// TestDevice_MaskWriteComposed checks that a composed request only touches
// the written bits.
func TestDevice_MaskWriteComposed(t *testing.T) {
	d, s := newDevice(t)
	s.On("OnWrite", mock.Anything, mock.Anything, mock.Anything).Return()
	require.NoError(t, d.Model().WriteSingleRegister(9, 0xA5A5))

	req, err := maskwrite.Compose(9, []maskwrite.Bit{{Index: 0, Value: false}, {Index: 1, Value: true}, {Index: 15, Value: false}})
	require.NoError(t, err)

	resp, err := d.Process(req.PDU())
	require.NoError(t, err)

	decoded, err := maskwrite.Decode(resp.Bytes())
	require.NoError(t, err)
	assert.Empty(t, maskwrite.Validate(req, decoded))
	assert.Equal(t, uint16(0x25A6), d.Model().HoldingRegister(9))
}

func TestDevice_Exceptions(t *testing.T) {
	tests := []struct {
		name string
		req  modbus.ProtocolDataUnit
		code byte
	}{
		{"mask write short", modbus.ProtocolDataUnit{FunctionCode: 0x16, Data: []byte{0x00, 0x04, 0xFF}}, modbus.ExceptionCodeIllegalDataValue},
		{"unsupported function", modbus.ProtocolDataUnit{FunctionCode: 0x2B, Data: []byte{0x0E, 0x01, 0x00}}, modbus.ExceptionCodeIllegalFunction},
		{"read quantity zero", modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x00, 0x00, 0x00}}, modbus.ExceptionCodeIllegalDataValue},
		{"read past end", modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0xFF, 0xFF, 0x00, 0x02}}, modbus.ExceptionCodeIllegalDataAddress},
		{"bad coil value", modbus.ProtocolDataUnit{FunctionCode: 0x05, Data: []byte{0x00, 0x01, 0x12, 0x34}}, modbus.ExceptionCodeIllegalDataValue},
		{"byte count", modbus.ProtocolDataUnit{FunctionCode: 0x10, Data: []byte{0x00, 0x01, 0x00, 0x01, 0x04, 0x00, 0x01}}, modbus.ExceptionCodeIllegalDataValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, s := newDevice(t)
			resp, err := d.Process(tt.req)
			require.NoError(t, err)
			assert.True(t, resp.IsException())
			assert.Equal(t, tt.req.FunctionCode|modbus.ExceptionFlag, resp.FunctionCode)
			assert.Equal(t, []byte{tt.code}, resp.Data)
			s.AssertNotCalled(t, "OnWrite", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDevice_ReadWrite(t *testing.T) {
	d, s := newDevice(t)
	s.On("OnWrite", mock.Anything, mock.Anything, mock.Anything).Return()

	// write multiple registers 10..11
	resp, err := d.Process(modbus.ProtocolDataUnit{FunctionCode: 0x10, Data: []byte{0x00, 0x0A, 0x00, 0x02, 0x04, 0x12, 0x34, 0x56, 0x78}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x0A, 0x00, 0x02}, resp.Data)
	s.AssertCalled(t, "OnWrite", model.TableHoldingRegisters, uint16(10), uint16(2))

	resp, err = d.Process(modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0x00, 0x0A, 0x00, 0x02}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x04, 0x12, 0x34, 0x56, 0x78}, resp.Data)

	// coils 0..9 = 1010000011
	resp, err = d.Process(modbus.ProtocolDataUnit{FunctionCode: 0x0F, Data: []byte{0x00, 0x00, 0x00, 0x0A, 0x02, 0xC1, 0x02}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x0A}, resp.Data)

	resp, err = d.Process(modbus.ProtocolDataUnit{FunctionCode: 0x01, Data: []byte{0x00, 0x00, 0x00, 0x0A}})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0xC1, 0x02}, resp.Data)

	req := modbus.ProtocolDataUnit{FunctionCode: 0x05, Data: []byte{0x00, 0x20, 0xFF, 0x00}}
	resp, err = d.Process(req)
	require.NoError(t, err)
	assert.Equal(t, req, resp)
	assert.Equal(t, uint16(1), d.Model().Value(model.TableCoils, 0x20))
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.mmap")
	cfg := config.LocalConfig{Persistence: config.PersistenceConfig{Type: "mmap", Path: path}}

	d, err := Open(cfg)
	require.NoError(t, err)
	_, err = d.Process(maskwrite.Request{Address: 1, AndMask: 0xFFFE, OrMask: 0x0001}.PDU())
	require.NoError(t, err)
	require.NoError(t, d.Close())

	d, err = Open(cfg)
	require.NoError(t, err)
	defer d.Close()
	assert.Equal(t, uint16(1), d.Model().HoldingRegister(1))

	_, err = Open(config.LocalConfig{Persistence: config.PersistenceConfig{Type: "tape"}})
	assert.Error(t, err)
}

func TestOpen_FallbackToMemory(t *testing.T) {
	// a directory cannot be opened as a storage file
	cfg := config.LocalConfig{Persistence: config.PersistenceConfig{Type: "file", Path: t.TempDir()}}
	d, err := Open(cfg)
	require.NoError(t, err)
	assert.NoError(t, d.Close())
}
