// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ffutop/modbus-bitwriter/internal/config"
	"github.com/ffutop/modbus-bitwriter/internal/device"
	"github.com/ffutop/modbus-bitwriter/internal/device/model"
	"github.com/ffutop/modbus-bitwriter/modbus"
	"github.com/ffutop/modbus-bitwriter/modbus/maskwrite"
	"github.com/ffutop/modbus-bitwriter/transport"
	"github.com/ffutop/modbus-bitwriter/transport/local"
)

func TestParseSlaveIDs(t *testing.T) {
	tests := []struct {
		input   string
		want    []byte
		wantErr bool
	}{
		{"", nil, false},
		{"1", []byte{1}, false},
		{"1, 3", []byte{1, 3}, false},
		{"5-8", []byte{5, 6, 7, 8}, false},
		{"1,5-6,9", []byte{1, 5, 6, 9}, false},
		{"8-5", nil, true},
		{"256", nil, true},
		{"a", nil, true},
		{"1-b", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSlaveIDs(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newLocal() *local.Client {
	return local.NewDeviceClient(device.New(model.NewDataModel(), nil))
}

func TestHandleRequest_Routing(t *testing.T) {
	one, other := newLocal(), newLocal()
	sim := New("test", nil, map[byte]transport.Downstream{1: one}, nil)

	req := maskwrite.Request{Address: 2, AndMask: 0xFFFE, OrMask: 0x0001}
	resp, err := sim.HandleRequest(context.Background(), 1, req.PDU())
	require.NoError(t, err)
	assert.Equal(t, req.PDU(), resp)
	assert.Equal(t, uint16(1), one.Device().Model().HoldingRegister(2))

	_, err = sim.HandleRequest(context.Background(), 2, req.PDU())
	assert.ErrorIs(t, err, transport.ErrNoRoute)

	sim.DefaultRoute = other
	_, err = sim.HandleRequest(context.Background(), 2, req.PDU())
	require.NoError(t, err)
	assert.Equal(t, uint16(1), other.Device().Model().HoldingRegister(2))
}

func TestBuildRoutes(t *testing.T) {
	routes, def, err := BuildRoutes([]config.SimulatedDeviceConfig{
		{Name: "a", SlaveIDs: "1-2"},
		{Name: "b"},
	})
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Same(t, routes[1], routes[2])
	assert.NotNil(t, def)

	_, _, err = BuildRoutes([]config.SimulatedDeviceConfig{
		{Name: "a", SlaveIDs: "1-2"},
		{Name: "b", SlaveIDs: "2"},
	})
	assert.ErrorContains(t, err, "slave id 2 already served")

	_, _, err = BuildRoutes([]config.SimulatedDeviceConfig{{Name: "a"}, {Name: "b"}})
	assert.Error(t, err)

	_, _, err = BuildRoutes(nil)
	assert.Error(t, err)
}

// fakeUpstream hands each queued request to the handler once started.
type fakeUpstream struct {
	requests []modbus.ProtocolDataUnit

	mu        sync.Mutex
	responses []modbus.ProtocolDataUnit
	closed    bool
}

func (f *fakeUpstream) Start(ctx context.Context, handler transport.RequestHandler) error {
	for _, req := range f.requests {
		resp, err := handler(ctx, 1, req)
		if err != nil {
			resp = transport.ExceptionResponse(req.FunctionCode, err)
		}
		f.mu.Lock()
		f.responses = append(f.responses, resp)
		f.mu.Unlock()
	}
	<-ctx.Done()
	return nil
}

func (f *fakeUpstream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestSimulator_Start(t *testing.T) {
	req := maskwrite.Request{Address: 0, AndMask: 0x0000, OrMask: 0x00FF}
	up := &fakeUpstream{requests: []modbus.ProtocolDataUnit{req.PDU()}}
	dev := newLocal()
	sim := New("test", []transport.Upstream{up}, map[byte]transport.Downstream{1: dev}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sim.Start(ctx) }()

	assert.Eventually(t, func() bool {
		up.mu.Lock()
		defer up.mu.Unlock()
		return len(up.responses) == 1
	}, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("simulator did not stop")
	}
	assert.True(t, up.closed)
	assert.Equal(t, uint16(0x00FF), dev.Device().Model().HoldingRegister(0))
}
