// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package simulator

import (
	"errors"
	"fmt"

	"github.com/ffutop/modbus-bitwriter/internal/config"
	"github.com/ffutop/modbus-bitwriter/transport"
	"github.com/ffutop/modbus-bitwriter/transport/local"
)

// BuildRoutes opens the configured local devices and maps their slave ids.
// A device without slave ids becomes the default route; at most one may.
func BuildRoutes(cfgs []config.SimulatedDeviceConfig) (routes map[byte]transport.Downstream, defaultRoute transport.Downstream, err error) {
	routes = make(map[byte]transport.Downstream)
	var opened []transport.Downstream
	defer func() {
		if err != nil {
			for _, ds := range opened {
				ds.Close()
			}
		}
	}()

	for _, dc := range cfgs {
		ids, err := ParseSlaveIDs(dc.SlaveIDs)
		if err != nil {
			return nil, nil, fmt.Errorf("device %q: %w", dc.Name, err)
		}
		if len(ids) == 0 && defaultRoute != nil {
			return nil, nil, fmt.Errorf("device %q: another device already serves all slave ids", dc.Name)
		}
		for _, id := range ids {
			if _, dup := routes[id]; dup {
				return nil, nil, fmt.Errorf("device %q: slave id %d already served", dc.Name, id)
			}
		}

		client, err := local.NewClient(dc.Local)
		if err != nil {
			return nil, nil, fmt.Errorf("device %q: %w", dc.Name, err)
		}
		opened = append(opened, client)

		if len(ids) == 0 {
			defaultRoute = client
			continue
		}
		for _, id := range ids {
			routes[id] = client
		}
	}
	if len(opened) == 0 {
		return nil, nil, errors.New("no devices configured")
	}
	return routes, defaultRoute, nil
}
