// Copyright (c) 2025-2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultDeviceTimeout = time.Second
	maxSlaveID           = 247
)

// Config defines the global configuration structure
type Config struct {
	Log         LogConfig         `mapstructure:"log"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
	Devices     []DeviceConfig    `mapstructure:"devices"`
	Simulators  []SimulatorConfig `mapstructure:"simulators"`
}

// LogConfig defines logging configuration
type LogConfig struct {
	Level string `mapstructure:"level"` // debug, info, warn, error
	File  string `mapstructure:"file"`  // Log file path
}

// DiagnosticsConfig defines where transaction events are recorded.
type DiagnosticsConfig struct {
	File string `mapstructure:"file"` // CBOR event file, empty to disable
}

// DeviceConfig defines a device that bit writes are sent to.
type DeviceConfig struct {
	Name      string        `mapstructure:"name"`
	Type      string        `mapstructure:"type"` // "tcp", "rtu", "rtu-over-tcp", "local"
	SlaveID   int           `mapstructure:"slave_id"`
	ZeroBased bool          `mapstructure:"zero_based"` // register numbers are wire addresses
	SwapWords bool          `mapstructure:"swap_words"` // multi-word values are low word first
	Timeout   time.Duration `mapstructure:"timeout"`    // per transaction
	Tcp       TcpConfig     `mapstructure:"tcp"`        // Used if Type is "tcp" or "rtu-over-tcp"
	Serial    SerialConfig  `mapstructure:"serial"`     // Used if Type is "rtu"
	Local     LocalConfig   `mapstructure:"local"`      // Used if Type is "local"
}

// SimulatorConfig defines a simulated slave station serving local devices.
type SimulatorConfig struct {
	Name      string                  `mapstructure:"name"`
	Upstreams []UpstreamConfig        `mapstructure:"upstreams"`
	Devices   []SimulatedDeviceConfig `mapstructure:"devices"`
}

// UpstreamConfig defines a listener masters connect to.
type UpstreamConfig struct {
	Type   string       `mapstructure:"type"`   // "tcp", "rtu", "rtu-over-tcp"
	Tcp    TcpConfig    `mapstructure:"tcp"`    // Used if Type is "tcp" or "rtu-over-tcp"
	Serial SerialConfig `mapstructure:"serial"` // Used if Type is "rtu"
}

// SimulatedDeviceConfig binds a local device to slave ids of a simulator.
type SimulatedDeviceConfig struct {
	Name     string      `mapstructure:"name"`
	SlaveIDs string      `mapstructure:"slave_ids"` // "1", "1,2", "1-10"; empty for all
	Local    LocalConfig `mapstructure:"local"`
}

// LocalConfig defines settings for an in-process device
type LocalConfig struct {
	Persistence PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig defines data storage settings
type PersistenceConfig struct {
	Type string `mapstructure:"type"` // "memory", "file", "mmap", "sql"
	Path string `mapstructure:"path"` // File path, or DSN for "sql"
}

// TcpConfig defines TCP settings
type TcpConfig struct {
	Address string `mapstructure:"address"` // e.g. "0.0.0.0:502" or "192.168.1.100:502"
}

// SerialConfig defines RTU settings
type SerialConfig struct {
	Device    string        `mapstructure:"device"`
	BaudRate  int           `mapstructure:"baud_rate"`
	DataBits  int           `mapstructure:"data_bits"`
	Parity    string        `mapstructure:"parity"`
	StopBits  int           `mapstructure:"stop_bits"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RqstPause time.Duration `mapstructure:"rqst_pause"` // Pause between requests

	// RS485 specific
	RS485              bool          `mapstructure:"rs485"`
	DelayRtsBeforeSend time.Duration `mapstructure:"delay_rts_before_send"`
	DelayRtsAfterSend  time.Duration `mapstructure:"delay_rts_after_send"`
	RtsHighDuringSend  bool          `mapstructure:"rts_high_during_send"`
	RtsHighAfterSend   bool          `mapstructure:"rts_high_after_send"`
	RxDuringTx         bool          `mapstructure:"rx_during_tx"`
}

// LoadConfig loads configuration from file
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/modbusbw/")
		v.AddConfigPath("$HOME/.modbusbw")
		v.AddConfigPath(".")
	}

	v.SetDefault("log.level", "info")
	v.SetEnvPrefix("MODBUSBW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to find config file: %w", err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate / Fixups
	for i := range config.Devices {
		dev := &config.Devices[i]
		if dev.Timeout == 0 {
			dev.Timeout = DefaultDeviceTimeout
		}
		fixupSerial(&dev.Serial)
	}
	for i := range config.Simulators {
		for j := range config.Simulators[i].Upstreams {
			fixupSerial(&config.Simulators[i].Upstreams[j].Serial)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks device names, types and slave ids.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for _, dev := range c.Devices {
		if dev.Name == "" {
			return errors.New("device without name")
		}
		if seen[dev.Name] {
			return fmt.Errorf("duplicate device %q", dev.Name)
		}
		seen[dev.Name] = true

		switch dev.Type {
		case "tcp", "rtu-over-tcp":
			if dev.Tcp.Address == "" {
				return fmt.Errorf("device %q: tcp.address is required", dev.Name)
			}
		case "rtu":
			if dev.Serial.Device == "" {
				return fmt.Errorf("device %q: serial.device is required", dev.Name)
			}
		case "local":
		default:
			return fmt.Errorf("device %q: unknown type %q", dev.Name, dev.Type)
		}
		if dev.SlaveID < 0 || dev.SlaveID > maxSlaveID {
			return fmt.Errorf("device %q: slave_id %d out of range", dev.Name, dev.SlaveID)
		}
	}
	return nil
}

// Device returns the device called name. An empty name selects the only
// configured device.
func (c *Config) Device(name string) (*DeviceConfig, error) {
	if name == "" {
		if len(c.Devices) == 1 {
			return &c.Devices[0], nil
		}
		return nil, fmt.Errorf("%d devices configured, select one by name", len(c.Devices))
	}
	for i := range c.Devices {
		if c.Devices[i].Name == name {
			return &c.Devices[i], nil
		}
	}
	return nil, fmt.Errorf("device %q not configured", name)
}

func fixupSerial(s *SerialConfig) {
	s.Parity = strings.ToUpper(s.Parity)
	if s.Timeout == 0 {
		s.Timeout = 500 * time.Millisecond
	}
	if s.RqstPause == 0 {
		s.RqstPause = 100 * time.Millisecond
	}
}
