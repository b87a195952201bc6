package test

import (
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/goburrow/serial"
	"github.com/tbrandon/mbserver"
)

const (
	simTCPPort    = 33502
	simRTUTCPPort = 33505
	mbserverPort  = 33506
	pts0          = "/tmp/pts0"
	pts1          = "/tmp/pts1"
)

const benchConfig = `
log:
  level: debug
simulators:
  - name: bench
    upstreams:
      - type: tcp
        tcp:
          address: "127.0.0.1:%[1]d"
      - type: rtu-over-tcp
        tcp:
          address: "127.0.0.1:%[2]d"
    devices:
      - name: local-device
        slave_ids: "1"
        local:
          persistence:
            type: memory
devices:
  - name: sim-tcp
    type: tcp
    slave_id: 1
    timeout: 1s
    tcp:
      address: "127.0.0.1:%[1]d"
  - name: sim-rtu-over-tcp
    type: rtu-over-tcp
    slave_id: 1
    timeout: 1s
    tcp:
      address: "127.0.0.1:%[2]d"
  - name: sim-unknown-slave
    type: tcp
    slave_id: 9
    timeout: 1s
    tcp:
      address: "127.0.0.1:%[1]d"
  - name: plc
    type: tcp
    slave_id: 1
    timeout: 1s
    tcp:
      address: "127.0.0.1:%[3]d"
  - name: plc-rtu
    type: rtu
    slave_id: 1
    timeout: 1s
    serial:
      device: "%[4]s"
      baud_rate: 19200
      data_bits: 8
      parity: "N"
      stop_bits: 1
      timeout: 1s
`

func startBench(t *testing.T) string {
	t.Helper()
	configFile := writeConfig(t, fmt.Sprintf(benchConfig, simTCPPort, simRTUTCPPort, mbserverPort, pts0))
	startSimulator(t, configFile, localAddr(simTCPPort))
	waitForPort(t, localAddr(simRTUTCPPort))
	return configFile
}

func TestWrite_TCP(t *testing.T) {
	configFile := startBench(t)
	client := newTCPClient(t, localAddr(simTCPPort))

	code, out := runWrite(t, configFile, "-d", "sim-tcp", "HR1.0=1", "HR1.3=true", "HR2.15=on")
	if code == 0 {
		t.Fatalf("expected failure for value 'on', got success:\n%s", out)
	}

	code, out = runWrite(t, configFile, "-d", "sim-tcp", "HR1.0=1", "HR1.3=true", "HR2.15=1")
	if code != 0 {
		t.Fatalf("write failed with code %d:\n%s", code, out)
	}
	if got := readRegister(t, client, 0); got != 0x0009 {
		t.Errorf("register 0 = 0x%04X, want 0x0009", got)
	}
	if got := readRegister(t, client, 1); got != 0x8000 {
		t.Errorf("register 1 = 0x%04X, want 0x8000", got)
	}
}

// TestWrite_PreservesOtherBits checks that only the addressed bits change.
func TestWrite_PreservesOtherBits(t *testing.T) {
	configFile := startBench(t)
	client := newTCPClient(t, localAddr(simTCPPort))

	if _, err := client.WriteSingleRegister(5, 0xA5A5); err != nil {
		t.Fatalf("WriteSingleRegister failed: %v", err)
	}
	code, out := runWrite(t, configFile, "-d", "sim-rtu-over-tcp", "HR6.0=0", "HR6.1=1", "HR6.15=false")
	if code != 0 {
		t.Fatalf("write failed with code %d:\n%s", code, out)
	}
	if got := readRegister(t, client, 5); got != 0x25A6 {
		t.Errorf("register 5 = 0x%04X, want 0x25A6", got)
	}
}

func TestWrite_NoRoute(t *testing.T) {
	configFile := startBench(t)

	code, out := runWrite(t, configFile, "-d", "sim-unknown-slave", "HR1.0=1")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d:\n%s", code, out)
	}
	if !strings.Contains(out, "0x0A") {
		t.Errorf("expected gateway path unavailable exception in output:\n%s", out)
	}
}

// TestWrite_DeviceException writes to a slave without function 0x16.
func TestWrite_DeviceException(t *testing.T) {
	server := mbserver.NewServer()
	if err := server.ListenTCP(localAddr(mbserverPort)); err != nil {
		t.Fatalf("failed to start mbserver: %v", err)
	}
	defer server.Close()
	configFile := writeConfig(t, fmt.Sprintf(benchConfig, simTCPPort, simRTUTCPPort, mbserverPort, pts0))

	code, out := runWrite(t, configFile, "-d", "plc", "HR1.0=1")
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d:\n%s", code, out)
	}
	if !strings.Contains(out, "0x01") || !strings.Contains(out, "Bad") {
		t.Errorf("expected illegal function exception in output:\n%s", out)
	}
}

// TestWrite_RTU needs a virtual serial pair, e.g.
// socat pty,raw,echo=0,link=/tmp/pts0 pty,raw,echo=0,link=/tmp/pts1
func TestWrite_RTU(t *testing.T) {
	for _, p := range []string{pts0, pts1} {
		if _, err := os.Stat(p); err != nil {
			t.Skipf("virtual serial port %s not available", p)
		}
	}

	server := mbserver.NewServer()
	if err := server.ListenRTU(&serial.Config{Address: pts1, BaudRate: 19200, DataBits: 8, Parity: "N", StopBits: 1}); err != nil {
		t.Fatalf("failed to start RTU slave: %v", err)
	}
	defer server.Close()
	configFile := writeConfig(t, fmt.Sprintf(benchConfig, simTCPPort, simRTUTCPPort, mbserverPort, pts0))

	code, out := runWrite(t, configFile, "-d", "plc-rtu", "HR1.0=1")
	if code != 1 || !strings.Contains(out, "0x01") {
		t.Errorf("expected illegal function exception over RTU, got code %d:\n%s", code, out)
	}
}
