// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.
package tcp

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/ffutop/modbus-bitwriter/modbus"
)

// serveOnce accepts connections and answers every request with reply(request).
func serveOnce(t *testing.T, reply func(req []byte) []byte) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go func(c net.Conn) {
				defer c.Close()
				for {
					req, err := readFrame(c)
					if err != nil {
						return
					}
					if resp := reply(req); resp != nil {
						c.Write(resp)
					}
				}
			}(conn)
		}
	}()
	return listener.Addr().String()
}

func TestClient_MaskWrite(t *testing.T) {
	requests := make(chan []byte, 2)
	addr := serveOnce(t, func(req []byte) []byte {
		requests <- append([]byte(nil), req...)
		return req // echo
	})

	client := NewClient(addr)
	client.Timeout = time.Second

	pdu := modbus.ProtocolDataUnit{FunctionCode: 0x16, Data: []byte{0x00, 0x04, 0x00, 0xF2, 0x00, 0x25}}
	resp, err := client.Send(context.Background(), 7, pdu)
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	want := []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x08, 0x07, 0x16, 0x00, 0x04, 0x00, 0xF2, 0x00, 0x25}
	if got := <-requests; !bytes.Equal(got, want) {
		t.Errorf("request mismatch\nwant: % X\ngot:  % X", want, got)
	}
	if resp.FunctionCode != 0x16 || !bytes.Equal(resp.Data, pdu.Data) {
		t.Errorf("unexpected response %+v", resp)
	}

	// transaction ids increase
	if _, err := client.Send(context.Background(), 7, pdu); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if tid := binary.BigEndian.Uint16(<-requests); tid != 2 {
		t.Errorf("expected transaction id 2, got %d", tid)
	}
}

func TestClient_Exception(t *testing.T) {
	addr := serveOnce(t, func(req []byte) []byte {
		resp := append([]byte(nil), req[:7]...)
		binary.BigEndian.PutUint16(resp[4:], 3)
		return append(resp, 0x96, 0x02)
	})

	client := NewClient(addr)
	resp, err := client.Send(context.Background(), 1, modbus.ProtocolDataUnit{FunctionCode: 0x16, Data: []byte{0, 4, 0xFF, 0xF0, 0, 5}})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if !resp.IsException() || !bytes.Equal(resp.Data, []byte{0x02}) {
		t.Errorf("expected exception 0x02, got %+v", resp)
	}
}

func TestClient_Timeout(t *testing.T) {
	addr := serveOnce(t, func([]byte) []byte { return nil })

	client := NewClient(addr)
	client.Timeout = 100 * time.Millisecond

	pdu := modbus.ProtocolDataUnit{FunctionCode: 0x16, Data: []byte{0, 4, 0xFF, 0xF0, 0, 5}}
	start := time.Now()
	_, err := client.Send(context.Background(), 1, pdu)
	var netErr net.Error
	if !errors.As(err, &netErr) || !netErr.Timeout() {
		t.Errorf("expected timeout error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("timeout took %v", time.Since(start))
	}
}

func TestClient_ContextDeadline(t *testing.T) {
	addr := serveOnce(t, func([]byte) []byte { return nil })

	client := NewClient(addr) // default 10s
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Send(ctx, 1, modbus.ProtocolDataUnit{FunctionCode: 0x16, Data: []byte{0, 4, 0xFF, 0xF0, 0, 5}})
	if err == nil {
		t.Fatal("expected error")
	}
	if time.Since(start) > time.Second {
		t.Errorf("ctx deadline ignored, took %v", time.Since(start))
	}
}

func TestClient_MalformedResponse(t *testing.T) {
	tests := []struct {
		name  string
		reply func(req []byte) []byte
	}{
		{"short header", func([]byte) []byte { return []byte{0x00, 0x01, 0x00} }},
		{"wrong transaction id", func(req []byte) []byte {
			resp := append([]byte(nil), req...)
			resp[1]++
			return resp
		}},
		{"wrong unit id", func(req []byte) []byte {
			resp := append([]byte(nil), req...)
			resp[6]++
			return resp
		}},
		{"bad length", func(req []byte) []byte {
			resp := append([]byte(nil), req...)
			binary.BigEndian.PutUint16(resp[4:], 1)
			return resp
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := serveOnce(t, tt.reply)
			client := NewClient(addr)
			client.Timeout = 200 * time.Millisecond

			_, err := client.Send(context.Background(), 1, modbus.ProtocolDataUnit{FunctionCode: 0x16, Data: []byte{0, 4, 0xFF, 0xF0, 0, 5}})
			if err == nil {
				t.Error("expected error on malformed response")
			}
		})
	}
}

func TestClient_ConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := l.Addr().String()
	l.Close()

	client := NewClient(addr)
	client.Timeout = 200 * time.Millisecond
	if _, err := client.Send(context.Background(), 1, modbus.ProtocolDataUnit{FunctionCode: 0x03, Data: []byte{0, 0, 0, 1}}); err == nil {
		t.Error("expected connection error")
	}
}

func TestADU_EncodeDecode(t *testing.T) {
	adu := &ApplicationDataUnit{TransactionID: 0x1234, SlaveID: 0x11, Pdu: modbus.ProtocolDataUnit{FunctionCode: 0x16, Data: []byte{0, 4, 0, 0xF2, 0, 0x25}}}
	raw, err := adu.Encode()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x12, 0x34, 0x00, 0x00, 0x00, 0x08, 0x11, 0x16, 0x00, 0x04, 0x00, 0xF2, 0x00, 0x25}
	if !bytes.Equal(raw, want) {
		t.Fatalf("encode\nwant: % X\ngot:  % X", want, raw)
	}

	decoded, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if err := adu.Verify(decoded); err != nil {
		t.Error(err)
	}
	if !bytes.Equal(decoded.Pdu.Data, adu.Pdu.Data) {
		t.Errorf("data mismatch: % X", decoded.Pdu.Data)
	}

	if _, err := Decode(raw[:7]); err == nil {
		t.Error("expected error for short frame")
	}
}
