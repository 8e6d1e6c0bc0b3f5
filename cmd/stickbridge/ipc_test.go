package main

import (
	"context"
	"encoding/json"
	"net"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func startIPC(t *testing.T, events chan Event) string {
	t.Helper()
	socket := filepath.Join(t.TempDir(), "sb.sock")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runIPCServer(ctx, socket, events, quietLogger()) }()

	waitUntil(t, time.Second, func() bool {
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return false
		}
		conn.Close()
		return true
	}, "IPC socket not listening")

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("runIPCServer = %v", err)
			}
		case <-time.After(time.Second):
			t.Errorf("IPC server did not stop")
		}
	})
	return socket
}

func TestIPCQueuesEvents(t *testing.T) {
	events := make(chan Event, 4)
	socket := startIPC(t, events)

	if _, err := SendIPCEvent(socket, SetPolling{Enabled: false}); err != nil {
		t.Fatalf("SendIPCEvent: %v", err)
	}
	if _, err := SendIPCEvent(socket, InjectSample{Device: "Stick1", Input: "Y", Value: 0}); err != nil {
		t.Fatalf("SendIPCEvent: %v", err)
	}

	want := []Event{SetPolling{Enabled: false}, InjectSample{Device: "Stick1", Input: "Y", Value: 0}}
	for _, w := range want {
		select {
		case got := <-events:
			if got != w {
				t.Fatalf("event = %#v, want %#v", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %#v", w)
		}
	}
}

func TestIPCSnapshotRoundTrip(t *testing.T) {
	events := make(chan Event, 4)
	socket := startIPC(t, events)

	// Stand-in for the daemon loop.
	go func() {
		for ev := range events {
			if req, ok := ev.(RequestSnapshot); ok {
				req.Reply <- Snapshot{Polling: true, Inputs: []string{"Stick1"}}
			}
		}
	}()
	t.Cleanup(func() { close(events) })

	data, err := SendIPCEvent(socket, RequestSnapshot{})
	if err != nil {
		t.Fatalf("SendIPCEvent: %v", err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("decode snapshot %s: %v", data, err)
	}
	if !snap.Polling || len(snap.Inputs) != 1 || snap.Inputs[0] != "Stick1" {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestIPCReportsErrors(t *testing.T) {
	events := make(chan Event) // unbuffered and never read: queue is always full
	socket := startIPC(t, events)

	_, err := SendIPCEvent(socket, SetPolling{Enabled: true})
	if err == nil || !strings.Contains(err.Error(), "event queue full") {
		t.Fatalf("err = %v, want event queue full", err)
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("{\"type\":\"warp\"}\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	var resp IPCResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "error" || !strings.Contains(resp.Error, "unknown event type") {
		t.Fatalf("response = %+v", resp)
	}
}
