package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"
)

// ============================================================================
// stickctl - Command-line IPC Client
// ============================================================================
// Sends commands to the stickbridge daemon over its unix socket.
//
// Usage:
//   stickctl enable
//   stickctl disable
//   stickctl inject Stick1 X 65535
//   stickctl snapshot
//
// Options:
//   -socket PATH    Unix domain socket path (default: /tmp/stickbridge.sock)
// ============================================================================

const defaultSocket = "/tmp/stickbridge.sock"

// Event payloads (duplicated from the daemon for a standalone binary)

type setPolling struct {
	Enabled bool `json:"enabled"`
}

type injectSample struct {
	Device string `json:"device"`
	Input  string `json:"input"`
	Value  int32  `json:"value"`
}

// eventEnvelope wraps events for JSON
type eventEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// ipcResponse is the daemon's reply
type ipcResponse struct {
	Status string          `json:"status"`
	Error  string          `json:"error,omitempty"`
	Data   json.RawMessage `json:"data,omitempty"`
}

func main() {
	socketPath := defaultSocket

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	if args[0] == "-socket" || args[0] == "--socket" {
		if len(args) < 2 {
			fmt.Fprintf(os.Stderr, "error: -socket requires an argument\n")
			os.Exit(1)
		}
		socketPath = args[1]
		args = args[2:]
	}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	env, err := parseCommand(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		printUsage()
		os.Exit(1)
	}
	if env == nil {
		printUsage()
		return
	}

	resp, err := send(socketPath, *env)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if len(resp.Data) == 0 {
		fmt.Println("ok")
		return
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, resp.Data, "", "  "); err != nil {
		fmt.Println(string(resp.Data))
		return
	}
	fmt.Println(pretty.String())
}

// parseCommand turns command-line words into an event. A nil envelope with a
// nil error means help was requested.
func parseCommand(args []string) (*eventEnvelope, error) {
	switch args[0] {
	case "enable", "on":
		return &eventEnvelope{Type: "set_polling", Data: setPolling{Enabled: true}}, nil

	case "disable", "off":
		return &eventEnvelope{Type: "set_polling", Data: setPolling{Enabled: false}}, nil

	case "inject":
		if len(args) != 4 {
			return nil, fmt.Errorf("inject requires <device> <input> <value>")
		}
		v, err := strconv.ParseInt(args[3], 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", args[3], err)
		}
		return &eventEnvelope{Type: "inject_sample", Data: injectSample{Device: args[1], Input: args[2], Value: int32(v)}}, nil

	case "snapshot", "status":
		return &eventEnvelope{Type: "request_snapshot"}, nil

	case "help", "-h", "--help":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown command: %s", args[0])
	}
}

func send(socketPath string, env eventEnvelope) (ipcResponse, error) {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("connect to %s: %w", socketPath, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(5 * time.Second))

	data, err := json.Marshal(env)
	if err != nil {
		return ipcResponse{}, fmt.Errorf("marshal %s: %w", env.Type, err)
	}

	// Line-delimited JSON
	if _, err := fmt.Fprintf(conn, "%s\n", data); err != nil {
		return ipcResponse{}, fmt.Errorf("send %s: %w", env.Type, err)
	}

	var resp ipcResponse
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return ipcResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if resp.Status == "error" {
		return ipcResponse{}, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return resp, nil
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `stickctl - Control the stickbridge daemon via IPC

Usage:
  stickctl [options] <command> [args]

Options:
  -socket PATH    Unix domain socket path (default: %s)

Commands:
  enable, on                        Start polling input devices
  disable, off                      Stop polling (outputs keep their last state)
  inject <device> <input> <value>   Queue a raw sample, e.g. inject Stick1 Buttons0 128
  snapshot, status                  Print input devices, output state and counters
  help, -h, --help                  Show this help message

Inputs are offset names: X, Y, Z, RotationX, RotationY, RotationZ, Sliders0,
Sliders1, PointOfViewControllers0..3, Buttons0..127.

Examples:
  stickctl disable
  stickctl inject Stick1 X 65535
  stickctl -socket /run/stickbridge.sock snapshot
`, defaultSocket)
}
