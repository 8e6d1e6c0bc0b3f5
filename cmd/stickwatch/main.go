package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

// frame is the state websocket envelope.
type frame struct {
	Type string          `json:"type"`
	Ts   *time.Time      `json:"ts,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

type axisSetData struct {
	Device string             `json:"device"`
	Set    string             `json:"set"`
	Values map[string]float64 `json:"values"`
}

type buttonData struct {
	Device  string `json:"device"`
	Button  string `json:"button"`
	Pressed bool   `json:"pressed"`
}

type pollingData struct {
	Enabled bool `json:"enabled"`
}

type stateInit struct {
	Polling bool     `json:"polling"`
	Inputs  []string `json:"inputs"`
	Outputs []struct {
		ID   string `json:"id"`
		Sets []struct {
			Set    string    `json:"set"`
			Names  []string  `json:"names"`
			Values []float64 `json:"values"`
		} `json:"sets"`
		Buttons []struct {
			Name    string `json:"name"`
			Pressed bool   `json:"pressed"`
		} `json:"buttons"`
	} `json:"outputs"`
}

func main() {
	var (
		wsURL = flag.String("ws", "ws://127.0.0.1:3010/ws", "stickbridge state websocket URL")
		raw   = flag.Bool("raw", false, "Print frames as received")
	)
	flag.Parse()

	u, err := url.Parse(*wsURL)
	if err != nil {
		log.Fatalf("invalid websocket URL: %v", err)
	}

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

	d := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	log.Printf("connecting to %s...", u.String())
	conn, _, err := d.Dial(u.String(), nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()

	log.Printf("connected! (press Ctrl+C to exit)")

	// Pongs and the final close frame come from different goroutines.
	var writeMu sync.Mutex

	// The daemon pings every 20s; each ping extends the read deadline.
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("websocket error: %v", err)
				}
				return
			}
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))

			switch messageType {
			case websocket.TextMessage:
				if *raw {
					fmt.Println(string(message))
					continue
				}
				handleTextMessage(message)
			case websocket.BinaryMessage:
				fmt.Printf("[BINARY] %d bytes\n", len(message))
			}
		}
	}()

	select {
	case <-sigc:
		log.Printf("shutting down...")
		writeMu.Lock()
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		writeMu.Unlock()
		if err != nil {
			log.Printf("error closing connection: %v", err)
		}
	case <-done:
		log.Printf("connection closed")
	}
}

// handleTextMessage prints one state frame in a compact form.
func handleTextMessage(message []byte) {
	var f frame
	if err := json.Unmarshal(message, &f); err != nil {
		fmt.Printf("[TEXT] %s\n", string(message))
		return
	}

	switch f.Type {
	case "state_init":
		var s stateInit
		if err := json.Unmarshal(f.Data, &s); err != nil {
			break
		}
		fmt.Printf("[INIT] polling=%t inputs=%s\n", s.Polling, strings.Join(s.Inputs, ","))
		for _, o := range s.Outputs {
			for _, set := range o.Sets {
				values := make(map[string]float64, len(set.Names))
				for i, n := range set.Names {
					if i < len(set.Values) {
						values[n] = set.Values[i]
					}
				}
				fmt.Printf("[AXIS] %s/%s %s\n", o.ID, set.Set, formatValues(values))
			}
			for _, b := range o.Buttons {
				fmt.Printf("[BUTTON] %s/%s %s\n", o.ID, b.Name, pressedText(b.Pressed))
			}
		}
		return

	case "axis_set":
		var a axisSetData
		if err := json.Unmarshal(f.Data, &a); err != nil {
			break
		}
		fmt.Printf("[AXIS] %s/%s %s\n", a.Device, a.Set, formatValues(a.Values))
		return

	case "button":
		var b buttonData
		if err := json.Unmarshal(f.Data, &b); err != nil {
			break
		}
		fmt.Printf("[BUTTON] %s/%s %s\n", b.Device, b.Button, pressedText(b.Pressed))
		return

	case "polling_changed":
		var p pollingData
		if err := json.Unmarshal(f.Data, &p); err != nil {
			break
		}
		fmt.Printf("[POLLING] %s\n", map[bool]string{true: "ON", false: "OFF"}[p.Enabled])
		return
	}

	var pretty map[string]any
	if err := json.Unmarshal(message, &pretty); err == nil {
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("[FRAME]\n%s\n\n", string(out))
		return
	}
	fmt.Printf("[TEXT] %s\n", string(message))
}

// formatValues renders "X=+0.500 Y=-1.000" with names sorted.
func formatValues(values map[string]float64) string {
	names := make([]string, 0, len(values))
	for n := range values {
		names = append(names, n)
	}
	sort.Strings(names)

	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = fmt.Sprintf("%s=%+.3f", n, values[n])
	}
	return strings.Join(parts, " ")
}

func pressedText(p bool) string {
	if p {
		return "PRESSED"
	}
	return "released"
}
