package main

import "time"

const version = "0.3.0"

// Input sources
const (
	inputSourceEvdev  = "evdev"
	inputSourceMemory = "memory"
)

// Defaults shared by DefaultConfig and the usage text.
const (
	defaultUpdateHz      = 90
	maxUpdateHz          = 1000
	defaultIPCSocket     = "/tmp/stickbridge.sock"
	defaultStateWSPort   = 3010
	defaultStateWSPath   = "/ws"
	defaultEventQueueLen = 64
	defaultBroadcastLen  = 256
	maxBufferSize        = 4096
)

// snapshotTimeout bounds how long IPC and websocket handlers wait for the
// daemon loop to answer a snapshot request.
const snapshotTimeout = time.Second
