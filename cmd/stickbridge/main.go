package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"stickbridge/internal/evdev"
	"stickbridge/internal/mapping"
	"stickbridge/internal/output"
	"stickbridge/internal/poll"
)

func printVersion() {
	fmt.Printf("stickbridge v%s\n", version)
	fmt.Println("Maps joystick, throttle and pedal input onto named output devices")
}

func printUsage() {
	printVersion()
	fmt.Println()
	fmt.Println("USAGE:")
	fmt.Println("  stickbridge [OPTIONS]")
	fmt.Println()
	fmt.Println("DESCRIPTION:")
	fmt.Println("  Reads raw axes, buttons and POV hats from named input devices, converts")
	fmt.Println("  them through a rule set, and publishes the resulting output device")
	fmt.Println("  state (axis sets and buttons) over a websocket.")
	fmt.Println()
	fmt.Println("OPTIONS:")
	fmt.Println("  -config string")
	fmt.Println("        YAML configuration file (default: built-in defaults)")
	fmt.Println()
	fmt.Println("  -mappings string")
	fmt.Println("        Rule file (.yaml, .yml, .toml or .xml); overrides mappings_file and inline devices")
	fmt.Println()
	fmt.Println("  -input-source string")
	fmt.Printf("        Input source: %s|%s (default %q)\n", inputSourceEvdev, inputSourceMemory, inputSourceEvdev)
	fmt.Println()
	fmt.Println("  -update-hz int")
	fmt.Printf("        Poll loop frequency in Hz (default %d)\n", defaultUpdateHz)
	fmt.Println()
	fmt.Println("  -ipc-socket string")
	fmt.Printf("        Unix domain socket path for IPC (default %q)\n", defaultIPCSocket)
	fmt.Println()
	fmt.Println("  -ws-port int")
	fmt.Printf("        State websocket HTTP port (default %d)\n", defaultStateWSPort)
	fmt.Println()
	fmt.Println("  -log-level string")
	fmt.Println("        Log level: error, warn, info, debug (default \"info\")")
	fmt.Println()
	fmt.Println("  -version")
	fmt.Println("        Print version and exit")
	fmt.Println()
	fmt.Println("  -help")
	fmt.Println("        Print this help message")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Run with a config file")
	fmt.Println("  stickbridge -config ~/.config/stickbridge/config.yaml")
	fmt.Println()
	fmt.Println("  # Try a rule file without hardware, feeding samples with stickctl")
	fmt.Println("  stickbridge -config config.yaml -input-source memory -log-level debug")
	fmt.Println()
	fmt.Println("NOTES:")
	fmt.Println("  - evdev input needs read access to /dev/input/event* (root or the 'input' group)")
	fmt.Println("  - Input devices are matched by product name; all must be present at startup")
	fmt.Println()
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-version" || arg == "--version" {
			printVersion()
			return
		}
		if arg == "-help" || arg == "--help" || arg == "-h" {
			printUsage()
			return
		}
	}

	var (
		configPath   = flag.String("config", "", "YAML configuration file")
		mappingsFile = flag.String("mappings", "", "Rule file (.yaml, .yml, .toml or .xml)")
		inputSource  = flag.String("input-source", inputSourceEvdev, "Input source: evdev|memory")
		updateHz     = flag.Int("update-hz", defaultUpdateHz, "Poll loop frequency in Hz")
		ipcSocket    = flag.String("ipc-socket", defaultIPCSocket, "Unix domain socket path for IPC")
		wsPort       = flag.Int("ws-port", defaultStateWSPort, "State websocket HTTP port")
		logLevelStr  = flag.String("log-level", string(LogLevelInfo), "Log level: error, warn, info, debug")
		_            = flag.Bool("version", false, "Print version and exit")
		_            = flag.Bool("help", false, "Print help message")
	)

	flag.Usage = printUsage
	flag.Parse()

	cfg := DefaultConfig()
	if *configPath != "" {
		loaded, err := LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	var overrides FlagOverrides
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mappings":
			overrides.MappingsFile = mappingsFile
		case "input-source":
			overrides.InputSource = inputSource
		case "update-hz":
			overrides.UpdateHz = updateHz
		case "ipc-socket":
			overrides.IPCSocketPath = ipcSocket
		case "ws-port":
			overrides.WSPort = wsPort
		case "log-level":
			overrides.LogLevel = logLevelStr
		}
	})
	overrides.Apply(&cfg)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	logLevel, _ := parseLogLevel(cfg.Logging.Level)
	logger := setupLogger(logLevel)
	slog.SetDefault(logger)

	logger.Debug("starting stickbridge", "version", version)
	logger.Debug("configuration",
		"config", *configPath,
		"input_source", cfg.Input.Source,
		"device_glob", cfg.Input.DeviceGlob,
		"buffer_size", cfg.Input.BufferSize,
		"mappings_file", cfg.MappingsFile,
		"inline_devices", len(cfg.Devices),
		"outputs", len(cfg.Outputs),
		"update_hz", cfg.Poll.UpdateHz,
		"axis_dispatch", cfg.Poll.AxisDispatch,
		"start_enabled", cfg.Poll.StartEnabled,
		"ipc_socket", cfg.IPC.SocketPath,
		"state_ws_enabled", cfg.StateWS.Enabled,
		"state_ws_port", cfg.StateWS.Port,
		"state_ws_path", cfg.StateWS.Path,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("stickbridge stopped", "error", err)
		var cfgErr *mapping.ConfigurationError
		var notFound *poll.DeviceNotFoundError
		switch {
		case errors.As(err, &cfgErr):
			logger.Error("check the mapping rules", "tip", "device, kind and input are named in the error")
		case errors.As(err, &notFound):
			logger.Error("input device not present", "device", notFound.Name, "tip", "run as root or add user to 'input' group")
		}
		os.Exit(1)
	}
	logger.Info("stickbridge stopped")
}

// run wires the pipeline and blocks until ctx is canceled or a component
// fails: rules, resolve, output registry, callbacks, input source, poller,
// then the daemon loop, IPC, state websocket and device reader.
func run(ctx context.Context, cfg Config, logger *slog.Logger) error {
	rs, err := cfg.RuleSet()
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	resolved, err := mapping.Resolve(rs)
	if err != nil {
		return err
	}
	logger.Info("rules resolved", "inputs", resolved.Devices(), "outputs", resolved.Mapped())

	registry, err := output.Build(cfg.Outputs, resolved, cfg.AxisDispatch())
	if err != nil {
		return fmt.Errorf("build output devices: %w", err)
	}
	for _, l := range cfg.Outputs {
		if !resolved.IsMapped(l.Name) {
			logger.Warn("output layout has no rules, skipping", "output", l.Name)
		}
	}
	for _, id := range registry.IDs() {
		d, _ := registry.Lookup(id)
		logger.Info("output device ready", "output", id, "sets", d.SetNames(), "buttons", d.ButtonNames(), "axis_dispatch", d.Policy().String())
	}

	var broadcasts chan StateBroadcast
	if cfg.StateWS.Enabled {
		broadcasts = make(chan StateBroadcast, defaultBroadcastLen)
	}
	if err := registerCallbacks(registry, broadcasts, logger); err != nil {
		return err
	}

	var (
		source   poll.Source
		injector poll.Injector
		reader   *evdev.Source
	)
	switch cfg.Input.Source {
	case inputSourceMemory:
		mem := poll.NewMemorySource(resolved.Devices()...)
		source, injector = mem, mem
		logger.Info("using in-memory input source", "devices", resolved.Devices())
	default:
		reader, err = evdev.Open(cfg.Input.DeviceGlob, logger)
		if err != nil {
			return fmt.Errorf("open input devices: %w", err)
		}
		defer reader.Close()
		logger.Info("input devices found", "devices", reader.Names())
		source, injector = reader, reader
	}

	poller, err := poll.New(resolved, registry, source, logger, poll.WithBufferSize(cfg.Input.BufferSize))
	if err != nil {
		return err
	}

	events := make(chan Event, defaultEventQueueLen)
	gate := poll.NewGate(cfg.Poll.StartEnabled)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runDaemon(gctx, events, daemonDeps{
			poller:     poller,
			registry:   registry,
			gate:       gate,
			injector:   injector,
			broadcasts: broadcasts,
		}, cfg.Poll.UpdateHz, logger)
	})

	g.Go(func() error {
		return runIPCServer(gctx, cfg.IPC.SocketPath, events, logger)
	})

	if cfg.StateWS.Enabled {
		srv := NewServer(logger, events, ServerConfig{})
		mux := http.NewServeMux()
		srv.Register(mux, cfg.StateWS.Path)

		g.Go(func() error {
			srv.Hub().Run(gctx)
			return nil
		})
		g.Go(func() error {
			RunBroadcaster(gctx, srv.Hub(), broadcasts, logger)
			return nil
		})
		g.Go(func() error {
			return runHTTPServer(gctx, cfg.StateWS.Port, mux, logger)
		})
	}

	if reader != nil {
		g.Go(func() error {
			return reader.Run(gctx)
		})
		g.Go(func() error {
			return reader.Watch(gctx)
		})
	}

	return g.Wait()
}
