//go:build linux

package evdev

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"sync"
	"syscall"
	"unsafe"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sys/unix"

	"stickbridge/internal/mapping"
	"stickbridge/internal/poll"
)

type device struct {
	name   string
	path   string
	fd     int
	tr     *translator
	ring   *poll.Ring
	logger *slog.Logger
}

// Drain implements poll.Device.
func (d *device) Drain() []mapping.Sample {
	samples := d.ring.Drain()
	if n := d.ring.TakeDropped(); n > 0 {
		d.logger.Warn("input buffer overflow, oldest samples dropped", "device", d.name, "dropped", n)
	}
	return samples
}

// Source discovers stick-type event nodes by product name.
type Source struct {
	logger *slog.Logger

	mu       sync.Mutex
	found    map[string]string // product name -> node path
	acquired map[string]*device
	closed   bool
}

// Open scans the nodes matching glob and remembers every joystick or gamepad
// by product name. When two nodes report the same name, the first (in path
// order) wins.
func Open(glob string, logger *slog.Logger) (*Source, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if glob == "" {
		glob = DefaultGlob
	}
	paths, err := filepath.Glob(glob)
	if err != nil {
		return nil, fmt.Errorf("scan input devices: %w", err)
	}
	sort.Strings(paths)

	s := &Source{
		logger:   logger,
		found:    make(map[string]string),
		acquired: make(map[string]*device),
	}
	for _, path := range paths {
		name, stick, err := probe(path)
		if err != nil {
			logger.Debug("skipping input node", "path", path, "error", err)
			continue
		}
		if !stick {
			continue
		}
		if prev, dup := s.found[name]; dup {
			logger.Warn("duplicate input device name, keeping first", "device", name, "kept", prev, "skipped", path)
			continue
		}
		s.found[name] = path
		logger.Debug("input device found", "device", name, "path", path)
	}
	return s, nil
}

// Names returns the product names of every stick found, sorted.
func (s *Source) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.found))
	for n := range s.found {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func probe(path string) (name string, stick bool, err error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return "", false, err
	}
	defer unix.Close(fd)

	name, err = deviceName(fd)
	if err != nil {
		return "", false, err
	}
	evBits, err := eventBits(fd, 0, 4)
	if err != nil {
		return "", false, err
	}
	absBits, err := eventBits(fd, evAbs, absCount/8)
	if err != nil {
		return "", false, err
	}
	keyBits, err := eventBits(fd, evKey, keyCount/8)
	if err != nil {
		return "", false, err
	}
	return name, isStick(evBits, absBits, keyBits), nil
}

func ioctlPtr(fd int, req uintptr, p unsafe.Pointer) error {
	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(p)); errno != 0 {
		return errno
	}
	return nil
}

func deviceName(fd int) (string, error) {
	buf := make([]byte, 256)
	if err := ioctlPtr(fd, eviocgname(len(buf)), unsafe.Pointer(&buf[0])); err != nil {
		return "", fmt.Errorf("EVIOCGNAME: %w", err)
	}
	if i := bytes.IndexByte(buf, 0); i >= 0 {
		buf = buf[:i]
	}
	return string(buf), nil
}

func eventBits(fd, ev, size int) ([]byte, error) {
	buf := make([]byte, size)
	if err := ioctlPtr(fd, eviocgbit(ev, size), unsafe.Pointer(&buf[0])); err != nil {
		return nil, fmt.Errorf("EVIOCGBIT(%d): %w", ev, err)
	}
	return buf, nil
}

func absRanges(fd int, absBits []byte) (map[uint16]absInfo, error) {
	out := make(map[uint16]absInfo)
	for code := absX; code <= absRudder; code++ {
		if !testBit(absBits, code) {
			continue
		}
		var info absInfo
		if err := ioctlPtr(fd, eviocgabs(code), unsafe.Pointer(&info)); err != nil {
			return nil, fmt.Errorf("EVIOCGABS(%d): %w", code, err)
		}
		out[uint16(code)] = info
	}
	return out, nil
}

// Acquire opens the named device and starts buffering its samples once Run
// is called. An unknown name yields a *poll.DeviceNotFoundError.
func (s *Source) Acquire(name string, bufferSize int) (poll.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.acquired[name]; ok {
		return d, nil
	}
	path, ok := s.found[name]
	if !ok {
		return nil, &poll.DeviceNotFoundError{Name: name}
	}

	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	tr, err := queryTranslator(fd)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("query %s: %w", path, err)
	}

	d := &device{
		name:   name,
		path:   path,
		fd:     fd,
		tr:     tr,
		ring:   poll.NewRing(bufferSize),
		logger: s.logger,
	}
	s.acquired[name] = d
	s.logger.Info("input device opened", "device", name, "path", path, "axes", len(tr.abs), "buttons", len(tr.buttons))
	return d, nil
}

func queryTranslator(fd int) (*translator, error) {
	absBits, err := eventBits(fd, evAbs, absCount/8)
	if err != nil {
		return nil, err
	}
	keyBits, err := eventBits(fd, evKey, keyCount/8)
	if err != nil {
		return nil, err
	}
	abs, err := absRanges(fd, absBits)
	if err != nil {
		return nil, err
	}
	return newTranslator(abs, keyBits), nil
}

// Inject queues s on an acquired device as if the hardware had produced it.
func (s *Source) Inject(name string, sample mapping.Sample) error {
	s.mu.Lock()
	d, ok := s.acquired[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("inject into %q: %w", name, poll.ErrNotAcquired)
	}
	d.ring.Push(sample)
	return nil
}

func (s *Source) snapshotDevices() []*device {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*device, 0, len(s.acquired))
	for _, d := range s.acquired {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// Run reads every acquired device from a single epoll loop until ctx is done.
// A device error or hangup is returned as *DeviceLostError.
func (s *Source) Run(ctx context.Context) error {
	devices := s.snapshotDevices()
	if len(devices) == 0 {
		return fmt.Errorf("no input devices acquired")
	}

	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return fmt.Errorf("epoll_create1: %w", err)
	}
	defer unix.Close(epfd)

	byFd := make(map[int32]*device, len(devices))
	for _, d := range devices {
		byFd[int32(d.fd)] = d
		event := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(d.fd)}
		if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, d.fd, &event); err != nil {
			return fmt.Errorf("epoll_ctl_add %s: %w", d.path, err)
		}
	}

	const (
		maxEvents   = 32
		waitMs      = 100
		eventsPerRd = 64
	)
	epollEvents := make([]unix.EpollEvent, maxEvents)
	evSize := binary.Size(inputEvent{})
	buf := make([]byte, evSize*eventsPerRd)
	reader := bytes.NewReader(nil)
	var samples []mapping.Sample

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		// Bounded wait so cancellation is noticed without a wakeup fd.
		n, err := unix.EpollWait(epfd, epollEvents, waitMs)
		if err != nil {
			if errors.Is(err, syscall.EINTR) {
				continue
			}
			return fmt.Errorf("epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			d := byFd[epollEvents[i].Fd]
			if d == nil {
				continue
			}
			if epollEvents[i].Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				return &DeviceLostError{Name: d.name, Path: d.path, Err: errors.New("device error/hangup")}
			}

			for {
				nr, err := unix.Read(d.fd, buf)
				if err != nil {
					if errors.Is(err, unix.EAGAIN) || errors.Is(err, syscall.EINTR) {
						break
					}
					return &DeviceLostError{Name: d.name, Path: d.path, Err: err}
				}
				if nr <= 0 {
					break
				}

				reader.Reset(buf[:nr-nr%evSize])
				samples = samples[:0]
				for reader.Len() > 0 {
					var ev inputEvent
					if err := binary.Read(reader, binary.LittleEndian, &ev); err != nil {
						// Skip malformed events
						break
					}
					samples = d.tr.translate(ev, samples)
				}
				for _, smp := range samples {
					d.ring.Push(smp)
				}
				if nr < len(buf) {
					break
				}
			}
		}
	}
}

// Watch reports removal of an acquired device node. It returns nil when ctx
// is done and a *DeviceLostError when a node disappears.
func (s *Source) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create device watcher: %w", err)
	}
	defer watcher.Close()

	dirs := make(map[string]bool)
	byPath := make(map[string]*device)
	for _, d := range s.snapshotDevices() {
		byPath[d.path] = d
		dirs[filepath.Dir(d.path)] = true
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		s.logger.Debug("watching input directory", "dir", dir)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if d, lost := byPath[event.Name]; lost {
				return &DeviceLostError{Name: d.name, Path: d.path, Err: fmt.Errorf("node %s", event.Op)}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("device watcher error", "error", err)
		}
	}
}

// Close releases every acquired device.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	var errs []error
	for _, d := range s.acquired {
		if err := unix.Close(d.fd); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", d.path, err))
		}
	}
	return errors.Join(errs...)
}
