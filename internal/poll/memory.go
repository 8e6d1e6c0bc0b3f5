package poll

import (
	"fmt"
	"sync"

	"stickbridge/internal/mapping"
)

// Ring is a bounded sample buffer. When full, the oldest sample is dropped.
// It is safe for one writer and one reader on different goroutines.
type Ring struct {
	mu      sync.Mutex
	buf     []mapping.Sample
	head    int
	count   int
	dropped uint64
}

func NewRing(size int) *Ring {
	if size <= 0 {
		size = BufferSize
	}
	return &Ring{buf: make([]mapping.Sample, size)}
}

// Push appends s, evicting the oldest sample when the ring is full.
func (r *Ring) Push(s mapping.Sample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == len(r.buf) {
		r.head = (r.head + 1) % len(r.buf)
		r.count--
		r.dropped++
	}
	r.buf[(r.head+r.count)%len(r.buf)] = s
	r.count++
}

// Drain returns all buffered samples in arrival order and empties the ring.
func (r *Ring) Drain() []mapping.Sample {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return nil
	}
	out := make([]mapping.Sample, r.count)
	for i := range out {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	r.head, r.count = 0, 0
	return out
}

// TakeDropped returns how many samples were evicted since the last call.
func (r *Ring) TakeDropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.dropped
	r.dropped = 0
	return n
}

// MemorySource is an in-process Source and Injector. Devices exist once
// announced with Add and receive samples only through Inject.
type MemorySource struct {
	mu       sync.Mutex
	present  map[string]bool
	acquired map[string]*Ring
}

// NewMemorySource creates a source with the given devices present.
func NewMemorySource(names ...string) *MemorySource {
	m := &MemorySource{
		present:  make(map[string]bool),
		acquired: make(map[string]*Ring),
	}
	for _, n := range names {
		m.present[n] = true
	}
	return m
}

// Add makes a device present.
func (m *MemorySource) Add(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.present[name] = true
}

func (m *MemorySource) Acquire(name string, bufferSize int) (Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.present[name] {
		return nil, &DeviceNotFoundError{Name: name}
	}
	r, ok := m.acquired[name]
	if !ok {
		r = NewRing(bufferSize)
		m.acquired[name] = r
	}
	return r, nil
}

// Inject queues s on an acquired device.
func (m *MemorySource) Inject(name string, s mapping.Sample) error {
	m.mu.Lock()
	r, ok := m.acquired[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("inject into %q: %w", name, ErrNotAcquired)
	}
	r.Push(s)
	return nil
}
