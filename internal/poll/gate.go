package poll

import "sync/atomic"

// Gate is the "sinks ready" switch. The loop driving a Poller only ticks it
// while the gate is open.
type Gate struct {
	open atomic.Bool
}

func NewGate(open bool) *Gate {
	g := &Gate{}
	g.open.Store(open)
	return g
}

func (g *Gate) IsOpen() bool { return g.open.Load() }

// Set opens or closes the gate and reports whether that changed anything.
func (g *Gate) Set(open bool) bool {
	return g.open.Swap(open) != open
}
