package logic

import "sync/atomic"

// pulseOpen marks the open word as holding a falling-edge timestamp.
// With the flag clear the word is the idle sentinel, so a pulse that opens
// exactly at tick 0 is still told apart from "no pulse".
const pulseOpen = uint64(1) << 32

// The accumulator word holds the completed-pulse count above the low time, so
// one Swap drains a pulse's duration and its count together. 36 bits of
// microseconds cover about 19 hours, well past MaxWindow plus one pulse.
const (
	lowBits  = 36
	lowMask  = uint64(1)<<lowBits - 1
	onePulse = uint64(1) << lowBits
)

// Channel is one monitored line: the edge-side writer state and the
// accumulator the Sampler drains.
//
// Fall, Rise and HandleEdge are the edge path. They may run on another
// goroutine than Drain, never block, never allocate and take no locks.
// Edges for one channel must be delivered in order by a single caller.
type Channel struct {
	id ChannelID

	open      atomic.Uint64 // pulseOpen|start ticks, or 0 when idle
	acc       atomic.Uint64 // pulses<<lowBits | low microseconds
	spurious  atomic.Uint32
	restarted atomic.Uint32
}

// NewChannel creates an idle channel with an empty accumulator.
func NewChannel(id ChannelID) *Channel {
	return &Channel{id: id}
}

// ID returns the channel identifier.
func (c *Channel) ID() ChannelID {
	return c.id
}

// HandleEdge dispatches a transition by direction.
func (c *Channel) HandleEdge(kind EdgeKind, at Ticks) {
	if kind == Falling {
		c.Fall(at)
		return
	}
	c.Rise(at)
}

// Fall records the start of a low pulse. A second falling edge without a
// rising edge in between replaces the start time.
func (c *Channel) Fall(at Ticks) {
	if prev := c.open.Swap(pulseOpen | uint64(at)); prev&pulseOpen != 0 {
		c.restarted.Add(1)
	}
}

// Rise closes the open pulse and adds its length to the accumulator. A
// rising edge with no open pulse is counted and otherwise ignored.
//
// The pulse and its duration are added with a single atomic add, so a Drain
// racing with Rise sees either all of it or none of it.
func (c *Channel) Rise(at Ticks) {
	prev := c.open.Swap(0)
	if prev&pulseOpen == 0 {
		c.spurious.Add(1)
		return
	}
	start := Ticks(uint32(prev))
	c.acc.Add(onePulse | uint64(at.Since(start)))
}

// Open reports whether a low pulse is in progress.
func (c *Channel) Open() bool {
	return c.open.Load()&pulseOpen != 0
}

// Drain fetches and clears the accumulator and counters. An open pulse is
// left open and is attributed to the window in which it closes.
//
// LowMicros and Pulses always describe the same set of pulses. Spurious and
// Restarted are swapped separately; an edge racing with Drain may be counted
// in the next window instead.
func (c *Channel) Drain() Drained {
	acc := c.acc.Swap(0)
	return Drained{
		LowMicros: acc & lowMask,
		Pulses:    uint32(acc >> lowBits),
		Spurious:  c.spurious.Swap(0),
		Restarted: c.restarted.Swap(0),
	}
}
