package gpio

import (
	"errors"
	"sync"
	"time"

	"github.com/sweeney/ppd42-sensor/internal/logic"
)

// FakeSource is a test double that delivers scripted edges synchronously.
type FakeSource struct {
	mu      sync.Mutex
	handler Handler

	// PM10Level and PM25Level are returned by Levels.
	PM10Level bool
	PM25Level bool

	// StartError, if set, will be returned by Start.
	StartError error

	// LevelsError, if set, will be returned by Levels.
	LevelsError error

	// Started and Closed track lifecycle calls.
	Started bool
	Closed  bool
}

// NewFakeSource creates a FakeSource with both lines idle (high).
func NewFakeSource() *FakeSource {
	return &FakeSource{PM10Level: true, PM25Level: true}
}

// Start records the handler.
func (f *FakeSource) Start(h Handler) error {
	if f.StartError != nil {
		return f.StartError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Started {
		return errors.New("already started")
	}
	f.handler = h
	f.Started = true
	return nil
}

// Emit delivers edges to the handler in order, on the caller's goroutine.
func (f *FakeSource) Emit(edges ...Edge) error {
	f.mu.Lock()
	h := f.handler
	closed := f.Closed
	f.mu.Unlock()
	if h == nil {
		return errors.New("not started")
	}
	if closed {
		return errors.New("closed")
	}
	for _, e := range edges {
		h(e)
	}
	return nil
}

// Levels returns the scripted levels.
func (f *FakeSource) Levels() (bool, bool, error) {
	if f.LevelsError != nil {
		return false, false, f.LevelsError
	}
	return f.PM10Level, f.PM25Level, nil
}

// Close marks the source as closed.
func (f *FakeSource) Close() error {
	f.mu.Lock()
	f.Closed = true
	f.mu.Unlock()
	return nil
}

// Pulse returns the falling and rising edges of one low pulse.
func Pulse(id logic.ChannelID, start, width time.Duration) []Edge {
	return []Edge{
		{Channel: id, Kind: logic.Falling, Time: start},
		{Channel: id, Kind: logic.Rising, Time: start + width},
	}
}
