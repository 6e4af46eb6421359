package adapter

import (
	"context"
	"sync/atomic"
)

// SleepMode is how deeply the main loop waits.
type SleepMode int32

const (
	// SleepNone keeps the loop running
	SleepNone SleepMode = iota

	// SleepLight waits for any event, heartbeats included
	SleepLight

	// SleepDeep waits while the bus is unpowered
	SleepDeep
)

// Sleeper lets the main loop wait for events without missing one that
// arrives between deciding to sleep and sleeping.
//
// The loop arms a mode; Wake clears the arming and posts a token. Sleep
// consumes the arming atomically: if it was cleared the loop runs again at
// once, otherwise any Wake that follows finds the token slot empty and
// fills it, so the wait returns.
type Sleeper struct {
	armed atomic.Int32
	mode  atomic.Int32
	wake  chan struct{}
}

// NewSleeper returns a Sleeper armed for mode.
func NewSleeper(mode SleepMode) *Sleeper {
	s := &Sleeper{wake: make(chan struct{}, 1)}
	s.mode.Store(int32(mode))
	s.armed.Store(int32(mode))
	return s
}

// SetMode selects the mode for the next sleep. Changing the mode cancels
// the current arming so the next Sleep does not use the old one.
func (s *Sleeper) SetMode(mode SleepMode) {
	if SleepMode(s.armed.Load()) != mode {
		s.armed.Store(int32(SleepNone))
	}
	s.mode.Store(int32(mode))
}

// Mode returns the selected mode.
func (s *Sleeper) Mode() SleepMode {
	return SleepMode(s.mode.Load())
}

// StayAwake cancels the next sleep. It is called from the loop itself when
// it knows more work is waiting.
func (s *Sleeper) StayAwake() {
	s.armed.Store(int32(SleepNone))
}

// Wake cancels the next sleep and ends the current one. It is safe to call
// from any goroutine.
func (s *Sleeper) Wake() {
	s.armed.Store(int32(SleepNone))
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Sleep waits in the armed mode until woken and re-arms the selected mode.
// It returns false without waiting when the arming was cancelled, and
// ctx.Err() if ctx ends first.
func (s *Sleeper) Sleep(ctx context.Context) (bool, error) {
	armed := SleepMode(s.armed.Swap(s.mode.Load()))
	if armed == SleepNone {
		return false, nil
	}
	select {
	case <-s.wake:
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
