// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs fn after d. Implementations may run fn on any goroutine.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// RealTime schedules with time.AfterFunc.
type RealTime struct{}

// AfterFunc implements Scheduler.
func (RealTime) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// Play animates tw, calling frame with the visible text after every step.
// The returned channel closes once all text is visible. Cancelling ctx
// reveals the remainder immediately.
func Play(ctx context.Context, tw *Typewriter, s Scheduler, frame func(visible string)) <-chan struct{} {
	done := make(chan struct{})
	var step func()
	step = func() {
		if ctx.Err() != nil {
			tw.Finish()
			frame(tw.Visible())
			close(done)
			return
		}
		delay, ok := tw.Next()
		if ok {
			frame(tw.Visible())
		}
		if !ok || tw.Done() {
			close(done)
			return
		}
		s.AfterFunc(delay, step)
	}
	step()
	return done
}

// =============================================================================
// MANUAL SCHEDULER
// =============================================================================

// Manual is a Scheduler driven by hand. It records every requested delay
// and runs callbacks only when Advance or Drain is called.
type Manual struct {
	mu      sync.Mutex
	pending []func()
	delays  []time.Duration
}

// AfterFunc implements Scheduler.
func (m *Manual) AfterFunc(d time.Duration, fn func()) {
	m.mu.Lock()
	m.pending = append(m.pending, fn)
	m.delays = append(m.delays, d)
	m.mu.Unlock()
}

// Advance runs the oldest pending callback. It returns false if none was pending.
func (m *Manual) Advance() bool {
	m.mu.Lock()
	if len(m.pending) == 0 {
		m.mu.Unlock()
		return false
	}
	fn := m.pending[0]
	m.pending = m.pending[1:]
	m.mu.Unlock()
	fn()
	return true
}

// Drain runs callbacks until none are pending and returns how many ran.
func (m *Manual) Drain() int {
	n := 0
	for m.Advance() {
		n++
	}
	return n
}

// Delays returns every delay requested so far.
func (m *Manual) Delays() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]time.Duration, len(m.delays))
	copy(out, m.delays)
	return out
}
