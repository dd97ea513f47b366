/*
clock.go - Injectable time source for the sync engine

PURPOSE:
  The reconciliation loop is nothing but timers: a debounce window, a poll
  interval, and a heartbeat interval. Wrapping time behind a small interface
  lets tests drive all three deterministically instead of sleeping.

USAGE:
  Production code passes NewClock(); tests pass a fake that advances
  manually.
*/
package client

import "time"

// Timer is a cancellable delayed task, matching the reset-on-each-call
// debounce pattern: scheduling again before it fires cancels the old run.
type Timer interface {
	Stop() bool
	Reset(d time.Duration) bool
}

// Ticker delivers repeated ticks until stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// Clock abstracts the time source used by the engine.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
	NewTicker(d time.Duration) Ticker
}

// =============================================================================
// REAL CLOCK
// =============================================================================

type realClock struct{}

// NewClock returns the wall clock.
func NewClock() Clock { return realClock{} }

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

func (realClock) NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTimer struct{ t *time.Timer }

func (rt realTimer) Stop() bool                 { return rt.t.Stop() }
func (rt realTimer) Reset(d time.Duration) bool { return rt.t.Reset(d) }

type realTicker struct{ t *time.Ticker }

func (rt *realTicker) C() <-chan time.Time { return rt.t.C }
func (rt *realTicker) Stop()               { rt.t.Stop() }
