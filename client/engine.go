/*
engine.go - The reconciliation loop

PURPOSE:
  Keeps the local cache consistent with the remote source of truth. Four
  independent triggers all converge on the same action: fetch the full
  authoritative dataset, replace the cache wholesale, and hand the fresh
  snapshot to the render hook.

TRIGGERS:
  1. Debounced sync:  every local mutation or external signal schedules a
                      refetch after a short quiet period (~1s), coalescing
                      bursts into one round trip
  2. Interval poll:   a slow unconditional timer (~30s), the safety net
                      against missed signals
  3. Heartbeat diff:  a fast lightweight timer (~5s) that fetches only the
                      remote last-change timestamp and refetches only when
                      it is strictly newer than the last one observed
  4. Push events:     an optional real-time channel; each event triggers an
                      immediate refetch, bypassing the debounce

FAILURE POLICY:
  A failed fetch flips the status indicator to StatusError and leaves the
  previous cache snapshot untouched. The loop retries on the next trigger.
  Nothing here ever panics into the caller.

LIFECYCLE:
  Start is idempotent in effect: it tears down any previous timers before
  creating new ones, so re-initialization never accumulates duplicates.

SEE ALSO:
  - cache.go: The mirror being replaced
  - mutate.go: Forces SyncNow after successful persists
*/
package client

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/leave-manager/leave"
)

// Status is the passive sync indicator surfaced to the UI.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusSyncing Status = "syncing"
	StatusError   Status = "error"
)

// Engine orchestrates the reconciliation triggers.
type Engine struct {
	remote Remote
	push   PushSource // nil = poll/heartbeat only
	cache  *Cache
	clock  Clock

	// Trigger cadence. Zero values are replaced by defaults in NewEngine.
	Debounce          time.Duration
	PollInterval      time.Duration
	HeartbeatInterval time.Duration
	PushTimeout       time.Duration

	// OnChange is invoked with the fresh snapshot after every cache
	// replacement so views recompute their derived balances.
	OnChange func(leave.Dataset)

	mu            sync.Mutex
	status        Status
	lastChange    time.Time
	debounceTimer Timer
	debounceGen   uint64
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// NewEngine wires the loop. push may be nil.
func NewEngine(remote Remote, push PushSource, cache *Cache, clock Clock) *Engine {
	if clock == nil {
		clock = NewClock()
	}
	return &Engine{
		remote:            remote,
		push:              push,
		cache:             cache,
		clock:             clock,
		Debounce:          time.Second,
		PollInterval:      30 * time.Second,
		HeartbeatInterval: 5 * time.Second,
		PushTimeout:       3 * time.Second,
		status:            StatusIdle,
	}
}

// Status returns the current indicator value.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

func (e *Engine) setStatus(s Status) {
	e.mu.Lock()
	e.status = s
	e.mu.Unlock()
}

// Start launches the background loops. Calling Start on a running engine
// first stops the old timers so they never accumulate.
func (e *Engine) Start() {
	e.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	e.wg.Add(2)
	go e.pollLoop(ctx)
	go e.heartbeatLoop(ctx)

	if e.push != nil {
		e.wg.Add(1)
		go e.pushLoop(ctx)
	}
	if e.cache.sub != nil {
		e.wg.Add(1)
		go e.peerLoop(ctx)
	}
	log.Printf("[Sync] Started (poll=%v heartbeat=%v debounce=%v)",
		e.PollInterval, e.HeartbeatInterval, e.Debounce)
}

// Stop cancels timers and waits for the loops to exit.
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel := e.cancel
	e.cancel = nil
	e.debounceGen++ // invalidate any in-flight debounce fire
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
		e.debounceTimer = nil
	}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
		e.wg.Wait()
	}
}

// =============================================================================
// TRIGGERS
// =============================================================================

// ScheduleSync schedules a reconciliation after the debounce window. Each
// call supersedes the pending timer, so a burst of changes produces one
// fetch. The generation counter guards the real-clock race where a timer
// fires concurrently with its replacement: a superseded callback observes a
// newer generation and returns without fetching.
func (e *Engine) ScheduleSync() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.debounceGen++
	gen := e.debounceGen
	if e.debounceTimer != nil {
		e.debounceTimer.Stop()
	}
	e.debounceTimer = e.clock.AfterFunc(e.Debounce, func() {
		e.mu.Lock()
		if gen != e.debounceGen {
			e.mu.Unlock()
			return
		}
		e.debounceTimer = nil
		e.mu.Unlock()
		e.syncOnce(context.Background())
	})
}

// SyncNow performs an immediate reconciliation, used by the mutation
// pipeline after a successful persist.
func (e *Engine) SyncNow(ctx context.Context) error {
	return e.syncOnce(ctx)
}

func (e *Engine) pollLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := e.clock.NewTicker(e.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			e.ScheduleSync()
		case <-ctx.Done():
			return
		}
	}
}

func (e *Engine) heartbeatLoop(ctx context.Context) {
	defer e.wg.Done()
	ticker := e.clock.NewTicker(e.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C():
			e.heartbeat(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// heartbeat pulls only the remote last-change stamp and schedules a full
// refetch when it is strictly newer than the last observed value.
func (e *Engine) heartbeat(ctx context.Context) {
	ts, err := e.remote.Heartbeat(ctx)
	if err != nil {
		// Heartbeat failures are silent; the poll loop is the safety net.
		return
	}
	e.mu.Lock()
	newer := ts.After(e.lastChange)
	if newer {
		e.lastChange = ts
	}
	e.mu.Unlock()
	if newer {
		e.ScheduleSync()
	}
}

// pushLoop consumes the optional real-time channel. Subscription is
// best-effort and bounded: an unreachable push backend never blocks the
// engine, and a dropped stream falls back to poll/heartbeat until the next
// Start.
func (e *Engine) pushLoop(ctx context.Context) {
	defer e.wg.Done()

	// Bound only the connect: the stream itself stays tied to ctx so it
	// survives past the subscription window.
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type subResult struct {
		events <-chan Event
		err    error
	}
	done := make(chan subResult, 1)
	go func() {
		events, err := e.push.Subscribe(subCtx)
		done <- subResult{events, err}
	}()

	var events <-chan Event
	deadline := e.clock.NewTicker(e.PushTimeout)
	select {
	case res := <-done:
		deadline.Stop()
		if res.err != nil {
			log.Printf("[Sync] Push unavailable, poll-only: %v", res.err)
			return
		}
		events = res.events
	case <-deadline.C():
		deadline.Stop()
		cancel()
		log.Printf("[Sync] Push subscribe timed out, poll-only")
		return
	case <-ctx.Done():
		deadline.Stop()
		return
	}

	for {
		select {
		case _, ok := <-events:
			if !ok {
				log.Printf("[Sync] Push stream closed, poll-only")
				return
			}
			// Push bypasses the debounce for low-latency propagation.
			e.syncOnce(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// peerLoop reacts to snapshot writes from peer instances by reloading the
// durable snapshot and re-rendering. No network involved. The notifier never
// delivers this instance's own writes here, so the loop cannot starve a
// peer by consuming signals meant for it.
func (e *Engine) peerLoop(ctx context.Context) {
	defer e.wg.Done()
	for {
		select {
		case <-e.cache.sub.Changes():
			e.cache.Load()
			e.notifyChange(e.cache.Snapshot())
		case <-ctx.Done():
			return
		}
	}
}

// =============================================================================
// THE RECONCILIATION ACTION
// =============================================================================

// syncOnce is the single convergence point: fetch, replace wholesale,
// recompute. On failure the existing cache snapshot stays in effect.
func (e *Engine) syncOnce(ctx context.Context) error {
	e.setStatus(StatusSyncing)

	ds, err := e.remote.FetchAll(ctx)
	if err != nil {
		log.Printf("[Sync] Fetch failed, keeping local snapshot: %v", err)
		e.setStatus(StatusError)
		return err
	}

	e.cache.Replace(ds)

	e.mu.Lock()
	if ds.Meta.UpdatedAt.After(e.lastChange) {
		e.lastChange = ds.Meta.UpdatedAt
	}
	e.mu.Unlock()

	e.setStatus(StatusIdle)
	e.notifyChange(e.cache.Snapshot())
	return nil
}

func (e *Engine) notifyChange(ds leave.Dataset) {
	if e.OnChange != nil {
		e.OnChange(ds)
	}
}
