package client

import (
	"context"
	"sync"
	"time"

	"github.com/warp/leave-manager/leave"
)

// =============================================================================
// FAKE CLOCK - Manually advanced time for deterministic timer tests
// =============================================================================

type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	timers  []*fakeTimer
	tickers []*fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, time.March, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, deadline: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) NewTicker(d time.Duration) Ticker {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTicker{interval: d, next: c.now.Add(d), ch: make(chan time.Time, 16)}
	c.tickers = append(c.tickers, t)
	return t
}

// Advance moves time forward, firing due timers synchronously and queueing
// due ticks.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	now := c.now

	var due []func()
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.deadline.After(now) {
			t.fired = true
			due = append(due, t.f)
		}
	}
	for _, tk := range c.tickers {
		for !tk.stopped && !tk.next.After(now) {
			select {
			case tk.ch <- tk.next:
			default:
			}
			tk.next = tk.next.Add(tk.interval)
		}
	}
	c.mu.Unlock()

	for _, f := range due {
		f()
	}
}

type fakeTimer struct {
	clock    *fakeClock
	deadline time.Time
	f        func()
	stopped  bool
	fired    bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.deadline = t.clock.now.Add(d)
	t.stopped = false
	t.fired = false
	return active
}

type fakeTicker struct {
	interval time.Duration
	next     time.Time
	ch       chan time.Time
	stopped  bool
}

func (t *fakeTicker) C() <-chan time.Time { return t.ch }
func (t *fakeTicker) Stop()               { t.stopped = true }

// =============================================================================
// FAKE REMOTE - Scriptable Remote implementation
// =============================================================================

type fakeRemote struct {
	mu sync.Mutex

	dataset      leave.Dataset
	fetchErr     error
	fetchCalls   int
	heartbeatTS  time.Time
	heartbeatErr error

	saveResult Result // zero value means OK

	savedEmployees  []leave.Employee
	savedLeaves     []leave.Leave
	deletedLeaves   []string
	deletedEmps     []string
	holidayReplaces [][]leave.Holiday
}

func newFakeRemote(ds leave.Dataset) *fakeRemote {
	return &fakeRemote{dataset: ds, saveResult: Result{OK: true}}
}

func (f *fakeRemote) FetchAll(ctx context.Context) (leave.Dataset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchCalls++
	if f.fetchErr != nil {
		return leave.Dataset{}, f.fetchErr
	}
	return f.dataset.Clone(), nil
}

func (f *fakeRemote) SaveEmployee(ctx context.Context, e leave.Employee, ent *EntitlementUpdate) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveResult.OK {
		f.savedEmployees = append(f.savedEmployees, e)
		f.dataset.UpsertEmployee(e)
	}
	return f.saveResult
}

func (f *fakeRemote) DeleteEmployee(ctx context.Context, id string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveResult.OK {
		f.deletedEmps = append(f.deletedEmps, id)
		f.dataset.RemoveEmployee(id)
	}
	return f.saveResult
}

func (f *fakeRemote) SaveLeave(ctx context.Context, l leave.Leave) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveResult.OK {
		f.savedLeaves = append(f.savedLeaves, l)
		f.dataset.UpsertLeave(l)
	}
	return f.saveResult
}

func (f *fakeRemote) DeleteLeave(ctx context.Context, id string) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveResult.OK {
		f.deletedLeaves = append(f.deletedLeaves, id)
		f.dataset.RemoveLeave(id)
	}
	return f.saveResult
}

func (f *fakeRemote) SetHolidays(ctx context.Context, hs []leave.Holiday) Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveResult.OK {
		f.holidayReplaces = append(f.holidayReplaces, hs)
		f.dataset.SetHolidays(hs)
	}
	return f.saveResult
}

func (f *fakeRemote) Heartbeat(ctx context.Context) (time.Time, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.heartbeatTS, f.heartbeatErr
}

func (f *fakeRemote) fetchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetchCalls
}

func (f *fakeRemote) setFetchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetchErr = err
}
