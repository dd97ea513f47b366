/*
cache.go - Local mirror of the authoritative dataset

PURPOSE:
  Holds the in-memory copy of the dataset that every view derives from,
  persists it to a durable snapshot store, and broadcasts local changes so
  peer instances (other tabs on the same snapshot) reload reactively.

EVERY MUTATION:
  1. Updates the in-memory structure
  2. Stamps meta.updatedAt
  3. Persists the snapshot
  4. Notifies local observers

CORRUPTION POLICY:
  A corrupt or missing snapshot loads as an empty well-formed dataset,
  never as an error that escapes to the UI.

SEE ALSO:
  - engine.go: Schedules reconciliation after cache changes
  - mutate.go: Applies optimistic updates through Mutate
*/
package client

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"sync"
	"time"

	"github.com/warp/leave-manager/leave"
)

// =============================================================================
// SNAPSHOT STORES
// =============================================================================

// SnapshotStore is durable storage for one JSON blob, the analogue of a
// single local-storage key.
type SnapshotStore interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// ErrNoSnapshot is returned by stores with nothing persisted yet.
var ErrNoSnapshot = errors.New("no snapshot stored")

// FileStore persists the snapshot to a single file.
type FileStore struct {
	Path string
}

func (fs *FileStore) Load() ([]byte, error) {
	b, err := os.ReadFile(fs.Path)
	if os.IsNotExist(err) {
		return nil, ErrNoSnapshot
	}
	return b, err
}

func (fs *FileStore) Save(data []byte) error {
	return os.WriteFile(fs.Path, data, 0o644)
}

// MemoryStore keeps the snapshot in memory (tests, throwaway sessions).
type MemoryStore struct {
	mu   sync.Mutex
	data []byte
}

func (ms *MemoryStore) Load() ([]byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	if ms.data == nil {
		return nil, ErrNoSnapshot
	}
	return append([]byte(nil), ms.data...), nil
}

func (ms *MemoryStore) Save(data []byte) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.data = append([]byte(nil), data...)
	return nil
}

// =============================================================================
// LOCAL CHANGE NOTIFIER
// =============================================================================

// ChannelNotifier broadcasts "the shared snapshot changed" between instances
// of this process, standing in for the browser storage event: every
// subscriber EXCEPT the writer hears about a write. Each subscriber gets its
// own 1-buffered channel, so a burst of writes coalesces into one pending
// signal per peer and a slow peer never blocks the writer.
type ChannelNotifier struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Subscription is one instance's membership in the notifier.
type Subscription struct {
	n  *ChannelNotifier
	ch chan struct{}
}

// Subscribe registers a new instance and returns its subscription.
func (cn *ChannelNotifier) Subscribe() *Subscription {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	if cn.subs == nil {
		cn.subs = make(map[*Subscription]struct{})
	}
	s := &Subscription{n: cn, ch: make(chan struct{}, 1)}
	cn.subs[s] = struct{}{}
	return s
}

func (cn *ChannelNotifier) broadcast(origin *Subscription) {
	cn.mu.Lock()
	defer cn.mu.Unlock()
	for s := range cn.subs {
		if s == origin {
			continue // the writer already has the change in memory
		}
		select {
		case s.ch <- struct{}{}:
		default: // a signal is already pending; coalesce
		}
	}
}

// Notify signals every other subscriber that this instance wrote the
// shared snapshot. The writer's own channel is skipped.
func (s *Subscription) Notify() { s.n.broadcast(s) }

// Changes is the stream of peer-write signals for this subscriber.
func (s *Subscription) Changes() <-chan struct{} { return s.ch }

// Close deregisters the subscription.
func (s *Subscription) Close() {
	s.n.mu.Lock()
	delete(s.n.subs, s)
	s.n.mu.Unlock()
}

// =============================================================================
// CACHE
// =============================================================================

// Cache is the local mirror: in-memory dataset + durable snapshot +
// last-writer-wins updatedAt stamp.
type Cache struct {
	mu    sync.RWMutex
	data  leave.Dataset
	store SnapshotStore
	sub   *Subscription
	clock Clock
}

// NewCache builds a cache over the given snapshot store. notifier may be
// nil when no peer instances exist; otherwise the cache subscribes so it
// can signal peers and hear their writes.
func NewCache(store SnapshotStore, notifier *ChannelNotifier, clock Clock) *Cache {
	if clock == nil {
		clock = NewClock()
	}
	c := &Cache{
		data:  leave.EmptyDataset(),
		store: store,
		clock: clock,
	}
	if notifier != nil {
		c.sub = notifier.Subscribe()
	}
	return c
}

// Load reads the persisted snapshot into memory. Missing or corrupt data
// falls back to the empty dataset.
func (c *Cache) Load() {
	c.mu.Lock()
	defer c.mu.Unlock()

	raw, err := c.store.Load()
	if err != nil {
		if !errors.Is(err, ErrNoSnapshot) {
			log.Printf("[Cache] Snapshot load failed, starting empty: %v", err)
		}
		c.data = leave.EmptyDataset()
		return
	}

	var ds leave.Dataset
	if err := json.Unmarshal(raw, &ds); err != nil {
		log.Printf("[Cache] Snapshot corrupt, starting empty: %v", err)
		c.data = leave.EmptyDataset()
		return
	}
	if ds.Employees == nil {
		ds.Employees = []leave.Employee{}
	}
	if ds.Leaves == nil {
		ds.Leaves = []leave.Leave{}
	}
	if ds.Holidays == nil {
		ds.Holidays = []leave.Holiday{}
	}
	c.data = ds
}

// Snapshot returns a deep copy of the current dataset.
func (c *Cache) Snapshot() leave.Dataset {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Clone()
}

// UpdatedAt returns the current snapshot stamp.
func (c *Cache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.data.Meta.UpdatedAt
}

// Mutate applies fn to the dataset, stamps updatedAt, persists, and
// notifies peers. This is the single write path for local changes.
func (c *Cache) Mutate(fn func(*leave.Dataset)) {
	c.mu.Lock()
	fn(&c.data)
	c.data.Meta.UpdatedAt = c.clock.Now()
	c.persistLocked()
	c.mu.Unlock()

	if c.sub != nil {
		c.sub.Notify()
	}
}

// Replace swaps in a freshly fetched authoritative dataset wholesale. There
// is no per-record merge; last writer wins at snapshot granularity.
func (c *Cache) Replace(ds leave.Dataset) {
	c.Mutate(func(d *leave.Dataset) {
		*d = ds.Clone()
	})
}

// persistLocked writes the snapshot to durable storage. Persistence failure
// is logged, not raised: the in-memory mirror stays authoritative for this
// instance.
func (c *Cache) persistLocked() {
	raw, err := json.Marshal(c.data)
	if err != nil {
		log.Printf("[Cache] Snapshot marshal failed: %v", err)
		return
	}
	if err := c.store.Save(raw); err != nil {
		log.Printf("[Cache] Snapshot save failed: %v", err)
	}
}

// =============================================================================
// UI PREFERENCES - separate from the authoritative dataset
// =============================================================================

// Prefs are per-instance view preferences. They live under their own
// storage key and are never synced remotely.
type Prefs struct {
	Year       int    `json:"year,omitempty"`
	EmployeeID string `json:"employeeId,omitempty"`
}

// PrefsStore persists Prefs in their own SnapshotStore.
type PrefsStore struct {
	Store SnapshotStore
}

func (ps *PrefsStore) Load() Prefs {
	raw, err := ps.Store.Load()
	if err != nil {
		return Prefs{}
	}
	var p Prefs
	if err := json.Unmarshal(raw, &p); err != nil {
		return Prefs{}
	}
	return p
}

func (ps *PrefsStore) Save(p Prefs) {
	raw, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := ps.Store.Save(raw); err != nil {
		log.Printf("[Prefs] Save failed: %v", err)
	}
}
