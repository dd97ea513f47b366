/*
hub.go - Server-sent-events fan-out for change notifications

PURPOSE:
  Keeps a set of subscriber channels and pushes a small "changed" event to
  each of them whenever a mutation lands. Clients that hold the stream open
  refetch immediately instead of waiting for the next heartbeat.

DELIVERY GUARANTEE:
  None, deliberately. Broadcast never blocks: a subscriber whose channel is
  full simply misses the event and catches up through the heartbeat poll.
  The stream is an accelerator, not a source of truth.

SEE ALSO:
  - handlers.go: Calls Broadcast after every successful mutation
*/
package api

import (
	"fmt"
	"net/http"
	"sync"
)

const subscriberBuffer = 8

// Hub fans change events out to SSE subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[chan string]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan string]struct{})}
}

// Broadcast sends the event to every subscriber, dropping it for any
// subscriber that cannot keep up.
func (h *Hub) Broadcast(event string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

func (h *Hub) subscribe() chan string {
	ch := make(chan string, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) unsubscribe(ch chan string) {
	h.mu.Lock()
	delete(h.subs, ch)
	h.mu.Unlock()
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeHTTP streams events to one client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.subscribe()
	defer h.unsubscribe(ch)

	// Confirm the subscription straight away so clients can tell a working
	// stream from a hung proxy.
	fmt.Fprint(w, "data: {\"type\":\"connected\"}\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event := <-ch:
			fmt.Fprintf(w, "data: %s\n\n", event)
			flusher.Flush()
		}
	}
}
