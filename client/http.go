/*
http.go - HTTP implementation of the Remote interface

PURPOSE:
  Talks to the server's JSON API. Each mutating call maps a non-2xx
  response (or a transport error) to a failed Result carrying the server's
  message verbatim; nothing here panics or raises past the Result.

ENDPOINTS:
  GET    /api/data            Full-state snapshot
  POST   /api/employee        Upsert employee (+ optional entitlement year)
  DELETE /api/employee/{id}   Delete employee (server cascades leaves)
  POST   /api/leave           Upsert leave
  DELETE /api/leave/{id}      Delete leave
  POST   /api/holidays        Full-set holiday replace
  GET    /api/heartbeat       {"lastChange": RFC3339 timestamp}
  GET    /api/events          SSE stream of change events

SEE ALSO:
  - api/server.go: The server side of this contract
*/
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-manager/leave"
)

// HTTPRemote implements Remote over the server's JSON API.
type HTTPRemote struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPRemote builds a remote for the given base URL (e.g.
// "http://localhost:8080").
func NewHTTPRemote(baseURL string) *HTTPRemote {
	return &HTTPRemote{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{},
	}
}

func (r *HTTPRemote) httpClient() *http.Client {
	if r.Client != nil {
		return r.Client
	}
	return http.DefaultClient
}

// okResponse is the server's envelope for mutating calls.
type okResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// FetchAll retrieves the full authoritative snapshot.
func (r *HTTPRemote) FetchAll(ctx context.Context) (leave.Dataset, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/api/data", nil)
	if err != nil {
		return leave.Dataset{}, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return leave.Dataset{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return leave.Dataset{}, fmt.Errorf("fetch: unexpected status %d", resp.StatusCode)
	}
	var ds leave.Dataset
	if err := json.NewDecoder(resp.Body).Decode(&ds); err != nil {
		return leave.Dataset{}, fmt.Errorf("fetch: decode: %w", err)
	}
	return ds, nil
}

// saveEmployeeRequest matches the server's employee upsert body.
type saveEmployeeRequest struct {
	Employee    leave.Employee         `json:"employee"`
	Entitlement *entitlementUpdateJSON `json:"entitlement,omitempty"`
}

type entitlementUpdateJSON struct {
	Year    int             `json:"year"`
	Carry   decimal.Decimal `json:"carry"`
	Current decimal.Decimal `json:"current"`
}

func (r *HTTPRemote) SaveEmployee(ctx context.Context, e leave.Employee, ent *EntitlementUpdate) Result {
	body := saveEmployeeRequest{Employee: e}
	if ent != nil {
		body.Entitlement = &entitlementUpdateJSON{Year: ent.Year, Carry: ent.Carry, Current: ent.Current}
	}
	return r.post(ctx, "/api/employee", body)
}

func (r *HTTPRemote) DeleteEmployee(ctx context.Context, id string) Result {
	return r.delete(ctx, "/api/employee/"+id)
}

func (r *HTTPRemote) SaveLeave(ctx context.Context, l leave.Leave) Result {
	return r.post(ctx, "/api/leave", l)
}

func (r *HTTPRemote) DeleteLeave(ctx context.Context, id string) Result {
	return r.delete(ctx, "/api/leave/"+id)
}

func (r *HTTPRemote) SetHolidays(ctx context.Context, hs []leave.Holiday) Result {
	return r.post(ctx, "/api/holidays", map[string]any{"holidays": hs})
}

// Heartbeat fetches the remote last-change timestamp.
func (r *HTTPRemote) Heartbeat(ctx context.Context) (time.Time, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.BaseURL+"/api/heartbeat", nil)
	if err != nil {
		return time.Time{}, err
	}
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return time.Time{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return time.Time{}, fmt.Errorf("heartbeat: unexpected status %d", resp.StatusCode)
	}
	var payload struct {
		LastChange time.Time `json:"lastChange"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return time.Time{}, err
	}
	return payload.LastChange, nil
}

// =============================================================================
// REQUEST PLUMBING
// =============================================================================

func (r *HTTPRemote) post(ctx context.Context, path string, body any) Result {
	raw, err := json.Marshal(body)
	if err != nil {
		return Failure(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+path, bytes.NewReader(raw))
	if err != nil {
		return Failure(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return r.do(req)
}

func (r *HTTPRemote) delete(ctx context.Context, path string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, r.BaseURL+path, nil)
	if err != nil {
		return Failure(err)
	}
	return r.do(req)
}

func (r *HTTPRemote) do(req *http.Request) Result {
	resp, err := r.httpClient().Do(req)
	if err != nil {
		return Failure(err)
	}
	defer resp.Body.Close()

	var envelope okResponse
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &envelope); err != nil {
		envelope = okResponse{OK: resp.StatusCode < 300, Error: strings.TrimSpace(string(raw))}
	}
	if resp.StatusCode >= 300 || !envelope.OK {
		msg := envelope.Error
		if msg == "" {
			msg = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		}
		return Result{OK: false, Message: msg}
	}
	return Result{OK: true}
}

// =============================================================================
// SSE PUSH SOURCE
// =============================================================================

// SSESource subscribes to the server's /api/events stream.
type SSESource struct {
	BaseURL string
	Client  *http.Client
}

// NewSSESource builds a push source for the given base URL.
func NewSSESource(baseURL string) *SSESource {
	return &SSESource{BaseURL: strings.TrimRight(baseURL, "/"), Client: &http.Client{}}
}

// Subscribe opens the event stream. The returned channel closes when the
// stream ends or ctx is cancelled. The initial connect is bounded by the
// caller's context; the engine passes a short timeout so an unreachable
// push backend degrades to poll-only.
func (s *SSESource) Subscribe(ctx context.Context) (<-chan Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+"/api/events", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")

	c := s.Client
	if c == nil {
		c = http.DefaultClient
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("events: unexpected status %d", resp.StatusCode)
	}

	events := make(chan Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			var ev Event
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if err := json.Unmarshal([]byte(payload), &ev); err != nil {
				ev = Event{Type: "changed"}
			}
			// The consumer may be gone; never block on a dead channel.
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return events, nil
}
