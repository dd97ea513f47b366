/*
remote.go - The abstract remote persistence interface

PURPOSE:
  Defines the contract between the client engine and the authoritative
  store. The engine never sees a transport; it sees FetchAll, a handful of
  upsert/delete calls returning tagged results, a heartbeat probe, and an
  optional push-event stream.

TAGGED RESULTS:
  Mutating calls return a Result value rather than raising. A failed persist
  carries the server's message verbatim so the mutation pipeline can surface
  it to the user without rewording, and control flow stays linear.

PUSH IS OPTIONAL:
  A nil PushSource degrades the engine gracefully to poll + heartbeat.

SEE ALSO:
  - http.go: The HTTP implementation
  - engine.go: The reconciliation loop consuming this
*/
package client

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-manager/leave"
)

// Result is the tagged outcome of a remote mutating call.
type Result struct {
	OK      bool
	Message string
}

// Failure builds a failed Result from an error.
func Failure(err error) Result {
	return Result{OK: false, Message: err.Error()}
}

// EntitlementUpdate optionally accompanies an employee save: the year being
// edited together with its carry/current values.
type EntitlementUpdate struct {
	Year    int
	Carry   decimal.Decimal
	Current decimal.Decimal
}

// Remote is the authoritative persistence interface.
type Remote interface {
	// FetchAll returns the full authoritative snapshot.
	FetchAll(ctx context.Context) (leave.Dataset, error)

	// SaveEmployee upserts an employee by id, optionally with one year's
	// entitlement values.
	SaveEmployee(ctx context.Context, e leave.Employee, ent *EntitlementUpdate) Result

	// DeleteEmployee removes an employee; the server cascades its leaves.
	DeleteEmployee(ctx context.Context, id string) Result

	// SaveLeave upserts a leave record by id. The server may reject with a
	// message that must reach the user verbatim.
	SaveLeave(ctx context.Context, l leave.Leave) Result

	// DeleteLeave removes a leave record.
	DeleteLeave(ctx context.Context, id string) Result

	// SetHolidays replaces the full holiday set.
	SetHolidays(ctx context.Context, hs []leave.Holiday) Result

	// Heartbeat returns the remote side's last-change timestamp. It is the
	// lightweight staleness probe; a full refetch happens only when this is
	// strictly newer than the last value observed locally.
	Heartbeat(ctx context.Context) (time.Time, error)
}

// Event is a push notification that the remote dataset changed.
type Event struct {
	Type    string `json:"type"`
	Payload string `json:"payload,omitempty"`
}

// PushSource is an optional real-time channel. Subscribe returns a stream of
// change events; the channel closes when the context is cancelled or the
// backend goes away. Absence (nil source) must degrade to poll-only.
type PushSource interface {
	Subscribe(ctx context.Context) (<-chan Event, error)
}
