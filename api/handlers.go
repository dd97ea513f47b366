/*
handlers.go - HTTP handlers for the leave-management API

PURPOSE:
  Exposes the authoritative dataset over a small JSON API. Clients mirror
  the full state, mutate optimistically, and reconcile against these
  endpoints; the server is the single source of truth.

ENDPOINTS:
  GET    /api/data            Full-state snapshot
  POST   /api/employee        Upsert employee (+ optional entitlement year)
  DELETE /api/employee/{id}   Delete employee (cascades leaves)
  POST   /api/leave           Upsert leave
  DELETE /api/leave/{id}      Delete leave
  POST   /api/holidays        Full-set holiday replace
  GET    /api/heartbeat       Last-change timestamp for pollers
  GET    /api/events          SSE change stream
  GET    /api/audit           Mutation trail, newest first
  POST   /api/reset           Wipe everything (dev only)

REQUEST FLOW:
  1. Decode and validate input
  2. Persist through the store
  3. Append an audit entry (failures logged, never surfaced)
  4. Broadcast a change event to SSE subscribers
  5. Answer with the ok/error envelope

ERROR HANDLING:
  - 400: Validation errors, message verbatim for client display
  - 404: Unknown employee or leave id
  - 500: Store failures

SECURITY NOTE:
  Currently NO authentication or authorization. The X-User-Id and
  X-User-Email headers are trusted as-is for the audit trail only.

SEE ALSO:
  - dto.go: Request/response data structures
  - hub.go: SSE fan-out
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/leave-manager/leave"
	"github.com/warp/leave-manager/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store *sqlite.Store
	Hub   *Hub
}

// NewHandler creates a handler over the given store with a fresh hub.
func NewHandler(store *sqlite.Store) *Handler {
	return &Handler{Store: store, Hub: NewHub()}
}

// audit appends a trail entry and logs (but never propagates) failures.
func (h *Handler) audit(r *http.Request, action, entityType, entityID, entityName, details string) {
	entry := sqlite.AuditEntry{
		UserID:     r.Header.Get("X-User-Id"),
		UserEmail:  r.Header.Get("X-User-Email"),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    details,
	}
	if err := h.Store.AppendAudit(r.Context(), entry); err != nil {
		log.Printf("[API] Audit write failed (%s %s): %v", action, entityType, err)
	}
}

func (h *Handler) changed() {
	if h.Hub != nil {
		h.Hub.Broadcast(`{"type":"changed"}`)
	}
}

// =============================================================================
// SNAPSHOT AND HEARTBEAT
// =============================================================================

// GetData returns the complete dataset.
func (h *Handler) GetData(w http.ResponseWriter, r *http.Request) {
	ds, err := h.Store.LoadAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load data", err)
		return
	}
	writeJSON(w, http.StatusOK, ds)
}

// Heartbeat returns the last-change stamp. Pollers refetch only when it is
// strictly newer than the one they last acted on.
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	last, err := h.Store.LastChange(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to read heartbeat", err)
		return
	}
	writeJSON(w, http.StatusOK, heartbeatResponse{LastChange: last})
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// SaveEmployee upserts an employee. A request without an entitlements map
// keeps the stored map; an inline entitlement update sets one year on top.
func (h *Handler) SaveEmployee(w http.ResponseWriter, r *http.Request) {
	var req saveEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	emp := req.Employee
	if emp.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}

	if emp.Entitlements == nil {
		ds, err := h.Store.LoadAll(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load employee", err)
			return
		}
		if existing := ds.Employee(emp.ID); existing != nil {
			emp.Entitlements = existing.Entitlements
		}
	}
	if ent := req.Entitlement; ent != nil {
		emp.SetEntitlement(ent.Year, ent.Carry, ent.Current)
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	h.audit(r, "save", "employee", emp.ID, emp.Name, "")
	h.changed()
	writeOK(w)
}

// DeleteEmployee removes an employee; its leaves cascade away with it.
func (h *Handler) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteEmployee(r.Context(), id); err != nil {
		if errors.Is(err, leave.ErrEmployeeNotFound) {
			writeError(w, http.StatusNotFound, "employee not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete employee", err)
		return
	}
	h.audit(r, "delete", "employee", id, "", "")
	h.changed()
	writeOK(w)
}

// =============================================================================
// LEAVE HANDLERS
// =============================================================================

// SaveLeave upserts a leave record. New submissions must carry a reason;
// edits of existing records may leave it untouched.
func (h *Handler) SaveLeave(w http.ResponseWriter, r *http.Request) {
	var l leave.Leave
	if err := json.NewDecoder(r.Body).Decode(&l); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ds, err := h.Store.LoadAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load data", err)
		return
	}
	if ds.Employee(l.EmployeeID) == nil {
		writeError(w, http.StatusNotFound, "employee not found", nil)
		return
	}

	isNew := l.ID == "" || ds.LeaveByID(l.ID) == nil
	if err := leave.NormalizeLeave(&l, ds.HolidaySet(), isNew); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if l.ID == "" {
		l.ID = uuid.NewString()
	}

	if err := h.Store.SaveLeave(r.Context(), l); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save leave", err)
		return
	}
	h.audit(r, "save", "leave", l.ID, l.EmployeeID, string(l.Status))
	h.changed()
	writeOK(w)
}

// DeleteLeave removes a leave record by id.
func (h *Handler) DeleteLeave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteLeave(r.Context(), id); err != nil {
		if errors.Is(err, leave.ErrLeaveNotFound) {
			writeError(w, http.StatusNotFound, "leave not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete leave", err)
		return
	}
	h.audit(r, "delete", "leave", id, "", "")
	h.changed()
	writeOK(w)
}

// =============================================================================
// HOLIDAY HANDLERS
// =============================================================================

// SetHolidays replaces the entire holiday set in one transaction.
func (h *Handler) SetHolidays(w http.ResponseWriter, r *http.Request) {
	var req holidaysRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if err := h.Store.ReplaceHolidays(r.Context(), req.Holidays); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to replace holidays", err)
		return
	}
	h.audit(r, "replace", "holidays", "", "", strconv.Itoa(len(req.Holidays))+" dates")
	h.changed()
	writeOK(w)
}

// =============================================================================
// AUDIT AND ADMIN
// =============================================================================

// ListAudit returns the mutation trail, newest first.
func (h *Handler) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	entries, err := h.Store.ListAudit(r.Context(), limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list audit entries", err)
		return
	}
	if entries == nil {
		entries = []sqlite.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ResetDatabase wipes every table. Dev use only.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.changed()
	writeOK(w)
}
