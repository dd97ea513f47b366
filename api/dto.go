/*
dto.go - Request/response shapes and JSON plumbing

PURPOSE:
  The wire contract between server and clients. Mutating endpoints answer
  with the ok/error envelope; validation failures carry the reason verbatim
  so clients can surface it without translation.

SEE ALSO:
  - handlers.go: Where these shapes are read and written
*/
package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-manager/leave"
)

// okResponse is the envelope every mutating endpoint answers with.
type okResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// saveEmployeeRequest upserts an employee, optionally setting one
// entitlement year in the same call.
type saveEmployeeRequest struct {
	Employee    leave.Employee     `json:"employee"`
	Entitlement *entitlementUpdate `json:"entitlement,omitempty"`
}

type entitlementUpdate struct {
	Year    int             `json:"year"`
	Carry   decimal.Decimal `json:"carry"`
	Current decimal.Decimal `json:"current"`
}

// holidaysRequest replaces the full holiday set.
type holidaysRequest struct {
	Holidays []leave.Holiday `json:"holidays"`
}

// heartbeatResponse carries the server's last-change stamp.
type heartbeatResponse struct {
	LastChange time.Time `json:"lastChange"`
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func writeOK(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	if err != nil {
		log.Printf("[API] %s: %v", message, err)
		if message == "" {
			message = err.Error()
		}
	}
	writeJSON(w, status, okResponse{OK: false, Error: message})
}
