package web

import (
	"net/http"
	"time"

	"carimport/internal/application/projections"
)

// auditDateLayout is the from/to filter format.
const auditDateLayout = "2006-01-02"

// handleAdminAuditTrail returns audit events, newest first (GET /api/admin/audit).
// PRE: User must be authenticated as admin
// POST: Returns at most projections.AuditLimit events matching the filters
func (s *server) handleAdminAuditTrail(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := projections.ListAuditQuery{
		Category:     q.Get("category"),
		Action:       q.Get("action"),
		Severity:     q.Get("severity"),
		ActorID:      q.Get("actor_id"),
		ResourceType: q.Get("resource_type"),
		ResourceID:   q.Get("resource_id"),
	}

	// Dates are whole days; "to" includes the named day.
	if from := q.Get("from"); from != "" {
		t, err := time.Parse(auditDateLayout, from)
		if err != nil {
			s.fail(w, r, errBadInput)
			return
		}
		query.From = t
	}
	if to := q.Get("to"); to != "" {
		t, err := time.Parse(auditDateLayout, to)
		if err != nil {
			s.fail(w, r, errBadInput)
			return
		}
		query.To = t.Add(24*time.Hour - time.Nanosecond)
	}
	if n, err := atoi(q.Get("limit")); err == nil && n > 0 {
		query.Limit = n
	}

	events, err := projections.QueryListAudit(r.Context(), query, s.Stores.AuditStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
