package web

import (
	"errors"
	"net/http"
	"strings"

	"carimport/internal/application/projections"
	domainOutbox "carimport/internal/domain/outbox"
)

// errOutboxDisabled is returned when no processor is wired.
var errOutboxDisabled = errors.New("outbox processor is not configured")

// handleAdminOutbox lists outbox entries with per-status totals.
// Routes: GET /api/admin/outbox?status=failed&action_type=send_email
func (s *server) handleAdminOutbox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status == "" {
		status = domainOutbox.StatusFailed
	}
	if status == "all" {
		status = ""
	}
	limit, err := atoi(q.Get("limit"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := projections.QueryListOutbox(r.Context(), projections.ListOutboxQuery{
		Status:     status,
		ActionType: q.Get("action_type"),
		Limit:      limit,
	}, s.Stores.OutboxStore)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entries := make([]outboxJSON, 0, len(res.Entries))
	for _, e := range res.Entries {
		entries = append(entries, toOutbox(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries, "by_status": res.ByStatus})
}

// handleAdminOutboxAction retries or abandons one entry.
// Routes: POST /api/admin/outbox/{id}/retry, POST /api/admin/outbox/{id}/abandon
// POST: retry runs the entry now; abandon marks it final. Both are audited.
func (s *server) handleAdminOutboxAction(w http.ResponseWriter, r *http.Request) {
	if s.Outbox == nil {
		s.fail(w, r, errOutboxDisabled)
		return
	}
	id := r.PathValue("id")
	actor := s.actor(r)

	var err error
	result := "abandoned"
	if strings.HasSuffix(r.URL.Path, "/retry") {
		result = "retried"
		err = s.Outbox.RetryEntry(r.Context(), id, actor)
	} else {
		err = s.Outbox.AbandonEntry(r.Context(), id, actor)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}
	entry, err := s.Stores.OutboxStore.GetByID(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": result, "entry": toOutbox(entry)})
}
