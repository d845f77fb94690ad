package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"carimport/internal/adapters/storage"
	"carimport/internal/adapters/storage/storagetest"
	domain "carimport/internal/domain/audit"
)

func TestSQLStore_SaveAndGet(t *testing.T) {
	store := NewSQLStore(storagetest.Open(t))
	ctx := context.Background()

	actor := domain.Actor{ID: "admin-1", Email: "admin@example.com", Role: "admin", IP: "10.0.0.1", Agent: "curl"}
	e := domain.NewEvent(actor, domain.CategoryRequest, domain.ActionStatusChange).
		WithResource("car_request", "r1").
		WithDescription("new -> in_review").
		WithMetadata(`{"from":"new","to":"in_review"}`)
	if err := store.Save(ctx, e); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := store.GetByID(ctx, e.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.ActorEmail != "admin@example.com" || got.ResourceID != "r1" || got.IPAddress != "10.0.0.1" {
		t.Errorf("unexpected event: %+v", got)
	}
	if !got.Timestamp.Equal(e.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, e.Timestamp)
	}

	if _, err := store.GetByID(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLStore_ListFilters(t *testing.T) {
	store := NewSQLStore(storagetest.Open(t))
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	mk := func(id string, cat domain.Category, action domain.Action, actorID string, at time.Time) domain.Event {
		e := domain.NewEvent(domain.Actor{ID: actorID}, cat, action)
		e.ID = id
		e.Timestamp = at
		return e
	}
	events := []domain.Event{
		mk("e1", domain.CategorySecurity, domain.ActionLoginFailed, "", base).WithSeverity(domain.SeverityWarning),
		mk("e2", domain.CategoryRequest, domain.ActionStatusChange, "admin-1", base.Add(time.Minute)),
		mk("e3", domain.CategoryDocument, domain.ActionReview, "admin-1", base.Add(2*time.Minute)).
			WithResource("document", "d1"),
		mk("e4", domain.CategoryRequest, domain.ActionAssign, "admin-2", base.Add(500*time.Millisecond)),
	}
	for _, e := range events {
		if err := store.Save(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all newest first", Filter{}, []string{"e3", "e2", "e4", "e1"}},
		{"category", Filter{Category: domain.CategoryRequest}, []string{"e2", "e4"}},
		{"actor", Filter{ActorID: "admin-1"}, []string{"e3", "e2"}},
		{"severity", Filter{Severity: domain.SeverityWarning}, []string{"e1"}},
		{"resource", Filter{ResourceType: "document", ResourceID: "d1"}, []string{"e3"}},
		{"time window", Filter{From: base.Add(time.Second), To: base.Add(90 * time.Second)}, []string{"e2"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.List(ctx, tt.filter, 50)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(got), len(tt.want))
			}
			for i, id := range tt.want {
				if got[i].ID != id {
					t.Errorf("event[%d] = %s, want %s", i, got[i].ID, id)
				}
			}
		})
	}
}
