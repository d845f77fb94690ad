package carrequest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carimport/internal/adapters/storage"
	"carimport/internal/adapters/storage/storagetest"
	domain "carimport/internal/domain/carrequest"
)

func sampleRequest(id string, created time.Time) domain.CarRequest {
	return domain.CarRequest{
		ID:           id,
		Reference:    domain.NewReference(created, id+"-abcdef"),
		ContactName:  "Marko Horvat",
		ContactEmail: "marko@example.com",
		Country:      "HR",
		Make:         "Volkswagen",
		Model:        "Golf",
		YearFrom:     2019,
		YearTo:       2022,
		BudgetCents:  18_000_00,
		Fuel:         domain.FuelDiesel,
		Transmission: domain.TransmissionManual,
		Status:       domain.StatusNew,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestSQLStore_SaveAndGet(t *testing.T) {
	store := NewSQLStore(storagetest.Open(t))
	ctx := context.Background()
	created := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

	r := sampleRequest("r1", created)
	r.AccountID = "acc-1"
	r.Notes = "Prefer dark colours"
	require.NoError(t, store.Save(ctx, r))

	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, r.Reference, got.Reference)
	assert.Equal(t, "acc-1", got.AccountID)
	assert.Equal(t, int64(18_000_00), got.BudgetCents)
	assert.Equal(t, "Prefer dark colours", got.Notes)
	assert.True(t, got.CreatedAt.Equal(created))

	byRef, err := store.GetByReference(ctx, r.Reference)
	require.NoError(t, err)
	assert.Equal(t, "r1", byRef.ID)
}

func TestSQLStore_UpdateKeepsIdentity(t *testing.T) {
	store := NewSQLStore(storagetest.Open(t))
	ctx := context.Background()
	created := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

	r := sampleRequest("r1", created)
	require.NoError(t, store.Save(ctx, r))

	r.Status = domain.StatusInReview
	r.AssignedTo = "staff-1"
	r.AdminNotes = "Called customer"
	r.Reference = "CR-CHANGED"
	r.UpdatedAt = created.Add(time.Hour)
	require.NoError(t, store.Save(ctx, r))

	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInReview, got.Status)
	assert.Equal(t, "staff-1", got.AssignedTo)
	assert.NotEqual(t, "CR-CHANGED", got.Reference)
	assert.True(t, got.UpdatedAt.Equal(created.Add(time.Hour)))
}

func TestSQLStore_LinksAnonymousRequestOnce(t *testing.T) {
	store := NewSQLStore(storagetest.Open(t))
	ctx := context.Background()
	created := time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

	r := sampleRequest("r1", created)
	require.NoError(t, store.Save(ctx, r))

	r.AccountID = "acc-7"
	require.NoError(t, store.Save(ctx, r))
	got, err := store.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "acc-7", got.AccountID)

	r.AccountID = "acc-8"
	require.NoError(t, store.Save(ctx, r))
	got, err = store.GetByID(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "acc-7", got.AccountID, "a linked request keeps its owner")

	mine, err := store.List(ctx, ListFilter{AccountID: "acc-7"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
}

func TestSQLStore_NotFound(t *testing.T) {
	store := NewSQLStore(storagetest.Open(t))
	_, err := store.GetByID(context.Background(), "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestSQLStore_ListFilters(t *testing.T) {
	store := NewSQLStore(storagetest.Open(t))
	ctx := context.Background()
	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)

	r1 := sampleRequest("r1", base)
	r1.AccountID = "acc-1"
	r2 := sampleRequest("r2", base.Add(time.Hour))
	r2.Make = "BMW"
	r2.Model = "X3"
	r2.BudgetCents = 40_000_00
	r2.Status = domain.StatusInReview
	r3 := sampleRequest("r3", base.Add(2*time.Hour))
	r3.AccountID = "acc-1"
	r3.ContactEmail = "ivana@example.com"
	for _, r := range []domain.CarRequest{r1, r2, r3} {
		require.NoError(t, store.Save(ctx, r))
	}

	all, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "r3", all[0].ID)

	mine, err := store.List(ctx, ListFilter{AccountID: "acc-1"})
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	inReview, err := store.List(ctx, ListFilter{Status: domain.StatusInReview})
	require.NoError(t, err)
	require.Len(t, inReview, 1)
	assert.Equal(t, "r2", inReview[0].ID)

	bmw, err := store.List(ctx, ListFilter{Search: "bmw"})
	require.NoError(t, err)
	require.Len(t, bmw, 1)

	byEmail, err := store.Count(ctx, ListFilter{Search: "ivana@"})
	require.NoError(t, err)
	assert.Equal(t, 1, byEmail)

	byBudget, err := store.List(ctx, ListFilter{Sort: "budget", Dir: "desc"})
	require.NoError(t, err)
	assert.Equal(t, "r2", byBudget[0].ID)

	page, err := store.List(ctx, ListFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "r1", page[0].ID)
}

func TestSQLStore_Counts(t *testing.T) {
	store := NewSQLStore(storagetest.Open(t))
	ctx := context.Background()

	march := sampleRequest("r1", time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC))
	april := sampleRequest("r2", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC))
	aprilOffered := sampleRequest("r3", time.Date(2026, 4, 20, 0, 0, 0, 0, time.UTC))
	aprilOffered.Status = domain.StatusOffered
	old := sampleRequest("r4", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	for _, r := range []domain.CarRequest{march, april, aprilOffered, old} {
		require.NoError(t, store.Save(ctx, r))
	}

	byStatus, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{domain.StatusNew: 3, domain.StatusOffered: 1}, byStatus)

	since := storage.FormatTime(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	byMonth, err := store.CountByMonth(ctx, since)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"2026-03": 1, "2026-04": 2}, byMonth)
}
