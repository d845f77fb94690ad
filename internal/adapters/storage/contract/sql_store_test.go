package contract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carimport/internal/adapters/storage"
	"carimport/internal/adapters/storage/carrequest"
	"carimport/internal/adapters/storage/storagetest"
	domainRequest "carimport/internal/domain/carrequest"
	domain "carimport/internal/domain/contract"
)

func setup(t *testing.T) (*SQLStore, context.Context) {
	t.Helper()
	db := storagetest.Open(t)
	ctx := context.Background()
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	req := domainRequest.CarRequest{
		ID: "r1", Reference: "CR-20260401-BBBBBB", AccountID: "acc-1", ContactName: "Ana",
		ContactEmail: "ana@example.com", Make: "Skoda", BudgetCents: 20_000_00, Fuel: domainRequest.FuelAny,
		Transmission: domainRequest.TransmissionAny, Status: domainRequest.StatusAccepted, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, carrequest.NewSQLStore(db).Save(ctx, req))
	return NewSQLStore(db), ctx
}

func TestSQLStore_NextNumber(t *testing.T) {
	store, ctx := setup(t)

	first, err := store.NextNumber(ctx, 2026)
	require.NoError(t, err)
	second, err := store.NextNumber(ctx, 2026)
	require.NoError(t, err)
	nextYear, err := store.NextNumber(ctx, 2027)
	require.NoError(t, err)

	assert.Equal(t, "CI-2026-000001", first)
	assert.Equal(t, "CI-2026-000002", second)
	assert.Equal(t, "CI-2027-000001", nextYear)
}

func TestSQLStore_SaveTransitionAndList(t *testing.T) {
	store, ctx := setup(t)
	created := time.Date(2026, 4, 10, 8, 0, 0, 0, time.UTC)
	number, err := store.NextNumber(ctx, created.Year())
	require.NoError(t, err)

	c := domain.Contract{
		ID:                 "c1",
		Number:             number,
		RequestID:          "r1",
		AccountID:          "acc-1",
		VehicleDescription: "Skoda Octavia Combi 2.0 TDI",
		PriceCents:         19_900_00,
		DepositCents:       2_000_00,
		Status:             domain.StatusDraft,
		CreatedAt:          created,
	}
	require.NoError(t, store.Save(ctx, c))

	c.VIN = "TMBJJ7NE5L0123456"
	require.NoError(t, c.TransitionTo(domain.StatusSent, created.Add(time.Hour)))
	c.Number = "CI-1999-000009"
	require.NoError(t, store.Save(ctx, c))

	got, err := store.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, number, got.Number, "number is fixed once created")
	assert.Equal(t, domain.StatusSent, got.Status)
	assert.Equal(t, "TMBJJ7NE5L0123456", got.VIN)
	assert.True(t, got.SentAt.Equal(created.Add(time.Hour)))
	assert.True(t, got.SignedAt.IsZero())
	assert.Equal(t, int64(17_900_00), got.BalanceCents())

	list, err := store.List(ctx, ListFilter{AccountID: "acc-1"})
	require.NoError(t, err)
	assert.Len(t, list, 1)

	n, err := store.Count(ctx, ListFilter{Status: domain.StatusDraft})
	require.NoError(t, err)
	assert.Zero(t, n)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{domain.StatusSent: 1}, counts)
}

func TestSQLStore_NotFound(t *testing.T) {
	store, ctx := setup(t)
	_, err := store.GetByID(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
