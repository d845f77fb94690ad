package stock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carimport/internal/adapters/storage"
	"carimport/internal/adapters/storage/storagetest"
	domain "carimport/internal/domain/stock"
)

func sampleCar(id, brand string, year int, priceCents int64, created time.Time) domain.Car {
	return domain.Car{
		ID:           id,
		Make:         brand,
		Model:        "Model",
		Year:         year,
		MileageKm:    50_000,
		Fuel:         "diesel",
		Transmission: "automatic",
		PriceCents:   priceCents,
		Status:       domain.StatusAvailable,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestSQLStore_ImagesRoundTrip(t *testing.T) {
	store := NewSQLStore(storagetest.Open(t))
	ctx := context.Background()
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	c := sampleCar("c1", "BMW", 2020, 25_000_00, now)
	require.NoError(t, store.Save(ctx, c))
	got, err := store.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, got.Images)

	require.NoError(t, got.AddImage("stock/c1/a.jpg", now))
	require.NoError(t, got.AddImage("stock/c1/b.jpg", now))
	require.NoError(t, store.Save(ctx, got))

	got, err = store.GetByID(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"stock/c1/a.jpg", "stock/c1/b.jpg"}, got.Images)
	assert.Equal(t, "stock/c1/a.jpg", got.CoverImage())
}

func TestSQLStore_ListFiltersAndSort(t *testing.T) {
	store := NewSQLStore(storagetest.Open(t))
	ctx := context.Background()
	base := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	bmw := sampleCar("c1", "BMW", 2019, 30_000_00, base)
	audi := sampleCar("c2", "Audi", 2021, 20_000_00, base.Add(time.Hour))
	audi.Fuel = "petrol"
	sold := sampleCar("c3", "Audi", 2022, 40_000_00, base.Add(2*time.Hour))
	sold.Status = domain.StatusSold
	for _, c := range []domain.Car{bmw, audi, sold} {
		require.NoError(t, store.Save(ctx, c))
	}

	available, err := store.List(ctx, ListFilter{Status: domain.StatusAvailable, Sort: "price", Dir: "asc"})
	require.NoError(t, err)
	require.Len(t, available, 2)
	assert.Equal(t, "c2", available[0].ID)

	audis, err := store.Count(ctx, ListFilter{Make: " audi "})
	require.NoError(t, err)
	assert.Equal(t, 2, audis)

	cheap, err := store.List(ctx, ListFilter{MaxPriceCents: 30_000_00})
	require.NoError(t, err)
	assert.Len(t, cheap, 2)

	diesel, err := store.List(ctx, ListFilter{Fuel: "diesel", Sort: "year", Dir: "desc"})
	require.NoError(t, err)
	require.Len(t, diesel, 2)
	assert.Equal(t, "c3", diesel[0].ID)

	counts, err := store.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{domain.StatusAvailable: 2, domain.StatusSold: 1}, counts)
}

func TestSQLStore_Delete(t *testing.T) {
	store := NewSQLStore(storagetest.Open(t))
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sampleCar("c1", "Kia", 2020, 10_000_00, time.Now())))
	require.NoError(t, store.Delete(ctx, "c1"))

	_, err := store.GetByID(ctx, "c1")
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}
