package service_test

import (
	"context"
	"testing"

	"github.com/Guizzs26/watch-crm/internal/db"
	"github.com/Guizzs26/watch-crm/internal/db/dbtest"
	"github.com/Guizzs26/watch-crm/internal/models"
	"github.com/Guizzs26/watch-crm/internal/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func newCatalog(t *testing.T) *service.CatalogService {
	t.Helper()
	return service.NewCatalogService(dbtest.Open(t), nil)
}

func seedWatch(t *testing.T, c *service.CatalogService, brand, model, ref, price string) models.Watch {
	t.Helper()
	w, err := c.CreateWatch(context.Background(), models.Watch{
		Brand:     brand,
		Model:     model,
		Reference: ref,
		Price:     decimal.RequireFromString(price),
	})
	require.NoError(t, err)
	return w
}

func TestCatalog_CreateWatchDefaults(t *testing.T) {
	c := newCatalog(t)

	w, err := c.CreateWatch(context.Background(), models.Watch{
		Brand:     " Omega ",
		Model:     "Speedmaster Professional",
		Reference: "310.30.42.50.01.001",
		Year:      2021,
		Price:     decimal.RequireFromString("6350.50"),
	})
	require.NoError(t, err)

	assert.Positive(t, w.ID)
	assert.Equal(t, "Omega", w.Brand)
	assert.Equal(t, 2021, w.Year)
	assert.Equal(t, models.WatchAvailable, w.Status)
	assert.Equal(t, service.DefaultCurrency, w.Currency)
	assert.True(t, w.Price.Equal(decimal.RequireFromString("6350.5")), "got price %s", w.Price)
	assert.NotNil(t, w.CreatedAt)
	assert.Nil(t, w.UpdatedAt)
}

func TestCatalog_CreateWatchValidation(t *testing.T) {
	c := newCatalog(t)

	tests := []struct {
		name  string
		watch models.Watch
	}{
		{name: "missing brand", watch: models.Watch{Model: "Submariner", Price: decimal.NewFromInt(9000)}},
		{name: "missing model", watch: models.Watch{Brand: "Rolex", Price: decimal.NewFromInt(9000)}},
		{name: "zero price", watch: models.Watch{Brand: "Rolex", Model: "Submariner"}},
		{name: "negative price", watch: models.Watch{Brand: "Rolex", Model: "Submariner", Price: decimal.NewFromInt(-1)}},
		{name: "unknown status", watch: models.Watch{Brand: "Rolex", Model: "Submariner", Price: decimal.NewFromInt(9000), Status: "lost"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.CreateWatch(context.Background(), tt.watch)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}
}

func TestCatalog_DuplicateReference(t *testing.T) {
	c := newCatalog(t)
	seedWatch(t, c, "Rolex", "Submariner", "124060", "9500")

	_, err := c.CreateWatch(context.Background(), models.Watch{
		Brand: "Rolex", Model: "Submariner", Reference: "124060", Price: decimal.NewFromInt(9400),
	})
	assert.ErrorIs(t, err, service.ErrDuplicateReference)
}

func TestCatalog_ListWatches(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()

	omega := seedWatch(t, c, "Omega", "Seamaster", "210.30", "4200")
	rolex := seedWatch(t, c, "Rolex", "Datejust", "126234", "8900")
	tudor := seedWatch(t, c, "Tudor", "Black Bay", "79230", "3100")
	_, err := c.MarkSold(ctx, tudor.ID)
	require.NoError(t, err)

	ids := func(ws []models.Watch) []int64 {
		out := make([]int64, len(ws))
		for i, w := range ws {
			out[i] = w.ID
		}
		return out
	}

	tests := []struct {
		name   string
		filter service.WatchFilter
		want   []int64
	}{
		{name: "all newest first", filter: service.WatchFilter{}, want: []int64{tudor.ID, rolex.ID, omega.ID}},
		{name: "by brand", filter: service.WatchFilter{Brand: "Rolex"}, want: []int64{rolex.ID}},
		{name: "available only", filter: service.WatchFilter{Status: models.WatchAvailable}, want: []int64{rolex.ID, omega.ID}},
		{name: "max price", filter: service.WatchFilter{MaxPrice: ptr(decimal.NewFromInt(5000))}, want: []int64{tudor.ID, omega.ID}},
		{name: "page", filter: service.WatchFilter{Limit: 1, Offset: 1}, want: []int64{rolex.ID}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ListWatches(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}

	_, err = c.ListWatches(ctx, service.WatchFilter{Status: "lost"})
	assert.ErrorIs(t, err, service.ErrValidation)
}

func TestCatalog_UpdateWatch(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	w := seedWatch(t, c, "Omega", "Seamaster", "210.30", "4200")

	updated, err := c.UpdateWatch(ctx, w.ID, service.WatchPatch{
		Price:     ptr(decimal.NewFromInt(3990)),
		Condition: ptr("excellent"),
	})
	require.NoError(t, err)
	assert.True(t, updated.Price.Equal(decimal.NewFromInt(3990)))
	assert.Equal(t, "excellent", updated.Condition)
	assert.Equal(t, "Seamaster", updated.Model, "untouched fields keep their value")
	assert.NotNil(t, updated.UpdatedAt)

	_, err = c.UpdateWatch(ctx, w.ID, service.WatchPatch{Status: ptr(models.WatchStatus("lost"))})
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = c.UpdateWatch(ctx, 999, service.WatchPatch{Condition: ptr("mint")})
	assert.ErrorIs(t, err, service.ErrWatchNotFound)

	same, err := c.UpdateWatch(ctx, w.ID, service.WatchPatch{})
	require.NoError(t, err)
	assert.Equal(t, w.ID, same.ID)
}

func TestCatalog_MarkSoldAndDelete(t *testing.T) {
	c := newCatalog(t)
	ctx := context.Background()
	w := seedWatch(t, c, "Cartier", "Santos", "WSSA0018", "7100")

	sold, err := c.MarkSold(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, models.WatchSold, sold.Status)

	_, err = c.MarkSold(ctx, w.ID)
	assert.ErrorIs(t, err, service.ErrWatchSold)

	require.NoError(t, c.DeleteWatch(ctx, w.ID))
	assert.ErrorIs(t, c.DeleteWatch(ctx, w.ID), service.ErrWatchNotFound)

	_, err = c.GetWatch(ctx, w.ID)
	assert.ErrorIs(t, err, service.ErrWatchNotFound)
}

func TestCatalog_OnlyUniqueViolationsAreDuplicates(t *testing.T) {
	const strictDDL = `CREATE TABLE watches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		brand TEXT NOT NULL,
		model TEXT NOT NULL,
		reference TEXT UNIQUE,
		year INTEGER,
		condition TEXT NOT NULL,
		price NUMERIC,
		currency TEXT,
		status TEXT NOT NULL DEFAULT 'available',
		description TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP
	)`
	c := service.NewCatalogService(dbtest.Open(t, strictDDL), nil)

	_, err := c.CreateWatch(context.Background(), models.Watch{
		Brand: "Seiko", Model: "SKX007", Price: decimal.NewFromInt(300),
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, service.ErrDuplicateReference, "a missing condition is not a duplicate")

	var storageErr *db.StorageError
	assert.ErrorAs(t, err, &storageErr)
}
