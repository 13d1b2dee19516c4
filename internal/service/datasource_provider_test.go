package service

import (
	"context"
	"testing"
	"time"

	"euno-analytics-be/internal/dto"
	"euno-analytics-be/internal/entity"
	"euno-analytics-be/internal/repository/memory"
	"euno-analytics-be/pkg/schema"
	"euno-analytics-be/pkg/tier"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataSourceProvider_GetMany(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, nil)
	userId := h.user(t, tier.Professional, tier.StatusActive)
	other := h.user(t, tier.Professional, tier.StatusActive)

	sales := h.salesSource(t, userId)
	stock, err := h.sources.Register(ctx, userId, "stock.csv", entity.SourceKindFile, schema.NewResultSet(
		[]string{"product", "units"},
		[]schema.Row{{"product": "Widget", "units": 12.0}},
	))
	require.NoError(t, err)
	foreign := h.salesSource(t, other)

	// a cold cache goes to the database in one batch
	cold := NewDataSourceProvider(h.uowFactory, memory.NewDataSourceCache(time.Minute))
	for _, p := range []DataSourceProvider{h.sources, cold} {
		got, err := p.GetMany(ctx, userId, []uuid.UUID{stock.Id, sales})
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "stock.csv", got[0].Name)
		assert.Equal(t, sales, got[1].Id)
		assert.NotEmpty(t, got[1].SchemaProfile)

		_, err = p.GetMany(ctx, userId, []uuid.UUID{sales, foreign})
		assert.ErrorIs(t, err, dto.ErrNotFound)

		_, err = p.GetMany(ctx, userId, []uuid.UUID{uuid.New()})
		assert.ErrorIs(t, err, dto.ErrNotFound)
	}
}
