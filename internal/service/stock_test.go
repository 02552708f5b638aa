package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/store/memory"
)

func TestAdjustStockWritesOnlyChangedLines(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := asAdmin()

	result, err := svc.AdjustStock(ctx, domain.AdjustStockRequest{Items: []domain.AdjustStockItem{
		{ProductID: "prd-rice", NewStock: 35, Reason: "damaged bags"},
		{ProductID: "prd-oil", NewStock: 60},
		{ProductID: "prd-eggs", NewStock: 110},
	}})
	require.NoError(t, err)
	require.True(t, result.Changed)
	require.NotNil(t, result.Adjustment)
	require.Len(t, result.Adjustment.Lines, 2)

	rice := result.Adjustment.Lines[0]
	assert.Equal(t, "prd-rice", rice.ProductID)
	assert.Equal(t, 40, rice.OldStock)
	assert.Equal(t, -5, rice.Difference)
	assert.Equal(t, "damaged bags", rice.Reason)
	assert.Equal(t, "Manual Adjustment", result.Adjustment.Lines[1].Reason)

	assert.Equal(t, 35, stockOf(t, repo, "prd-rice"))
	assert.Equal(t, 110, stockOf(t, repo, "prd-eggs"))

	movements, err := svc.ListStockMovements(ctx, "prd-rice", 0)
	require.NoError(t, err)
	require.NotEmpty(t, movements)
	assert.Equal(t, domain.MovementAdjustment, movements[0].Kind)
	assert.Equal(t, 35, movements[0].StockAfter)

	history, err := svc.ListStockAdjustments(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestAdjustStockNoChanges(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.AdjustStock(asAdmin(), domain.AdjustStockRequest{Items: []domain.AdjustStockItem{
		{ProductID: "prd-oil", NewStock: 60},
	}})
	require.NoError(t, err)
	assert.False(t, result.Changed)
	assert.Equal(t, "no changes", result.Message)
	assert.Nil(t, result.Adjustment)

	history, err := svc.ListStockAdjustments(asAdmin(), 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestAdjustStockValidatesBeforeWriting(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := asAdmin()

	_, err := svc.AdjustStock(ctx, domain.AdjustStockRequest{Items: []domain.AdjustStockItem{
		{ProductID: "prd-rice", NewStock: 1},
		{ProductID: "prd-unknown", NewStock: 3},
	}})
	assert.Equal(t, apperror.CodeNotFound, apperror.As(err).Code)
	assert.Equal(t, 40, stockOf(t, repo, "prd-rice"))

	_, err = svc.AdjustStock(ctx, domain.AdjustStockRequest{Items: []domain.AdjustStockItem{
		{ProductID: "prd-rice", NewStock: -1},
	}})
	assert.Equal(t, apperror.CodeValidation, apperror.As(err).Code)

	_, err = svc.AdjustStock(ctx, domain.AdjustStockRequest{Items: []domain.AdjustStockItem{
		{ProductID: "prd-wrap", NewStock: 4},
	}})
	assert.Equal(t, apperror.CodeValidation, apperror.As(err).Code)

	_, err = svc.AdjustStock(ctx, domain.AdjustStockRequest{Items: []domain.AdjustStockItem{
		{ProductID: "prd-rice", NewStock: 1},
		{ProductID: "prd-rice", NewStock: 2},
	}})
	assert.Equal(t, apperror.CodeValidation, apperror.As(err).Code)
	assert.Equal(t, 40, stockOf(t, repo, "prd-rice"))
}

func TestStockIntegrityDetectsDrift(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "0", "")
	mustSell(t, svc, ctx, domain.CreateSaleRequest{Items: []domain.SaleItemInput{item("RICE-5KG", 2)}})

	report, err := svc.StockIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.Healthy())
	assert.Equal(t, 6, report.Products)

	repo.SetCachedStock(memory.DefaultTenantID, "prd-rice", 999)

	report, err = svc.StockIntegrity(ctx)
	require.NoError(t, err)
	require.Len(t, report.Drift, 1)
	assert.Equal(t, domain.StockDrift{ProductID: "prd-rice", Name: "Rice 5kg", CachedStock: 999, LedgerStock: 38}, report.Drift[0])
}

func TestListStockMovementsUnknownProduct(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.ListStockMovements(context.Background(), "prd-nope", 10)
	assert.Equal(t, apperror.CodeNotFound, apperror.As(err).Code)
}
