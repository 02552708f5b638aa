package service

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/domain"
)

func returnOne(code string, qty int) domain.ReturnItemsRequest {
	return domain.ReturnItemsRequest{Items: []domain.ReturnItemInput{{Code: code, Qty: qty}}}
}

func TestPartialReturnRefundsUnitPrice(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "0", "")
	sale := mustSell(t, svc, ctx, domain.CreateSaleRequest{Items: []domain.SaleItemInput{item("OIL-1L", 2)}})

	result, err := svc.ReturnItems(ctx, sale.ID, returnOne("OIL-1L", 1))
	require.NoError(t, err)

	assert.Equal(t, domain.SaleStatusPartialReturned, result.Sale.Status)
	assert.Equal(t, 1, result.Sale.Lines[0].Remaining())
	require.NotNil(t, result.Return)
	assert.True(t, result.Return.TotalRefund.Equal(dec("50")))
	assert.Equal(t, result.Sale.DerivedStatus(), result.Sale.Status)
	assert.Equal(t, 59, stockOf(t, repo, "prd-oil"))
}

func TestReturnRoundTripRestoresStock(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "0", "")
	before := stockOf(t, repo, "prd-rice")

	sale := mustSell(t, svc, ctx, domain.CreateSaleRequest{Items: []domain.SaleItemInput{item("RICE-5KG", 3)}})
	assert.Equal(t, before-3, stockOf(t, repo, "prd-rice"))

	result, err := svc.ReturnItems(ctx, fmt.Sprintf("#%d", sale.ReceiptNo), returnOne("RICE-5KG", 3))
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusReturned, result.Sale.Status)
	assert.Equal(t, before, stockOf(t, repo, "prd-rice"))
}

func TestReturnRejectsWholeRequestOnOverReturn(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "0", "")
	sale := mustSell(t, svc, ctx, domain.CreateSaleRequest{
		Items: []domain.SaleItemInput{item("OIL-1L", 2), item("SUGAR-1KG", 1)},
	})

	_, err := svc.ReturnItems(ctx, sale.ID, domain.ReturnItemsRequest{Items: []domain.ReturnItemInput{
		{Code: "OIL-1L", Qty: 1},
		{Code: "SUGAR-1KG", Qty: 2},
	}})
	assert.ErrorIs(t, err, apperror.ErrOverReturn)

	stored, err := svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Lines[0].ReturnedQty)
	assert.Empty(t, stored.Returns)
	assert.Equal(t, 58, stockOf(t, repo, "prd-oil"))
}

func TestReturnUnknownCodeIsNotFound(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "0", "")
	sale := mustSell(t, svc, ctx, domain.CreateSaleRequest{Items: []domain.SaleItemInput{item("OIL-1L", 1)}})

	_, err := svc.ReturnItems(ctx, sale.ID, returnOne("EGG-10", 1))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNotFound, apperror.As(err).Code)

	_, err = svc.ReturnItems(ctx, "sale-missing", returnOne("OIL-1L", 1))
	assert.Equal(t, apperror.CodeNotFound, apperror.As(err).Code)
}

func TestReturnIsIdempotentByRequestID(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "0", "")
	sale := mustSell(t, svc, ctx, domain.CreateSaleRequest{Items: []domain.SaleItemInput{item("EGG-10", 3)}})

	req := returnOne("EGG-10", 1)
	req.RequestID = "ret-0001"
	first, err := svc.ReturnItems(ctx, sale.ID, req)
	require.NoError(t, err)
	retry, err := svc.ReturnItems(ctx, sale.ID, req)
	require.NoError(t, err)

	assert.True(t, retry.Duplicate)
	assert.Equal(t, first.Return.ID, retry.Return.ID)
	assert.Len(t, retry.Sale.Returns, 1)
	assert.Equal(t, 1, retry.Sale.Lines[0].ReturnedQty)
	assert.Equal(t, 98, stockOf(t, repo, "prd-eggs"))
}

func TestConcurrentReturnsOfLastUnit(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "0", "")
	sale := mustSell(t, svc, ctx, domain.CreateSaleRequest{Items: []domain.SaleItemInput{item("BLENDER-01", 1)}})

	const attempts = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := returnOne("BLENDER-01", 1)
			req.RequestID = fmt.Sprintf("ret-%d", i)
			_, err := svc.ReturnItems(ctx, sale.ID, req)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, apperror.ErrOverReturn):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, rejected)

	stored, err := svc.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Lines[0].ReturnedQty)
	assert.LessOrEqual(t, stored.Lines[0].ReturnedQty, stored.Lines[0].Qty)
	assert.Equal(t, 10, stockOf(t, repo, "prd-blender"))
}

func TestCancelAfterPartialReturnRestoresRemainder(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "0", "")
	sale := mustSell(t, svc, ctx, domain.CreateSaleRequest{Items: []domain.SaleItemInput{item("SUGAR-1KG", 5)}})
	_, err := svc.ReturnItems(ctx, sale.ID, returnOne("SUGAR-1KG", 2))
	require.NoError(t, err)
	require.Equal(t, 77, stockOf(t, repo, "prd-sugar"))

	cancelled, err := svc.CancelSale(ctx, sale.ID, "customer left")
	require.NoError(t, err)
	assert.Equal(t, domain.SaleStatusCancelled, cancelled.Status)
	assert.Equal(t, "cashier", cancelled.CancelledBy)
	assert.Equal(t, 80, stockOf(t, repo, "prd-sugar"))

	_, err = svc.CancelSale(ctx, sale.ID, "")
	assert.ErrorIs(t, err, apperror.ErrAlreadyCancelled)
	_, err = svc.ReturnItems(ctx, sale.ID, returnOne("SUGAR-1KG", 1))
	assert.ErrorIs(t, err, apperror.ErrAlreadyCancelled)
	assert.Equal(t, 80, stockOf(t, repo, "prd-sugar"))

	report, err := svc.StockIntegrity(asAdmin())
	require.NoError(t, err)
	assert.True(t, report.Healthy())
}

func TestCancelFullyReturnedSaleIsInvalid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "0", "")
	sale := mustSell(t, svc, ctx, domain.CreateSaleRequest{Items: []domain.SaleItemInput{item("OIL-1L", 1)}})
	_, err := svc.ReturnItems(ctx, sale.ID, returnOne("OIL-1L", 1))
	require.NoError(t, err)

	_, err = svc.CancelSale(ctx, sale.ID, "")
	assert.ErrorIs(t, err, apperror.ErrInvalidState)
}

func TestCancelledSaleLeavesShiftTotals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "100", "")
	sale := mustSell(t, svc, ctx, domain.CreateSaleRequest{Items: []domain.SaleItemInput{item("BLENDER-01", 1)}})
	_, err := svc.CancelSale(ctx, sale.ID, "")
	require.NoError(t, err)

	summary, err := svc.SummarizeShift(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.SaleCount)
	assert.True(t, summary.ExpectedCash.Equal(dec("100")))
}
