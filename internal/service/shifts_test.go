package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/store/memory"
)

func TestOpenShiftTwiceFails(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "100", "")

	_, err := svc.OpenShift(ctx, domain.OpenShiftRequest{StartCash: dec("100")})
	assert.ErrorIs(t, err, apperror.ErrShiftAlreadyOpen)

	_, err = svc.OpenShift(asCashier("cashier2"), domain.OpenShiftRequest{StartCash: dec("50")})
	assert.NoError(t, err, "another cashier may open a shift of their own")
}

func TestCloseShiftExpectedCash(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "500", "")

	sale := mustSell(t, svc, ctx, domain.CreateSaleRequest{
		Items:         []domain.SaleItemInput{item("BLENDER-01", 1)},
		PaymentMethod: domain.PaymentCash,
	})
	require.True(t, sale.Tax.Amount.Equal(dec("28")))
	require.True(t, sale.Total.Equal(dec("228")))

	shift, err := svc.CloseShift(ctx, domain.CloseShiftRequest{ActualCash: dec("730")})
	require.NoError(t, err)

	assert.Equal(t, domain.ShiftStatusClosed, shift.Status)
	require.NotNil(t, shift.EndTime)
	require.NotNil(t, shift.Closing)
	assert.True(t, shift.Closing.Summary.ExpectedCash.Equal(dec("728")))
	assert.True(t, shift.Closing.CashDifference.Equal(dec("2")))
	assert.True(t, shift.Closing.CardDifference.IsZero())

	_, err = svc.CloseShift(ctx, domain.CloseShiftRequest{})
	assert.ErrorIs(t, err, apperror.ErrNoOpenShift)
	_, err = svc.CreateSale(ctx, domain.CreateSaleRequest{Items: []domain.SaleItemInput{item("OIL-1L", 1)}})
	assert.ErrorIs(t, err, apperror.ErrNoOpenShift)
}

func TestSummaryAccountsForRefundsExpensesAndDrawer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "500", "")

	cardSale := mustSell(t, svc, ctx, domain.CreateSaleRequest{
		Items:         []domain.SaleItemInput{item("RICE-5KG", 1)},
		PaymentMethod: domain.PaymentCard,
	})
	mustSell(t, svc, ctx, domain.CreateSaleRequest{Items: []domain.SaleItemInput{item("OIL-1L", 2)}})
	_, err := svc.ReturnItems(ctx, cardSale.ID, returnOne("RICE-5KG", 1))
	require.NoError(t, err)

	_, err = svc.CreateExpense(ctx, domain.ExpenseCreateRequest{Description: "Ice", Amount: dec("10")})
	require.NoError(t, err)
	_, err = svc.RecordCashMovement(ctx, domain.CashMovementRequest{Type: domain.CashIn, Amount: dec("40"), Reason: "change"})
	require.NoError(t, err)
	_, err = svc.RecordCashMovement(ctx, domain.CashMovementRequest{Type: domain.CashOut, Amount: dec("15"), Reason: "bank drop"})
	require.NoError(t, err)

	summary, err := svc.SummarizeShift(ctx)
	require.NoError(t, err)

	// oil 2x50 + 14% tax = 114 cash, rice 75 + 14% tax = 85.5 card, refund 75
	assert.Equal(t, 2, summary.SaleCount)
	assert.True(t, summary.CashSales.Equal(dec("114")))
	assert.True(t, summary.CardSales.Equal(dec("85.5")))
	assert.True(t, summary.TotalRefunds.Equal(dec("75")))
	assert.True(t, summary.RefundsByMethod[domain.PaymentCard].Equal(dec("75")))
	assert.True(t, summary.Expenses.Equal(dec("10")))
	assert.True(t, summary.ExpectedCash.Equal(dec("554")), "expected=%s", summary.ExpectedCash)
}

func TestSummarizeLeavesSplitSalesOutOfBuckets(t *testing.T) {
	start := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	ledger := store.ShiftLedger{
		Shift: domain.Shift{ID: "shift-1", StartCash: dec("100"), StartTime: start},
		Sales: []domain.Sale{
			{ShiftID: "shift-1", Total: dec("60"), PaymentMethod: domain.PaymentSplit, Status: domain.SaleStatusFinished},
			{ShiftID: "shift-1", Total: dec("40"), PaymentMethod: domain.PaymentCash, Status: domain.SaleStatusFinished},
			{ShiftID: "shift-1", Total: dec("999"), PaymentMethod: domain.PaymentCash, Status: domain.SaleStatusCancelled},
		},
		Expenses: []domain.Expense{
			{Amount: dec("5"), SpentAt: start.Add(time.Hour)},
			{Amount: dec("50"), SpentAt: start.Add(-time.Hour)},
		},
	}

	summary := Summarize(ledger)
	assert.Equal(t, 2, summary.SaleCount)
	assert.True(t, summary.TotalSales.Equal(dec("100")))
	assert.True(t, summary.SplitSales.Equal(dec("60")))
	assert.True(t, summary.CashSales.Equal(dec("40")))
	assert.True(t, summary.Expenses.Equal(dec("5")))
	assert.True(t, summary.ExpectedCash.Equal(dec("135")))
}

func TestReadOnlyTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	owner := asCashier("cashier")
	visitor := asCashier("cashier2")
	mustOpenShift(t, svc, owner, "0", "till-1")

	session, err := svc.CurrentShift(owner, "till-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TerminalModeOwner, session.Mode)

	session, err = svc.CurrentShift(visitor, "till-1")
	require.NoError(t, err)
	assert.Equal(t, domain.TerminalModeReadOnly, session.Mode)
	assert.Equal(t, "cashier", session.OwnerCashier)

	session, err = svc.CurrentShift(visitor, "till-2")
	require.NoError(t, err)
	assert.Equal(t, domain.TerminalModeNone, session.Mode)

	_, err = svc.OpenShift(visitor, domain.OpenShiftRequest{TerminalID: "till-1"})
	assert.ErrorIs(t, err, apperror.ErrReadOnlyTerminal)

	mustOpenShift(t, svc, visitor, "0", "till-2")
	_, err = svc.CreateSale(visitor, domain.CreateSaleRequest{TerminalID: "till-1", Items: []domain.SaleItemInput{item("OIL-1L", 1)}})
	assert.ErrorIs(t, err, apperror.ErrReadOnlyTerminal)
	_, err = svc.HoldOrder(visitor, domain.HoldOrderRequest{TerminalID: "till-1", Items: []domain.SaleItemInput{item("OIL-1L", 1)}})
	assert.ErrorIs(t, err, apperror.ErrReadOnlyTerminal)

	products, err := svc.ListProducts(visitor)
	require.NoError(t, err)
	assert.NotEmpty(t, products)
}

func TestHeldOrdersBlockClose(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "0", "")

	_, err := svc.CloseShift(ctx, domain.CloseShiftRequest{HeldOrdersPending: true})
	assert.ErrorIs(t, err, apperror.ErrHeldOrdersPending)

	order, err := svc.HoldOrder(ctx, domain.HoldOrderRequest{
		Label: "Table 4",
		Items: []domain.SaleItemInput{item("EGG-10", 1)},
	})
	require.NoError(t, err)

	_, err = svc.CloseShift(ctx, domain.CloseShiftRequest{})
	assert.ErrorIs(t, err, apperror.ErrHeldOrdersPending)

	held, err := svc.ListHeldOrders(ctx)
	require.NoError(t, err)
	require.Len(t, held, 1)

	resumed, err := svc.ResumeHeldOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "Table 4", resumed.Label)
	require.Len(t, resumed.Items, 1)

	_, err = svc.ResumeHeldOrder(ctx, order.ID)
	assert.Equal(t, apperror.CodeNotFound, apperror.As(err).Code)

	_, err = svc.CloseShift(ctx, domain.CloseShiftRequest{})
	assert.NoError(t, err)
}

func TestHoldRacingCloseNeverStrandsAnOrder(t *testing.T) {
	for round := 0; round < 20; round++ {
		svc, repo := newTestService(t)
		ctx := asCashier("cashier")
		mustOpenShift(t, svc, ctx, "0", "")

		var (
			wg       sync.WaitGroup
			mu       sync.Mutex
			held     int
			closeErr error
		)
		for i := 0; i < 6; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := svc.HoldOrder(ctx, domain.HoldOrderRequest{Items: []domain.SaleItemInput{item("EGG-10", 1)}})
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					held++
				case errors.Is(err, apperror.ErrNoOpenShift):
				default:
					t.Errorf("unexpected hold error: %v", err)
				}
			}()
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CloseShift(ctx, domain.CloseShiftRequest{})
			mu.Lock()
			closeErr = err
			mu.Unlock()
		}()
		wg.Wait()

		stored, err := repo.ListHeldOrders(context.Background(), memory.DefaultTenantID, "cashier")
		require.NoError(t, err)
		assert.Len(t, stored, held)
		if closeErr == nil {
			assert.Empty(t, stored, "round %d: shift closed with parked orders", round)
		} else {
			assert.ErrorIs(t, closeErr, apperror.ErrHeldOrdersPending)
			assert.NotEmpty(t, stored)
		}
	}
}

func TestHoldOnClosedShiftIsRejectedByStore(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := asCashier("cashier")
	shift := mustOpenShift(t, svc, ctx, "0", "")
	_, err := svc.CloseShift(ctx, domain.CloseShiftRequest{})
	require.NoError(t, err)

	err = repo.CreateHeldOrder(context.Background(), domain.HeldOrder{
		ID:       "hold-late",
		TenantID: memory.DefaultTenantID,
		Cashier:  "cashier",
		ShiftID:  shift.ID,
		Items:    []domain.SaleItemInput{item("EGG-10", 1)},
	})
	assert.ErrorIs(t, err, store.ErrNoOpenShift)
}

func TestDiscardHeldOrder(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := asCashier("cashier")
	mustOpenShift(t, svc, ctx, "0", "")
	order, err := svc.HoldOrder(ctx, domain.HoldOrderRequest{Items: []domain.SaleItemInput{item("OIL-1L", 2)}})
	require.NoError(t, err)
	assert.NotEmpty(t, order.Label)

	require.NoError(t, svc.DiscardHeldOrder(ctx, order.ID))
	err = svc.DiscardHeldOrder(ctx, order.ID)
	assert.Equal(t, apperror.CodeNotFound, apperror.As(err).Code)

	_, err = svc.HoldOrder(asCashier("cashier2"), domain.HoldOrderRequest{Items: []domain.SaleItemInput{item("OIL-1L", 1)}})
	assert.ErrorIs(t, err, apperror.ErrNoOpenShift)
}

func TestCashMovementNeedsOpenShift(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.RecordCashMovement(asCashier("cashier"), domain.CashMovementRequest{Type: domain.CashIn, Amount: dec("10")})
	assert.ErrorIs(t, err, apperror.ErrNoOpenShift)
}
