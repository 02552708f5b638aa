package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

func openShift(t *testing.T, s *Store, cashier string, terminal string) *domain.Shift {
	t.Helper()
	shift, err := s.OpenShift(context.Background(), domain.Shift{
		ID:         xid.New("shift"),
		TenantID:   DefaultTenantID,
		Cashier:    cashier,
		TerminalID: terminal,
		StartCash:  decimal.NewFromInt(100),
		StartTime:  time.Now().UTC(),
		Status:     domain.ShiftStatusOpen,
	})
	if err != nil {
		t.Fatalf("open shift: %v", err)
	}
	return shift
}

func saleFor(cashier string, requestID string, qty int) (domain.Sale, []domain.StockMovement) {
	sale := domain.Sale{
		ID:        xid.New("sale"),
		TenantID:  DefaultTenantID,
		Cashier:   cashier,
		RequestID: requestID,
		Lines: []domain.SaleLine{{
			Code: "OIL-1L", ProductID: "prd-oil", Qty: qty, UnitPrice: decimal.NewFromInt(50), TrackStock: true,
		}},
		Status:    domain.SaleStatusFinished,
		CreatedAt: time.Now().UTC(),
	}
	movements := []domain.StockMovement{{
		ID:        xid.New("mov"),
		TenantID:  DefaultTenantID,
		ProductID: "prd-oil",
		Delta:     -qty,
		Kind:      domain.MovementSale,
		SourceKey: store.SoldKey(sale.ID, 0),
		SaleID:    sale.ID,
	}}
	return sale, movements
}

func TestCreateSaleAssignsSequentialReceiptsPerShift(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	openShift(t, s, "cashier", "")

	for want := 1; want <= 3; want++ {
		sale, movements := saleFor("cashier", "", 1)
		commit, err := s.CreateSale(ctx, sale, movements)
		if err != nil {
			t.Fatalf("create sale: %v", err)
		}
		if commit.Sale.ReceiptNo != want {
			t.Fatalf("expected receipt %d, got %d", want, commit.Sale.ReceiptNo)
		}
	}

	product, _ := s.GetProduct(ctx, DefaultTenantID, "prd-oil")
	if product.Stock != 57 {
		t.Fatalf("expected stock 57 after three sales, got %d", product.Stock)
	}
}

func TestCreateSaleWithoutShiftFails(t *testing.T) {
	s := NewSeeded()
	sale, movements := saleFor("cashier", "", 1)

	_, err := s.CreateSale(context.Background(), sale, movements)
	if !errors.Is(err, store.ErrNoOpenShift) {
		t.Fatalf("expected ErrNoOpenShift, got %v", err)
	}
}

func TestCreateSaleIsIdempotentByRequestID(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	openShift(t, s, "cashier", "")

	first, movements := saleFor("cashier", "req-1", 2)
	if _, err := s.CreateSale(ctx, first, movements); err != nil {
		t.Fatalf("create sale: %v", err)
	}
	retry, retryMovements := saleFor("cashier", "req-1", 2)
	commit, err := s.CreateSale(ctx, retry, retryMovements)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !commit.Duplicate || commit.Sale.ID != first.ID {
		t.Fatalf("expected duplicate of %s, got %+v", first.ID, commit)
	}

	product, _ := s.GetProduct(ctx, DefaultTenantID, "prd-oil")
	if product.Stock != 58 {
		t.Fatalf("expected a single decrement, stock=%d", product.Stock)
	}
}

func TestMutateSaleErrorLeavesSaleUntouched(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	openShift(t, s, "cashier", "")
	sale, movements := saleFor("cashier", "", 2)
	if _, err := s.CreateSale(ctx, sale, movements); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	boom := errors.New("boom")
	_, _, err := s.MutateSale(ctx, DefaultTenantID, sale.ID, func(sl *domain.Sale) ([]domain.StockMovement, bool, error) {
		sl.Lines[0].ReturnedQty = 2
		return nil, true, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	stored, err := s.GetSale(ctx, DefaultTenantID, sale.ID)
	if err != nil {
		t.Fatalf("get sale: %v", err)
	}
	if stored.Lines[0].ReturnedQty != 0 {
		t.Fatalf("expected untouched sale, returned=%d", stored.Lines[0].ReturnedQty)
	}
}

func TestMovementKeysAreAppliedOnce(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	openShift(t, s, "cashier", "")
	sale, movements := saleFor("cashier", "", 1)
	if _, err := s.CreateSale(ctx, sale, movements); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	restore := func(sl *domain.Sale) ([]domain.StockMovement, bool, error) {
		return []domain.StockMovement{{
			ID: xid.New("mov"), TenantID: DefaultTenantID, ProductID: "prd-oil", Delta: 1,
			Kind: domain.MovementCancel, SourceKey: store.CancelKey(sl.ID, 0), SaleID: sl.ID,
		}}, true, nil
	}
	for i := 0; i < 2; i++ {
		if _, _, err := s.MutateSale(ctx, DefaultTenantID, sale.ID, restore); err != nil {
			t.Fatalf("mutate: %v", err)
		}
	}

	product, _ := s.GetProduct(ctx, DefaultTenantID, "prd-oil")
	if product.Stock != 60 {
		t.Fatalf("expected stock restored once to 60, got %d", product.Stock)
	}
	balances, _ := s.StockBalances(ctx, DefaultTenantID)
	if balances["prd-oil"] != product.Stock {
		t.Fatalf("ledger %d disagrees with cached stock %d", balances["prd-oil"], product.Stock)
	}
}

func TestGetSaleByReceiptNumber(t *testing.T) {
	s := NewSeeded()
	ctx := context.Background()
	openShift(t, s, "cashier", "")
	sale, movements := saleFor("cashier", "", 1)
	if _, err := s.CreateSale(ctx, sale, movements); err != nil {
		t.Fatalf("create sale: %v", err)
	}

	found, err := s.GetSale(ctx, DefaultTenantID, "1")
	if err != nil {
		t.Fatalf("get by receipt: %v", err)
	}
	if found.ID != sale.ID {
		t.Fatalf("expected %s, got %s", sale.ID, found.ID)
	}
	if _, err := s.GetSale(ctx, "other-tenant", sale.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected tenant isolation, got %v", err)
	}
}

func TestTerminalIsHeldByOneCashier(t *testing.T) {
	s := NewSeeded()
	openShift(t, s, "cashier", "till-1")

	_, err := s.OpenShift(context.Background(), domain.Shift{
		ID: xid.New("shift"), TenantID: DefaultTenantID, Cashier: "cashier2", TerminalID: "till-1",
		StartTime: time.Now().UTC(), Status: domain.ShiftStatusOpen,
	})
	if !errors.Is(err, store.ErrTerminalBusy) {
		t.Fatalf("expected ErrTerminalBusy, got %v", err)
	}
}
