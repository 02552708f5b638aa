package store

import (
	"context"
	"errors"
	"time"

	"posledger/backend/internal/domain"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrNoOpenShift  = errors.New("no open shift")
	ErrShiftOpen    = errors.New("shift already open")
	ErrTerminalBusy = errors.New("terminal held by another open shift")
)

// SaleMutation edits a locked sale in place and returns the stock movements
// that must be posted with it. Returning write=false leaves storage untouched.
type SaleMutation func(sale *domain.Sale) (movements []domain.StockMovement, write bool, err error)

// ShiftLedger is everything a shift's reconciliation is computed from.
type ShiftLedger struct {
	Shift         domain.Shift
	Sales         []domain.Sale
	Expenses      []domain.Expense
	CashMovements []domain.CashMovement
	// HeldOrders counts the cashier's parked carts at close time.
	HeldOrders int
}

// ShiftCloser receives the locked shift ledger and returns the closing snapshot.
type ShiftCloser func(ledger ShiftLedger) (*domain.ShiftClosing, error)

type SaleCommit struct {
	Sale      *domain.Sale
	Movements []domain.StockMovement
	Duplicate bool
}

type Catalog interface {
	ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error)
	FindProductByCode(ctx context.Context, tenantID string, code string) (*domain.Product, error)
}

type SaleStore interface {
	// CreateSale attaches sale to the cashier's open shift, assigns the next
	// receipt number and posts movements in one unit of work. A repeated
	// RequestID returns the stored sale with Duplicate set.
	CreateSale(ctx context.Context, sale domain.Sale, movements []domain.StockMovement) (SaleCommit, error)
	GetSale(ctx context.Context, tenantID string, ref string) (*domain.Sale, error)
	ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error)
	// MutateSale serializes all writers of one sale.
	MutateSale(ctx context.Context, tenantID string, ref string, fn SaleMutation) (*domain.Sale, []domain.StockMovement, error)
}

type ShiftStore interface {
	OpenShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error)
	GetOpenShift(ctx context.Context, tenantID string, cashier string) (*domain.Shift, error)
	GetOpenShiftByTerminal(ctx context.Context, tenantID string, terminalID string) (*domain.Shift, error)
	// CloseShift holds the shift lock while fn recomputes the summary so no
	// sale can attach between recompute and close.
	CloseShift(ctx context.Context, tenantID string, cashier string, closedAt time.Time, fn ShiftCloser) (*domain.Shift, error)
	CreateCashMovement(ctx context.Context, movement domain.CashMovement) error
	ListCashMovements(ctx context.Context, tenantID string, shiftID string) ([]domain.CashMovement, error)
}

type StockStore interface {
	// ApplyStockAdjustment diffs the requested counts against current stock
	// under lock. It returns nil when no line changed.
	ApplyStockAdjustment(ctx context.Context, adjustment domain.StockAdjustment) (*domain.StockAdjustment, error)
	ListStockAdjustments(ctx context.Context, tenantID string, limit int) ([]domain.StockAdjustment, error)
	ListStockMovements(ctx context.Context, tenantID string, productID string, limit int) ([]domain.StockMovement, error)
	// StockBalances folds the movement ledger per product.
	StockBalances(ctx context.Context, tenantID string) (map[string]int, error)
}

type ExpenseStore interface {
	CreateExpense(ctx context.Context, expense domain.Expense) error
	ListExpenses(ctx context.Context, tenantID string, since *time.Time) ([]domain.Expense, error)
	DeleteExpense(ctx context.Context, tenantID string, expenseID string) error
}

type SettingsStore interface {
	GetSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error)
	SaveSettings(ctx context.Context, settings domain.TenantSettings) error
}

type HeldOrderStore interface {
	// CreateHeldOrder fails with ErrNoOpenShift once order.ShiftID is closed.
	CreateHeldOrder(ctx context.Context, order domain.HeldOrder) error
	ListHeldOrders(ctx context.Context, tenantID string, cashier string) ([]domain.HeldOrder, error)
	PopHeldOrder(ctx context.Context, tenantID string, cashier string, orderID string) (*domain.HeldOrder, error)
	DeleteHeldOrder(ctx context.Context, tenantID string, cashier string, orderID string) error
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, tenantID string, limit int) ([]domain.AuditLog, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type Repository interface {
	Catalog
	SaleStore
	ShiftStore
	StockStore
	ExpenseStore
	SettingsStore
	HeldOrderStore
	AuditStore
	UserStore
}
