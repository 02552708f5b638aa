package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

type Product struct {
	ID         string          `json:"id" db:"id"`
	TenantID   string          `json:"tenant_id" db:"tenant_id"`
	Code       string          `json:"code" db:"code"`
	Name       string          `json:"name" db:"name"`
	Price      decimal.Decimal `json:"price" db:"price"`
	Cost       decimal.Decimal `json:"cost" db:"cost"`
	Stock      int             `json:"stock" db:"stock"`
	TrackStock bool            `json:"track_stock" db:"track_stock"`
	MinStock   int             `json:"min_stock" db:"min_stock"`
}

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentMobile PaymentMethod = "mobile"
	PaymentSplit  PaymentMethod = "split"
)

type DiscountType string

const (
	DiscountPercent DiscountType = "percent"
	DiscountFixed   DiscountType = "fixed"
)

// Discount is the caller's input plus the amount it resolved to.
type Discount struct {
	Type   DiscountType    `json:"type"`
	Value  decimal.Decimal `json:"value"`
	Amount decimal.Decimal `json:"amount"`
}

type SaleStatus string

const (
	SaleStatusFinished        SaleStatus = "finished"
	SaleStatusPartialReturned SaleStatus = "partial_returned"
	SaleStatusReturned        SaleStatus = "returned"
	SaleStatusCancelled       SaleStatus = "cancelled"
)

type SaleLine struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	ProductID   string          `json:"product_id,omitempty"`
	Qty         int             `json:"qty"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Discount    *Discount       `json:"discount,omitempty"`
	TrackStock  bool            `json:"track_stock"`
	ReturnedQty int             `json:"returned_qty"`
}

func (l SaleLine) Remaining() int {
	return l.Qty - l.ReturnedQty
}

type TaxSnapshot struct {
	Enabled bool            `json:"enabled"`
	Name    string          `json:"name"`
	Rate    decimal.Decimal `json:"rate"`
	Amount  decimal.Decimal `json:"amount"`
}

type PaymentSplitLine struct {
	Method PaymentMethod   `json:"method"`
	Amount decimal.Decimal `json:"amount"`
}

type ReturnLine struct {
	Code   string          `json:"code"`
	Qty    int             `json:"qty"`
	Refund decimal.Decimal `json:"refund"`
	Reason string          `json:"reason,omitempty"`
}

type ReturnEvent struct {
	ID          string          `json:"id"`
	RequestID   string          `json:"request_id,omitempty"`
	Lines       []ReturnLine    `json:"lines"`
	TotalRefund decimal.Decimal `json:"total_refund"`
	Cashier     string          `json:"cashier"`
	CreatedAt   time.Time       `json:"created_at"`
}

type Sale struct {
	ID             string             `json:"id"`
	TenantID       string             `json:"tenant_id"`
	ShiftID        string             `json:"shift_id"`
	ReceiptNo      int                `json:"receipt_no"`
	RequestID      string             `json:"request_id,omitempty"`
	Cashier        string             `json:"cashier"`
	Salesman       string             `json:"salesman,omitempty"`
	TerminalID     string             `json:"terminal_id,omitempty"`
	Lines          []SaleLine         `json:"lines"`
	Subtotal       decimal.Decimal    `json:"subtotal"`
	Discount       *Discount          `json:"discount,omitempty"`
	DiscountAmount decimal.Decimal    `json:"discount_amount"`
	Tax            TaxSnapshot        `json:"tax"`
	Total          decimal.Decimal    `json:"total"`
	PaymentMethod  PaymentMethod      `json:"payment_method"`
	Splits         []PaymentSplitLine `json:"splits,omitempty"`
	Status         SaleStatus         `json:"status"`
	Returns        []ReturnEvent      `json:"returns"`
	CancelledAt    *time.Time         `json:"cancelled_at,omitempty"`
	CancelledBy    string             `json:"cancelled_by,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
}

func (s Sale) TotalRefunded() decimal.Decimal {
	total := decimal.Zero
	for _, ev := range s.Returns {
		total = total.Add(ev.TotalRefund)
	}
	return total
}

func (s Sale) HasReturnRequest(requestID string) bool {
	if requestID == "" {
		return false
	}
	for _, ev := range s.Returns {
		if ev.RequestID == requestID {
			return true
		}
	}
	return false
}

type ShiftStatus string

const (
	ShiftStatusOpen   ShiftStatus = "open"
	ShiftStatusClosed ShiftStatus = "closed"
)

type Shift struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	Cashier    string          `json:"cashier"`
	TerminalID string          `json:"terminal_id,omitempty"`
	StartCash  decimal.Decimal `json:"start_cash"`
	StartTime  time.Time       `json:"start_time"`
	EndTime    *time.Time      `json:"end_time,omitempty"`
	Status     ShiftStatus     `json:"status"`
	SaleSeq    int             `json:"sale_count"`
	Closing    *ShiftClosing   `json:"closing,omitempty"`
}

type ShiftSummary struct {
	ShiftID         string                            `json:"shift_id"`
	StartCash       decimal.Decimal                   `json:"start_cash"`
	SaleCount       int                               `json:"sale_count"`
	TotalSales      decimal.Decimal                   `json:"total_sales"`
	CashSales       decimal.Decimal                   `json:"cash_sales"`
	CardSales       decimal.Decimal                   `json:"card_sales"`
	MobileSales     decimal.Decimal                   `json:"mobile_sales"`
	SplitSales      decimal.Decimal                   `json:"split_sales"`
	TotalRefunds    decimal.Decimal                   `json:"total_refunds"`
	RefundsByMethod map[PaymentMethod]decimal.Decimal `json:"refunds_by_method"`
	Expenses        decimal.Decimal                   `json:"expenses"`
	CashIn          decimal.Decimal                   `json:"cash_in"`
	CashOut         decimal.Decimal                   `json:"cash_out"`
	ExpectedCash    decimal.Decimal                   `json:"expected_cash"`
}

type ShiftClosing struct {
	Summary          ShiftSummary    `json:"summary"`
	ActualCash       decimal.Decimal `json:"actual_cash"`
	ActualCard       decimal.Decimal `json:"actual_card"`
	ActualMobile     decimal.Decimal `json:"actual_mobile"`
	CashDifference   decimal.Decimal `json:"cash_difference"`
	CardDifference   decimal.Decimal `json:"card_difference"`
	MobileDifference decimal.Decimal `json:"mobile_difference"`
	ClosedBy         string          `json:"closed_by"`
}

type CashMovementType string

const (
	CashIn  CashMovementType = "in"
	CashOut CashMovementType = "out"
)

// CashMovement is money put into or taken out of the drawer outside a sale.
type CashMovement struct {
	ID        string           `json:"id" db:"id"`
	TenantID  string           `json:"tenant_id" db:"tenant_id"`
	ShiftID   string           `json:"shift_id" db:"shift_id"`
	Cashier   string           `json:"cashier" db:"cashier"`
	Type      CashMovementType `json:"type" db:"type"`
	Amount    decimal.Decimal  `json:"amount" db:"amount"`
	Reason    string           `json:"reason" db:"reason"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

type TerminalMode string

const (
	TerminalModeOwner    TerminalMode = "owner"
	TerminalModeReadOnly TerminalMode = "read_only"
	TerminalModeNone     TerminalMode = "none"
)

type TerminalSession struct {
	Mode         TerminalMode `json:"mode"`
	Shift        *Shift       `json:"shift,omitempty"`
	OwnerCashier string       `json:"owner_cashier,omitempty"`
}

type Expense struct {
	ID          string          `json:"id" db:"id"`
	TenantID    string          `json:"tenant_id" db:"tenant_id"`
	SpentAt     time.Time       `json:"spent_at" db:"spent_at"`
	Description string          `json:"description" db:"description"`
	Amount      decimal.Decimal `json:"amount" db:"amount"`
	Method      PaymentMethod   `json:"method" db:"method"`
	Seller      string          `json:"seller" db:"seller"`
	CreatedBy   string          `json:"created_by" db:"created_by"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

type StockAdjustmentLine struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	OldStock    int    `json:"old_stock"`
	NewStock    int    `json:"new_stock"`
	Difference  int    `json:"difference"`
	Reason      string `json:"reason"`
}

type StockAdjustment struct {
	ID        string                `json:"id"`
	TenantID  string                `json:"tenant_id"`
	Actor     string                `json:"actor"`
	Lines     []StockAdjustmentLine `json:"lines"`
	CreatedAt time.Time             `json:"created_at"`
}

type MovementKind string

const (
	MovementOpening    MovementKind = "opening"
	MovementSale       MovementKind = "sale"
	MovementReturn     MovementKind = "return"
	MovementCancel     MovementKind = "cancel"
	MovementAdjustment MovementKind = "adjustment"
)

// StockMovement is one signed change to a product's stock. SourceKey is
// unique per tenant; posting the same key twice is a no-op.
type StockMovement struct {
	ID         string       `json:"id" db:"id"`
	TenantID   string       `json:"tenant_id" db:"tenant_id"`
	ProductID  string       `json:"product_id" db:"product_id"`
	Delta      int          `json:"delta" db:"delta"`
	Kind       MovementKind `json:"kind" db:"kind"`
	SourceKey  string       `json:"source_key" db:"source_key"`
	SaleID     string       `json:"sale_id,omitempty" db:"sale_id"`
	StockAfter int          `json:"stock_after" db:"stock_after"`
	Reason     string       `json:"reason,omitempty" db:"reason"`
	Actor      string       `json:"actor" db:"actor"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

type NegativeStock struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Stock     int    `json:"stock"`
}

type StockDrift struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	CachedStock int    `json:"cached_stock"`
	LedgerStock int    `json:"ledger_stock"`
}

type StockIntegrityReport struct {
	TenantID  string          `json:"tenant_id"`
	CheckedAt time.Time       `json:"checked_at"`
	Products  int             `json:"products"`
	Drift     []StockDrift    `json:"drift"`
	Negative  []NegativeStock `json:"negative"`
}

func (r StockIntegrityReport) Healthy() bool {
	return len(r.Drift) == 0 && len(r.Negative) == 0
}

type TenantSettings struct {
	TenantID      string          `json:"tenant_id"`
	ShopName      string          `json:"shop_name"`
	Address       string          `json:"address"`
	Phone         string          `json:"phone"`
	FooterMessage string          `json:"footer_message"`
	TaxEnabled    bool            `json:"tax_enabled"`
	TaxName       string          `json:"tax_name"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func DefaultSettings(tenantID string) TenantSettings {
	return TenantSettings{
		TenantID: tenantID,
		ShopName: "My Shop",
		TaxName:  "VAT",
		TaxRate:  decimal.Zero,
	}
}

type HeldOrder struct {
	ID         string          `json:"id"`
	TenantID   string          `json:"tenant_id"`
	Cashier    string          `json:"cashier"`
	ShiftID    string          `json:"shift_id"`
	TerminalID string          `json:"terminal_id,omitempty"`
	Label      string          `json:"label"`
	Note       string          `json:"note,omitempty"`
	Items      []SaleItemInput `json:"items"`
	Discount   *DiscountInput  `json:"discount,omitempty"`
	HeldAt     time.Time       `json:"held_at"`
}

type AuditLog struct {
	ID            string    `json:"id" db:"id"`
	TenantID      string    `json:"tenant_id" db:"tenant_id"`
	ActorUsername string    `json:"actor_username" db:"actor_username"`
	ActorRole     string    `json:"actor_role" db:"actor_role"`
	Action        string    `json:"action" db:"action"`
	EntityType    string    `json:"entity_type" db:"entity_type"`
	EntityID      string    `json:"entity_id" db:"entity_id"`
	Detail        string    `json:"detail" db:"detail"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

type DailySummary struct {
	TenantID     string                            `json:"tenant_id"`
	Date         string                            `json:"date"`
	TotalOrders  int                               `json:"total_orders"`
	TotalSales   decimal.Decimal                   `json:"total_sales"`
	TotalTax     decimal.Decimal                   `json:"total_tax"`
	TotalRefunds decimal.Decimal                   `json:"total_refunds"`
	Cancelled    int                               `json:"cancelled"`
	ByMethod     map[PaymentMethod]decimal.Decimal `json:"by_method"`
}

type UserAccount struct {
	Username  string    `json:"username" db:"username"`
	Password  string    `json:"-" db:"password"`
	Role      string    `json:"role" db:"role"`
	TenantID  string    `json:"tenant_id" db:"tenant_id"`
	Active    bool      `json:"active" db:"active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CashierUser is the public view of a cashier account.
type CashierUser struct {
	Username  string    `json:"username"`
	TenantID  string    `json:"tenant_id"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type Actor struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}
