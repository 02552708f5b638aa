package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	TenantID    string `json:"tenant_id"`
	ExpiresAt   string `json:"expires_at"`
}

type CashierCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type DiscountInput struct {
	Type  DiscountType    `json:"type" validate:"required,oneof=percent fixed"`
	Value decimal.Decimal `json:"value"`
}

type SaleItemInput struct {
	ProductID string          `json:"product_id,omitempty"`
	Code      string          `json:"code" validate:"required_without=ProductID"`
	Name      string          `json:"name,omitempty"`
	Qty       int             `json:"qty" validate:"gt=0"`
	Price     decimal.Decimal `json:"price"`
	Discount  *DiscountInput  `json:"discount,omitempty"`
}

type CreateSaleRequest struct {
	RequestID     string             `json:"request_id,omitempty" validate:"omitempty,max=128"`
	TerminalID    string             `json:"terminal_id,omitempty"`
	Items         []SaleItemInput    `json:"items" validate:"required,min=1,dive"`
	PaymentMethod PaymentMethod      `json:"payment_method" validate:"omitempty,oneof=cash card mobile split"`
	Splits        []PaymentSplitLine `json:"splits,omitempty"`
	Discount      *DiscountInput     `json:"discount,omitempty"`
	Salesman      string             `json:"salesman,omitempty"`
}

type CreateSaleResult struct {
	Sale          Sale            `json:"sale"`
	Settings      TenantSettings  `json:"settings"`
	Duplicate     bool            `json:"duplicate"`
	NegativeStock []NegativeStock `json:"negative_stock,omitempty"`
}

type ReturnItemInput struct {
	Code   string `json:"code" validate:"required"`
	Qty    int    `json:"qty" validate:"gt=0"`
	Reason string `json:"reason,omitempty"`
}

type ReturnItemsRequest struct {
	RequestID string            `json:"request_id,omitempty" validate:"omitempty,max=128"`
	Items     []ReturnItemInput `json:"items" validate:"required,min=1,dive"`
}

type ReturnResult struct {
	Sale      Sale         `json:"sale"`
	Return    *ReturnEvent `json:"return,omitempty"`
	Duplicate bool         `json:"duplicate"`
}

type CancelSaleRequest struct {
	ManagerPIN string `json:"manager_pin,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

type OpenShiftRequest struct {
	StartCash  decimal.Decimal `json:"start_cash"`
	TerminalID string          `json:"terminal_id,omitempty"`
}

type CloseShiftRequest struct {
	ActualCash        decimal.Decimal `json:"actual_cash"`
	ActualCard        decimal.Decimal `json:"actual_card"`
	ActualMobile      decimal.Decimal `json:"actual_mobile"`
	HeldOrdersPending bool            `json:"held_orders_pending"`
	TerminalID        string          `json:"terminal_id,omitempty"`
}

type CashMovementRequest struct {
	Type   CashMovementType `json:"type" validate:"required,oneof=in out"`
	Amount decimal.Decimal  `json:"amount"`
	Reason string           `json:"reason" validate:"max=200"`
}

type AdjustStockItem struct {
	ProductID string `json:"product_id" validate:"required"`
	NewStock  int    `json:"new_stock" validate:"gte=0"`
	Reason    string `json:"reason,omitempty"`
}

type AdjustStockRequest struct {
	Items []AdjustStockItem `json:"items" validate:"required,min=1,dive"`
}

type AdjustmentResult struct {
	Changed    bool             `json:"changed"`
	Message    string           `json:"message"`
	Adjustment *StockAdjustment `json:"adjustment,omitempty"`
}

type ExpenseCreateRequest struct {
	SpentAt     *time.Time      `json:"spent_at,omitempty"`
	Description string          `json:"description" validate:"required,max=200"`
	Amount      decimal.Decimal `json:"amount"`
	Method      PaymentMethod   `json:"method" validate:"omitempty,oneof=cash card mobile"`
	Seller      string          `json:"seller,omitempty"`
}

type SettingsUpdateRequest struct {
	ShopName      string          `json:"shop_name" validate:"required,max=120"`
	Address       string          `json:"address" validate:"max=240"`
	Phone         string          `json:"phone" validate:"max=40"`
	FooterMessage string          `json:"footer_message" validate:"max=240"`
	TaxEnabled    bool            `json:"tax_enabled"`
	TaxName       string          `json:"tax_name" validate:"max=40"`
	TaxRate       decimal.Decimal `json:"tax_rate"`
}

type HoldOrderRequest struct {
	TerminalID string          `json:"terminal_id,omitempty"`
	Label      string          `json:"label" validate:"max=80"`
	Note       string          `json:"note" validate:"max=240"`
	Items      []SaleItemInput `json:"items" validate:"required,min=1,dive"`
	Discount   *DiscountInput  `json:"discount,omitempty"`
}

type SaleFilter struct {
	TenantID string
	Cashier  string
	ShiftID  string
	Status   SaleStatus
	From     *time.Time
	To       *time.Time
	Limit    int
}
