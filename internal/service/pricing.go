package service

import (
	"github.com/shopspring/decimal"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/domain"
)

var (
	hundred        = decimal.NewFromInt(100)
	splitTolerance = decimal.New(1, -1)
)

type SaleTotals struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	Discounted     decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// discountAmount resolves a discount against base and caps it at base.
func discountAmount(base decimal.Decimal, d *domain.DiscountInput) decimal.Decimal {
	if d == nil || !base.IsPositive() {
		return decimal.Zero
	}
	var amount decimal.Decimal
	switch d.Type {
	case domain.DiscountPercent:
		amount = base.Mul(d.Value).Div(hundred)
	case domain.DiscountFixed:
		amount = d.Value
	}
	amount = money(amount)
	if amount.IsNegative() {
		return decimal.Zero
	}
	if amount.GreaterThan(base) {
		return base
	}
	return amount
}

// PriceSale computes subtotal, cart discount, tax and total. Line discounts
// are recorded on the lines but do not change the subtotal.
func PriceSale(lines []domain.SaleLine, discount *domain.DiscountInput, taxEnabled bool, taxRate decimal.Decimal) SaleTotals {
	subtotal := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))))
	}
	subtotal = money(subtotal)

	disc := discountAmount(subtotal, discount)
	discounted := decimal.Max(decimal.Zero, subtotal.Sub(disc))

	tax := decimal.Zero
	if taxEnabled {
		tax = money(discounted.Mul(taxRate).Div(hundred))
	}

	return SaleTotals{
		Subtotal:       subtotal,
		DiscountAmount: disc,
		Discounted:     discounted,
		TaxAmount:      tax,
		Total:          discounted.Add(tax),
	}
}

// CheckSplits requires the split amounts to add up to total within 0.1.
func CheckSplits(total decimal.Decimal, splits []domain.PaymentSplitLine) error {
	sum := decimal.Zero
	for _, split := range splits {
		switch split.Method {
		case domain.PaymentCash, domain.PaymentCard, domain.PaymentMobile:
		default:
			return apperror.NewValidation("split method must be cash, card or mobile").WithDetail("method", split.Method)
		}
		if !split.Amount.IsPositive() {
			return apperror.NewValidation("split amounts must be positive")
		}
		sum = sum.Add(split.Amount)
	}
	if sum.Sub(total).Abs().GreaterThan(splitTolerance) {
		return apperror.ErrSplitMismatch.
			WithDetail("total", total.StringFixed(2)).
			WithDetail("paid", sum.StringFixed(2))
	}
	return nil
}

func validateDiscount(d *domain.DiscountInput) error {
	if d == nil {
		return nil
	}
	if d.Value.IsNegative() {
		return apperror.NewValidation("discount value must not be negative")
	}
	if d.Type == domain.DiscountPercent && d.Value.GreaterThan(hundred) {
		return apperror.NewValidation("percent discount must not exceed 100")
	}
	return nil
}
