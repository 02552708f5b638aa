package service

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/domain"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func line(price string, qty int) domain.SaleLine {
	return domain.SaleLine{UnitPrice: dec(price), Qty: qty}
}

func TestPriceSaleAppliesTaxOnDiscountedSubtotal(t *testing.T) {
	totals := PriceSale([]domain.SaleLine{line("200", 1)}, nil, true, dec("14"))

	assert.True(t, totals.Subtotal.Equal(dec("200")))
	assert.True(t, totals.TaxAmount.Equal(dec("28")))
	assert.True(t, totals.Total.Equal(dec("228")))
}

func TestPriceSaleDiscounts(t *testing.T) {
	cases := []struct {
		name     string
		discount *domain.DiscountInput
		wantDisc string
		wantTot  string
	}{
		{"percent", &domain.DiscountInput{Type: domain.DiscountPercent, Value: dec("10")}, "10", "90"},
		{"fixed", &domain.DiscountInput{Type: domain.DiscountFixed, Value: dec("15.50")}, "15.5", "84.5"},
		{"fixed above subtotal is capped", &domain.DiscountInput{Type: domain.DiscountFixed, Value: dec("500")}, "100", "0"},
		{"none", nil, "0", "100"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			totals := PriceSale([]domain.SaleLine{line("50", 2)}, tc.discount, false, dec("14"))
			assert.True(t, totals.DiscountAmount.Equal(dec(tc.wantDisc)), "discount=%s", totals.DiscountAmount)
			assert.True(t, totals.Total.Equal(dec(tc.wantTot)), "total=%s", totals.Total)
			assert.True(t, totals.TaxAmount.IsZero())
		})
	}
}

func TestPriceSaleTotalIdentity(t *testing.T) {
	lines := []domain.SaleLine{line("19.99", 3), line("0.35", 7), line("120", 1)}
	for _, pct := range []string{"0", "7.5", "33", "100"} {
		totals := PriceSale(lines, &domain.DiscountInput{Type: domain.DiscountPercent, Value: dec(pct)}, true, dec("14"))

		expected := decimal.Max(decimal.Zero, totals.Subtotal.Sub(totals.DiscountAmount)).Add(totals.TaxAmount)
		assert.True(t, totals.Total.Sub(expected).Abs().LessThanOrEqual(dec("0.01")), "pct=%s", pct)
		assert.False(t, totals.Total.IsNegative())
	}
}

func TestCheckSplits(t *testing.T) {
	total := dec("300")

	err := CheckSplits(total, []domain.PaymentSplitLine{
		{Method: domain.PaymentCash, Amount: dec("200")},
		{Method: domain.PaymentCard, Amount: dec("95")},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrSplitMismatch))

	err = CheckSplits(total, []domain.PaymentSplitLine{
		{Method: domain.PaymentCash, Amount: dec("200")},
		{Method: domain.PaymentMobile, Amount: dec("99.95")},
	})
	assert.NoError(t, err, "differences within 0.1 are accepted")

	err = CheckSplits(total, []domain.PaymentSplitLine{{Method: "voucher", Amount: dec("300")}})
	assert.Equal(t, apperror.CodeValidation, apperror.As(err).Code)
}
