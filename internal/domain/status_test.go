package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeriveSaleStatus(t *testing.T) {
	cases := []struct {
		name      string
		lines     []SaleLine
		cancelled bool
		want      SaleStatus
	}{
		{"untouched", []SaleLine{{Qty: 2}, {Qty: 1}}, false, SaleStatusFinished},
		{"one unit back", []SaleLine{{Qty: 2, ReturnedQty: 1}, {Qty: 1}}, false, SaleStatusPartialReturned},
		{"one line fully back", []SaleLine{{Qty: 2, ReturnedQty: 2}, {Qty: 1}}, false, SaleStatusPartialReturned},
		{"everything back", []SaleLine{{Qty: 2, ReturnedQty: 2}, {Qty: 1, ReturnedQty: 1}}, false, SaleStatusReturned},
		{"cancelled wins", []SaleLine{{Qty: 2, ReturnedQty: 1}}, true, SaleStatusCancelled},
		{"no lines", nil, false, SaleStatusFinished},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DeriveSaleStatus(tc.lines, tc.cancelled))
		})
	}
}

func TestDerivedStatusIsIdempotent(t *testing.T) {
	now := time.Now()
	sale := Sale{Lines: []SaleLine{{Qty: 3, ReturnedQty: 1}}}
	sale.Status = sale.DerivedStatus()
	assert.Equal(t, sale.Status, sale.DerivedStatus())

	sale.CancelledAt = &now
	assert.Equal(t, SaleStatusCancelled, sale.DerivedStatus())
}
