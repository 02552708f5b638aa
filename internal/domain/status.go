package domain

// DeriveSaleStatus computes a sale's status from its line counters. A
// cancelled sale stays cancelled regardless of what was returned before.
func DeriveSaleStatus(lines []SaleLine, cancelled bool) SaleStatus {
	if cancelled {
		return SaleStatusCancelled
	}
	if len(lines) == 0 {
		return SaleStatusFinished
	}

	allReturned := true
	anyReturned := false
	for _, line := range lines {
		if line.ReturnedQty > 0 {
			anyReturned = true
		}
		if line.ReturnedQty < line.Qty {
			allReturned = false
		}
	}

	switch {
	case allReturned:
		return SaleStatusReturned
	case anyReturned:
		return SaleStatusPartialReturned
	default:
		return SaleStatusFinished
	}
}

func (s Sale) DerivedStatus() SaleStatus {
	return DeriveSaleStatus(s.Lines, s.CancelledAt != nil)
}
