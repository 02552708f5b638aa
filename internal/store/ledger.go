package store

import (
	"fmt"
	"strconv"
	"strings"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/xid"
)

func SoldKey(saleID string, line int) string {
	return fmt.Sprintf("sale/%s/%d/sold", saleID, line)
}

func ReturnKey(saleID string, line int, eventID string) string {
	return fmt.Sprintf("sale/%s/%d/return/%s", saleID, line, eventID)
}

func CancelKey(saleID string, line int) string {
	return fmt.Sprintf("sale/%s/%d/cancel", saleID, line)
}

func AdjustKey(adjustmentID string, productID string) string {
	return fmt.Sprintf("adjust/%s/%s", adjustmentID, productID)
}

func OpeningKey(productID string) string {
	return "opening/" + productID
}

// ReceiptRef reports whether ref addresses a sale by receipt number rather
// than by id.
func ReceiptRef(ref string) (int, bool) {
	ref = strings.TrimPrefix(strings.TrimSpace(ref), "#")
	if ref == "" {
		return 0, false
	}
	n, err := strconv.Atoi(ref)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// PlanAdjustment fills old stock and difference for every requested line
// against current and drops lines that did not change. It returns ok=false
// when nothing is left to write.
func PlanAdjustment(adj domain.StockAdjustment, current map[string]domain.Product) (domain.StockAdjustment, []domain.StockMovement, bool) {
	planned := adj
	planned.Lines = make([]domain.StockAdjustmentLine, 0, len(adj.Lines))
	movements := make([]domain.StockMovement, 0, len(adj.Lines))

	for _, line := range adj.Lines {
		product, ok := current[line.ProductID]
		if !ok {
			continue
		}
		diff := line.NewStock - product.Stock
		if diff == 0 {
			continue
		}
		line.ProductName = product.Name
		line.OldStock = product.Stock
		line.Difference = diff
		planned.Lines = append(planned.Lines, line)
		movements = append(movements, domain.StockMovement{
			ID:        xid.New("mov"),
			TenantID:  adj.TenantID,
			ProductID: line.ProductID,
			Delta:     diff,
			Kind:      domain.MovementAdjustment,
			SourceKey: AdjustKey(adj.ID, line.ProductID),
			Reason:    line.Reason,
			Actor:     adj.Actor,
			CreatedAt: adj.CreatedAt,
		})
	}
	return planned, movements, len(planned.Lines) > 0
}
