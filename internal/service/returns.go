package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/audit"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

// ReturnItems books a return event against a sale. The whole request is
// checked against the locked sale before anything is written, so a request
// that over-returns any line changes nothing.
func (s *Service) ReturnItems(ctx context.Context, ref string, req domain.ReturnItemsRequest) (domain.ReturnResult, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return domain.ReturnResult{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.ReturnResult{}, err
	}

	requestID := strings.TrimSpace(req.RequestID)
	now := s.now()
	var (
		event     *domain.ReturnEvent
		duplicate bool
	)

	sale, _, err := s.repo.MutateSale(ctx, tenantID, strings.TrimSpace(ref), func(sale *domain.Sale) ([]domain.StockMovement, bool, error) {
		if sale.HasReturnRequest(requestID) {
			duplicate = true
			return nil, false, nil
		}
		if sale.Status == domain.SaleStatusCancelled {
			return nil, false, apperror.ErrAlreadyCancelled
		}

		requested := make(map[int]int, len(req.Items))
		reasons := make(map[int]string, len(req.Items))
		order := make([]int, 0, len(req.Items))
		for _, item := range req.Items {
			idx := lineByCode(sale.Lines, item.Code)
			if idx < 0 {
				return nil, false, apperror.NewNotFound("sale line", item.Code)
			}
			if _, seen := requested[idx]; !seen {
				order = append(order, idx)
			}
			requested[idx] += item.Qty
			if item.Reason != "" {
				reasons[idx] = strings.TrimSpace(item.Reason)
			}
		}
		for _, idx := range order {
			line := sale.Lines[idx]
			if requested[idx] > line.Remaining() {
				return nil, false, apperror.ErrOverReturn.
					WithDetail("code", line.Code).
					WithDetail("requested", requested[idx]).
					WithDetail("remaining", line.Remaining())
			}
		}

		ev := domain.ReturnEvent{
			ID:          xid.New("ret"),
			RequestID:   requestID,
			Lines:       make([]domain.ReturnLine, 0, len(order)),
			TotalRefund: decimal.Zero,
			Cashier:     actor.Username,
			CreatedAt:   now,
		}
		movements := make([]domain.StockMovement, 0, len(order))
		for _, idx := range order {
			qty := requested[idx]
			line := &sale.Lines[idx]
			line.ReturnedQty += qty

			refund := money(line.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
			ev.Lines = append(ev.Lines, domain.ReturnLine{Code: line.Code, Qty: qty, Refund: refund, Reason: reasons[idx]})
			ev.TotalRefund = ev.TotalRefund.Add(refund)

			if line.TrackStock && line.ProductID != "" {
				movements = append(movements, domain.StockMovement{
					ID:        xid.New("mov"),
					TenantID:  sale.TenantID,
					ProductID: line.ProductID,
					Delta:     qty,
					Kind:      domain.MovementReturn,
					SourceKey: store.ReturnKey(sale.ID, idx, ev.ID),
					SaleID:    sale.ID,
					Reason:    reasons[idx],
					Actor:     actor.Username,
					CreatedAt: now,
				})
			}
		}
		sale.Returns = append(sale.Returns, ev)
		sale.Status = sale.DerivedStatus()
		event = &ev
		return movements, true, nil
	})
	if err != nil {
		return domain.ReturnResult{}, storeErr(err, "sale", ref)
	}

	result := domain.ReturnResult{Sale: *sale, Duplicate: duplicate}
	if duplicate {
		for i := range sale.Returns {
			if sale.Returns[i].RequestID == requestID {
				ev := sale.Returns[i]
				result.Return = &ev
				break
			}
		}
		return result, nil
	}

	result.Return = event
	s.logAudit(ctx, tenantID, audit.ActionReturnItems, "sale", sale.ID,
		fmt.Sprintf("receipt=%d,refund=%s,status=%s", sale.ReceiptNo, event.TotalRefund.StringFixed(2), sale.Status))
	return result, nil
}

// CancelSale voids a sale and restores whatever has not been returned yet.
func (s *Service) CancelSale(ctx context.Context, ref string, reason string) (*domain.Sale, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	sale, _, err := s.repo.MutateSale(ctx, tenantID, strings.TrimSpace(ref), func(sale *domain.Sale) ([]domain.StockMovement, bool, error) {
		switch sale.Status {
		case domain.SaleStatusCancelled:
			return nil, false, apperror.ErrAlreadyCancelled
		case domain.SaleStatusReturned:
			return nil, false, apperror.ErrInvalidState.WithDetail("status", sale.Status)
		}

		movements := make([]domain.StockMovement, 0, len(sale.Lines))
		for i, line := range sale.Lines {
			restore := line.Remaining()
			if !line.TrackStock || line.ProductID == "" || restore <= 0 {
				continue
			}
			movements = append(movements, domain.StockMovement{
				ID:        xid.New("mov"),
				TenantID:  sale.TenantID,
				ProductID: line.ProductID,
				Delta:     restore,
				Kind:      domain.MovementCancel,
				SourceKey: store.CancelKey(sale.ID, i),
				SaleID:    sale.ID,
				Reason:    reason,
				Actor:     actor.Username,
				CreatedAt: now,
			})
		}
		sale.CancelledAt = &now
		sale.CancelledBy = actor.Username
		sale.Status = domain.SaleStatusCancelled
		return movements, true, nil
	})
	if err != nil {
		return nil, storeErr(err, "sale", ref)
	}

	s.logAudit(ctx, tenantID, audit.ActionCancelSale, "sale", sale.ID,
		fmt.Sprintf("receipt=%d,total=%s,reason=%s", sale.ReceiptNo, sale.Total.StringFixed(2), defaultString(reason, "-")))
	return sale, nil
}

func lineByCode(lines []domain.SaleLine, code string) int {
	code = strings.TrimSpace(code)
	for i, line := range lines {
		if line.Code == code {
			return i
		}
	}
	return -1
}
