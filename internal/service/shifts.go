package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/audit"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

func (s *Service) OpenShift(ctx context.Context, req domain.OpenShiftRequest) (*domain.Shift, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if req.StartCash.IsNegative() {
		return nil, apperror.NewValidation("start cash must not be negative")
	}
	if err := s.ensureTerminalOwner(ctx, tenantID, actor.Username, req.TerminalID); err != nil {
		return nil, err
	}

	shift, err := s.repo.OpenShift(ctx, domain.Shift{
		ID:         xid.New("shift"),
		TenantID:   tenantID,
		Cashier:    actor.Username,
		TerminalID: strings.TrimSpace(req.TerminalID),
		StartCash:  money(req.StartCash),
		StartTime:  s.now(),
		Status:     domain.ShiftStatusOpen,
	})
	if err != nil {
		return nil, storeErr(err, "shift", actor.Username)
	}

	s.logAudit(ctx, tenantID, audit.ActionOpenShift, "shift", shift.ID,
		fmt.Sprintf("start_cash=%s,terminal=%s", shift.StartCash.StringFixed(2), defaultString(shift.TerminalID, "-")))
	return shift, nil
}

// CurrentShift tells a terminal how it may be used by the calling cashier.
func (s *Service) CurrentShift(ctx context.Context, terminalID string) (domain.TerminalSession, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return domain.TerminalSession{}, err
	}

	own, err := s.repo.GetOpenShift(ctx, tenantID, actor.Username)
	switch {
	case err == nil:
		return domain.TerminalSession{Mode: domain.TerminalModeOwner, Shift: own, OwnerCashier: own.Cashier}, nil
	case !errors.Is(err, store.ErrNotFound):
		return domain.TerminalSession{}, err
	}

	if strings.TrimSpace(terminalID) != "" {
		held, err := s.repo.GetOpenShiftByTerminal(ctx, tenantID, terminalID)
		switch {
		case err == nil:
			return domain.TerminalSession{Mode: domain.TerminalModeReadOnly, OwnerCashier: held.Cashier}, nil
		case !errors.Is(err, store.ErrNotFound):
			return domain.TerminalSession{}, err
		}
	}
	return domain.TerminalSession{Mode: domain.TerminalModeNone}, nil
}

// SummarizeShift previews the reconciliation of the caller's open shift.
func (s *Service) SummarizeShift(ctx context.Context) (domain.ShiftSummary, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return domain.ShiftSummary{}, err
	}
	shift, err := s.repo.GetOpenShift(ctx, tenantID, actor.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.ShiftSummary{}, apperror.ErrNoOpenShift
		}
		return domain.ShiftSummary{}, err
	}

	ledger := store.ShiftLedger{Shift: *shift}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sales, err := s.repo.ListSales(gctx, domain.SaleFilter{TenantID: tenantID, ShiftID: shift.ID})
		ledger.Sales = sales
		return err
	})
	g.Go(func() error {
		expenses, err := s.repo.ListExpenses(gctx, tenantID, &shift.StartTime)
		ledger.Expenses = expenses
		return err
	})
	g.Go(func() error {
		movements, err := s.repo.ListCashMovements(gctx, tenantID, shift.ID)
		ledger.CashMovements = movements
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.ShiftSummary{}, fmt.Errorf("load shift ledger: %w", err)
	}
	return Summarize(ledger), nil
}

// Summarize reconciles a shift. Split sales count toward TotalSales but
// stay out of the per-method buckets. Refunds and expenses are treated as
// cash when computing ExpectedCash; RefundsByMethod carries the breakdown
// by the original sale's method.
func Summarize(ledger store.ShiftLedger) domain.ShiftSummary {
	summary := domain.ShiftSummary{
		ShiftID:         ledger.Shift.ID,
		StartCash:       ledger.Shift.StartCash,
		TotalSales:      decimal.Zero,
		CashSales:       decimal.Zero,
		CardSales:       decimal.Zero,
		MobileSales:     decimal.Zero,
		SplitSales:      decimal.Zero,
		TotalRefunds:    decimal.Zero,
		RefundsByMethod: map[domain.PaymentMethod]decimal.Decimal{},
		Expenses:        decimal.Zero,
		CashIn:          decimal.Zero,
		CashOut:         decimal.Zero,
	}

	for _, sale := range ledger.Sales {
		if sale.ShiftID != ledger.Shift.ID || sale.Status == domain.SaleStatusCancelled {
			continue
		}
		summary.SaleCount++
		summary.TotalSales = summary.TotalSales.Add(sale.Total)
		switch sale.PaymentMethod {
		case domain.PaymentCash:
			summary.CashSales = summary.CashSales.Add(sale.Total)
		case domain.PaymentCard:
			summary.CardSales = summary.CardSales.Add(sale.Total)
		case domain.PaymentMobile:
			summary.MobileSales = summary.MobileSales.Add(sale.Total)
		case domain.PaymentSplit:
			summary.SplitSales = summary.SplitSales.Add(sale.Total)
		}

		refunded := sale.TotalRefunded()
		if refunded.IsZero() {
			continue
		}
		summary.TotalRefunds = summary.TotalRefunds.Add(refunded)
		summary.RefundsByMethod[sale.PaymentMethod] = summary.RefundsByMethod[sale.PaymentMethod].Add(refunded)
	}

	for _, expense := range ledger.Expenses {
		if expense.SpentAt.Before(ledger.Shift.StartTime) {
			continue
		}
		summary.Expenses = summary.Expenses.Add(expense.Amount)
	}

	for _, m := range ledger.CashMovements {
		switch m.Type {
		case domain.CashIn:
			summary.CashIn = summary.CashIn.Add(m.Amount)
		case domain.CashOut:
			summary.CashOut = summary.CashOut.Add(m.Amount)
		}
	}

	summary.ExpectedCash = money(summary.StartCash.
		Add(summary.CashSales).
		Sub(summary.TotalRefunds).
		Sub(summary.Expenses).
		Add(summary.CashIn).
		Sub(summary.CashOut))
	return summary
}

// CloseShift recomputes the summary under the store's shift lock and freezes
// it together with the counted amounts.
func (s *Service) CloseShift(ctx context.Context, req domain.CloseShiftRequest) (*domain.Shift, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if req.ActualCash.IsNegative() || req.ActualCard.IsNegative() || req.ActualMobile.IsNegative() {
		return nil, apperror.NewValidation("counted amounts must not be negative")
	}
	if err := s.ensureTerminalOwner(ctx, tenantID, actor.Username, req.TerminalID); err != nil {
		return nil, err
	}
	if req.HeldOrdersPending {
		return nil, apperror.ErrHeldOrdersPending
	}

	shift, err := s.repo.CloseShift(ctx, tenantID, actor.Username, s.now(), func(ledger store.ShiftLedger) (*domain.ShiftClosing, error) {
		if ledger.HeldOrders > 0 {
			return nil, apperror.ErrHeldOrdersPending.WithDetail("held_orders", ledger.HeldOrders)
		}
		summary := Summarize(ledger)
		return &domain.ShiftClosing{
			Summary:          summary,
			ActualCash:       money(req.ActualCash),
			ActualCard:       money(req.ActualCard),
			ActualMobile:     money(req.ActualMobile),
			CashDifference:   money(req.ActualCash.Sub(summary.ExpectedCash)),
			CardDifference:   money(req.ActualCard.Sub(summary.CardSales)),
			MobileDifference: money(req.ActualMobile.Sub(summary.MobileSales)),
			ClosedBy:         actor.Username,
		}, nil
	})
	if err != nil {
		return nil, storeErr(err, "shift", actor.Username)
	}

	s.logAudit(ctx, tenantID, audit.ActionCloseShift, "shift", shift.ID,
		fmt.Sprintf("expected_cash=%s,actual_cash=%s,difference=%s",
			shift.Closing.Summary.ExpectedCash.StringFixed(2),
			shift.Closing.ActualCash.StringFixed(2),
			shift.Closing.CashDifference.StringFixed(2)))
	return shift, nil
}

// RecordCashMovement books drawer cash in or out on the caller's open shift.
func (s *Service) RecordCashMovement(ctx context.Context, req domain.CashMovementRequest) (*domain.CashMovement, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.NewValidation("amount must be positive")
	}

	shift, err := s.repo.GetOpenShift(ctx, tenantID, actor.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.ErrNoOpenShift
		}
		return nil, err
	}

	movement := domain.CashMovement{
		ID:        xid.New("cash"),
		TenantID:  tenantID,
		ShiftID:   shift.ID,
		Cashier:   actor.Username,
		Type:      req.Type,
		Amount:    money(req.Amount),
		Reason:    strings.TrimSpace(req.Reason),
		CreatedAt: s.now(),
	}
	if err := s.repo.CreateCashMovement(ctx, movement); err != nil {
		return nil, storeErr(err, "cash movement", movement.ID)
	}

	s.logAudit(ctx, tenantID, audit.ActionCashMovement, "shift", shift.ID,
		fmt.Sprintf("type=%s,amount=%s", movement.Type, movement.Amount.StringFixed(2)))
	return &movement, nil
}
