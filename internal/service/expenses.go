package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/audit"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/xid"
)

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (*domain.Expense, error) {
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

	now := s.now()
	spentAt := now
	if req.SpentAt != nil {
		spentAt = req.SpentAt.UTC()
	}
	method := req.Method
	if method == "" {
		method = domain.PaymentCash
	}

	expense := domain.Expense{
		ID:          xid.New("exp"),
		TenantID:    tenantID,
		SpentAt:     spentAt,
		Description: strings.TrimSpace(req.Description),
		Amount:      money(req.Amount),
		Method:      method,
		Seller:      strings.TrimSpace(req.Seller),
		CreatedBy:   actor.Username,
		CreatedAt:   now,
	}
	if err := s.repo.CreateExpense(ctx, expense); err != nil {
		return nil, storeErr(err, "expense", expense.ID)
	}

	s.logAudit(ctx, tenantID, audit.ActionExpense, "expense", expense.ID,
		fmt.Sprintf("create amount=%s,method=%s", expense.Amount.StringFixed(2), expense.Method))
	return &expense, nil
}

func (s *Service) ListExpenses(ctx context.Context, since *time.Time) ([]domain.Expense, error) {
	return s.repo.ListExpenses(ctx, s.tenant(ctx), since)
}

func (s *Service) DeleteExpense(ctx context.Context, expenseID string) error {
	tenantID, _, err := s.session(ctx)
	if err != nil {
		return err
	}
	expenseID = strings.TrimSpace(expenseID)
	if err := s.repo.DeleteExpense(ctx, tenantID, expenseID); err != nil {
		return storeErr(err, "expense", expenseID)
	}
	s.logAudit(ctx, tenantID, audit.ActionExpense, "expense", expenseID, "delete")
	return nil
}
