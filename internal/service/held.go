package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

// HoldOrder parks a cart on the caller's open shift. The shift cannot be
// closed while it has held orders.
func (s *Service) HoldOrder(ctx context.Context, req domain.HoldOrderRequest) (*domain.HeldOrder, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}
	if err := validateDiscount(req.Discount); err != nil {
		return nil, err
	}
	if err := s.ensureTerminalOwner(ctx, tenantID, actor.Username, req.TerminalID); err != nil {
		return nil, err
	}

	shift, err := s.repo.GetOpenShift(ctx, tenantID, actor.Username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperror.ErrNoOpenShift
		}
		return nil, err
	}

	now := s.now()
	order := domain.HeldOrder{
		ID:         xid.New("hold"),
		TenantID:   tenantID,
		Cashier:    actor.Username,
		ShiftID:    shift.ID,
		TerminalID: strings.TrimSpace(req.TerminalID),
		Label:      defaultString(req.Label, fmt.Sprintf("Held %s", now.Format("15:04"))),
		Note:       strings.TrimSpace(req.Note),
		Items:      req.Items,
		Discount:   req.Discount,
		HeldAt:     now,
	}
	if err := s.repo.CreateHeldOrder(ctx, order); err != nil {
		return nil, storeErr(err, "held order", order.ID)
	}
	return &order, nil
}

func (s *Service) ListHeldOrders(ctx context.Context) ([]domain.HeldOrder, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	return s.repo.ListHeldOrders(ctx, tenantID, actor.Username)
}

// ResumeHeldOrder removes the order and hands its cart back to the caller.
func (s *Service) ResumeHeldOrder(ctx context.Context, orderID string) (*domain.HeldOrder, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return nil, err
	}
	order, err := s.repo.PopHeldOrder(ctx, tenantID, actor.Username, strings.TrimSpace(orderID))
	if err != nil {
		return nil, storeErr(err, "held order", orderID)
	}
	return order, nil
}

func (s *Service) DiscardHeldOrder(ctx context.Context, orderID string) error {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return err
	}
	return storeErr(s.repo.DeleteHeldOrder(ctx, tenantID, actor.Username, strings.TrimSpace(orderID)), "held order", orderID)
}
