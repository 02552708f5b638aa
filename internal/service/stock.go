package service

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/audit"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/xid"
)

const defaultAdjustReason = "Manual Adjustment"

// AdjustStock sets counted stock for a batch of products. Zero differences
// are dropped; a batch with nothing left writes nothing.
func (s *Service) AdjustStock(ctx context.Context, req domain.AdjustStockRequest) (domain.AdjustmentResult, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return domain.AdjustmentResult{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.AdjustmentResult{}, err
	}

	seen := make(map[string]struct{}, len(req.Items))
	lines := make([]domain.StockAdjustmentLine, 0, len(req.Items))
	for _, item := range req.Items {
		productID := strings.TrimSpace(item.ProductID)
		if _, dup := seen[productID]; dup {
			return domain.AdjustmentResult{}, apperror.NewValidation("product listed twice in one adjustment").WithDetail("product_id", productID)
		}
		seen[productID] = struct{}{}

		product, err := s.repo.GetProduct(ctx, tenantID, productID)
		if err != nil {
			return domain.AdjustmentResult{}, storeErr(err, "product", productID)
		}
		if !product.TrackStock {
			return domain.AdjustmentResult{}, apperror.NewValidation("product does not track stock").WithDetail("product_id", productID)
		}
		lines = append(lines, domain.StockAdjustmentLine{
			ProductID: productID,
			NewStock:  item.NewStock,
			Reason:    defaultString(item.Reason, defaultAdjustReason),
		})
	}

	applied, err := s.repo.ApplyStockAdjustment(ctx, domain.StockAdjustment{
		ID:        xid.New("adj"),
		TenantID:  tenantID,
		Actor:     actor.Username,
		Lines:     lines,
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.AdjustmentResult{}, storeErr(err, "stock adjustment", tenantID)
	}
	if applied == nil {
		return domain.AdjustmentResult{Changed: false, Message: "no changes"}, nil
	}

	s.logAudit(ctx, tenantID, audit.ActionAdjustStock, "stock_adjustment", applied.ID,
		fmt.Sprintf("lines=%d", len(applied.Lines)))
	return domain.AdjustmentResult{
		Changed:    true,
		Message:    fmt.Sprintf("%d product(s) adjusted", len(applied.Lines)),
		Adjustment: applied,
	}, nil
}

func (s *Service) ListStockAdjustments(ctx context.Context, limit int) ([]domain.StockAdjustment, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListStockAdjustments(ctx, s.tenant(ctx), limit)
}

func (s *Service) ListStockMovements(ctx context.Context, productID string, limit int) ([]domain.StockMovement, error) {
	tenantID := s.tenant(ctx)
	productID = strings.TrimSpace(productID)
	if productID != "" {
		if _, err := s.repo.GetProduct(ctx, tenantID, productID); err != nil {
			return nil, storeErr(err, "product", productID)
		}
	}
	if limit < 1 || limit > 1000 {
		limit = 200
	}
	return s.repo.ListStockMovements(ctx, tenantID, productID, limit)
}

// StockIntegrity compares each product's cached stock with the fold of its
// movements and lists products that ended below zero.
func (s *Service) StockIntegrity(ctx context.Context) (domain.StockIntegrityReport, error) {
	tenantID := s.tenant(ctx)

	products, err := s.repo.ListProducts(ctx, tenantID)
	if err != nil {
		return domain.StockIntegrityReport{}, err
	}
	balances, err := s.repo.StockBalances(ctx, tenantID)
	if err != nil {
		return domain.StockIntegrityReport{}, err
	}

	report := domain.StockIntegrityReport{
		TenantID:  tenantID,
		CheckedAt: s.now(),
		Drift:     []domain.StockDrift{},
		Negative:  []domain.NegativeStock{},
	}
	for _, p := range products {
		if !p.TrackStock {
			continue
		}
		report.Products++
		if ledger := balances[p.ID]; ledger != p.Stock {
			report.Drift = append(report.Drift, domain.StockDrift{ProductID: p.ID, Name: p.Name, CachedStock: p.Stock, LedgerStock: ledger})
		}
		if p.Stock < 0 {
			report.Negative = append(report.Negative, domain.NegativeStock{ProductID: p.ID, Name: p.Name, Stock: p.Stock})
		}
	}
	slices.SortFunc(report.Drift, func(a, b domain.StockDrift) int { return strings.Compare(a.ProductID, b.ProductID) })
	slices.SortFunc(report.Negative, func(a, b domain.NegativeStock) int { return strings.Compare(a.ProductID, b.ProductID) })
	return report, nil
}
