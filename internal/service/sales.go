package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/audit"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/logger"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

const (
	defaultSaleListLimit = 50
	maxSaleListLimit     = 200
)

func (s *Service) CreateSale(ctx context.Context, req domain.CreateSaleRequest) (domain.CreateSaleResult, error) {
	tenantID, actor, err := s.session(ctx)
	if err != nil {
		return domain.CreateSaleResult{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.CreateSaleResult{}, err
	}
	if err := validateDiscount(req.Discount); err != nil {
		return domain.CreateSaleResult{}, err
	}
	for _, item := range req.Items {
		if item.Price.IsNegative() {
			return domain.CreateSaleResult{}, apperror.NewValidation("item price must not be negative")
		}
		if err := validateDiscount(item.Discount); err != nil {
			return domain.CreateSaleResult{}, err
		}
	}

	if err := s.ensureTerminalOwner(ctx, tenantID, actor.Username, req.TerminalID); err != nil {
		return domain.CreateSaleResult{}, err
	}
	if _, err := s.repo.GetOpenShift(ctx, tenantID, actor.Username); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.CreateSaleResult{}, apperror.ErrNoOpenShift
		}
		return domain.CreateSaleResult{}, err
	}

	lines := make([]domain.SaleLine, 0, len(req.Items))
	for _, item := range req.Items {
		line, err := s.resolveLine(ctx, tenantID, item)
		if err != nil {
			return domain.CreateSaleResult{}, err
		}
		lines = append(lines, line)
	}

	settings, err := s.settings(ctx, tenantID)
	if err != nil {
		return domain.CreateSaleResult{}, err
	}
	totals := PriceSale(lines, req.Discount, settings.TaxEnabled, settings.TaxRate)

	method := req.PaymentMethod
	if len(req.Splits) > 0 {
		method = domain.PaymentSplit
	}
	if method == "" {
		method = domain.PaymentCash
	}
	if method == domain.PaymentSplit {
		if len(req.Splits) == 0 {
			return domain.CreateSaleResult{}, apperror.NewValidation("split payment requires split amounts")
		}
		if err := CheckSplits(totals.Total, req.Splits); err != nil {
			return domain.CreateSaleResult{}, err
		}
	}

	now := s.now()
	sale := domain.Sale{
		ID:             xid.New("sale"),
		TenantID:       tenantID,
		RequestID:      strings.TrimSpace(req.RequestID),
		Cashier:        actor.Username,
		Salesman:       strings.TrimSpace(req.Salesman),
		TerminalID:     req.TerminalID,
		Lines:          lines,
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.DiscountAmount,
		Tax: domain.TaxSnapshot{
			Enabled: settings.TaxEnabled,
			Name:    settings.TaxName,
			Rate:    settings.TaxRate,
			Amount:  totals.TaxAmount,
		},
		Total:         totals.Total,
		PaymentMethod: method,
		Status:        domain.SaleStatusFinished,
		Returns:       []domain.ReturnEvent{},
		CreatedAt:     now,
	}
	if method == domain.PaymentSplit {
		sale.Splits = req.Splits
	}
	if req.Discount != nil {
		sale.Discount = &domain.Discount{Type: req.Discount.Type, Value: req.Discount.Value, Amount: totals.DiscountAmount}
	}

	movements := make([]domain.StockMovement, 0, len(lines))
	for i, line := range lines {
		if !line.TrackStock || line.ProductID == "" {
			continue
		}
		movements = append(movements, domain.StockMovement{
			ID:        xid.New("mov"),
			TenantID:  tenantID,
			ProductID: line.ProductID,
			Delta:     -line.Qty,
			Kind:      domain.MovementSale,
			SourceKey: store.SoldKey(sale.ID, i),
			SaleID:    sale.ID,
			Actor:     actor.Username,
			CreatedAt: now,
		})
	}

	commit, err := s.repo.CreateSale(ctx, sale, movements)
	if err != nil {
		return domain.CreateSaleResult{}, storeErr(err, "sale", sale.ID)
	}

	result := domain.CreateSaleResult{
		Sale:      *commit.Sale,
		Settings:  settings,
		Duplicate: commit.Duplicate,
	}
	if commit.Duplicate {
		return result, nil
	}

	log := logger.FromContext(ctx)
	for _, m := range commit.Movements {
		if m.StockAfter >= 0 {
			continue
		}
		name := m.ProductID
		for _, line := range commit.Sale.Lines {
			if line.ProductID == m.ProductID {
				name = line.Name
				break
			}
		}
		result.NegativeStock = append(result.NegativeStock, domain.NegativeStock{ProductID: m.ProductID, Name: name, Stock: m.StockAfter})
		log.Warnw("stock went negative after sale",
			"tenant_id", tenantID, "sale_id", commit.Sale.ID, "product_id", m.ProductID, "stock", m.StockAfter)
	}

	s.logAudit(ctx, tenantID, audit.ActionCreateSale, "sale", commit.Sale.ID,
		fmt.Sprintf("receipt=%d,total=%s,method=%s", commit.Sale.ReceiptNo, commit.Sale.Total.StringFixed(2), commit.Sale.PaymentMethod))
	return result, nil
}

// resolveLine looks the item up by product id, then by code. Resolved items
// take their price from the catalog; unknown items keep the caller's data
// and never move stock.
func (s *Service) resolveLine(ctx context.Context, tenantID string, item domain.SaleItemInput) (domain.SaleLine, error) {
	product, err := s.findProduct(ctx, tenantID, item)
	if err != nil {
		return domain.SaleLine{}, err
	}

	line := domain.SaleLine{
		Code:      strings.TrimSpace(item.Code),
		Name:      strings.TrimSpace(item.Name),
		Qty:       item.Qty,
		UnitPrice: item.Price,
	}
	if product != nil {
		line.Code = product.Code
		line.Name = product.Name
		line.ProductID = product.ID
		if !item.Price.IsPositive() {
			line.UnitPrice = product.Price
		}
		line.UnitCost = product.Cost
		line.TrackStock = product.TrackStock
	}
	if line.Name == "" {
		line.Name = line.Code
	}
	if item.Discount != nil {
		line.Discount = &domain.Discount{
			Type:   item.Discount.Type,
			Value:  item.Discount.Value,
			Amount: discountAmount(line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Qty))), item.Discount),
		}
	}
	return line, nil
}

func (s *Service) findProduct(ctx context.Context, tenantID string, item domain.SaleItemInput) (*domain.Product, error) {
	if id := strings.TrimSpace(item.ProductID); id != "" {
		product, err := s.repo.GetProduct(ctx, tenantID, id)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	if code := strings.TrimSpace(item.Code); code != "" {
		product, err := s.repo.FindProductByCode(ctx, tenantID, code)
		if err == nil {
			return product, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}
	return nil, nil
}

// ensureTerminalOwner refuses writes from a terminal held by another
// cashier's open shift.
func (s *Service) ensureTerminalOwner(ctx context.Context, tenantID string, cashier string, terminalID string) error {
	if strings.TrimSpace(terminalID) == "" {
		return nil
	}
	shift, err := s.repo.GetOpenShiftByTerminal(ctx, tenantID, terminalID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if shift.Cashier != cashier {
		return apperror.ErrReadOnlyTerminal.WithDetail("owner", shift.Cashier)
	}
	return nil
}

func (s *Service) GetSale(ctx context.Context, ref string) (*domain.Sale, error) {
	sale, err := s.repo.GetSale(ctx, s.tenant(ctx), strings.TrimSpace(ref))
	if err != nil {
		return nil, storeErr(err, "sale", ref)
	}
	return sale, nil
}

// ListSales returns the newest sales first. Cashiers only see their own.
func (s *Service) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	filter.TenantID = s.tenant(ctx)
	if actor, ok := ActorFromContext(ctx); ok && actor.Role != domain.RoleAdmin {
		filter.Cashier = actor.Username
	}
	if filter.Limit < 1 {
		filter.Limit = defaultSaleListLimit
	}
	if filter.Limit > maxSaleListLimit {
		filter.Limit = maxSaleListLimit
	}
	return s.repo.ListSales(ctx, filter)
}

// DailySummary totals the tenant's sales for one UTC day. Cancelled sales
// are counted apart and excluded from the money totals; split sales are
// spread over their split methods.
func (s *Service) DailySummary(ctx context.Context, date string) (domain.DailySummary, error) {
	tenantID := s.tenant(ctx)

	day := s.now().Truncate(24 * time.Hour)
	if strings.TrimSpace(date) != "" {
		parsed, err := time.Parse("2006-01-02", strings.TrimSpace(date))
		if err != nil {
			return domain.DailySummary{}, apperror.NewValidation("date must be formatted as YYYY-MM-DD")
		}
		day = parsed
	}
	next := day.Add(24 * time.Hour)

	sales, err := s.repo.ListSales(ctx, domain.SaleFilter{TenantID: tenantID, From: &day, To: &next})
	if err != nil {
		return domain.DailySummary{}, err
	}

	summary := domain.DailySummary{
		TenantID:     tenantID,
		Date:         day.Format("2006-01-02"),
		TotalSales:   decimal.Zero,
		TotalTax:     decimal.Zero,
		TotalRefunds: decimal.Zero,
		ByMethod:     map[domain.PaymentMethod]decimal.Decimal{},
	}
	for _, sale := range sales {
		if sale.Status == domain.SaleStatusCancelled {
			summary.Cancelled++
			continue
		}
		summary.TotalOrders++
		summary.TotalSales = summary.TotalSales.Add(sale.Total)
		summary.TotalTax = summary.TotalTax.Add(sale.Tax.Amount)
		summary.TotalRefunds = summary.TotalRefunds.Add(sale.TotalRefunded())
		if sale.PaymentMethod == domain.PaymentSplit {
			for _, split := range sale.Splits {
				summary.ByMethod[split.Method] = summary.ByMethod[split.Method].Add(split.Amount)
			}
			continue
		}
		summary.ByMethod[sale.PaymentMethod] = summary.ByMethod[sale.PaymentMethod].Add(sale.Total)
	}
	return summary, nil
}
