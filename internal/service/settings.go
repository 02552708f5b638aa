package service

import (
	"context"
	"errors"
	"fmt"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/audit"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/logger"
	"posledger/backend/internal/store"
)

func (s *Service) GetSettings(ctx context.Context) (domain.TenantSettings, error) {
	return s.settings(ctx, s.tenant(ctx))
}

// settings reads through the cache. Cache failures are logged and the
// repository stays authoritative.
func (s *Service) settings(ctx context.Context, tenantID string) (domain.TenantSettings, error) {
	log := logger.FromContext(ctx)

	cached, hit, err := s.settingsCache.Get(ctx, tenantID)
	if err != nil {
		log.Warnw("settings cache read failed", "tenant_id", tenantID, "error", err)
	}
	if hit && cached != nil {
		return *cached, nil
	}

	stored, err := s.repo.GetSettings(ctx, tenantID)
	var settings domain.TenantSettings
	switch {
	case errors.Is(err, store.ErrNotFound):
		settings = domain.DefaultSettings(tenantID)
	case err != nil:
		return domain.TenantSettings{}, err
	default:
		settings = *stored
	}

	if err := s.settingsCache.Set(ctx, settings, s.settingsTTL); err != nil {
		log.Warnw("settings cache write failed", "tenant_id", tenantID, "error", err)
	}
	return settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, req domain.SettingsUpdateRequest) (domain.TenantSettings, error) {
	tenantID, _, err := s.session(ctx)
	if err != nil {
		return domain.TenantSettings{}, err
	}
	if err := s.validateRequest(req); err != nil {
		return domain.TenantSettings{}, err
	}
	if req.TaxRate.IsNegative() || req.TaxRate.GreaterThan(hundred) {
		return domain.TenantSettings{}, apperror.NewValidation("tax rate must be between 0 and 100")
	}

	settings := domain.TenantSettings{
		TenantID:      tenantID,
		ShopName:      req.ShopName,
		Address:       req.Address,
		Phone:         req.Phone,
		FooterMessage: req.FooterMessage,
		TaxEnabled:    req.TaxEnabled,
		TaxName:       defaultString(req.TaxName, "VAT"),
		TaxRate:       req.TaxRate,
		UpdatedAt:     s.now(),
	}
	if err := s.repo.SaveSettings(ctx, settings); err != nil {
		return domain.TenantSettings{}, err
	}
	if err := s.settingsCache.Invalidate(ctx, tenantID); err != nil {
		logger.FromContext(ctx).Warnw("settings cache invalidate failed", "tenant_id", tenantID, "error", err)
	}

	s.logAudit(ctx, tenantID, audit.ActionSettings, "settings", tenantID,
		fmt.Sprintf("tax_enabled=%t,tax_name=%s,tax_rate=%s", settings.TaxEnabled, settings.TaxName, settings.TaxRate.String()))
	return settings, nil
}
