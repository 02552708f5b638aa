package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"posledger/backend/internal/apperror"
	"posledger/backend/internal/audit"
	"posledger/backend/internal/cache"
	"posledger/backend/internal/domain"
	"posledger/backend/internal/logger"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	SettingsCache   cache.SettingsCache
	SettingsTTL     time.Duration
	Audit           audit.Sink
	DefaultTenantID string
}

type Service struct {
	repo            store.Repository
	settingsCache   cache.SettingsCache
	settingsTTL     time.Duration
	audit           audit.Sink
	validate        *validator.Validate
	defaultTenantID string
	now             func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.SettingsCache == nil {
		opts.SettingsCache = cache.NoopSettingsCache{}
	}
	if opts.SettingsTTL <= 0 {
		opts.SettingsTTL = time.Minute
	}
	if opts.Audit == nil {
		opts.Audit = audit.NewStoreSink(repo)
	}
	if opts.DefaultTenantID == "" {
		opts.DefaultTenantID = "main-tenant"
	}

	return &Service{
		repo:            repo,
		settingsCache:   opts.SettingsCache,
		settingsTTL:     opts.SettingsTTL,
		audit:           opts.Audit,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
		defaultTenantID: opts.DefaultTenantID,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

// session resolves the tenant and acting user of a request. Ledger writes
// need a named user; anonymous contexts only get the default tenant.
func (s *Service) session(ctx context.Context) (string, domain.Actor, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || strings.TrimSpace(actor.Username) == "" {
		return s.defaultTenantID, domain.Actor{}, apperror.NewForbidden("authenticated user required")
	}
	tenantID := actor.TenantID
	if tenantID == "" {
		tenantID = s.defaultTenantID
	}
	return tenantID, actor, nil
}

func (s *Service) tenant(ctx context.Context) string {
	if actor, ok := ActorFromContext(ctx); ok && actor.TenantID != "" {
		return actor.TenantID
	}
	return s.defaultTenantID
}

func (s *Service) validateRequest(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperror.NewValidation(err.Error())
	}
	appErr := apperror.NewValidation("invalid request")
	fields := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		fields[fe.Namespace()] = fe.Tag()
	}
	return appErr.WithDetail("fields", fields)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx, s.tenant(ctx))
}

func (s *Service) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 || limit > 500 {
		limit = 100
	}
	return s.repo.ListAuditLogs(ctx, s.tenant(ctx), limit)
}

func (s *Service) logAudit(ctx context.Context, tenantID string, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	err := s.audit.Record(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		TenantID:      tenantID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	})
	if err != nil {
		logger.FromContext(ctx).Warnw("failed to write audit log",
			"action", action, "entity_type", entityType, "entity_id", entityID, "error", err)
	}
}

// storeErr translates persistence sentinels into ledger errors. Errors that
// already carry a code pass through unchanged.
func storeErr(err error, entity string, id string) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, store.ErrNotFound):
		return apperror.NewNotFound(entity, id)
	case errors.Is(err, store.ErrNoOpenShift):
		return apperror.ErrNoOpenShift
	case errors.Is(err, store.ErrShiftOpen):
		return apperror.ErrShiftAlreadyOpen
	case errors.Is(err, store.ErrTerminalBusy):
		return apperror.ErrReadOnlyTerminal
	case errors.Is(err, store.ErrConflict):
		return apperror.NewConflict(fmt.Sprintf("%s %s conflicts with an existing record", entity, id))
	default:
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return strings.TrimSpace(value)
}
