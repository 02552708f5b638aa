// Package audit records who did what to the ledger. Entries are written either
// directly to the repository or through a Redis-backed asynq queue.
package audit

import (
	"context"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

const (
	ActionOpenShift    = "open_shift"
	ActionCloseShift   = "close_shift"
	ActionCashMovement = "cash_movement"
	ActionCreateSale   = "create_sale"
	ActionReturnItems  = "return_items"
	ActionCancelSale   = "cancel_sale"
	ActionAdjustStock  = "adjust_stock"
	ActionSettings     = "update_settings"
	ActionExpense      = "expense"
)

type Sink interface {
	Record(ctx context.Context, entry domain.AuditLog) error
}

type StoreSink struct {
	store store.AuditStore
}

func NewStoreSink(s store.AuditStore) *StoreSink {
	return &StoreSink{store: s}
}

func (s *StoreSink) Record(ctx context.Context, entry domain.AuditLog) error {
	return s.store.CreateAuditLog(ctx, entry)
}
