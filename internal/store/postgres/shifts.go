package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

const shiftColumns = `id, tenant_id, cashier, terminal_id, start_cash, start_time, end_time, status, sale_seq, closing`

func scanShift(row pgx.Row) (*domain.Shift, error) {
	var shift domain.Shift
	err := row.Scan(
		&shift.ID, &shift.TenantID, &shift.Cashier, &shift.TerminalID, &shift.StartCash,
		&shift.StartTime, &shift.EndTime, &shift.Status, &shift.SaleSeq, &shift.Closing,
	)
	if err != nil {
		return nil, err
	}
	shift.StartTime = shift.StartTime.UTC()
	return &shift, nil
}

func (s *Store) OpenShift(ctx context.Context, shift domain.Shift) (*domain.Shift, error) {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shifts (id, tenant_id, cashier, terminal_id, start_cash, start_time, status, sale_seq)
		VALUES ($1,$2,$3,$4,$5,$6,$7,0)
	`, shift.ID, shift.TenantID, shift.Cashier, shift.TerminalID, shift.StartCash, shift.StartTime, shift.Status)
	if err != nil {
		switch violatedConstraint(err) {
		case "shifts_open_cashier":
			return nil, store.ErrShiftOpen
		case "shifts_open_terminal":
			return nil, store.ErrTerminalBusy
		}
		return nil, err
	}
	opened := shift
	return &opened, nil
}

func (s *Store) GetOpenShift(ctx context.Context, tenantID string, cashier string) (*domain.Shift, error) {
	shift, err := scanShift(s.pool.QueryRow(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE tenant_id = $1 AND cashier = $2 AND status = 'open'
	`, tenantID, cashier))
	return shift, notFound(err)
}

func (s *Store) GetOpenShiftByTerminal(ctx context.Context, tenantID string, terminalID string) (*domain.Shift, error) {
	shift, err := scanShift(s.pool.QueryRow(ctx, `
		SELECT `+shiftColumns+`
		FROM shifts
		WHERE tenant_id = $1 AND terminal_id = $2 AND status = 'open'
	`, tenantID, terminalID))
	return shift, notFound(err)
}

// CloseShift locks the open shift row. CreateSale bumps the same row, so no
// sale can attach while the closing summary is computed.
func (s *Store) CloseShift(ctx context.Context, tenantID string, cashier string, closedAt time.Time, fn store.ShiftCloser) (*domain.Shift, error) {
	var closed *domain.Shift
	err := s.withTx(ctx, "close_shift", pgx.Serializable, func(tx pgx.Tx) error {
		shift, err := scanShift(tx.QueryRow(ctx, `
			SELECT `+shiftColumns+`
			FROM shifts
			WHERE tenant_id = $1 AND cashier = $2 AND status = 'open'
			FOR UPDATE
		`, tenantID, cashier))
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNoOpenShift
		}
		if err != nil {
			return err
		}

		ledger, err := s.shiftLedger(ctx, tx, *shift)
		if err != nil {
			return err
		}
		closing, err := fn(ledger)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE shifts
			SET status = 'closed', end_time = $2, closing = $3
			WHERE id = $1
		`, shift.ID, closedAt, closing)
		if err != nil {
			return err
		}

		shift.Status = domain.ShiftStatusClosed
		shift.EndTime = &closedAt
		shift.Closing = closing
		closed = shift
		return nil
	})
	if err != nil {
		return nil, err
	}
	return closed, nil
}

func (s *Store) shiftLedger(ctx context.Context, tx pgx.Tx, shift domain.Shift) (store.ShiftLedger, error) {
	ledger := store.ShiftLedger{Shift: shift}

	rows, err := tx.Query(ctx, `SELECT `+joinColumns(saleColumns)+` FROM sales WHERE shift_id = $1`, shift.ID)
	if err != nil {
		return ledger, err
	}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			rows.Close()
			return ledger, err
		}
		ledger.Sales = append(ledger.Sales, *sale)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ledger, err
	}

	if err := pgxscan.Select(ctx, tx, &ledger.Expenses, `
		SELECT id, tenant_id, spent_at, description, amount, method, seller, created_by, created_at
		FROM expenses
		WHERE tenant_id = $1 AND spent_at >= $2
	`, shift.TenantID, shift.StartTime); err != nil {
		return ledger, err
	}
	if err := pgxscan.Select(ctx, tx, &ledger.CashMovements, `
		SELECT id, tenant_id, shift_id, cashier, type, amount, reason, created_at
		FROM cash_movements
		WHERE shift_id = $1
	`, shift.ID); err != nil {
		return ledger, err
	}
	if err := tx.QueryRow(ctx, `
		SELECT count(*) FROM held_orders WHERE tenant_id = $1 AND cashier = $2
	`, shift.TenantID, shift.Cashier).Scan(&ledger.HeldOrders); err != nil {
		return ledger, err
	}
	return ledger, nil
}

func (s *Store) CreateCashMovement(ctx context.Context, movement domain.CashMovement) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO cash_movements (id, tenant_id, shift_id, cashier, type, amount, reason, created_at)
		SELECT $1::text, $2::text, $3::text, $4::text, $5::text, $6::numeric, $7::text, $8::timestamptz
		WHERE EXISTS (SELECT 1 FROM shifts WHERE id = $3 AND tenant_id = $2 AND status = 'open')
	`, movement.ID, movement.TenantID, movement.ShiftID, movement.Cashier, movement.Type, movement.Amount, movement.Reason, movement.CreatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNoOpenShift
	}
	return nil
}

func (s *Store) ListCashMovements(ctx context.Context, tenantID string, shiftID string) ([]domain.CashMovement, error) {
	movements := make([]domain.CashMovement, 0)
	err := pgxscan.Select(ctx, s.pool, &movements, `
		SELECT id, tenant_id, shift_id, cashier, type, amount, reason, created_at
		FROM cash_movements
		WHERE tenant_id = $1 AND shift_id = $2
		ORDER BY created_at
	`, tenantID, shiftID)
	return movements, err
}
