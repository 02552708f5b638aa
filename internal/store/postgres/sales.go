package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

var saleColumns = []string{
	"id", "tenant_id", "shift_id", "receipt_no", "COALESCE(request_id, '')", "cashier", "salesman", "terminal_id",
	"lines", "subtotal", "discount", "discount_amount", "tax", "total", "payment_method", "splits",
	"status", "returns", "cancelled_at", "cancelled_by", "created_at",
}

func scanSale(row pgx.Row) (*domain.Sale, error) {
	var sale domain.Sale
	err := row.Scan(
		&sale.ID, &sale.TenantID, &sale.ShiftID, &sale.ReceiptNo, &sale.RequestID, &sale.Cashier, &sale.Salesman, &sale.TerminalID,
		&sale.Lines, &sale.Subtotal, &sale.Discount, &sale.DiscountAmount, &sale.Tax, &sale.Total, &sale.PaymentMethod, &sale.Splits,
		&sale.Status, &sale.Returns, &sale.CancelledAt, &sale.CancelledBy, &sale.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	if sale.Returns == nil {
		sale.Returns = []domain.ReturnEvent{}
	}
	return &sale, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale, movements []domain.StockMovement) (store.SaleCommit, error) {
	var commit store.SaleCommit
	// The shift row lock taken by the sale_seq bump orders concurrent sales of
	// one shift; read committed lets the waiter see the committed counter.
	err := s.withTx(ctx, "create_sale", pgx.ReadCommitted, func(tx pgx.Tx) error {
		if sale.RequestID != "" {
			existing, err := s.saleByRequest(ctx, tx, sale.TenantID, sale.RequestID)
			if err == nil {
				commit = store.SaleCommit{Sale: existing, Duplicate: true}
				return nil
			}
			if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}

		var shiftID string
		var seq int
		err := tx.QueryRow(ctx, `
			UPDATE shifts
			SET sale_seq = sale_seq + 1
			WHERE tenant_id = $1 AND cashier = $2 AND status = 'open'
			RETURNING id, sale_seq
		`, sale.TenantID, sale.Cashier).Scan(&shiftID, &seq)
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ErrNoOpenShift
		}
		if err != nil {
			return err
		}

		stored := sale
		stored.ShiftID = shiftID
		stored.ReceiptNo = seq
		if stored.Splits == nil {
			stored.Splits = []domain.PaymentSplitLine{}
		}
		if stored.Returns == nil {
			stored.Returns = []domain.ReturnEvent{}
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO sales (
				id, tenant_id, shift_id, receipt_no, request_id, cashier, salesman, terminal_id,
				lines, subtotal, discount, discount_amount, tax, total, payment_method, splits,
				status, returns, cancelled_at, cancelled_by, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		`,
			stored.ID, stored.TenantID, stored.ShiftID, stored.ReceiptNo, nullIfEmpty(stored.RequestID), stored.Cashier, stored.Salesman, stored.TerminalID,
			stored.Lines, stored.Subtotal, stored.Discount, stored.DiscountAmount, stored.Tax, stored.Total, stored.PaymentMethod, stored.Splits,
			stored.Status, stored.Returns, stored.CancelledAt, stored.CancelledBy, stored.CreatedAt,
		)
		if err != nil {
			return err
		}

		posted, err := postMovements(ctx, tx, movements)
		if err != nil {
			return err
		}
		commit = store.SaleCommit{Sale: &stored, Movements: posted}
		return nil
	})
	if err == nil {
		return commit, nil
	}

	// A concurrent retry with the same request id won the insert.
	if sale.RequestID != "" && violatedConstraint(err) == "sales_request" {
		existing, lookupErr := s.saleByRequest(ctx, s.pool, sale.TenantID, sale.RequestID)
		if lookupErr != nil {
			return store.SaleCommit{}, lookupErr
		}
		return store.SaleCommit{Sale: existing, Duplicate: true}, nil
	}
	return store.SaleCommit{}, err
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) saleByRequest(ctx context.Context, q querier, tenantID string, requestID string) (*domain.Sale, error) {
	query, args, err := s.builder.Select(saleColumns...).From("sales").
		Where(squirrel.Eq{"tenant_id": tenantID, "request_id": requestID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sale lookup: %w", err)
	}
	sale, err := scanSale(q.QueryRow(ctx, query, args...))
	return sale, notFound(err)
}

// saleRefQuery addresses a sale by id, or by receipt number picking the
// tenant's most recent sale with that number.
func (s *Store) saleRefQuery(tenantID string, ref string) squirrel.SelectBuilder {
	q := s.builder.Select(saleColumns...).From("sales").Where(squirrel.Eq{"tenant_id": tenantID})
	if receiptNo, ok := store.ReceiptRef(ref); ok {
		return q.Where(squirrel.Eq{"receipt_no": receiptNo}).OrderBy("created_at DESC").Limit(1)
	}
	return q.Where(squirrel.Eq{"id": ref})
}

func (s *Store) GetSale(ctx context.Context, tenantID string, ref string) (*domain.Sale, error) {
	query, args, err := s.saleRefQuery(tenantID, ref).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sale query: %w", err)
	}
	sale, err := scanSale(s.pool.QueryRow(ctx, query, args...))
	return sale, notFound(err)
}

func (s *Store) ListSales(ctx context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	q := s.builder.Select(saleColumns...).From("sales").
		Where(squirrel.Eq{"tenant_id": filter.TenantID}).
		OrderBy("created_at DESC")
	if filter.Cashier != "" {
		q = q.Where(squirrel.Eq{"cashier": filter.Cashier})
	}
	if filter.ShiftID != "" {
		q = q.Where(squirrel.Eq{"shift_id": filter.ShiftID})
	}
	if filter.Status != "" {
		q = q.Where(squirrel.Eq{"status": filter.Status})
	}
	if filter.From != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.From})
	}
	if filter.To != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.To})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build sales query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 32)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, *sale)
	}
	return sales, rows.Err()
}

func (s *Store) MutateSale(ctx context.Context, tenantID string, ref string, fn store.SaleMutation) (*domain.Sale, []domain.StockMovement, error) {
	var (
		result *domain.Sale
		posted []domain.StockMovement
	)
	err := s.withTx(ctx, "mutate_sale", pgx.Serializable, func(tx pgx.Tx) error {
		query, args, err := s.saleRefQuery(tenantID, ref).Suffix("FOR UPDATE").ToSql()
		if err != nil {
			return fmt.Errorf("build sale lock: %w", err)
		}
		sale, err := scanSale(tx.QueryRow(ctx, query, args...))
		if err != nil {
			return notFound(err)
		}

		movements, write, err := fn(sale)
		if err != nil {
			return err
		}
		if !write {
			result = sale
			posted = nil
			return nil
		}

		_, err = tx.Exec(ctx, `
			UPDATE sales
			SET lines = $2, status = $3, returns = $4, cancelled_at = $5, cancelled_by = $6
			WHERE id = $1
		`, sale.ID, sale.Lines, sale.Status, sale.Returns, sale.CancelledAt, sale.CancelledBy)
		if err != nil {
			return err
		}

		posted, err = postMovements(ctx, tx, movements)
		if err != nil {
			return err
		}
		result = sale
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, posted, nil
}
