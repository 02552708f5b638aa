package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

// postMovements appends movements to the ledger and folds each one into the
// cached product stock. A source key that is already booked is skipped.
func postMovements(ctx context.Context, tx pgx.Tx, movements []domain.StockMovement) ([]domain.StockMovement, error) {
	posted := make([]domain.StockMovement, 0, len(movements))
	for _, m := range movements {
		var booked bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (SELECT 1 FROM stock_movements WHERE tenant_id = $1 AND source_key = $2)
		`, m.TenantID, m.SourceKey).Scan(&booked)
		if err != nil {
			return nil, err
		}
		if booked {
			continue
		}

		err = tx.QueryRow(ctx, `
			UPDATE products
			SET stock = stock + $3
			WHERE tenant_id = $1 AND id = $2
			RETURNING stock
		`, m.TenantID, m.ProductID, m.Delta).Scan(&m.StockAfter)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("stock movement %s: product %s: %w", m.SourceKey, m.ProductID, store.ErrNotFound)
		}
		if err != nil {
			return nil, err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO stock_movements (
				id, tenant_id, product_id, delta, kind, source_key, sale_id, stock_after, reason, actor, created_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
		`, m.ID, m.TenantID, m.ProductID, m.Delta, m.Kind, m.SourceKey, m.SaleID, m.StockAfter, m.Reason, m.Actor, m.CreatedAt)
		if err != nil {
			return nil, err
		}
		posted = append(posted, m)
	}
	return posted, nil
}

func (s *Store) ApplyStockAdjustment(ctx context.Context, adjustment domain.StockAdjustment) (*domain.StockAdjustment, error) {
	var applied *domain.StockAdjustment
	err := s.withTx(ctx, "apply_stock_adjustment", pgx.Serializable, func(tx pgx.Tx) error {
		ids := make([]string, 0, len(adjustment.Lines))
		for _, line := range adjustment.Lines {
			ids = append(ids, line.ProductID)
		}

		var locked []domain.Product
		if err := pgxscan.Select(ctx, tx, &locked, `
			SELECT id, tenant_id, code, name, price, cost, stock, track_stock, min_stock
			FROM products
			WHERE tenant_id = $1 AND id = ANY($2)
			FOR UPDATE
		`, adjustment.TenantID, ids); err != nil {
			return err
		}
		current := make(map[string]domain.Product, len(locked))
		for _, p := range locked {
			current[p.ID] = p
		}
		for _, id := range ids {
			if _, ok := current[id]; !ok {
				return store.ErrNotFound
			}
		}

		planned, movements, changed := store.PlanAdjustment(adjustment, current)
		if !changed {
			return nil
		}
		if _, err := postMovements(ctx, tx, movements); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO stock_adjustments (id, tenant_id, actor, lines, created_at)
			VALUES ($1,$2,$3,$4,$5)
		`, planned.ID, planned.TenantID, planned.Actor, planned.Lines, planned.CreatedAt)
		if err != nil {
			return err
		}
		applied = &planned
		return nil
	})
	if err != nil {
		return nil, err
	}
	return applied, nil
}

func (s *Store) ListStockAdjustments(ctx context.Context, tenantID string, limit int) ([]domain.StockAdjustment, error) {
	q := s.builder.Select("id", "tenant_id", "actor", "lines", "created_at").
		From("stock_adjustments").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build adjustments query: %w", err)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.StockAdjustment, 0)
	for rows.Next() {
		var adj domain.StockAdjustment
		if err := rows.Scan(&adj.ID, &adj.TenantID, &adj.Actor, &adj.Lines, &adj.CreatedAt); err != nil {
			return nil, err
		}
		adj.CreatedAt = adj.CreatedAt.UTC()
		result = append(result, adj)
	}
	return result, rows.Err()
}

func (s *Store) ListStockMovements(ctx context.Context, tenantID string, productID string, limit int) ([]domain.StockMovement, error) {
	q := s.builder.Select(
		"id", "tenant_id", "product_id", "delta", "kind", "source_key", "sale_id", "stock_after", "reason", "actor", "created_at",
	).From("stock_movements").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("created_at DESC", "id DESC")
	if productID != "" {
		q = q.Where(squirrel.Eq{"product_id": productID})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build movements query: %w", err)
	}

	movements := make([]domain.StockMovement, 0)
	if err := pgxscan.Select(ctx, s.pool, &movements, query, args...); err != nil {
		return nil, err
	}
	return movements, nil
}

func (s *Store) StockBalances(ctx context.Context, tenantID string) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT product_id, COALESCE(SUM(delta), 0)
		FROM stock_movements
		WHERE tenant_id = $1
		GROUP BY product_id
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	balances := make(map[string]int)
	for rows.Next() {
		var productID string
		var balance int
		if err := rows.Scan(&productID, &balance); err != nil {
			return nil, err
		}
		balances[productID] = balance
	}
	return balances, rows.Err()
}
