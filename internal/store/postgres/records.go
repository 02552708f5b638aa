package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/store"
)

const productColumns = `id, tenant_id, code, name, price, cost, stock, track_stock, min_stock`

func (s *Store) ListProducts(ctx context.Context, tenantID string) ([]domain.Product, error) {
	products := make([]domain.Product, 0, 64)
	err := pgxscan.Select(ctx, s.pool, &products, `
		SELECT `+productColumns+`
		FROM products
		WHERE tenant_id = $1
		ORDER BY name
	`, tenantID)
	return products, err
}

func (s *Store) GetProduct(ctx context.Context, tenantID string, productID string) (*domain.Product, error) {
	var product domain.Product
	err := pgxscan.Get(ctx, s.pool, &product, `
		SELECT `+productColumns+`
		FROM products
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, productID)
	if err != nil {
		return nil, notFoundScan(err)
	}
	return &product, nil
}

func (s *Store) FindProductByCode(ctx context.Context, tenantID string, code string) (*domain.Product, error) {
	var product domain.Product
	err := pgxscan.Get(ctx, s.pool, &product, `
		SELECT `+productColumns+`
		FROM products
		WHERE tenant_id = $1 AND code = $2
	`, tenantID, code)
	if err != nil {
		return nil, notFoundScan(err)
	}
	return &product, nil
}

func (s *Store) CreateExpense(ctx context.Context, expense domain.Expense) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO expenses (id, tenant_id, spent_at, description, amount, method, seller, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, expense.ID, expense.TenantID, expense.SpentAt, expense.Description, expense.Amount, expense.Method, expense.Seller, expense.CreatedBy, expense.CreatedAt)
	return err
}

func (s *Store) ListExpenses(ctx context.Context, tenantID string, since *time.Time) ([]domain.Expense, error) {
	q := s.builder.Select("id", "tenant_id", "spent_at", "description", "amount", "method", "seller", "created_by", "created_at").
		From("expenses").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("spent_at DESC")
	if since != nil {
		q = q.Where(squirrel.GtOrEq{"spent_at": *since})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build expenses query: %w", err)
	}

	expenses := make([]domain.Expense, 0)
	if err := pgxscan.Select(ctx, s.pool, &expenses, query, args...); err != nil {
		return nil, err
	}
	return expenses, nil
}

func (s *Store) DeleteExpense(ctx context.Context, tenantID string, expenseID string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM expenses WHERE tenant_id = $1 AND id = $2`, tenantID, expenseID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) GetSettings(ctx context.Context, tenantID string) (*domain.TenantSettings, error) {
	var settings domain.TenantSettings
	err := s.pool.QueryRow(ctx, `
		SELECT tenant_id, shop_name, address, phone, footer_message, tax_enabled, tax_name, tax_rate, updated_at
		FROM tenant_settings
		WHERE tenant_id = $1
	`, tenantID).Scan(
		&settings.TenantID, &settings.ShopName, &settings.Address, &settings.Phone, &settings.FooterMessage,
		&settings.TaxEnabled, &settings.TaxName, &settings.TaxRate, &settings.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err)
	}
	settings.UpdatedAt = settings.UpdatedAt.UTC()
	return &settings, nil
}

func (s *Store) SaveSettings(ctx context.Context, settings domain.TenantSettings) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_settings (tenant_id, shop_name, address, phone, footer_message, tax_enabled, tax_name, tax_rate, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (tenant_id) DO UPDATE SET
			shop_name = EXCLUDED.shop_name,
			address = EXCLUDED.address,
			phone = EXCLUDED.phone,
			footer_message = EXCLUDED.footer_message,
			tax_enabled = EXCLUDED.tax_enabled,
			tax_name = EXCLUDED.tax_name,
			tax_rate = EXCLUDED.tax_rate,
			updated_at = EXCLUDED.updated_at
	`, settings.TenantID, settings.ShopName, settings.Address, settings.Phone, settings.FooterMessage,
		settings.TaxEnabled, settings.TaxName, settings.TaxRate, settings.UpdatedAt)
	return err
}

const heldOrderColumns = `id, tenant_id, cashier, shift_id, terminal_id, label, note, items, discount, held_at`

func scanHeldOrder(row pgx.Row) (*domain.HeldOrder, error) {
	var order domain.HeldOrder
	err := row.Scan(
		&order.ID, &order.TenantID, &order.Cashier, &order.ShiftID, &order.TerminalID,
		&order.Label, &order.Note, &order.Items, &order.Discount, &order.HeldAt,
	)
	if err != nil {
		return nil, err
	}
	order.HeldAt = order.HeldAt.UTC()
	return &order, nil
}

// CreateHeldOrder shares the shift row with CloseShift; both run serializable,
// so a hold racing the close either lands before the count or fails.
func (s *Store) CreateHeldOrder(ctx context.Context, order domain.HeldOrder) error {
	return s.withTx(ctx, "create_held_order", pgx.Serializable, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `
			SELECT status FROM shifts WHERE id = $1 AND tenant_id = $2 FOR SHARE
		`, order.ShiftID, order.TenantID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && status != string(domain.ShiftStatusOpen)) {
			return store.ErrNoOpenShift
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO held_orders (`+heldOrderColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		`, order.ID, order.TenantID, order.Cashier, order.ShiftID, order.TerminalID,
			order.Label, order.Note, order.Items, order.Discount, order.HeldAt)
		return err
	})
}

func (s *Store) ListHeldOrders(ctx context.Context, tenantID string, cashier string) ([]domain.HeldOrder, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+heldOrderColumns+`
		FROM held_orders
		WHERE tenant_id = $1 AND cashier = $2
		ORDER BY held_at DESC
	`, tenantID, cashier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]domain.HeldOrder, 0)
	for rows.Next() {
		order, err := scanHeldOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, *order)
	}
	return orders, rows.Err()
}

func (s *Store) PopHeldOrder(ctx context.Context, tenantID string, cashier string, orderID string) (*domain.HeldOrder, error) {
	order, err := scanHeldOrder(s.pool.QueryRow(ctx, `
		DELETE FROM held_orders
		WHERE tenant_id = $1 AND cashier = $2 AND id = $3
		RETURNING `+heldOrderColumns,
		tenantID, cashier, orderID))
	if err != nil {
		return nil, notFound(err)
	}
	return order, nil
}

func (s *Store) DeleteHeldOrder(ctx context.Context, tenantID string, cashier string, orderID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM held_orders WHERE tenant_id = $1 AND cashier = $2 AND id = $3
	`, tenantID, cashier, orderID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, tenant_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (id) DO NOTHING
	`, entry.ID, entry.TenantID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, tenantID string, limit int) ([]domain.AuditLog, error) {
	q := s.builder.Select("id", "tenant_id", "actor_username", "actor_role", "action", "entity_type", "entity_id", "detail", "created_at").
		From("audit_logs").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		OrderBy("created_at DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build audit query: %w", err)
	}

	logs := make([]domain.AuditLog, 0)
	if err := pgxscan.Select(ctx, s.pool, &logs, query, args...); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return fmt.Errorf("username required: %w", store.ErrConflict)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (username, password, role, tenant_id, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, username, user.Password, user.Role, user.TenantID, user.Active, user.CreatedAt)
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0)
	err := pgxscan.Select(ctx, s.pool, &users, `
		SELECT username, password, role, tenant_id, active, created_at
		FROM users
		ORDER BY username
	`)
	return users, err
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET password = $2 WHERE username = $1`, username, password)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func notFoundScan(err error) error {
	if pgxscan.NotFound(err) {
		return store.ErrNotFound
	}
	return err
}
