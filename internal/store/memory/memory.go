package memory

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"posledger/backend/internal/domain"
	"posledger/backend/internal/logger"
	"posledger/backend/internal/store"
	"posledger/backend/internal/xid"
)

const DefaultTenantID = "main-tenant"

type Store struct {
	mu               sync.RWMutex
	products         map[string]map[string]domain.Product
	salesByID        map[string]*domain.Sale
	salesByTenant    map[string][]string
	salesByRequest   map[string]string
	shiftsByID       map[string]*domain.Shift
	openByCashier    map[string]string
	openByTerminal   map[string]string
	cashMovements    []domain.CashMovement
	movements        []domain.StockMovement
	movementKeys     map[string]struct{}
	adjustments      []domain.StockAdjustment
	expensesByID     map[string]domain.Expense
	settingsByTenant map[string]domain.TenantSettings
	heldOrdersByID   map[string]domain.HeldOrder
	auditLogs        []domain.AuditLog
	usersByUsername  map[string]domain.UserAccount
}

func New() *Store {
	return &Store{
		products:         make(map[string]map[string]domain.Product),
		salesByID:        make(map[string]*domain.Sale),
		salesByTenant:    make(map[string][]string),
		salesByRequest:   make(map[string]string),
		shiftsByID:       make(map[string]*domain.Shift),
		openByCashier:    make(map[string]string),
		openByTerminal:   make(map[string]string),
		movementKeys:     make(map[string]struct{}),
		expensesByID:     make(map[string]domain.Expense),
		settingsByTenant: make(map[string]domain.TenantSettings),
		heldOrdersByID:   make(map[string]domain.HeldOrder),
		auditLogs:        make([]domain.AuditLog, 0, 128),
		usersByUsername:  make(map[string]domain.UserAccount),
	}
}

// seedUsers builds the demo accounts. Passwords come from SEED_ADMIN_PASSWORD
// and SEED_CASHIER_PASSWORD and fall back to dev defaults with a warning.
func seedUsers(tenantID string) map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		logger.Default().WithComponent("memory-store").Warn("using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
		{"cashier2", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.MinCost)
		if err != nil {
			panic(fmt.Sprintf("hash seed password for %s: %v", u.username, err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			TenantID:  tenantID,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store with a demo tenant: catalog, settings and users.
func NewSeeded() *Store {
	s := New()
	s.usersByUsername = seedUsers(DefaultTenantID)

	for _, p := range []domain.Product{
		{ID: "prd-rice", Code: "RICE-5KG", Name: "Rice 5kg", Price: decimal.NewFromInt(75), Cost: decimal.NewFromInt(62), Stock: 40, TrackStock: true, MinStock: 5},
		{ID: "prd-oil", Code: "OIL-1L", Name: "Cooking Oil 1L", Price: decimal.NewFromInt(50), Cost: decimal.NewFromInt(41), Stock: 60, TrackStock: true, MinStock: 10},
		{ID: "prd-sugar", Code: "SUGAR-1KG", Name: "Sugar 1kg", Price: decimal.NewFromInt(20), Cost: decimal.NewFromInt(16), Stock: 80, TrackStock: true, MinStock: 10},
		{ID: "prd-blender", Code: "BLENDER-01", Name: "Hand Blender", Price: decimal.NewFromInt(200), Cost: decimal.NewFromInt(150), Stock: 10, TrackStock: true, MinStock: 2},
		{ID: "prd-eggs", Code: "EGG-10", Name: "Eggs x10", Price: decimal.NewFromInt(30), Cost: decimal.NewFromInt(24), Stock: 100, TrackStock: true, MinStock: 12},
		{ID: "prd-tea", Code: "TEA-25", Name: "Tea Bags x25", Price: decimal.RequireFromString("12.50"), Cost: decimal.NewFromInt(9), Stock: 1, TrackStock: true, MinStock: 3},
		{ID: "prd-wrap", Code: "SVC-WRAP", Name: "Gift Wrapping", Price: decimal.NewFromInt(5), Cost: decimal.Zero, Stock: 0, TrackStock: false},
	} {
		p.TenantID = DefaultTenantID
		s.seedProductLocked(p)
	}

	settings := domain.DefaultSettings(DefaultTenantID)
	settings.ShopName = "Corner Market"
	settings.TaxEnabled = true
	settings.TaxRate = decimal.NewFromInt(14)
	settings.UpdatedAt = time.Now().UTC()
	s.settingsByTenant[DefaultTenantID] = settings

	return s
}

// SeedProduct registers a product and posts its opening balance.
func (s *Store) SeedProduct(product domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seedProductLocked(product)
}

func (s *Store) seedProductLocked(product domain.Product) {
	if s.products[product.TenantID] == nil {
		s.products[product.TenantID] = make(map[string]domain.Product)
	}
	opening := product.Stock
	product.Stock = 0
	s.products[product.TenantID][product.ID] = product
	if !product.TrackStock {
		return
	}
	_, _ = s.postMovementsLocked([]domain.StockMovement{{
		ID:        xid.New("mov"),
		TenantID:  product.TenantID,
		ProductID: product.ID,
		Delta:     opening,
		Kind:      domain.MovementOpening,
		SourceKey: store.OpeningKey(product.ID),
		Actor:     "system",
		CreatedAt: time.Now().UTC(),
	}})
}

func (s *Store) ListProducts(_ context.Context, tenantID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products[tenantID]))
	for _, p := range s.products[tenantID] {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, tenantID string, productID string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[tenantID][productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) FindProductByCode(_ context.Context, tenantID string, code string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, p := range s.products[tenantID] {
		if p.Code == code {
			found := p
			return &found, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale, movements []domain.StockMovement) (store.SaleCommit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.RequestID != "" {
		if id, ok := s.salesByRequest[requestKey(sale.TenantID, sale.RequestID)]; ok {
			return store.SaleCommit{Sale: cloneSale(s.salesByID[id]), Duplicate: true}, nil
		}
	}

	shiftID, ok := s.openByCashier[cashierKey(sale.TenantID, sale.Cashier)]
	if !ok {
		return store.SaleCommit{}, store.ErrNoOpenShift
	}
	if err := s.checkMovementsLocked(movements); err != nil {
		return store.SaleCommit{}, err
	}

	shift := s.shiftsByID[shiftID]
	shift.SaleSeq++
	sale.ShiftID = shift.ID
	sale.ReceiptNo = shift.SaleSeq

	posted, err := s.postMovementsLocked(movements)
	if err != nil {
		return store.SaleCommit{}, err
	}

	stored := cloneSale(&sale)
	s.salesByID[sale.ID] = stored
	s.salesByTenant[sale.TenantID] = append(s.salesByTenant[sale.TenantID], sale.ID)
	if sale.RequestID != "" {
		s.salesByRequest[requestKey(sale.TenantID, sale.RequestID)] = sale.ID
	}

	return store.SaleCommit{Sale: cloneSale(stored), Movements: posted}, nil
}

func (s *Store) GetSale(_ context.Context, tenantID string, ref string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, err := s.resolveSaleLocked(tenantID, ref)
	if err != nil {
		return nil, err
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, filter domain.SaleFilter) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.salesByTenant[filter.TenantID]
	result := make([]domain.Sale, 0, min(len(ids), 64))
	for i := len(ids) - 1; i >= 0; i-- {
		sale := s.salesByID[ids[i]]
		if !matchesFilter(sale, filter) {
			continue
		}
		result = append(result, *cloneSale(sale))
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

func (s *Store) MutateSale(_ context.Context, tenantID string, ref string, fn store.SaleMutation) (*domain.Sale, []domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.resolveSaleLocked(tenantID, ref)
	if err != nil {
		return nil, nil, err
	}

	working := cloneSale(current)
	movements, write, err := fn(working)
	if err != nil {
		return nil, nil, err
	}
	if !write {
		return cloneSale(current), nil, nil
	}
	if err := s.checkMovementsLocked(movements); err != nil {
		return nil, nil, err
	}
	posted, err := s.postMovementsLocked(movements)
	if err != nil {
		return nil, nil, err
	}

	s.salesByID[current.ID] = working
	return cloneSale(working), posted, nil
}

func (s *Store) OpenShift(_ context.Context, shift domain.Shift) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, open := s.openByCashier[cashierKey(shift.TenantID, shift.Cashier)]; open {
		return nil, store.ErrShiftOpen
	}
	if shift.TerminalID != "" {
		if ownerID, busy := s.openByTerminal[terminalKey(shift.TenantID, shift.TerminalID)]; busy {
			if s.shiftsByID[ownerID].Cashier != shift.Cashier {
				return nil, store.ErrTerminalBusy
			}
		}
	}

	stored := shift
	s.shiftsByID[shift.ID] = &stored
	s.openByCashier[cashierKey(shift.TenantID, shift.Cashier)] = shift.ID
	if shift.TerminalID != "" {
		s.openByTerminal[terminalKey(shift.TenantID, shift.TerminalID)] = shift.ID
	}
	return cloneShift(&stored), nil
}

func (s *Store) GetOpenShift(_ context.Context, tenantID string, cashier string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.openByCashier[cashierKey(tenantID, cashier)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneShift(s.shiftsByID[id]), nil
}

func (s *Store) GetOpenShiftByTerminal(_ context.Context, tenantID string, terminalID string) (*domain.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.openByTerminal[terminalKey(tenantID, terminalID)]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneShift(s.shiftsByID[id]), nil
}

func (s *Store) CloseShift(_ context.Context, tenantID string, cashier string, closedAt time.Time, fn store.ShiftCloser) (*domain.Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.openByCashier[cashierKey(tenantID, cashier)]
	if !ok {
		return nil, store.ErrNoOpenShift
	}
	shift := s.shiftsByID[id]

	closing, err := fn(s.shiftLedgerLocked(shift))
	if err != nil {
		return nil, err
	}

	shift.Status = domain.ShiftStatusClosed
	shift.EndTime = &closedAt
	shift.Closing = closing
	delete(s.openByCashier, cashierKey(tenantID, cashier))
	if shift.TerminalID != "" {
		delete(s.openByTerminal, terminalKey(tenantID, shift.TerminalID))
	}
	return cloneShift(shift), nil
}

func (s *Store) shiftLedgerLocked(shift *domain.Shift) store.ShiftLedger {
	ledger := store.ShiftLedger{Shift: *cloneShift(shift)}
	for _, id := range s.salesByTenant[shift.TenantID] {
		sale := s.salesByID[id]
		if sale.ShiftID == shift.ID {
			ledger.Sales = append(ledger.Sales, *cloneSale(sale))
		}
	}
	for _, expense := range s.expensesByID {
		if expense.TenantID == shift.TenantID && !expense.SpentAt.Before(shift.StartTime) {
			ledger.Expenses = append(ledger.Expenses, expense)
		}
	}
	for _, m := range s.cashMovements {
		if m.ShiftID == shift.ID {
			ledger.CashMovements = append(ledger.CashMovements, m)
		}
	}
	for _, order := range s.heldOrdersByID {
		if order.TenantID == shift.TenantID && order.Cashier == shift.Cashier {
			ledger.HeldOrders++
		}
	}
	return ledger
}

func (s *Store) CreateCashMovement(_ context.Context, movement domain.CashMovement) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, ok := s.shiftsByID[movement.ShiftID]
	if !ok || shift.Status != domain.ShiftStatusOpen {
		return store.ErrNoOpenShift
	}
	s.cashMovements = append(s.cashMovements, movement)
	return nil
}

func (s *Store) ListCashMovements(_ context.Context, tenantID string, shiftID string) ([]domain.CashMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.CashMovement, 0)
	for _, m := range s.cashMovements {
		if m.TenantID == tenantID && m.ShiftID == shiftID {
			result = append(result, m)
		}
	}
	return result, nil
}

func (s *Store) ApplyStockAdjustment(_ context.Context, adjustment domain.StockAdjustment) (*domain.StockAdjustment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := make(map[string]domain.Product, len(adjustment.Lines))
	for _, line := range adjustment.Lines {
		product, ok := s.products[adjustment.TenantID][line.ProductID]
		if !ok {
			return nil, store.ErrNotFound
		}
		current[line.ProductID] = product
	}

	planned, movements, changed := store.PlanAdjustment(adjustment, current)
	if !changed {
		return nil, nil
	}
	if _, err := s.postMovementsLocked(movements); err != nil {
		return nil, err
	}
	s.adjustments = append(s.adjustments, planned)
	return &planned, nil
}

func (s *Store) ListStockAdjustments(_ context.Context, tenantID string, limit int) ([]domain.StockAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockAdjustment, 0)
	for i := len(s.adjustments) - 1; i >= 0; i-- {
		if s.adjustments[i].TenantID != tenantID {
			continue
		}
		result = append(result, s.adjustments[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) ListStockMovements(_ context.Context, tenantID string, productID string, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.StockMovement, 0)
	for i := len(s.movements) - 1; i >= 0; i-- {
		m := s.movements[i]
		if m.TenantID != tenantID || (productID != "" && m.ProductID != productID) {
			continue
		}
		result = append(result, m)
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) StockBalances(_ context.Context, tenantID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	balances := make(map[string]int)
	for _, m := range s.movements {
		if m.TenantID == tenantID {
			balances[m.ProductID] += m.Delta
		}
	}
	return balances, nil
}

// SetCachedStock overwrites a product's cached stock without a movement.
// It exists to simulate drift in integrity tests.
func (s *Store) SetCachedStock(tenantID string, productID string, stock int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product, ok := s.products[tenantID][productID]; ok {
		product.Stock = stock
		s.products[tenantID][productID] = product
	}
}

// checkMovementsLocked validates a batch before anything is applied so a
// failing batch leaves no partial writes.
func (s *Store) checkMovementsLocked(movements []domain.StockMovement) error {
	for _, m := range movements {
		if _, ok := s.products[m.TenantID][m.ProductID]; !ok {
			return fmt.Errorf("stock movement %s: product %s: %w", m.SourceKey, m.ProductID, store.ErrNotFound)
		}
	}
	return nil
}

func (s *Store) postMovementsLocked(movements []domain.StockMovement) ([]domain.StockMovement, error) {
	posted := make([]domain.StockMovement, 0, len(movements))
	for _, m := range movements {
		key := m.TenantID + "|" + m.SourceKey
		if _, seen := s.movementKeys[key]; seen {
			continue
		}
		product, ok := s.products[m.TenantID][m.ProductID]
		if !ok {
			return posted, store.ErrNotFound
		}
		product.Stock += m.Delta
		s.products[m.TenantID][m.ProductID] = product

		m.StockAfter = product.Stock
		s.movements = append(s.movements, m)
		s.movementKeys[key] = struct{}{}
		posted = append(posted, m)
	}
	return posted, nil
}

func (s *Store) CreateExpense(_ context.Context, expense domain.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expensesByID[expense.ID] = expense
	return nil
}

func (s *Store) ListExpenses(_ context.Context, tenantID string, since *time.Time) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Expense, 0)
	for _, e := range s.expensesByID {
		if e.TenantID != tenantID {
			continue
		}
		if since != nil && e.SpentAt.Before(*since) {
			continue
		}
		result = append(result, e)
	}
	slices.SortFunc(result, func(a, b domain.Expense) int {
		return b.SpentAt.Compare(a.SpentAt)
	})
	return result, nil
}

func (s *Store) DeleteExpense(_ context.Context, tenantID string, expenseID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	expense, ok := s.expensesByID[expenseID]
	if !ok || expense.TenantID != tenantID {
		return store.ErrNotFound
	}
	delete(s.expensesByID, expenseID)
	return nil
}

func (s *Store) GetSettings(_ context.Context, tenantID string) (*domain.TenantSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings, ok := s.settingsByTenant[tenantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &settings, nil
}

func (s *Store) SaveSettings(_ context.Context, settings domain.TenantSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.settingsByTenant[settings.TenantID] = settings
	return nil
}

func (s *Store) CreateHeldOrder(_ context.Context, order domain.HeldOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shift, ok := s.shiftsByID[order.ShiftID]
	if !ok || shift.TenantID != order.TenantID || shift.Status != domain.ShiftStatusOpen {
		return store.ErrNoOpenShift
	}
	s.heldOrdersByID[order.ID] = cloneHeldOrder(order)
	return nil
}

func (s *Store) ListHeldOrders(_ context.Context, tenantID string, cashier string) ([]domain.HeldOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.HeldOrder, 0)
	for _, order := range s.heldOrdersByID {
		if order.TenantID == tenantID && order.Cashier == cashier {
			result = append(result, cloneHeldOrder(order))
		}
	}
	slices.SortFunc(result, func(a, b domain.HeldOrder) int {
		return b.HeldAt.Compare(a.HeldAt)
	})
	return result, nil
}

func (s *Store) PopHeldOrder(_ context.Context, tenantID string, cashier string, orderID string) (*domain.HeldOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.heldOrdersByID[orderID]
	if !ok || order.TenantID != tenantID || order.Cashier != cashier {
		return nil, store.ErrNotFound
	}
	delete(s.heldOrdersByID, orderID)
	return &order, nil
}

func (s *Store) DeleteHeldOrder(_ context.Context, tenantID string, cashier string, orderID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	order, ok := s.heldOrdersByID[orderID]
	if !ok || order.TenantID != tenantID || order.Cashier != cashier {
		return store.ErrNotFound
	}
	delete(s.heldOrdersByID, orderID)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, tenantID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		if s.auditLogs[i].TenantID != tenantID {
			continue
		}
		result = append(result, s.auditLogs[i])
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" {
		return fmt.Errorf("username required: %w", store.ErrConflict)
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, u := range s.usersByUsername {
		users = append(users, u)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.usersByUsername[username]
	if !ok {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func (s *Store) resolveSaleLocked(tenantID string, ref string) (*domain.Sale, error) {
	if receiptNo, ok := store.ReceiptRef(ref); ok {
		ids := s.salesByTenant[tenantID]
		for i := len(ids) - 1; i >= 0; i-- {
			if sale := s.salesByID[ids[i]]; sale.ReceiptNo == receiptNo {
				return sale, nil
			}
		}
		return nil, store.ErrNotFound
	}

	sale, ok := s.salesByID[ref]
	if !ok || sale.TenantID != tenantID {
		return nil, store.ErrNotFound
	}
	return sale, nil
}

func matchesFilter(sale *domain.Sale, f domain.SaleFilter) bool {
	if f.Cashier != "" && sale.Cashier != f.Cashier {
		return false
	}
	if f.ShiftID != "" && sale.ShiftID != f.ShiftID {
		return false
	}
	if f.Status != "" && sale.Status != f.Status {
		return false
	}
	if f.From != nil && sale.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && !sale.CreatedAt.Before(*f.To) {
		return false
	}
	return true
}

func cashierKey(tenantID string, cashier string) string {
	return tenantID + "|" + cashier
}

func terminalKey(tenantID string, terminalID string) string {
	return tenantID + "|terminal|" + terminalID
}

func requestKey(tenantID string, requestID string) string {
	return tenantID + "|" + requestID
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Lines = make([]domain.SaleLine, len(src.Lines))
	for i, line := range src.Lines {
		if line.Discount != nil {
			d := *line.Discount
			line.Discount = &d
		}
		dst.Lines[i] = line
	}
	if src.Discount != nil {
		d := *src.Discount
		dst.Discount = &d
	}
	dst.Splits = slices.Clone(src.Splits)
	dst.Returns = make([]domain.ReturnEvent, len(src.Returns))
	for i, ev := range src.Returns {
		ev.Lines = slices.Clone(ev.Lines)
		dst.Returns[i] = ev
	}
	if src.CancelledAt != nil {
		at := *src.CancelledAt
		dst.CancelledAt = &at
	}
	return &dst
}

func cloneShift(src *domain.Shift) *domain.Shift {
	dst := *src
	if src.EndTime != nil {
		at := *src.EndTime
		dst.EndTime = &at
	}
	if src.Closing != nil {
		closing := *src.Closing
		closing.Summary.RefundsByMethod = cloneMoneyMap(src.Closing.Summary.RefundsByMethod)
		dst.Closing = &closing
	}
	return &dst
}

func cloneHeldOrder(src domain.HeldOrder) domain.HeldOrder {
	dst := src
	dst.Items = slices.Clone(src.Items)
	if src.Discount != nil {
		d := *src.Discount
		dst.Discount = &d
	}
	return dst
}

func cloneMoneyMap(src map[domain.PaymentMethod]decimal.Decimal) map[domain.PaymentMethod]decimal.Decimal {
	if src == nil {
		return nil
	}
	dst := make(map[domain.PaymentMethod]decimal.Decimal, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
