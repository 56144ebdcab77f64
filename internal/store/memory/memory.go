package memory

import (
	"context"
	"os"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

const (
	SeedMerchantID      = "merchant-demo"
	SeedOutletPusatID   = "outlet-pusat"
	SeedOutletCabangID  = "outlet-cabang"
	SeedSuperAdminUID   = "user-superadmin"
	SeedAdminUID        = "user-admin"
	SeedKasirUID        = "user-kasir"
	SeedKasirCabangUID  = "user-kasir-cabang"
	SeedProductKopiID   = "product-kopi-susu"
	SeedProductTehID    = "product-teh-manis"
	SeedProductRotiID   = "product-roti-bakar"
	SeedProductAirID    = "product-air-mineral"
	SeedSupplierID      = "supplier-sumber-rejeki"
	SeedSuperAdminEmail = "superadmin@kasirpos.local"
	SeedAdminEmail      = "admin@kasirpos.local"
	SeedKasirEmail      = "kasir@kasirpos.local"
	SeedKasirCabangMail = "kasir.cabang@kasirpos.local"
)

type Store struct {
	mu           sync.RWMutex
	merchants    map[string]domain.Merchant
	users        map[string]domain.UserAccount
	outlets      map[string]domain.Outlet
	products     map[string]domain.Product
	suppliers    map[string]domain.Supplier
	adjustments  []domain.StockAdjustment
	settings     map[string]domain.Settings
	transactions map[string]domain.Transaction
	auditLogs    []domain.AuditLog
}

func New() *Store {
	return &Store{
		merchants:    make(map[string]domain.Merchant),
		users:        make(map[string]domain.UserAccount),
		outlets:      make(map[string]domain.Outlet),
		products:     make(map[string]domain.Product),
		suppliers:    make(map[string]domain.Supplier),
		settings:     make(map[string]domain.Settings),
		transactions: make(map[string]domain.Transaction),
	}
}

// seedUsers builds the dev/demo accounts. Passwords come from the
// SEED_*_PASSWORD variables and fall back to fixed dev values with a warning.
// The memory store is only used when no database is configured.
func seedUsers(lg *zap.Logger, now time.Time) []domain.UserAccount {
	keys := []string{"SEED_SUPERADMIN_PASSWORD", "SEED_ADMIN_PASSWORD", "SEED_KASIR_PASSWORD"}
	for _, key := range keys {
		if os.Getenv(key) == "" {
			lg.Warn("using default dev credentials; set SEED_SUPERADMIN_PASSWORD, SEED_ADMIN_PASSWORD and SEED_KASIR_PASSWORD to override")
			break
		}
	}

	accounts := []struct {
		uid, email, name, password, role, merchant string
		outlets                                    []string
	}{
		{SeedSuperAdminUID, SeedSuperAdminEmail, "Platform Admin", envOr(keys[0], "superadmin123"), domain.RoleSuperAdmin, "", nil},
		{SeedAdminUID, SeedAdminEmail, "Admin Demo", envOr(keys[1], "admin123"), domain.RoleAdmin, SeedMerchantID, nil},
		{SeedKasirUID, SeedKasirEmail, "Kasir Pusat", envOr(keys[2], "kasir123"), domain.RoleKasir, SeedMerchantID, []string{SeedOutletPusatID}},
		{SeedKasirCabangUID, SeedKasirCabangMail, "Kasir Cabang", envOr(keys[2], "kasir123"), domain.RoleKasir, SeedMerchantID, []string{SeedOutletCabangID}},
	}

	users := make([]domain.UserAccount, 0, len(accounts))
	for _, u := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			lg.Fatal("failed to hash seed password", zap.String("email", u.email), zap.Error(err))
		}
		users = append(users, domain.UserAccount{
			UID:          u.uid,
			Email:        u.email,
			DisplayName:  u.name,
			PasswordHash: string(hash),
			Role:         u.role,
			MerchantID:   u.merchant,
			OutletIDs:    u.outlets,
			Active:       true,
			CreatedAt:    now,
		})
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// NewSeeded returns a store holding one demo merchant with two outlets, an
// admin, two kasirs and a small catalogue.
func NewSeeded(lg *zap.Logger) *Store {
	if lg == nil {
		lg = zap.NewNop()
	}
	lg = lg.Named("memory-store")
	now := time.Now().UTC()
	s := New()

	s.merchants[SeedMerchantID] = domain.Merchant{
		ID:         SeedMerchantID,
		Name:       "Toko Demo",
		OwnerEmail: SeedAdminEmail,
		Active:     true,
		CreatedAt:  now,
	}
	for _, o := range []domain.Outlet{
		{ID: SeedOutletPusatID, MerchantID: SeedMerchantID, Name: "Outlet Pusat", Address: "Jl. Merdeka 1", Active: true, CreatedAt: now},
		{ID: SeedOutletCabangID, MerchantID: SeedMerchantID, Name: "Outlet Cabang", Address: "Jl. Sudirman 22", Active: true, CreatedAt: now},
	} {
		s.outlets[o.ID] = o
	}
	for _, u := range seedUsers(lg, now) {
		s.users[u.UID] = u
	}
	for _, p := range []domain.Product{
		{ID: SeedProductKopiID, SKU: "KOPI-SUSU", Name: "Kopi Susu", Category: "beverage", Price: 18000, Stock: 50},
		{ID: SeedProductTehID, SKU: "TEH-MANIS", Name: "Teh Manis", Category: "beverage", Price: 8000, Stock: 80},
		{ID: SeedProductRotiID, SKU: "ROTI-BAKAR", Name: "Roti Bakar", Category: "food", Price: 15000, Stock: 30},
		{ID: SeedProductAirID, SKU: "AIR-600", Name: "Air Mineral 600ml", Category: "beverage", Price: 5000, Stock: 120},
	} {
		p.MerchantID = SeedMerchantID
		p.Active = true
		p.CreatedAt = now
		p.UpdatedAt = now
		s.products[p.ID] = p
	}
	s.suppliers[SeedSupplierID] = domain.Supplier{
		ID:         SeedSupplierID,
		MerchantID: SeedMerchantID,
		Name:       "CV Sumber Rejeki",
		Contact:    "Budi",
		Phone:      "0812000000",
		CreatedAt:  now,
	}
	s.settings[SeedMerchantID] = domain.Settings{
		MerchantID:          SeedMerchantID,
		TaxRatePercent:      11,
		DiscountRatePercent: 0,
		UpdatedAt:           now,
	}
	return s
}

func (s *Store) CreateMerchant(_ context.Context, merchant domain.Merchant) (*domain.Merchant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.merchants[merchant.ID]; exists {
		return nil, store.ErrConflict
	}
	s.merchants[merchant.ID] = merchant
	return &merchant, nil
}

func (s *Store) GetMerchant(_ context.Context, id string) (*domain.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.merchants[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &m, nil
}

func (s *Store) ListMerchants(_ context.Context) ([]domain.Merchant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Merchant, 0, len(s.merchants))
	for _, m := range s.merchants {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func cloneUser(u domain.UserAccount) domain.UserAccount {
	u.OutletIDs = slices.Clone(u.OutletIDs)
	return u
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.UID]; exists {
		return nil, store.ErrConflict
	}
	email := strings.ToLower(user.Email)
	for _, existing := range s.users {
		if strings.ToLower(existing.Email) == email {
			return nil, store.ErrConflict
		}
	}
	s.users[user.UID] = cloneUser(user)
	created := cloneUser(user)
	return &created, nil
}

func (s *Store) GetUser(_ context.Context, uid string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[uid]
	if !ok {
		return nil, store.ErrNotFound
	}
	u = cloneUser(u)
	return &u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range s.users {
		if strings.ToLower(u.Email) == email {
			u = cloneUser(u)
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) ListUsers(_ context.Context, merchantID string, role string) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.UserAccount, 0)
	for _, u := range s.users {
		if u.MerchantID != merchantID {
			continue
		}
		if role != "" && u.Role != role {
			continue
		}
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DisplayName < out[j].DisplayName })
	return out, nil
}

func (s *Store) CreateOutlet(_ context.Context, outlet domain.Outlet) (*domain.Outlet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.outlets[outlet.ID]; exists {
		return nil, store.ErrConflict
	}
	s.outlets[outlet.ID] = outlet
	return &outlet, nil
}

func (s *Store) GetOutlet(_ context.Context, id string) (*domain.Outlet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.outlets[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &o, nil
}

func (s *Store) UpdateOutlet(_ context.Context, outlet domain.Outlet) (*domain.Outlet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.outlets[outlet.ID]; !ok {
		return nil, store.ErrNotFound
	}
	s.outlets[outlet.ID] = outlet
	return &outlet, nil
}

func (s *Store) ListOutlets(_ context.Context, merchantID string) ([]domain.Outlet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Outlet, 0)
	for _, o := range s.outlets {
		if o.MerchantID == merchantID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	for _, p := range s.products {
		if p.MerchantID == product.MerchantID && p.SKU == product.SKU {
			return nil, store.ErrConflict
		}
	}
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.products[product.ID]
	if !ok {
		return nil, store.ErrNotFound
	}
	// Stock only moves through AdjustStock.
	product.Stock = existing.Stock
	s.products[product.ID] = product
	return &product, nil
}

func (s *Store) ListProducts(_ context.Context, merchantID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, 0)
	for _, p := range s.products {
		if p.MerchantID == merchantID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) AdjustStock(_ context.Context, productID string, delta int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return nil, store.ErrNotFound
	}
	if p.Stock+delta < 0 {
		return nil, store.ErrInsufficientStock
	}
	p.Stock += delta
	p.UpdatedAt = time.Now().UTC()
	s.products[productID] = p
	return &p, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.suppliers[supplier.ID]; exists {
		return nil, store.ErrConflict
	}
	s.suppliers[supplier.ID] = supplier
	return &supplier, nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sup, ok := s.suppliers[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &sup, nil
}

func (s *Store) ListSuppliers(_ context.Context, merchantID string) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Supplier, 0)
	for _, sup := range s.suppliers {
		if sup.MerchantID == merchantID {
			out = append(out, sup)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *Store) CreateStockAdjustment(_ context.Context, adj domain.StockAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adjustments = append(s.adjustments, adj)
	return nil
}

func (s *Store) ListStockAdjustments(_ context.Context, merchantID string, limit int) ([]domain.StockAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.StockAdjustment, 0)
	for i := len(s.adjustments) - 1; i >= 0; i-- {
		adj := s.adjustments[i]
		if adj.MerchantID != merchantID {
			continue
		}
		out = append(out, adj)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) GetSettings(_ context.Context, merchantID string) (*domain.Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.settings[merchantID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &st, nil
}

func (s *Store) SaveSettings(_ context.Context, settings domain.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings[settings.MerchantID] = settings
	return nil
}

func cloneTransaction(tx domain.Transaction) domain.Transaction {
	tx.Items = slices.Clone(tx.Items)
	return tx
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.transactions[tx.ID]; exists {
		return nil, store.ErrConflict
	}
	s.transactions[tx.ID] = cloneTransaction(tx)
	created := cloneTransaction(tx)
	return &created, nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.transactions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	tx = cloneTransaction(tx)
	return &tx, nil
}

func (s *Store) ListTransactions(_ context.Context, q domain.TransactionQuery) ([]domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Transaction, 0)
	for _, tx := range s.transactions {
		if q.MerchantID != "" && tx.MerchantID != q.MerchantID {
			continue
		}
		if q.OutletID != "" && tx.OutletID != q.OutletID {
			continue
		}
		if q.KasirID != "" && tx.KasirID != q.KasirID {
			continue
		}
		out = append(out, cloneTransaction(tx))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, merchantID string, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.AuditLog, 0)
	for i := len(s.auditLogs) - 1; i >= 0; i-- {
		entry := s.auditLogs[i]
		if entry.MerchantID != merchantID {
			continue
		}
		out = append(out, entry)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}
var _ store.Repository = (*Store)(nil)
