package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"kasirpos/backend/internal/access"
	"kasirpos/backend/internal/cart"
	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/poserr"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

func (s *Service) CreateOutlet(ctx context.Context, merchantID string, req domain.OutletRequest) (domain.Outlet, error) {
	_, merchantID, err := managerSession(ctx, merchantID)
	if err != nil {
		return domain.Outlet{}, err
	}
	if err := s.requireMerchant(ctx, merchantID); err != nil {
		return domain.Outlet{}, err
	}
	name, err := required("name", req.Name)
	if err != nil {
		return domain.Outlet{}, err
	}

	outlet := domain.Outlet{
		ID:         xid.New("outlet"),
		MerchantID: merchantID,
		Name:       name,
		Address:    strings.TrimSpace(req.Address),
		Phone:      strings.TrimSpace(req.Phone),
		Active:     req.Active == nil || *req.Active,
		CreatedAt:  s.now().UTC(),
	}
	created, err := s.repo.CreateOutlet(ctx, outlet)
	if err != nil {
		return domain.Outlet{}, &poserr.WriteError{Op: "create outlet", Err: err}
	}

	s.logAudit(ctx, merchantID, "outlet_create", "outlet", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) UpdateOutlet(ctx context.Context, outletID string, req domain.OutletRequest) (domain.Outlet, error) {
	sess, err := access.RequireManager(ctx)
	if err != nil {
		return domain.Outlet{}, err
	}
	existing, err := s.repo.GetOutlet(ctx, outletID)
	if err != nil {
		return domain.Outlet{}, err
	}
	if !access.MerchantVisible(access.For(sess), sess, existing.MerchantID) {
		return domain.Outlet{}, store.ErrNotFound
	}

	updated := *existing
	if strings.TrimSpace(req.Name) != "" {
		updated.Name = strings.TrimSpace(req.Name)
	}
	if req.Address != "" {
		updated.Address = strings.TrimSpace(req.Address)
	}
	if req.Phone != "" {
		updated.Phone = strings.TrimSpace(req.Phone)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateOutlet(ctx, updated)
	if err != nil {
		return domain.Outlet{}, &poserr.WriteError{Op: "update outlet", Err: err}
	}
	s.logAudit(ctx, saved.MerchantID, "outlet_update", "outlet", saved.ID, fmt.Sprintf("name=%s,active=%t", saved.Name, saved.Active))
	return *saved, nil
}

// ListOutlets returns the merchant outlets the session may see. A kasir only
// gets its assigned outlets.
func (s *Service) ListOutlets(ctx context.Context, merchantID string) ([]domain.Outlet, error) {
	sess, merchantID, err := merchantSession(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	outlets, err := s.repo.ListOutlets(ctx, merchantID)
	if err != nil {
		return nil, &poserr.FetchError{Resource: "outlets", Err: err}
	}

	policy := access.For(sess)
	visible := make([]domain.Outlet, 0, len(outlets))
	for _, o := range outlets {
		if access.OutletVisible(policy, sess, o.ID) {
			visible = append(visible, o)
		}
	}
	return visible, nil
}

func (s *Service) CreateProduct(ctx context.Context, merchantID string, req domain.ProductCreateRequest) (domain.Product, error) {
	_, merchantID, err := managerSession(ctx, merchantID)
	if err != nil {
		return domain.Product{}, err
	}
	if err := s.requireMerchant(ctx, merchantID); err != nil {
		return domain.Product{}, err
	}

	sku := strings.ToUpper(strings.TrimSpace(req.SKU))
	if sku == "" {
		return domain.Product{}, poserr.Invalid("sku", "is required")
	}
	name, err := required("name", req.Name)
	if err != nil {
		return domain.Product{}, err
	}
	if req.Price <= 0 {
		return domain.Product{}, poserr.Invalid("price", "must be greater than zero")
	}
	if req.InitialStock < 0 {
		return domain.Product{}, poserr.Invalid("initial_stock", "must not be negative")
	}

	now := s.now().UTC()
	created, err := s.repo.CreateProduct(ctx, domain.Product{
		ID:         xid.New("product"),
		MerchantID: merchantID,
		SKU:        sku,
		Name:       name,
		Category:   strings.TrimSpace(req.Category),
		Price:      req.Price,
		Stock:      req.InitialStock,
		Active:     true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return domain.Product{}, errors.Wrapf(err, "sku %s", sku)
		}
		return domain.Product{}, &poserr.WriteError{Op: "create product", Err: err}
	}

	s.logAudit(ctx, merchantID, "product_create", "product", created.ID, fmt.Sprintf("sku=%s,price=%.2f,stock=%d", created.SKU, created.Price, created.Stock))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, productID string, req domain.ProductUpdateRequest) (domain.Product, error) {
	sess, err := access.RequireManager(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	existing, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	if !access.MerchantVisible(access.For(sess), sess, existing.MerchantID) {
		return domain.Product{}, store.ErrNotFound
	}

	updated := *existing
	if req.Name != nil {
		name, err := required("name", *req.Name)
		if err != nil {
			return domain.Product{}, err
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.Price != nil {
		if *req.Price <= 0 {
			return domain.Product{}, poserr.Invalid("price", "must be greater than zero")
		}
		updated.Price = *req.Price
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	updated.UpdatedAt = s.now().UTC()

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, &poserr.WriteError{Op: "update product", Err: err}
	}

	detail := fmt.Sprintf("name=%s,active=%t", saved.Name, saved.Active)
	if saved.Price != existing.Price {
		detail += fmt.Sprintf(",price=%.2f->%.2f", existing.Price, saved.Price)
	}
	s.logAudit(ctx, saved.MerchantID, "product_update", "product", saved.ID, detail)
	return *saved, nil
}

// ListProducts returns the merchant catalogue. Kasirs only see active
// products.
func (s *Service) ListProducts(ctx context.Context, merchantID string) ([]domain.Product, error) {
	sess, merchantID, err := merchantSession(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	products, err := s.repo.ListProducts(ctx, merchantID)
	if err != nil {
		return nil, &poserr.FetchError{Resource: "products", Err: err}
	}
	if access.For(sess).CanManage(sess) {
		return products, nil
	}
	active := make([]domain.Product, 0, len(products))
	for _, p := range products {
		if p.Active {
			active = append(active, p)
		}
	}
	return active, nil
}

// AdjustStock applies a manual inventory change and records it. Stock
// never goes below zero.
func (s *Service) AdjustStock(ctx context.Context, productID string, req domain.StockAdjustmentRequest) (domain.StockAdjustment, error) {
	sess, err := access.RequireManager(ctx)
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	if req.Delta == 0 {
		return domain.StockAdjustment{}, poserr.Invalid("delta", "must not be zero")
	}
	reason, err := required("reason", req.Reason)
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	product, err := s.repo.GetProduct(ctx, productID)
	if err != nil {
		return domain.StockAdjustment{}, err
	}
	if !access.MerchantVisible(access.For(sess), sess, product.MerchantID) {
		return domain.StockAdjustment{}, store.ErrNotFound
	}

	supplierID := strings.TrimSpace(req.SupplierID)
	if supplierID != "" {
		supplier, err := s.repo.GetSupplier(ctx, supplierID)
		if err != nil || supplier.MerchantID != product.MerchantID {
			return domain.StockAdjustment{}, poserr.Invalid("supplier_id", "unknown supplier")
		}
	}

	updated, err := s.repo.AdjustStock(ctx, product.ID, req.Delta)
	if err != nil {
		return domain.StockAdjustment{}, err
	}

	adj := domain.StockAdjustment{
		ID:          xid.New("adj"),
		MerchantID:  product.MerchantID,
		ProductID:   product.ID,
		ProductName: product.Name,
		SupplierID:  supplierID,
		Delta:       req.Delta,
		StockAfter:  updated.Stock,
		Reason:      reason,
		ActorUID:    sess.UID,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.repo.CreateStockAdjustment(ctx, adj); err != nil {
		s.lg.Warn("failed to record stock adjustment", zap.String("product_id", product.ID), zap.Error(err))
	}

	s.logAudit(ctx, product.MerchantID, "stock_adjust", "product", product.ID, fmt.Sprintf("delta=%d,stock=%d,reason=%s", req.Delta, updated.Stock, reason))
	return adj, nil
}

func (s *Service) ListStockAdjustments(ctx context.Context, merchantID string, limit int) ([]domain.StockAdjustment, error) {
	_, merchantID, err := managerSession(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	adjustments, err := s.repo.ListStockAdjustments(ctx, merchantID, limit)
	if err != nil {
		return nil, &poserr.FetchError{Resource: "stock adjustments", Err: err}
	}
	return adjustments, nil
}

func (s *Service) CreateSupplier(ctx context.Context, merchantID string, req domain.SupplierCreateRequest) (domain.Supplier, error) {
	_, merchantID, err := managerSession(ctx, merchantID)
	if err != nil {
		return domain.Supplier{}, err
	}
	if err := s.requireMerchant(ctx, merchantID); err != nil {
		return domain.Supplier{}, err
	}
	name, err := required("name", req.Name)
	if err != nil {
		return domain.Supplier{}, err
	}

	created, err := s.repo.CreateSupplier(ctx, domain.Supplier{
		ID:         xid.New("supplier"),
		MerchantID: merchantID,
		Name:       name,
		Contact:    strings.TrimSpace(req.Contact),
		Phone:      strings.TrimSpace(req.Phone),
		Address:    strings.TrimSpace(req.Address),
		CreatedAt:  s.now().UTC(),
	})
	if err != nil {
		return domain.Supplier{}, &poserr.WriteError{Op: "create supplier", Err: err}
	}

	s.logAudit(ctx, merchantID, "supplier_create", "supplier", created.ID, "name="+created.Name)
	return *created, nil
}

func (s *Service) ListSuppliers(ctx context.Context, merchantID string) ([]domain.Supplier, error) {
	_, merchantID, err := managerSession(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	suppliers, err := s.repo.ListSuppliers(ctx, merchantID)
	if err != nil {
		return nil, &poserr.FetchError{Resource: "suppliers", Err: err}
	}
	return suppliers, nil
}

// GetSettings returns the merchant pricing settings, falling back to the
// configured defaults when none were saved yet.
func (s *Service) GetSettings(ctx context.Context, merchantID string) (domain.Settings, error) {
	_, merchantID, err := merchantSession(ctx, merchantID)
	if err != nil {
		return domain.Settings{}, err
	}
	return s.loadSettings(ctx, merchantID)
}

func (s *Service) loadSettings(ctx context.Context, merchantID string) (domain.Settings, error) {
	cached, ok, err := s.settings.Get(ctx, merchantID)
	if err != nil {
		s.lg.Warn("settings cache read failed", zap.String("merchant_id", merchantID), zap.Error(err))
	}
	if ok && cached != nil {
		return *cached, nil
	}

	settings, err := s.repo.GetSettings(ctx, merchantID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		defaults := s.defaults
		defaults.MerchantID = merchantID
		return defaults, nil
	case err != nil:
		return domain.Settings{}, &poserr.FetchError{Resource: "settings", Err: err}
	}

	if err := s.settings.Set(ctx, settings, s.settingsTTL); err != nil {
		s.lg.Warn("settings cache write failed", zap.String("merchant_id", merchantID), zap.Error(err))
	}
	return *settings, nil
}

func (s *Service) UpdateSettings(ctx context.Context, merchantID string, req domain.SettingsUpdateRequest) (domain.Settings, error) {
	_, merchantID, err := managerSession(ctx, merchantID)
	if err != nil {
		return domain.Settings{}, err
	}
	if err := s.requireMerchant(ctx, merchantID); err != nil {
		return domain.Settings{}, err
	}

	current, err := s.loadSettings(ctx, merchantID)
	if err != nil {
		return domain.Settings{}, err
	}
	next := current
	if req.TaxRatePercent != nil {
		next.TaxRatePercent = *req.TaxRatePercent
	}
	if req.DiscountRatePercent != nil {
		next.DiscountRatePercent = *req.DiscountRatePercent
	}
	if err := cart.ValidateRates(next.TaxRatePercent, next.DiscountRatePercent); err != nil {
		return domain.Settings{}, err
	}
	next.MerchantID = merchantID
	next.UpdatedAt = s.now().UTC()

	if err := s.repo.SaveSettings(ctx, next); err != nil {
		return domain.Settings{}, &poserr.WriteError{Op: "save settings", Err: err}
	}
	if err := s.settings.Delete(ctx, merchantID); err != nil {
		s.lg.Warn("settings cache invalidation failed", zap.String("merchant_id", merchantID), zap.Error(err))
	}

	s.logAudit(ctx, merchantID, "settings_update", "settings", merchantID,
		fmt.Sprintf("tax=%.2f,discount=%.2f", next.TaxRatePercent, next.DiscountRatePercent))
	return next, nil
}
