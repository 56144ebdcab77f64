package store

import (
	"context"

	"github.com/go-faster/errors"

	"kasirpos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// Repository is the document store behind the service. Every query is an
// equality match on merchant and optional role or outlet, ordered by name
// or timestamp.
type Repository interface {
	CreateMerchant(ctx context.Context, merchant domain.Merchant) (*domain.Merchant, error)
	GetMerchant(ctx context.Context, id string) (*domain.Merchant, error)
	ListMerchants(ctx context.Context) ([]domain.Merchant, error)

	CreateUser(ctx context.Context, user domain.UserAccount) (*domain.UserAccount, error)
	GetUser(ctx context.Context, uid string) (*domain.UserAccount, error)
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context, merchantID string, role string) ([]domain.UserAccount, error)

	CreateOutlet(ctx context.Context, outlet domain.Outlet) (*domain.Outlet, error)
	GetOutlet(ctx context.Context, id string) (*domain.Outlet, error)
	UpdateOutlet(ctx context.Context, outlet domain.Outlet) (*domain.Outlet, error)
	ListOutlets(ctx context.Context, merchantID string) ([]domain.Outlet, error)

	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	ListProducts(ctx context.Context, merchantID string) ([]domain.Product, error)
	// AdjustStock adds delta to the product stock and returns the updated
	// product. It fails with ErrInsufficientStock instead of going negative.
	AdjustStock(ctx context.Context, productID string, delta int) (*domain.Product, error)

	CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error)
	GetSupplier(ctx context.Context, id string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context, merchantID string) ([]domain.Supplier, error)

	CreateStockAdjustment(ctx context.Context, adj domain.StockAdjustment) error
	ListStockAdjustments(ctx context.Context, merchantID string, limit int) ([]domain.StockAdjustment, error)

	GetSettings(ctx context.Context, merchantID string) (*domain.Settings, error)
	SaveSettings(ctx context.Context, settings domain.Settings) error

	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	// ListTransactions returns matches newest first.
	ListTransactions(ctx context.Context, q domain.TransactionQuery) ([]domain.Transaction, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, merchantID string, limit int) ([]domain.AuditLog, error)
}
