package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/store"
)

//go:embed schema.sql
var schema string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping")
	}

	return &Store{db: db}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return store.ErrNotFound
	case isUniqueViolation(err):
		return store.ErrConflict
	default:
		return err
	}
}

func expectOne(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) CreateMerchant(ctx context.Context, m domain.Merchant) (*domain.Merchant, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO merchants (id, name, owner_email, phone, address, active, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, m.ID, m.Name, m.OwnerEmail, m.Phone, m.Address, m.Active, m.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

const merchantColumns = `id, name, owner_email, phone, address, active, created_at`

func scanMerchant(row scanner) (domain.Merchant, error) {
	var m domain.Merchant
	err := row.Scan(&m.ID, &m.Name, &m.OwnerEmail, &m.Phone, &m.Address, &m.Active, &m.CreatedAt)
	m.CreatedAt = m.CreatedAt.UTC()
	return m, err
}

func (s *Store) GetMerchant(ctx context.Context, id string) (*domain.Merchant, error) {
	m, err := scanMerchant(s.db.QueryRowContext(ctx, `SELECT `+merchantColumns+` FROM merchants WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &m, nil
}

func (s *Store) ListMerchants(ctx context.Context) ([]domain.Merchant, error) {
	return queryAll(ctx, s.db, scanMerchant, `SELECT `+merchantColumns+` FROM merchants ORDER BY name`)
}

// queryAll runs a listing query and scans every row with scan.
func queryAll[T any](ctx context.Context, db *sql.DB, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

const userColumns = `uid, email, display_name, password_hash, role, merchant_id, outlet_ids, active, created_at`

func scanUser(row scanner) (domain.UserAccount, error) {
	var (
		u       domain.UserAccount
		outlets []byte
	)
	if err := row.Scan(&u.UID, &u.Email, &u.DisplayName, &u.PasswordHash, &u.Role, &u.MerchantID, &outlets, &u.Active, &u.CreatedAt); err != nil {
		return u, err
	}
	if err := json.Unmarshal(outlets, &u.OutletIDs); err != nil {
		return u, errors.Wrap(err, "decode outlet_ids")
	}
	u.CreatedAt = u.CreatedAt.UTC()
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u domain.UserAccount) (*domain.UserAccount, error) {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.OutletIDs == nil {
		u.OutletIDs = []string{}
	}
	outlets, err := json.Marshal(u.OutletIDs)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, u.UID, u.Email, u.DisplayName, u.PasswordHash, u.Role, u.MerchantID, string(outlets), u.Active, u.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) GetUser(ctx context.Context, uid string) (*domain.UserAccount, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE uid = $1`, uid))
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email))))
	if err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) ListUsers(ctx context.Context, merchantID string, role string) ([]domain.UserAccount, error) {
	return queryAll(ctx, s.db, scanUser, `
		SELECT `+userColumns+`
		FROM users
		WHERE merchant_id = $1 AND ($2 = '' OR role = $2)
		ORDER BY display_name
	`, merchantID, role)
}

const outletColumns = `id, merchant_id, name, address, phone, active, created_at`

func scanOutlet(row scanner) (domain.Outlet, error) {
	var o domain.Outlet
	err := row.Scan(&o.ID, &o.MerchantID, &o.Name, &o.Address, &o.Phone, &o.Active, &o.CreatedAt)
	o.CreatedAt = o.CreatedAt.UTC()
	return o, err
}

func (s *Store) CreateOutlet(ctx context.Context, o domain.Outlet) (*domain.Outlet, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outlets (`+outletColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, o.ID, o.MerchantID, o.Name, o.Address, o.Phone, o.Active, o.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (s *Store) GetOutlet(ctx context.Context, id string) (*domain.Outlet, error) {
	o, err := scanOutlet(s.db.QueryRowContext(ctx, `SELECT `+outletColumns+` FROM outlets WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &o, nil
}

func (s *Store) UpdateOutlet(ctx context.Context, o domain.Outlet) (*domain.Outlet, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE outlets SET name = $2, address = $3, phone = $4, active = $5
		WHERE id = $1
	`, o.ID, o.Name, o.Address, o.Phone, o.Active)
	if err != nil {
		return nil, mapErr(err)
	}
	if err := expectOne(res); err != nil {
		return nil, err
	}
	return &o, nil
}

func (s *Store) ListOutlets(ctx context.Context, merchantID string) ([]domain.Outlet, error) {
	return queryAll(ctx, s.db, scanOutlet, `SELECT `+outletColumns+` FROM outlets WHERE merchant_id = $1 ORDER BY name`, merchantID)
}

const productColumns = `id, merchant_id, sku, name, category, price, stock, active, created_at, updated_at`

func scanProduct(row scanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.MerchantID, &p.SKU, &p.Name, &p.Category, &p.Price, &p.Stock, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, err
}

func (s *Store) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, p.ID, p.MerchantID, p.SKU, p.Name, p.Category, p.Price, p.Stock, p.Active, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET sku = $2, name = $3, category = $4, price = $5, active = $6, updated_at = $7
		WHERE id = $1
		RETURNING `+productColumns,
		p.ID, p.SKU, p.Name, p.Category, p.Price, p.Active, p.UpdatedAt))
	if err != nil {
		return nil, mapErr(err)
	}
	return &updated, nil
}

func (s *Store) ListProducts(ctx context.Context, merchantID string) ([]domain.Product, error) {
	return queryAll(ctx, s.db, scanProduct, `SELECT `+productColumns+` FROM products WHERE merchant_id = $1 ORDER BY name`, merchantID)
}

func (s *Store) AdjustStock(ctx context.Context, productID string, delta int) (*domain.Product, error) {
	p, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET stock = stock + $2, updated_at = now()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING `+productColumns,
		productID, delta))
	if errors.Is(err, sql.ErrNoRows) {
		if _, getErr := s.GetProduct(ctx, productID); getErr != nil {
			return nil, getErr
		}
		return nil, store.ErrInsufficientStock
	}
	if err != nil {
		return nil, mapErr(err)
	}
	return &p, nil
}

const supplierColumns = `id, merchant_id, name, contact, phone, address, created_at`

func scanSupplier(row scanner) (domain.Supplier, error) {
	var sup domain.Supplier
	err := row.Scan(&sup.ID, &sup.MerchantID, &sup.Name, &sup.Contact, &sup.Phone, &sup.Address, &sup.CreatedAt)
	sup.CreatedAt = sup.CreatedAt.UTC()
	return sup, err
}

func (s *Store) CreateSupplier(ctx context.Context, sup domain.Supplier) (*domain.Supplier, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (`+supplierColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, sup.ID, sup.MerchantID, sup.Name, sup.Contact, sup.Phone, sup.Address, sup.CreatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	return &sup, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	sup, err := scanSupplier(s.db.QueryRowContext(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	return &sup, nil
}

func (s *Store) ListSuppliers(ctx context.Context, merchantID string) ([]domain.Supplier, error) {
	return queryAll(ctx, s.db, scanSupplier, `SELECT `+supplierColumns+` FROM suppliers WHERE merchant_id = $1 ORDER BY name`, merchantID)
}

const adjustmentColumns = `id, merchant_id, product_id, product_name, supplier_id, delta, stock_after, reason, actor_uid, created_at`

func scanAdjustment(row scanner) (domain.StockAdjustment, error) {
	var a domain.StockAdjustment
	err := row.Scan(&a.ID, &a.MerchantID, &a.ProductID, &a.ProductName, &a.SupplierID, &a.Delta, &a.StockAfter, &a.Reason, &a.ActorUID, &a.CreatedAt)
	a.CreatedAt = a.CreatedAt.UTC()
	return a, err
}

func (s *Store) CreateStockAdjustment(ctx context.Context, a domain.StockAdjustment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_adjustments (`+adjustmentColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, a.ID, a.MerchantID, a.ProductID, a.ProductName, a.SupplierID, a.Delta, a.StockAfter, a.Reason, a.ActorUID, a.CreatedAt)
	return mapErr(err)
}

func (s *Store) ListStockAdjustments(ctx context.Context, merchantID string, limit int) ([]domain.StockAdjustment, error) {
	if limit < 1 {
		limit = 100
	}
	return queryAll(ctx, s.db, scanAdjustment, `
		SELECT `+adjustmentColumns+`
		FROM stock_adjustments
		WHERE merchant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, merchantID, limit)
}

func (s *Store) GetSettings(ctx context.Context, merchantID string) (*domain.Settings, error) {
	var st domain.Settings
	err := s.db.QueryRowContext(ctx, `
		SELECT merchant_id, tax_rate_percent, discount_rate_percent, updated_at
		FROM settings WHERE merchant_id = $1
	`, merchantID).Scan(&st.MerchantID, &st.TaxRatePercent, &st.DiscountRatePercent, &st.UpdatedAt)
	if err != nil {
		return nil, mapErr(err)
	}
	st.UpdatedAt = st.UpdatedAt.UTC()
	return &st, nil
}

func (s *Store) SaveSettings(ctx context.Context, st domain.Settings) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (merchant_id, tax_rate_percent, discount_rate_percent, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (merchant_id)
		DO UPDATE SET tax_rate_percent = EXCLUDED.tax_rate_percent,
			discount_rate_percent = EXCLUDED.discount_rate_percent,
			updated_at = EXCLUDED.updated_at
	`, st.MerchantID, st.TaxRatePercent, st.DiscountRatePercent, st.UpdatedAt)
	return mapErr(err)
}

// CreateTransaction writes the header and its lines in one database
// transaction so a sale is never half recorded.
func (s *Store) CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error) {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, merchant_id, outlet_id, outlet_name, kasir_id, kasir_name,
			subtotal, discount_amount, tax_amount, total_amount,
			cash_received, change_given, payment_method, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
	`, tx.ID, tx.MerchantID, tx.OutletID, tx.OutletName, tx.KasirID, tx.KasirName,
		tx.Subtotal, tx.DiscountAmount, tx.TaxAmount, tx.TotalAmount,
		tx.CashReceived, tx.ChangeGiven, tx.PaymentMethod, tx.Timestamp)
	if err != nil {
		return nil, mapErr(err)
	}

	for i, item := range tx.Items {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO transaction_items (transaction_id, position, product_id, name, unit_price, quantity, line_total)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, tx.ID, i, item.ProductID, item.Name, item.UnitPrice, item.Quantity, item.LineTotal)
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &tx, nil
}

const transactionColumns = `id, merchant_id, outlet_id, outlet_name, kasir_id, kasir_name,
	subtotal, discount_amount, tax_amount, total_amount, cash_received, change_given, payment_method, created_at`

func scanTransaction(row scanner) (domain.Transaction, error) {
	var tx domain.Transaction
	err := row.Scan(&tx.ID, &tx.MerchantID, &tx.OutletID, &tx.OutletName, &tx.KasirID, &tx.KasirName,
		&tx.Subtotal, &tx.DiscountAmount, &tx.TaxAmount, &tx.TotalAmount,
		&tx.CashReceived, &tx.ChangeGiven, &tx.PaymentMethod, &tx.Timestamp)
	tx.Timestamp = tx.Timestamp.UTC()
	return tx, err
}

func (s *Store) GetTransaction(ctx context.Context, id string) (*domain.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err)
	}
	txs := []domain.Transaction{tx}
	if err := s.attachItems(ctx, txs); err != nil {
		return nil, err
	}
	return &txs[0], nil
}

func (s *Store) ListTransactions(ctx context.Context, q domain.TransactionQuery) ([]domain.Transaction, error) {
	limit := q.Limit
	if limit < 1 {
		limit = 10000
	}
	txs, err := queryAll(ctx, s.db, scanTransaction, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE ($1 = '' OR merchant_id = $1)
			AND ($2 = '' OR outlet_id = $2)
			AND ($3 = '' OR kasir_id = $3)
		ORDER BY created_at DESC, id DESC
		LIMIT $4
	`, q.MerchantID, q.OutletID, q.KasirID, limit)
	if err != nil {
		return nil, err
	}
	if err := s.attachItems(ctx, txs); err != nil {
		return nil, err
	}
	return txs, nil
}

func (s *Store) attachItems(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	ids := make([]string, len(txs))
	index := make(map[string]int, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
		index[tx.ID] = i
		txs[i].Items = []domain.TransactionLine{}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT transaction_id, product_id, name, unit_price, quantity, line_total
		FROM transaction_items
		WHERE transaction_id = ANY($1)
		ORDER BY transaction_id, position
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			txID string
			line domain.TransactionLine
		)
		if err := rows.Scan(&txID, &line.ProductID, &line.Name, &line.UnitPrice, &line.Quantity, &line.LineTotal); err != nil {
			return err
		}
		if i, ok := index[txID]; ok {
			txs[i].Items = append(txs[i].Items, line)
		}
	}
	return rows.Err()
}

const auditColumns = `id, merchant_id, actor_uid, actor_role, action, entity_type, entity_id, detail, created_at`

func scanAudit(row scanner) (domain.AuditLog, error) {
	var e domain.AuditLog
	err := row.Scan(&e.ID, &e.MerchantID, &e.ActorUID, &e.ActorRole, &e.Action, &e.EntityType, &e.EntityID, &e.Detail, &e.CreatedAt)
	e.CreatedAt = e.CreatedAt.UTC()
	return e, err
}

func (s *Store) CreateAuditLog(ctx context.Context, e domain.AuditLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (`+auditColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, e.ID, e.MerchantID, e.ActorUID, e.ActorRole, e.Action, e.EntityType, e.EntityID, e.Detail, e.CreatedAt)
	return mapErr(err)
}

func (s *Store) ListAuditLogs(ctx context.Context, merchantID string, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}
	return queryAll(ctx, s.db, scanAudit, `
		SELECT `+auditColumns+`
		FROM audit_logs
		WHERE merchant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, merchantID, limit)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

var _ store.Repository = (*Store)(nil)
