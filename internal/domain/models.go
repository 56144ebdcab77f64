package domain

import "time"

const (
	RoleSuperAdmin = "superadmin"
	RoleAdmin      = "admin"
	RoleKasir      = "kasir"
)

const (
	PaymentCash     = "cash"
	PaymentQRIS     = "qris"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
	PaymentEWallet  = "ewallet"
)

// FilterAll is the sentinel accepted by report filters to mean "no restriction".
const FilterAll = "all"

func IsPaymentMethod(method string) bool {
	switch method {
	case PaymentCash, PaymentQRIS, PaymentCard, PaymentTransfer, PaymentEWallet:
		return true
	}
	return false
}

// Session is the authenticated caller resolved from the identity token and
// the user record keyed by its uid.
type Session struct {
	UID         string   `json:"uid"`
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Role        string   `json:"role"`
	MerchantID  string   `json:"merchant_id,omitempty"`
	OutletIDs   []string `json:"outlet_ids,omitempty"`
}

type Merchant struct {
	ID         string    `json:"id" bson:"_id"`
	Name       string    `json:"name" bson:"name"`
	OwnerEmail string    `json:"owner_email" bson:"owner_email"`
	Phone      string    `json:"phone" bson:"phone"`
	Address    string    `json:"address" bson:"address"`
	Active     bool      `json:"active" bson:"active"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

type MerchantCreateRequest struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	AdminEmail    string `json:"admin_email"`
	AdminName     string `json:"admin_name"`
	AdminPassword string `json:"admin_password"`
}

type MerchantOnboardResponse struct {
	Merchant Merchant    `json:"merchant"`
	Admin    UserAccount `json:"admin"`
}

type UserAccount struct {
	UID          string    `json:"uid" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	DisplayName  string    `json:"display_name" bson:"display_name"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         string    `json:"role" bson:"role"`
	MerchantID   string    `json:"merchant_id,omitempty" bson:"merchant_id"`
	OutletIDs    []string  `json:"outlet_ids,omitempty" bson:"outlet_ids"`
	Active       bool      `json:"active" bson:"active"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
}

func (u UserAccount) Session() Session {
	outlets := make([]string, len(u.OutletIDs))
	copy(outlets, u.OutletIDs)
	return Session{
		UID:         u.UID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        u.Role,
		MerchantID:  u.MerchantID,
		OutletIDs:   outlets,
	}
}

type KasirCreateRequest struct {
	Email       string   `json:"email"`
	DisplayName string   `json:"display_name"`
	Password    string   `json:"password"`
	OutletIDs   []string `json:"outlet_ids"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string  `json:"access_token"`
	ExpiresAt   string  `json:"expires_at"`
	Session     Session `json:"session"`
}

type Outlet struct {
	ID         string    `json:"id" bson:"_id"`
	MerchantID string    `json:"merchant_id" bson:"merchant_id"`
	Name       string    `json:"name" bson:"name"`
	Address    string    `json:"address" bson:"address"`
	Phone      string    `json:"phone" bson:"phone"`
	Active     bool      `json:"active" bson:"active"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

type OutletRequest struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Active  *bool  `json:"active,omitempty"`
}

type Product struct {
	ID         string    `json:"id" bson:"_id"`
	MerchantID string    `json:"merchant_id" bson:"merchant_id"`
	SKU        string    `json:"sku" bson:"sku"`
	Name       string    `json:"name" bson:"name"`
	Category   string    `json:"category" bson:"category"`
	Price      float64   `json:"price" bson:"price"`
	Stock      int       `json:"stock" bson:"stock"`
	Active     bool      `json:"active" bson:"active"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" bson:"updated_at"`
}

type ProductCreateRequest struct {
	SKU          string  `json:"sku"`
	Name         string  `json:"name"`
	Category     string  `json:"category"`
	Price        float64 `json:"price"`
	InitialStock int     `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name     *string  `json:"name,omitempty"`
	Category *string  `json:"category,omitempty"`
	Price    *float64 `json:"price,omitempty"`
	Active   *bool    `json:"active,omitempty"`
}

type Supplier struct {
	ID         string    `json:"id" bson:"_id"`
	MerchantID string    `json:"merchant_id" bson:"merchant_id"`
	Name       string    `json:"name" bson:"name"`
	Contact    string    `json:"contact" bson:"contact"`
	Phone      string    `json:"phone" bson:"phone"`
	Address    string    `json:"address" bson:"address"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}

type SupplierCreateRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type StockAdjustment struct {
	ID          string    `json:"id" bson:"_id"`
	MerchantID  string    `json:"merchant_id" bson:"merchant_id"`
	ProductID   string    `json:"product_id" bson:"product_id"`
	ProductName string    `json:"product_name" bson:"product_name"`
	SupplierID  string    `json:"supplier_id,omitempty" bson:"supplier_id"`
	Delta       int       `json:"delta" bson:"delta"`
	StockAfter  int       `json:"stock_after" bson:"stock_after"`
	Reason      string    `json:"reason" bson:"reason"`
	ActorUID    string    `json:"actor_uid" bson:"actor_uid"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at"`
}

type StockAdjustmentRequest struct {
	Delta      int    `json:"delta"`
	Reason     string `json:"reason"`
	SupplierID string `json:"supplier_id,omitempty"`
}

type Settings struct {
	MerchantID          string    `json:"merchant_id" bson:"_id"`
	TaxRatePercent      float64   `json:"tax_rate_percent" bson:"tax_rate_percent"`
	DiscountRatePercent float64   `json:"discount_rate_percent" bson:"discount_rate_percent"`
	UpdatedAt           time.Time `json:"updated_at" bson:"updated_at"`
}

type SettingsUpdateRequest struct {
	TaxRatePercent      *float64 `json:"tax_rate_percent,omitempty"`
	DiscountRatePercent *float64 `json:"discount_rate_percent,omitempty"`
}

type TransactionLine struct {
	ProductID string  `json:"product_id" bson:"product_id"`
	Name      string  `json:"name" bson:"name"`
	UnitPrice float64 `json:"unit_price" bson:"unit_price"`
	Quantity  int     `json:"quantity" bson:"quantity"`
	LineTotal float64 `json:"line_total" bson:"line_total"`
}

// Transaction is written once at checkout and never updated.
type Transaction struct {
	ID             string            `json:"id" bson:"_id"`
	MerchantID     string            `json:"merchant_id" bson:"merchant_id"`
	OutletID       string            `json:"outlet_id" bson:"outlet_id"`
	OutletName     string            `json:"outlet_name" bson:"outlet_name"`
	KasirID        string            `json:"kasir_id" bson:"kasir_id"`
	KasirName      string            `json:"kasir_name" bson:"kasir_name"`
	Items          []TransactionLine `json:"items" bson:"items"`
	Subtotal       float64           `json:"subtotal" bson:"subtotal"`
	DiscountAmount float64           `json:"discount_amount" bson:"discount_amount"`
	TaxAmount      float64           `json:"tax_amount" bson:"tax_amount"`
	TotalAmount    float64           `json:"total_amount" bson:"total_amount"`
	CashReceived   float64           `json:"cash_received" bson:"cash_received"`
	ChangeGiven    float64           `json:"change_given" bson:"change_given"`
	PaymentMethod  string            `json:"payment_method" bson:"payment_method"`
	Timestamp      time.Time         `json:"timestamp" bson:"timestamp"`
}

// TransactionQuery narrows a transaction listing with equality predicates only.
type TransactionQuery struct {
	MerchantID string
	OutletID   string
	KasirID    string
	Limit      int
}

type CartItemRequest struct {
	ProductID string `json:"product_id"`
}

type CartQuantityRequest struct {
	Quantity string `json:"quantity"`
}

type CartCashRequest struct {
	CashReceived  float64 `json:"cash_received"`
	PaymentMethod string  `json:"payment_method,omitempty"`
}

type CheckoutRequest struct {
	OutletID      string   `json:"outlet_id"`
	PaymentMethod string   `json:"payment_method"`
	CashReceived  *float64 `json:"cash_received,omitempty"`
}

type AuditLog struct {
	ID         string    `json:"id" bson:"_id"`
	MerchantID string    `json:"merchant_id" bson:"merchant_id"`
	ActorUID   string    `json:"actor_uid" bson:"actor_uid"`
	ActorRole  string    `json:"actor_role" bson:"actor_role"`
	Action     string    `json:"action" bson:"action"`
	EntityType string    `json:"entity_type" bson:"entity_type"`
	EntityID   string    `json:"entity_id" bson:"entity_id"`
	Detail     string    `json:"detail" bson:"detail"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at"`
}
