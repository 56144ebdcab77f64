package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"kasirpos/backend/internal/access"
	"kasirpos/backend/internal/cart"
	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/poserr"
	"kasirpos/backend/internal/report"
	"kasirpos/backend/internal/store"
	"kasirpos/backend/internal/xid"
)

type CartLine struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	LineTotal float64 `json:"line_total"`
}

// CartView is the checkout screen state: lines, the cash field and the
// pricing derived from the merchant rates.
type CartView struct {
	State               string      `json:"state"`
	Lines               []CartLine  `json:"lines"`
	PaymentMethod       string      `json:"payment_method"`
	CashReceived        float64     `json:"cash_received"`
	TaxRatePercent      float64     `json:"tax_rate_percent"`
	DiscountRatePercent float64     `json:"discount_rate_percent"`
	Totals              cart.Totals `json:"totals"`
	CanComplete         bool        `json:"can_complete"`
}

type CheckoutResponse struct {
	Transaction domain.Transaction `json:"transaction"`
	Receipt     report.Receipt     `json:"receipt"`
}

// cartSession returns the caller and its merchant for cart operations.
// Platform operators have no merchant and therefore no cart.
func cartSession(ctx context.Context) (domain.Session, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	if sess.MerchantID == "" {
		return domain.Session{}, errors.Wrap(access.ErrForbidden, "checkout requires a merchant account")
	}
	return sess, nil
}

func (s *Service) view(ctx context.Context, sess domain.Session, st *sessionState) (CartView, error) {
	settings, err := s.loadSettings(ctx, sess.MerchantID)
	if err != nil {
		return CartView{}, err
	}
	rates := cart.RatesFromSettings(settings)

	lines := st.cart.Lines()
	out := make([]CartLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, CartLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: cart.Amount(l.UnitPrice),
			Quantity:  l.Quantity,
			LineTotal: cart.Amount(l.Total()),
		})
	}

	return CartView{
		State:               st.cart.State().String(),
		Lines:               out,
		PaymentMethod:       st.paymentMethod,
		CashReceived:        cart.Amount(st.cart.CashReceived()),
		TaxRatePercent:      settings.TaxRatePercent,
		DiscountRatePercent: settings.DiscountRatePercent,
		Totals:              st.cart.Pricing(rates, st.paymentMethod).Totals(),
		CanComplete:         st.cart.CanComplete(rates),
	}, nil
}

// withCart runs fn on the caller's cart under its lock and returns the
// resulting view.
func (s *Service) withCart(ctx context.Context, fn func(sess domain.Session, st *sessionState) error) (CartView, error) {
	sess, err := cartSession(ctx)
	if err != nil {
		return CartView{}, err
	}
	st := s.state(sess.UID)
	st.mu.Lock()
	defer st.mu.Unlock()

	if fn != nil {
		if err := fn(sess, st); err != nil {
			return CartView{}, err
		}
	}
	return s.view(ctx, sess, st)
}

func (s *Service) GetCart(ctx context.Context) (CartView, error) {
	return s.withCart(ctx, nil)
}

// AddToCart adds one unit of an active product of the caller's merchant.
func (s *Service) AddToCart(ctx context.Context, productID string) (CartView, error) {
	return s.withCart(ctx, func(sess domain.Session, st *sessionState) error {
		productID = strings.TrimSpace(productID)
		if productID == "" {
			return poserr.Invalid("product_id", "is required")
		}
		product, err := s.repo.GetProduct(ctx, productID)
		if errors.Is(err, store.ErrNotFound) || (err == nil && product.MerchantID != sess.MerchantID) {
			return poserr.Invalid("product_id", "unknown product")
		}
		if err != nil {
			return &poserr.FetchError{Resource: "products", Err: err}
		}
		if !product.Active {
			return poserr.Invalid("product_id", "product is not for sale")
		}
		st.cart.AddItem(cart.ItemFromProduct(*product))
		return nil
	})
}

func (s *Service) SetCartQuantity(ctx context.Context, productID string, raw string) (CartView, error) {
	return s.withCart(ctx, func(_ domain.Session, st *sessionState) error {
		st.cart.SetQuantityInput(productID, raw)
		return nil
	})
}

func (s *Service) RemoveFromCart(ctx context.Context, productID string) (CartView, error) {
	return s.withCart(ctx, func(_ domain.Session, st *sessionState) error {
		st.cart.RemoveItem(productID)
		return nil
	})
}

// SetCartPayment updates the cash field and, when given, the payment method.
func (s *Service) SetCartPayment(ctx context.Context, req domain.CartCashRequest) (CartView, error) {
	return s.withCart(ctx, func(_ domain.Session, st *sessionState) error {
		method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
		if method != "" && !domain.IsPaymentMethod(method) {
			return poserr.Invalid("payment_method", "unsupported payment method")
		}
		if err := st.cart.SetCashReceived(decimal.NewFromFloat(req.CashReceived)); err != nil {
			return err
		}
		if method != "" {
			st.paymentMethod = method
		}
		return nil
	})
}

func (s *Service) ClearCart(ctx context.Context) (CartView, error) {
	return s.withCart(ctx, func(_ domain.Session, st *sessionState) error {
		st.cart.Clear()
		st.paymentMethod = domain.PaymentCash
		return nil
	})
}

// resolveOutlet picks the outlet a sale is booked to. A kasir with a single
// assignment may omit it.
func (s *Service) resolveOutlet(ctx context.Context, sess domain.Session, requested string) (*domain.Outlet, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" && len(sess.OutletIDs) == 1 {
		requested = sess.OutletIDs[0]
	}
	if requested == "" {
		return nil, poserr.Invalid("outlet_id", "is required")
	}
	if !access.OutletVisible(access.For(sess), sess, requested) {
		return nil, errors.Wrap(access.ErrForbidden, "outlet outside session scope")
	}

	outlet, err := s.repo.GetOutlet(ctx, requested)
	if errors.Is(err, store.ErrNotFound) || (err == nil && outlet.MerchantID != sess.MerchantID) {
		return nil, poserr.Invalid("outlet_id", "unknown outlet")
	}
	if err != nil {
		return nil, &poserr.FetchError{Resource: "outlets", Err: err}
	}
	if !outlet.Active {
		return nil, poserr.Invalid("outlet_id", "outlet is inactive")
	}
	return outlet, nil
}

// Checkout completes the caller's cart as one transaction. The cart is only
// cleared once the transaction is stored; stock is decremented afterwards
// on a best effort basis.
func (s *Service) Checkout(ctx context.Context, req domain.CheckoutRequest) (CheckoutResponse, error) {
	sess, err := cartSession(ctx)
	if err != nil {
		return CheckoutResponse{}, err
	}
	st := s.state(sess.UID)
	st.mu.Lock()
	defer st.mu.Unlock()

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if method == "" {
		method = st.paymentMethod
	}

	outlet, err := s.resolveOutlet(ctx, sess, req.OutletID)
	if err != nil {
		return CheckoutResponse{}, err
	}
	settings, err := s.loadSettings(ctx, sess.MerchantID)
	if err != nil {
		return CheckoutResponse{}, err
	}

	// A rejected sale leaves the cart as it was; a failed write keeps the
	// cash so the sale can be retried as entered.
	prevCash := st.cart.CashReceived()
	if req.CashReceived != nil {
		if err := st.cart.SetCashReceived(decimal.NewFromFloat(*req.CashReceived)); err != nil {
			return CheckoutResponse{}, err
		}
	}

	var recorded domain.Transaction
	writer := cart.SaleWriterFunc(func(ctx context.Context, sale cart.Sale) error {
		tx := s.transactionFromSale(sess, *outlet, sale)
		created, err := s.repo.CreateTransaction(ctx, tx)
		if err != nil {
			return err
		}
		recorded = *created
		return nil
	})

	if _, err := st.cart.Complete(ctx, cart.RatesFromSettings(settings), method, writer); err != nil {
		if poserr.IsValidation(err) {
			_ = st.cart.SetCashReceived(prevCash)
		}
		if poserr.IsWrite(err) {
			s.lg.Error("checkout write failed", zap.String("kasir_id", sess.UID), zap.String("outlet_id", outlet.ID), zap.Error(err))
		}
		return CheckoutResponse{}, err
	}
	st.paymentMethod = domain.PaymentCash

	s.decrementStock(ctx, sess, recorded)
	s.logAudit(ctx, sess.MerchantID, "checkout", "transaction", recorded.ID,
		fmt.Sprintf("outlet=%s,method=%s,total=%.2f,items=%d", recorded.OutletID, recorded.PaymentMethod, recorded.TotalAmount, len(recorded.Items)))

	dir := report.Directory{
		Outlets: map[string]string{outlet.ID: outlet.Name},
		Kasirs:  map[string]string{sess.UID: sess.DisplayName},
	}
	return CheckoutResponse{
		Transaction: recorded,
		Receipt:     report.BuildReceipt(recorded, dir, s.loc),
	}, nil
}

func (s *Service) transactionFromSale(sess domain.Session, outlet domain.Outlet, sale cart.Sale) domain.Transaction {
	items := make([]domain.TransactionLine, 0, len(sale.Lines))
	for _, l := range sale.Lines {
		items = append(items, domain.TransactionLine{
			ProductID: l.ProductID,
			Name:      l.Name,
			UnitPrice: cart.Amount(l.UnitPrice),
			Quantity:  l.Quantity,
			LineTotal: cart.Amount(l.Total()),
		})
	}

	kasirName := strings.TrimSpace(sess.DisplayName)
	if kasirName == "" {
		kasirName = sess.Email
	}
	totals := sale.Pricing.Totals()
	return domain.Transaction{
		ID:             xid.New("trx"),
		MerchantID:     sess.MerchantID,
		OutletID:       outlet.ID,
		OutletName:     outlet.Name,
		KasirID:        sess.UID,
		KasirName:      kasirName,
		Items:          items,
		Subtotal:       totals.Subtotal,
		DiscountAmount: totals.DiscountAmount,
		TaxAmount:      totals.TaxAmount,
		TotalAmount:    totals.Total,
		CashReceived:   cart.Amount(sale.CashReceived),
		ChangeGiven:    totals.ChangeGiven,
		PaymentMethod:  sale.PaymentMethod,
		Timestamp:      s.now().UTC(),
	}
}

func (s *Service) decrementStock(ctx context.Context, sess domain.Session, tx domain.Transaction) {
	for _, item := range tx.Items {
		updated, err := s.repo.AdjustStock(ctx, item.ProductID, -item.Quantity)
		if err != nil {
			s.lg.Warn("failed to decrement stock after sale",
				zap.String("transaction_id", tx.ID),
				zap.String("product_id", item.ProductID),
				zap.Int("quantity", item.Quantity),
				zap.Error(err),
			)
			continue
		}
		if err := s.repo.CreateStockAdjustment(ctx, domain.StockAdjustment{
			ID:          xid.New("adj"),
			MerchantID:  tx.MerchantID,
			ProductID:   item.ProductID,
			ProductName: item.Name,
			Delta:       -item.Quantity,
			StockAfter:  updated.Stock,
			Reason:      "sale " + tx.ID,
			ActorUID:    sess.UID,
			CreatedAt:   tx.Timestamp,
		}); err != nil {
			s.lg.Warn("failed to record sale stock adjustment", zap.String("transaction_id", tx.ID), zap.Error(err))
		}
	}
}

// Receipt rebuilds the receipt of a stored transaction visible to the
// caller. Transactions outside the caller's scope read as not found.
func (s *Service) Receipt(ctx context.Context, transactionID string) (report.Receipt, error) {
	sess, err := requireSession(ctx)
	if err != nil {
		return report.Receipt{}, err
	}
	tx, err := s.repo.GetTransaction(ctx, transactionID)
	if err != nil {
		return report.Receipt{}, err
	}
	policy := access.For(sess)
	if !access.MerchantVisible(policy, sess, tx.MerchantID) || !access.OutletVisible(policy, sess, tx.OutletID) {
		return report.Receipt{}, store.ErrNotFound
	}

	dir := report.Directory{}
	if outlet, err := s.repo.GetOutlet(ctx, tx.OutletID); err == nil {
		dir.Outlets = map[string]string{outlet.ID: outlet.Name}
	}
	if kasir, err := s.repo.GetUser(ctx, tx.KasirID); err == nil {
		dir.Kasirs = map[string]string{kasir.UID: kasir.DisplayName}
	}
	return report.BuildReceipt(*tx, dir, s.loc), nil
}
