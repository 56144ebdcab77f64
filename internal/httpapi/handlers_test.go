package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kasirpos/backend/internal/domain"
	"kasirpos/backend/internal/report"
	"kasirpos/backend/internal/service"
	"kasirpos/backend/internal/store/memory"
)

// newTestAPI builds a full API with a seeded in-memory store, real
// AuthManager and real Service so handler tests exercise the complete
// request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded(nil)
	svc := service.New(repo, service.Options{DefaultTaxRate: 11})
	auth := NewAuthManager("test-secret-key-with-enough-length!", time.Hour, repo)

	return New(svc, auth, "*", nil)
}

func login(t *testing.T, api *API, email string, password string) string {
	t.Helper()

	body, _ := json.Marshal(domain.LoginRequest{Email: email, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.0.0." + strings.ToLower(email[:1]) + ":1234"
	res := httptest.NewRecorder()

	api.Handler().ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("login %s failed, status %d: %s", email, res.Code, res.Body.String())
	}

	var payload domain.LoginResponse
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode login response failed: %v", err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		t.Fatalf("expected access token in login response")
	}
	return payload.AccessToken
}

func do(t *testing.T, api *API, method string, path string, token string, payload any) *httptest.ResponseRecorder {
	t.Helper()

	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res := httptest.NewRecorder()
	api.Handler().ServeHTTP(res, req)
	return res
}

func decodeBody[T any](t *testing.T, res *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	rec := do(t, api, http.MethodGet, "/healthz", "", nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]any](t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_Success(t *testing.T) {
	api := newTestAPI(t)
	rec := do(t, api, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    "Admin@KasirPOS.local",
		"password": "admin123",
	})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[domain.LoginResponse](t, rec)
	if resp.AccessToken == "" || resp.ExpiresAt == "" {
		t.Fatalf("expected token and expiry, got %+v", resp)
	}
	if resp.Session.Role != domain.RoleAdmin || resp.Session.MerchantID != memory.SeedMerchantID {
		t.Fatalf("unexpected session: %+v", resp.Session)
	}
}

func TestHandleLogin_InvalidCredentials(t *testing.T) {
	api := newTestAPI(t)
	rec := do(t, api, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email":    memory.SeedAdminEmail,
		"password": "wrong-password",
	})

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	api := newTestAPI(t)
	for _, path := range []string{"/api/v1/me", "/api/v1/products", "/api/v1/cart", "/api/v1/reports/sales"} {
		rec := do(t, api, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401, got %d", path, rec.Code)
		}
	}

	rec := do(t, api, http.MethodGet, "/api/v1/me", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rec.Code)
	}
}

func TestTokenForUnknownAccountRejected(t *testing.T) {
	api := newTestAPI(t)
	token, err := api.auth.sign(domain.UserAccount{UID: "user-ghost", Email: "ghost@kasirpos.local"}, time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	rec := do(t, api, http.MethodGet, "/api/v1/me", token, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown subject, got %d", rec.Code)
	}
}

func TestMeReturnsStoredAssignment(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, memory.SeedKasirEmail, "kasir123")

	rec := do(t, api, http.MethodGet, "/api/v1/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody[map[string]domain.Session](t, rec)
	sess := body["session"]
	if sess.Role != domain.RoleKasir || len(sess.OutletIDs) != 1 || sess.OutletIDs[0] != memory.SeedOutletPusatID {
		t.Fatalf("unexpected session: %+v", sess)
	}
}

func TestKasirCannotManageCatalogue(t *testing.T) {
	api := newTestAPI(t)
	token := login(t, api, memory.SeedKasirEmail, "kasir123")

	rec := do(t, api, http.MethodPost, "/api/v1/products", token, domain.ProductCreateRequest{
		SKU: "NEW-1", Name: "Baru", Price: 1000,
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 creating product as kasir, got %d", rec.Code)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/kasirs", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 listing kasirs as kasir, got %d", rec.Code)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/products", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("kasir should list products, got %d", rec.Code)
	}
}

func TestCheckoutFlowAndSalesReport(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, memory.SeedAdminEmail, "admin123")
	kasir := login(t, api, memory.SeedKasirEmail, "kasir123")

	rec := do(t, api, http.MethodPut, "/api/v1/settings", admin, map[string]float64{"discount_rate_percent": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("update settings: %d %s", rec.Code, rec.Body.String())
	}

	rec = do(t, api, http.MethodPost, "/api/v1/cart/items", kasir, domain.CartItemRequest{ProductID: memory.SeedProductKopiID})
	if rec.Code != http.StatusOK {
		t.Fatalf("add item: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, api, http.MethodPut, "/api/v1/cart/items/"+memory.SeedProductKopiID, kasir, domain.CartQuantityRequest{Quantity: "2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set quantity: %d %s", rec.Code, rec.Body.String())
	}
	rec = do(t, api, http.MethodPut, "/api/v1/cart/cash", kasir, domain.CartCashRequest{CashReceived: 40000, PaymentMethod: "cash"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set cash: %d %s", rec.Code, rec.Body.String())
	}
	view := decodeBody[service.CartView](t, rec)
	if view.Totals.Total != 37962 || view.Totals.ChangeGiven != 2038 || !view.CanComplete {
		t.Fatalf("unexpected cart view: %+v", view)
	}

	rec = do(t, api, http.MethodPost, "/api/v1/checkout", kasir, domain.CheckoutRequest{})
	if rec.Code != http.StatusCreated {
		t.Fatalf("checkout: %d %s", rec.Code, rec.Body.String())
	}
	checkout := decodeBody[service.CheckoutResponse](t, rec)
	if checkout.Transaction.TotalAmount != 37962 || checkout.Transaction.ChangeGiven != 2038 {
		t.Fatalf("unexpected transaction: %+v", checkout.Transaction)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/cart", kasir, nil)
	if cart := decodeBody[service.CartView](t, rec); cart.State != "empty" {
		t.Fatalf("expected empty cart after checkout, got %+v", cart)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/transactions/"+checkout.Transaction.ID+"/receipt", kasir, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("receipt: %d", rec.Code)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/reports/sales?payment_method=cash", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sales report: %d %s", rec.Code, rec.Body.String())
	}
	result := decodeBody[report.Result](t, rec)
	if result.Summary.Count != 1 || result.Summary.TotalAmount != 37962 {
		t.Fatalf("unexpected summary: %+v", result.Summary)
	}

	rec = do(t, api, http.MethodGet, "/api/v1/reports/sales/export?format=csv", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "sales-report-") || !strings.Contains(cd, ".csv") {
		t.Fatalf("unexpected content disposition %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "Kasir Pusat") {
		t.Fatalf("export should name the kasir, got %q", rec.Body.String())
	}
}

func TestCheckoutShortCashIsUnprocessable(t *testing.T) {
	api := newTestAPI(t)
	kasir := login(t, api, memory.SeedKasirEmail, "kasir123")

	do(t, api, http.MethodPost, "/api/v1/cart/items", kasir, domain.CartItemRequest{ProductID: memory.SeedProductRotiID})
	cash := 100.0
	rec := do(t, api, http.MethodPost, "/api/v1/checkout", kasir, domain.CheckoutRequest{PaymentMethod: "cash", CashReceived: &cash})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}
}

func TestSalesReportRejectsBadDates(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, memory.SeedAdminEmail, "admin123")

	for _, query := range []string{"from=05-01-2024", "to=tomorrow", "from=2024-01-05&to=2024-01-01", "refresh=maybe"} {
		rec := do(t, api, http.MethodGet, "/api/v1/reports/sales?"+query, admin, nil)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rec.Code)
		}
	}
}

func TestExportEmptyReportRefused(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, memory.SeedAdminEmail, "admin123")

	rec := do(t, api, http.MethodGet, "/api/v1/reports/sales/export?format=pdf", admin, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty export, got %d", rec.Code)
	}
}

func TestSuperAdminOnboardsMerchant(t *testing.T) {
	api := newTestAPI(t)
	super := login(t, api, memory.SeedSuperAdminEmail, "superadmin123")

	rec := do(t, api, http.MethodPost, "/api/v1/merchants", super, domain.MerchantCreateRequest{
		Name: "Warung Baru", AdminEmail: "pemilik@warungbaru.id", AdminName: "Pemilik", AdminPassword: "password-baru",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("onboard: %d %s", rec.Code, rec.Body.String())
	}
	resp := decodeBody[domain.MerchantOnboardResponse](t, rec)
	if resp.Merchant.ID == "" || resp.Admin.MerchantID != resp.Merchant.ID {
		t.Fatalf("unexpected onboarding response: %+v", resp)
	}

	owner := login(t, api, "pemilik@warungbaru.id", "password-baru")
	rec = do(t, api, http.MethodGet, "/api/v1/settings", owner, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("new merchant settings: %d", rec.Code)
	}

	admin := login(t, api, memory.SeedAdminEmail, "admin123")
	rec = do(t, api, http.MethodPost, "/api/v1/merchants", admin, domain.MerchantCreateRequest{Name: "x"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for merchant admin onboarding, got %d", rec.Code)
	}
}

func TestAdjustStockConflict(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, memory.SeedAdminEmail, "admin123")

	rec := do(t, api, http.MethodPost, "/api/v1/products/"+memory.SeedProductRotiID+"/stock", admin, domain.StockAdjustmentRequest{Delta: -1000, Reason: "count"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	rec = do(t, api, http.MethodPost, "/api/v1/products/product-missing/stock", admin, domain.StockAdjustmentRequest{Delta: 1, Reason: "count"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	api := newTestAPI(t)
	admin := login(t, api, memory.SeedAdminEmail, "admin123")

	rec := do(t, api, http.MethodPost, "/api/v1/suppliers", admin, map[string]string{"name": "PT Baru", "unexpected": "x"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}
}
