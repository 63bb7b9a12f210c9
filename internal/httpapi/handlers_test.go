package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pastelaria/backend/internal/domain"
	"pastelaria/backend/internal/forecast"
	"pastelaria/backend/internal/service"
	"pastelaria/backend/internal/store/memory"
)

// newTestAPI builds a full API with an in-memory store, real AuthManager and
// real Service so handler tests exercise the complete request path.
func newTestAPI(t *testing.T) *API {
	t.Helper()

	repo := memory.NewSeeded()
	svc := service.New(repo, forecast.Heuristic{}, false)
	auth, err := NewAuthManager("test-secret-key-that-is-long-enough", time.Hour, "pastel123")
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	return New(svc, auth, "*", false)
}

func TestHandleHealth(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["ok"] != true {
		t.Fatalf("expected ok:true, got %v", body["ok"])
	}
}

func TestHandleLogin_SetsSessionCookie(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(domain.LoginRequest{AccessKey: "pastel123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatalf("expected %s cookie to be set", sessionCookieName)
	}
	if !cookie.HttpOnly {
		t.Fatalf("expected session cookie to be http-only")
	}
	if cookie.SameSite != http.SameSiteStrictMode {
		t.Fatalf("expected SameSite=Strict, got %v", cookie.SameSite)
	}
	if cookie.Value == "" {
		t.Fatalf("expected non-empty session token")
	}

	var body domain.LoginResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.ExpiresAt == "" {
		t.Fatalf("expected expires_at in response")
	}
}

func TestHandleLogin_WrongKey(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	payload, _ := json.Marshal(domain.LoginRequest{AccessKey: "wrong-key"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected no cookie on failed login")
	}
}

func TestHandleProducts_RequiresSession(t *testing.T) {
	api := newTestAPI(t)
	handler := api.Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleProducts_WithSessionCookie(t *testing.T) {
	api := newTestAPI(t)
	cookie := loginSession(t, api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["products"] == nil {
		t.Fatalf("expected products key in response, got %v", body)
	}
}

func TestHandleLogout_ClearsCookie(t *testing.T) {
	api := newTestAPI(t)
	cookie := loginSession(t, api)
	csrf := fetchCSRFToken(t, api)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
	req.AddCookie(cookie)
	req.Header.Set("X-CSRF-Token", csrf)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var cleared *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			cleared = c
		}
	}
	if cleared == nil || cleared.MaxAge >= 0 {
		t.Fatalf("expected expired session cookie, got %v", cleared)
	}
}

func TestBarcodeLookup(t *testing.T) {
	api := newTestAPI(t)
	cookie := loginSession(t, api)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/barcode/7894900011517", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body struct {
		Product domain.Product `json:"product"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Product.Name != "Coca-Cola Lata" {
		t.Fatalf("expected Coca-Cola Lata, got %q", body.Product.Name)
	}

	// Unknown barcode maps to 404.
	req = httptest.NewRequest(http.MethodGet, "/api/v1/products/barcode/0000000000000", nil)
	req.AddCookie(cookie)
	rec = httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown barcode, got %d", rec.Code)
	}
}

func TestRecordSaleEndpoint(t *testing.T) {
	api := newTestAPI(t)
	cookie := loginSession(t, api)
	csrf := fetchCSRFToken(t, api)

	// Find a seeded product to sell.
	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	listReq.AddCookie(cookie)
	listRec := httptest.NewRecorder()
	api.Handler().ServeHTTP(listRec, listReq)
	if listRec.Code != http.StatusOK {
		t.Fatalf("list products failed: %d", listRec.Code)
	}
	var listBody struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listBody); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(listBody.Products) == 0 {
		t.Fatalf("expected seeded products")
	}
	target := listBody.Products[0]

	payload, _ := json.Marshal(domain.SaleRequest{
		Lines: []domain.CartLine{
			{Kind: domain.LineKindProduct, ItemID: target.ID, Qty: 2},
		},
		PaymentMethod: domain.PaymentPix,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var saleBody struct {
		Sale domain.Sale `json:"sale"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&saleBody); err != nil {
		t.Fatalf("decode sale: %v", err)
	}
	if want := 2 * target.PriceCents; saleBody.Sale.TotalCents != want {
		t.Fatalf("expected total %d, got %d", want, saleBody.Sale.TotalCents)
	}
}

func TestRecordSaleEndpoint_EmptyCart(t *testing.T) {
	api := newTestAPI(t)
	cookie := loginSession(t, api)
	csrf := fetchCSRFToken(t, api)

	payload, _ := json.Marshal(domain.SaleRequest{
		Lines:         nil,
		PaymentMethod: domain.PaymentCash,
	})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/sales", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d (body: %s)", rec.Code, rec.Body.String())
	}
}

func TestRegisterFlow(t *testing.T) {
	api := newTestAPI(t)
	cookie := loginSession(t, api)
	csrf := fetchCSRFToken(t, api)

	post := func(path string, payload any) *httptest.ResponseRecorder {
		t.Helper()
		raw, _ := json.Marshal(payload)
		req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-CSRF-Token", csrf)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		api.Handler().ServeHTTP(rec, req)
		return rec
	}

	if rec := post("/api/v1/register/open", domain.CashMovementRequest{AmountCents: 10000}); rec.Code != http.StatusOK {
		t.Fatalf("open register: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	// A second open while the register has activity conflicts.
	if rec := post("/api/v1/register/open", domain.CashMovementRequest{AmountCents: 5000}); rec.Code != http.StatusConflict {
		t.Fatalf("reopen register: expected 409, got %d", rec.Code)
	}
	if rec := post("/api/v1/register/cash-in", domain.CashMovementRequest{AmountCents: 500}); rec.Code != http.StatusOK {
		t.Fatalf("cash-in: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if rec := post("/api/v1/register/cash-out", domain.CashMovementRequest{AmountCents: 2000}); rec.Code != http.StatusOK {
		t.Fatalf("cash-out: expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	if rec := post("/api/v1/register/expenses", domain.ExpenseCreateRequest{Description: "gelo", AmountCents: 1200}); rec.Code != http.StatusCreated {
		t.Fatalf("expense: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}
	// Zero-amount movement is rejected.
	if rec := post("/api/v1/register/cash-in", domain.CashMovementRequest{AmountCents: 0}); rec.Code != http.StatusBadRequest {
		t.Fatalf("zero cash-in: expected 400, got %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/register", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get register: expected 200, got %d", rec.Code)
	}

	var body domain.RegisterResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	if want := int64(10000 + 500 - 2000 - 1200); body.BalanceCents != want {
		t.Fatalf("expected balance %d, got %d", want, body.BalanceCents)
	}
}

func TestStateRevBumpsAfterMutation(t *testing.T) {
	api := newTestAPI(t)
	cookie := loginSession(t, api)
	csrf := fetchCSRFToken(t, api)

	readRev := func() int64 {
		t.Helper()
		req := httptest.NewRequest(http.MethodGet, "/api/v1/state/rev", nil)
		req.AddCookie(cookie)
		rec := httptest.NewRecorder()
		api.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("state/rev: expected 200, got %d", rec.Code)
		}
		var body struct {
			Rev int64 `json:"rev"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("decode rev: %v", err)
		}
		return body.Rev
	}

	before := readRev()

	payload, _ := json.Marshal(domain.NoteCreateRequest{Author: "turno-manha", Message: "comprar guardanapos"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/notes", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create note: expected 201, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	if after := readRev(); after <= before {
		t.Fatalf("expected revision to advance past %d, got %d", before, after)
	}
}

func TestForecastEndpoint(t *testing.T) {
	api := newTestAPI(t)
	cookie := loginSession(t, api)
	csrf := fetchCSRFToken(t, api)

	listReq := httptest.NewRequest(http.MethodGet, "/api/v1/products", nil)
	listReq.AddCookie(cookie)
	listRec := httptest.NewRecorder()
	api.Handler().ServeHTTP(listRec, listReq)
	var listBody struct {
		Products []domain.Product `json:"products"`
	}
	if err := json.NewDecoder(listRec.Body).Decode(&listBody); err != nil {
		t.Fatalf("decode products: %v", err)
	}
	if len(listBody.Products) == 0 {
		t.Fatalf("expected seeded products")
	}

	payload, _ := json.Marshal(domain.ForecastRequest{ProductID: listBody.Products[0].ID})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/stock/forecast", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-CSRF-Token", csrf)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body: %s)", rec.Code, rec.Body.String())
	}

	var body domain.ForecastResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode forecast: %v", err)
	}
	if body.Reasoning == "" {
		t.Fatalf("expected reasoning in forecast response")
	}
}

// loginSession performs a login with the test access key and returns the
// session cookie.
func loginSession(t *testing.T, api *API) *http.Cookie {
	t.Helper()

	payload, _ := json.Marshal(domain.LoginRequest{AccessKey: "pastel123"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()

	api.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login failed, status %d (body: %s)", rec.Code, rec.Body.String())
	}

	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatalf("login response missing session cookie")
	return nil
}
