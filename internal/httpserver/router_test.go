package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"storefront/internal/domain"
	"storefront/internal/gateway/gatewaytest"
	"storefront/internal/repository/clientstate"
	"storefront/internal/shopper"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const browserUA = "Mozilla/5.0 (Macintosh; Intel Mac OS X 14_5) AppleWebKit/605.1.15 Version/17.5 Safari/605.1.15"

type testClient struct {
	t      *testing.T
	router *gin.Engine
	cookie *http.Cookie
}

func newTestClient(t *testing.T, backend *gatewaytest.Backend) *testClient {
	t.Helper()
	gin.SetMode(gin.TestMode)
	registry := shopper.NewRegistry(clientstate.NewMemory(), shopper.Options{
		BackendBaseURL: backend.URL(),
		Locale:         "en",
		ShareBaseURL:   "https://shop.example.vn",
		IdleTTL:        time.Minute,
		QuantityDelay:  20 * time.Millisecond,
	}, zerolog.Nop())
	t.Cleanup(registry.Close)
	router := buildRouter(zerolog.Nop(), Deps{Registry: registry, CORSOrigins: []string{"http://localhost:3000"}})
	return &testClient{t: t, router: router}
}

func (tc *testClient) do(method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	tc.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(tc.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", browserUA)
	if tc.cookie != nil {
		req.AddCookie(tc.cookie)
	}
	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == visitorCookie {
			tc.cookie = ck
		}
	}
	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(tc.t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func cartItems(t *testing.T, body map[string]interface{}) []interface{} {
	t.Helper()
	state, ok := body["cart"].(map[string]interface{})
	require.True(t, ok, "cart state missing: %v", body)
	items, _ := state["cart_items"].([]interface{})
	return items
}

func TestHealthz(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)

	rec, body := tc.do(http.MethodGet, "/healthz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestReadyzPingsStorage(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)

	rec, body := tc.do(http.MethodGet, "/readyz", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ready", body["status"])
}

func TestGetCartIssuesVisitorCookie(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)

	rec, body := tc.do(http.MethodGet, "/api/storefront/cart", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, tc.cookie)
	assert.True(t, tc.cookie.HttpOnly)
	assert.Empty(t, cartItems(t, body))

	first := tc.cookie.Value
	tc.do(http.MethodGet, "/api/storefront/cart", nil)
	assert.Equal(t, first, tc.cookie.Value)
	assert.Equal(t, 1, backend.Calls("POST /cart_sessions"))
}

func TestAddUpdateRemoveItem(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)
	tc.do(http.MethodGet, "/api/storefront/cart", nil)

	rec, body := tc.do(http.MethodPost, "/api/storefront/cart/items", map[string]interface{}{"product_id": "p-1", "quantity": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, cartItems(t, body), 1)
	assert.EqualValues(t, 2, body["total_items"])
	summary := body["cart"].(map[string]interface{})["cart_summary"].(map[string]interface{})
	assert.EqualValues(t, 200000, summary["subtotal"])
	assert.EqualValues(t, 200000, summary["total"])

	rec, body = tc.do(http.MethodPatch, "/api/storefront/cart/items/line-p-1", map[string]interface{}{"quantity": 0})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, cartItems(t, body))
	assert.Equal(t, 1, backend.Calls("DELETE /carts/remove_item"))
	assert.Zero(t, backend.Calls("PUT /carts/update_item"))
}

func TestAddItemValidation(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)

	rec, body := tc.do(http.MethodPost, "/api/storefront/cart/items", map[string]interface{}{"quantity": 1})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_request_body", body["error"])
}

func TestIncrementIsDebounced(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)
	tc.do(http.MethodGet, "/api/storefront/cart", nil)
	tc.do(http.MethodPost, "/api/storefront/cart/items", map[string]interface{}{"product_id": "p-1", "quantity": 1})

	var body map[string]interface{}
	for i := 0; i < 3; i++ {
		var rec *httptest.ResponseRecorder
		rec, body = tc.do(http.MethodPost, "/api/storefront/cart/items/line-p-1/increment", nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}
	assert.EqualValues(t, 4, body["displayed"])

	require.Eventually(t, func() bool {
		return backend.Calls("PUT /carts/update_item") == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		_, b := tc.do(http.MethodGet, "/api/storefront/cart?silent=true", nil)
		items := cartItems(t, b)
		return len(items) == 1 && items[0].(map[string]interface{})["quantity"] == float64(4)
	}, 2*time.Second, 20*time.Millisecond)
	assert.Equal(t, 1, backend.Calls("PUT /carts/update_item"))
}

func TestIncrementUnknownLine(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)

	rec, _ := tc.do(http.MethodPost, "/api/storefront/cart/items/nope/increment", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPromoCodesFlow(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)
	tc.do(http.MethodGet, "/api/storefront/cart", nil)
	tc.do(http.MethodPost, "/api/storefront/cart/items", map[string]interface{}{"product_id": "p-1", "quantity": 2})

	rec, _ := tc.do(http.MethodPost, "/api/storefront/cart/promo-codes", map[string]string{"code": "bogus"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec, body := tc.do(http.MethodPost, "/api/storefront/cart/promo-codes/apply", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.NotNil(t, body["state"])

	tc.do(http.MethodDelete, "/api/storefront/cart/promo-codes/BOGUS", nil)
	rec, _ = tc.do(http.MethodPost, "/api/storefront/cart/promo-codes", map[string]string{"code": "sale10"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec, body = tc.do(http.MethodPost, "/api/storefront/cart/promo-codes/apply", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	summary := body["cart"].(map[string]interface{})["cart_summary"].(map[string]interface{})
	assert.EqualValues(t, 20000, summary["discount"])
	assert.EqualValues(t, 180000, summary["total"])
	assert.Empty(t, body["promo_codes"])

	rec, body = tc.do(http.MethodPost, "/api/storefront/cart/promo-codes", map[string]string{"code": "no spaces"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "validation_failed", body["error"])
	assert.Equal(t, map[string]interface{}{"code": "The promo code is not valid."}, body["fields"])
}

func TestEmailCartReturnsShareLinkAndMergeWorks(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	sender := newTestClient(t, backend)
	sender.do(http.MethodGet, "/api/storefront/cart", nil)
	sender.do(http.MethodPost, "/api/storefront/cart/items", map[string]interface{}{"product_id": "p-1", "quantity": 1})

	rec, body := sender.do(http.MethodPost, "/api/storefront/cart/email", map[string]interface{}{"email": "friend@example.vn"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "https://shop.example.vn/cart/shared?token=share-cart-1", body["share_url"])

	recipient := &testClient{t: t, router: sender.router}
	recipient.do(http.MethodGet, "/api/storefront/cart", nil)
	rec, body = recipient.do(http.MethodPost, "/api/storefront/cart/merge", map[string]string{"access_token": "share-cart-1"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Len(t, cartItems(t, body), 1)
	notes, _ := body["notifications"].([]interface{})
	require.Len(t, notes, 1)
	assert.Equal(t, "success", notes[0].(map[string]interface{})["level"])
}

func TestEmailCartInvalidAddress(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)

	rec, _ := tc.do(http.MethodPost, "/api/storefront/cart/email", map[string]interface{}{"email": "nope"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Zero(t, backend.Calls("POST /carts/email"))
}

func TestCheckoutFlow(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)
	tc.do(http.MethodGet, "/api/storefront/cart", nil)
	tc.do(http.MethodPost, "/api/storefront/cart/items", map[string]interface{}{"product_id": "p-1", "quantity": 1})

	rec, body := tc.do(http.MethodGet, "/api/storefront/checkout", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	form := body["checkout"].(map[string]interface{})["form"].(map[string]interface{})
	assert.Equal(t, "welcome", form["checkout_step"])

	rec, _ = tc.do(http.MethodPost, "/api/storefront/checkout/shipping", map[string]string{"shipping_method": "ship_to_address"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = tc.do(http.MethodPost, "/api/storefront/checkout/welcome", map[string]string{"email": "guest@example.vn"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = tc.do(http.MethodPost, "/api/storefront/checkout/shipping", map[string]string{"shipping_method": "ship_to_address", "phone_number": "0912345678"})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	fields := body["fields"].(map[string]interface{})
	assert.Contains(t, fields, "address")

	rec, _ = tc.do(http.MethodPost, "/api/storefront/checkout/shipping", map[string]string{
		"shipping_method": "ship_to_address",
		"name":            "Trần Thị B",
		"phone_number":    "0912345678",
		"address":         "5 Hai Bà Trưng",
		"ward":            "Bến Nghé",
		"city":            "Hồ Chí Minh",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = tc.do(http.MethodPost, "/api/storefront/checkout/payment-method", map[string]string{"payment_method": "installment"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec, _ = tc.do(http.MethodPost, "/api/storefront/checkout/payment-method", map[string]string{"payment_method": "cod"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = tc.do(http.MethodPost, "/api/storefront/checkout/submit", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "SF-0001", body["order"].(map[string]interface{})["order_number"])
	assert.Empty(t, body["redirect_url"])
	form = body["checkout"].(map[string]interface{})["form"].(map[string]interface{})
	assert.Equal(t, "success", form["checkout_step"])

	orders := backend.Orders()
	require.Len(t, orders, 1)
	assert.Equal(t, "cod", orders[0].PaymentMethod)
	assert.Equal(t, "Bến Nghé", orders[0].ShippingAddress.Ward)
}

func TestCheckoutOrderConflict(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	backend.OrderStatus = http.StatusConflict
	tc := newTestClient(t, backend)
	tc.do(http.MethodGet, "/api/storefront/cart", nil)
	tc.do(http.MethodPost, "/api/storefront/checkout/welcome", map[string]string{"email": "guest@example.vn"})
	tc.do(http.MethodPost, "/api/storefront/checkout/shipping", map[string]string{
		"shipping_method":  "pick_up_at_store",
		"phone_number":     "0912345678",
		"store_address_id": "store-1",
	})
	tc.do(http.MethodPost, "/api/storefront/checkout/payment-method", map[string]string{"payment_method": "cod"})

	rec, body := tc.do(http.MethodPost, "/api/storefront/checkout/submit", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	oe := body["order_error"].(map[string]interface{})
	assert.Equal(t, "conflict", oe["kind"])
}

func TestEditStep(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)
	tc.do(http.MethodGet, "/api/storefront/cart", nil)
	tc.do(http.MethodPost, "/api/storefront/checkout/welcome", map[string]string{"email": "guest@example.vn"})

	rec, _ := tc.do(http.MethodPost, "/api/storefront/checkout/edit/payment", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec, _ = tc.do(http.MethodPost, "/api/storefront/checkout/edit/bogus", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, body := tc.do(http.MethodPost, "/api/storefront/checkout/edit/welcome", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	form := body["checkout"].(map[string]interface{})["form"].(map[string]interface{})
	assert.Equal(t, "welcome", form["checkout_step"])
	assert.Equal(t, "guest@example.vn", form["email"])
}

func TestStoresAndRelatedProducts(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)
	tc.do(http.MethodGet, "/api/storefront/cart", nil)

	rec, body := tc.do(http.MethodGet, "/api/storefront/checkout/stores", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["store_addresses"], 1)

	rec, body = tc.do(http.MethodGet, "/api/storefront/cart/related-products", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, body["related_products"], 1)
}

func TestProfileSignInAndOut(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	tc := newTestClient(t, backend)
	tc.do(http.MethodGet, "/api/storefront/cart", nil)
	tc.do(http.MethodPost, "/api/storefront/cart/items", map[string]interface{}{"product_id": "p-1", "quantity": 1})

	rec, _ := tc.do(http.MethodPut, "/api/storefront/profile", map[string]string{"id": "u-1", "email": "member@example.vn"})
	require.Equal(t, http.StatusOK, rec.Code)
	_, body := tc.do(http.MethodGet, "/api/storefront/checkout", nil)
	form := body["checkout"].(map[string]interface{})["form"].(map[string]interface{})
	assert.Equal(t, true, form["authenticated_session"])

	rec, body = tc.do(http.MethodDelete, "/api/storefront/profile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, cartItems(t, body))
	assert.EqualValues(t, 0, body["total_items"])
	assert.Equal(t, 2, backend.Calls("POST /cart_sessions"))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrStepLocked, http.StatusConflict},
		{domain.ErrSubmitInProgress, http.StatusConflict},
		{domain.ErrInvalidEmail, http.StatusUnprocessableEntity},
		{&domain.APIError{StatusCode: http.StatusUnprocessableEntity}, http.StatusUnprocessableEntity},
		{&domain.APIError{Message: "network error"}, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestShutdownWithoutStart(t *testing.T) {
	gin.SetMode(gin.TestMode)
	srv := New(":0", zerolog.Nop(), Deps{})
	assert.NoError(t, srv.Shutdown(context.Background()))
}

type countingRepo struct {
	clientstate.Repository
	sets atomic.Int64
}

func (r *countingRepo) Set(ctx context.Context, owner, key string, value []byte) error {
	r.sets.Add(1)
	return r.Repository.Set(ctx, owner, key, value)
}

func TestCrawlersLeaveNoVisitorState(t *testing.T) {
	backend := gatewaytest.New()
	defer backend.Close()
	gin.SetMode(gin.TestMode)
	repo := &countingRepo{Repository: clientstate.NewMemory()}
	registry := shopper.NewRegistry(repo, shopper.Options{BackendBaseURL: backend.URL(), Locale: "en"}, zerolog.Nop())
	t.Cleanup(registry.Close)
	router := buildRouter(zerolog.Nop(), Deps{Registry: registry})

	for i := 0; i < 20; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/storefront/cart", nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Result().Cookies())
	}

	assert.Zero(t, registry.Len())
	assert.Zero(t, repo.sets.Load())
	assert.Zero(t, backend.Calls("POST /cart_sessions"))
}
