package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/swag-store/internal/domain/analytics"
	"github.com/xenking/swag-store/internal/domain/auth"
	"github.com/xenking/swag-store/internal/domain/cart"
	"github.com/xenking/swag-store/internal/domain/coupon"
	"github.com/xenking/swag-store/internal/domain/order"
	"github.com/xenking/swag-store/internal/domain/product"
	"github.com/xenking/swag-store/internal/domain/stock"
	"github.com/xenking/swag-store/internal/domain/user"
	"github.com/xenking/swag-store/internal/storage/redis"
)

const (
	adminKey  = "admin-secret"
	readerKey = "reader-secret"
	guestKey  = "3f1c7a9e-2b4d-4e8f-9a6b-1c2d3e4f5a6b"
)

var pepper = []byte("pepper")

type fixture struct {
	router   http.Handler
	mr       *miniredis.Miniredis
	products *memProducts
	coupons  *memCoupons
	orders   *memOrders
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	products := &memProducts{byID: map[string]*product.Product{
		"hoodie": {
			ID: "hoodie", Name: "Hoodie", Price: decimal.NewFromInt(50), Category: "Clothing", Stock: 10,
			Image: "img/hoodie.png",
			PricingTiers: []product.PricingTier{
				{MinQuantity: 5, DiscountPercentage: decimal.NewFromInt(10)},
				{MinQuantity: 10, DiscountPercentage: decimal.NewFromInt(20)},
			},
		},
		"mug": {ID: "mug", Name: "Mug", Price: decimal.NewFromInt(12), Category: "Accessories", Stock: 100},
	}}
	expired := now.Add(-time.Hour)
	coupons := &memCoupons{byCode: map[string]coupon.Coupon{
		"TEN": {Code: "TEN", DiscountType: coupon.DiscountPercentage, DiscountValue: decimal.NewFromInt(10), Active: true},
		"BIG": {
			Code: "BIG", DiscountType: coupon.DiscountFixed, DiscountValue: decimal.NewFromInt(20),
			MinOrderValue: decimal.NewFromInt(1000), Active: true,
		},
		"OLD": {Code: "OLD", DiscountType: coupon.DiscountFixed, DiscountValue: decimal.NewFromInt(5), ExpiresAt: &expired, Active: true},
	}}
	orders := &memOrders{}
	keys := &memKeys{byHash: map[string]*auth.APIKeyInfo{
		auth.Hash(pepper, adminKey):  {ID: "1", KeyHash: auth.Hash(pepper, adminKey), Scopes: []string{auth.ScopeAdmin}},
		auth.Hash(pepper, readerKey): {ID: "2", KeyHash: auth.Hash(pepper, readerKey)},
	}}

	orderSvc, err := order.NewService(products, coupons, coupons, orders,
		order.WithTracerProvider(tracenoop.NewTracerProvider()),
		order.WithMeterProvider(metricnoop.NewMeterProvider()),
		order.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	h := New(Config{ImageBaseURL: "https://cdn.example.com/"}, Deps{
		Products:  products,
		Catalog:   product.NewService(products),
		Carts:     cart.NewService(redis.NewCartStore(client, time.Hour), products),
		Orders:    orderSvc,
		Coupons:   coupons,
		Stock:     stock.NewService(&memStock{products: products}),
		Users:     user.NewService(memUsers{}),
		Analytics: analytics.NewService(stubAnalytics{}, redis.NewCache(client, "analytics:", time.Minute)),
		Auth:      auth.NewAuthenticator(keys, pepper),
	})
	r := chi.NewRouter()
	r.Route("/api", h.Routes)

	return &fixture{router: r, mr: mr, products: products, coupons: coupons, orders: orders}
}

type response struct {
	Code int
	Body map[string]any
	List []any
}

func (f *fixture) do(t *testing.T, method, path, body string, apiKey ...string) response {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if len(apiKey) > 0 {
		req.Header.Set(HeaderAPIKey, apiKey[0])
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	res := response{Code: w.Code}
	if w.Body.Len() == 0 {
		return res
	}
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	if strings.HasPrefix(w.Body.String(), "[") {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res.List), w.Body.String())
	} else {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res.Body), w.Body.String())
	}
	return res
}

func obj(v any) map[string]any { return v.(map[string]any) }

func TestProducts(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/api/products", "")
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, res.List, 2)

	hoodie := obj(res.List[0])
	assert.Equal(t, "hoodie", hoodie["id"])
	assert.Equal(t, "https://cdn.example.com/img/hoodie.png", hoodie["image"])
	entry := obj(hoodie["entry_tier"])
	assert.EqualValues(t, 5, entry["min_quantity"])
	assert.EqualValues(t, 45, entry["unit_price"])
	assert.Nil(t, obj(res.List[1])["entry_tier"])

	res = f.do(t, http.MethodGet, "/api/products?category=Accessories", "")
	require.Len(t, res.List, 1)
	assert.Equal(t, "mug", obj(res.List[0])["id"])

	res = f.do(t, http.MethodGet, "/api/products?search=hood", "")
	require.Len(t, res.List, 1)

	res = f.do(t, http.MethodGet, "/api/products/ghost", "")
	assert.Equal(t, http.StatusNotFound, res.Code)
	assert.EqualValues(t, http.StatusNotFound, res.Body["code"])
}

func TestPriceProduct(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		query     string
		wantCode  int
		wantUnit  float64
		wantTotal float64
		wantBulk  bool
	}{
		{query: "", wantCode: http.StatusOK, wantUnit: 50, wantTotal: 50},
		{query: "?quantity=5", wantCode: http.StatusOK, wantUnit: 45, wantTotal: 225, wantBulk: true},
		{query: "?quantity=12", wantCode: http.StatusOK, wantUnit: 40, wantTotal: 480, wantBulk: true},
		{query: "?quantity=0", wantCode: http.StatusBadRequest},
		{query: "?quantity=abc", wantCode: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			res := f.do(t, http.MethodGet, "/api/products/hoodie/price"+tt.query, "")
			require.Equal(t, tt.wantCode, res.Code)
			if tt.wantCode != http.StatusOK {
				return
			}
			assert.EqualValues(t, tt.wantUnit, res.Body["unit_price"])
			assert.EqualValues(t, tt.wantTotal, res.Body["line_total"])
			assert.Equal(t, tt.wantBulk, res.Body["bulk_eligible"])
		})
	}
}

func TestCart(t *testing.T) {
	f := newFixture(t)
	base := "/api/cart/" + guestKey

	res := f.do(t, http.MethodPost, base+"/items", `{"product_id":"hoodie","quantity":4}`)
	require.Equal(t, http.StatusOK, res.Code)
	res = f.do(t, http.MethodPost, base+"/items", `{"product_id":"hoodie"}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.EqualValues(t, 5, res.Body["count"])
	totals := obj(res.Body["totals"])
	assert.EqualValues(t, 250, totals["subtotal"])
	assert.EqualValues(t, 225, totals["total"])

	res = f.do(t, http.MethodPost, base+"/items", `{"product_id":"ghost","quantity":1}`)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = f.do(t, http.MethodPost, base+"/items", `{"product_id":"mug","quantity":1}`)
	require.Equal(t, http.StatusOK, res.Code)
	res = f.do(t, http.MethodPut, base+"/items/mug", `{"quantity":3}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["items"], 2)
	assert.EqualValues(t, 8, res.Body["count"])

	res = f.do(t, http.MethodPut, base+"/items/mug", `{}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodDelete, base+"/items/hoodie", "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.EqualValues(t, 3, res.Body["count"])

	res = f.do(t, http.MethodDelete, base, "")
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = f.do(t, http.MethodGet, base, "")
	assert.EqualValues(t, 0, res.Body["count"])

	res = f.do(t, http.MethodPost, base+"/items", `{"product_id":`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestQuote(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/api/quote", `{"items":[{"product_id":"hoodie","quantity":5}],"coupon_code":"ten"}`)
	require.Equal(t, http.StatusOK, res.Code)
	totals := obj(res.Body["totals"])
	assert.EqualValues(t, 250, totals["subtotal"])
	assert.EqualValues(t, 25, totals["bulk_savings"])
	assert.EqualValues(t, 22.5, totals["coupon_savings"])
	assert.EqualValues(t, 202.5, totals["total"])
	assert.Equal(t, "TEN", obj(res.Body["coupon"])["code"])

	res = f.do(t, http.MethodPost, "/api/quote", `{"items":[{"product_id":"hoodie","quantity":1}],"coupon_code":"BIG"}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, true, obj(res.Body["totals"])["coupon_criteria_unmet"])

	res = f.do(t, http.MethodPost, "/api/quote", `{"items":[{"product_id":"hoodie","quantity":1}],"coupon_code":"NOPE"}`)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestAnalyzeCoupons(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/api/coupons/analyze",
		`{"cart_items":[{"product_id":"mug","quantity":2}],"user_key":null}`)
	require.Equal(t, http.StatusOK, res.Code)
	require.Len(t, res.List, 3)

	first := obj(res.List[0])
	assert.Equal(t, "TEN", first["code"])
	assert.Equal(t, true, first["is_applicable"])
	assert.EqualValues(t, 2.4, first["potential_savings"])
	assert.Nil(t, first["error_reason"])

	second := obj(res.List[1])
	assert.Equal(t, "BIG", second["code"])
	assert.Equal(t, false, second["is_applicable"])
	assert.Equal(t, "Minimum order of $1000.00 required", second["error_reason"])

	third := obj(res.List[2])
	assert.Equal(t, "OLD", third["code"])
	assert.Equal(t, "Expired", third["error_reason"])
	assert.EqualValues(t, 0, third["potential_savings"])
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	cacheKey := "analytics:2026-05-03:2026-06-02"
	require.NoError(t, f.mr.Set(cacheKey, "{}"))

	f.do(t, http.MethodPost, "/api/cart/"+guestKey+"/items", `{"product_id":"hoodie","quantity":5}`)

	res := f.do(t, http.MethodPost, "/api/checkout", `{
		"user_key":"`+guestKey+`","user_name":"Sam",
		"items":[{"product_id":"hoodie","quantity":5,"price":45}],
		"coupon_code":"TEN","subtotal":250,"discount_amount":22.5,"total_amount":1
	}`)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, true, res.Body["success"])
	o := obj(res.Body["order"])
	assert.Equal(t, res.Body["order_id"], o["order_id"])
	assert.EqualValues(t, 202.5, o["total_amount"])
	assert.EqualValues(t, 22.5, o["discount_amount"])
	assert.Equal(t, "TEN", o["coupon_code_used"])

	require.Len(t, f.orders.orders, 1)
	assert.False(t, f.mr.Exists("cart:"+guestKey), "cart cleared")
	assert.False(t, f.mr.Exists(cacheKey), "analytics cache dropped")

	res = f.do(t, http.MethodGet, "/api/orders/history?user_key="+guestKey, "")
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.Body["orders"], 1)
}

func TestCheckout_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "empty items", body: `{"items":[]}`, want: http.StatusBadRequest},
		{name: "bad quantity", body: `{"items":[{"product_id":"mug","quantity":0}]}`, want: http.StatusBadRequest},
		{name: "unknown product", body: `{"items":[{"product_id":"ghost","quantity":1}]}`, want: http.StatusUnprocessableEntity},
		{name: "insufficient stock", body: `{"items":[{"product_id":"hoodie","quantity":11}]}`, want: http.StatusUnprocessableEntity},
		{name: "unknown coupon", body: `{"items":[{"product_id":"mug","quantity":1}],"coupon_code":"NOPE"}`, want: http.StatusNotFound},
		{name: "expired coupon", body: `{"items":[{"product_id":"mug","quantity":1}],"coupon_code":"OLD"}`, want: http.StatusUnprocessableEntity},
		{name: "minimum not met", body: `{"items":[{"product_id":"mug","quantity":1}],"coupon_code":"BIG"}`, want: http.StatusUnprocessableEntity},
		{name: "malformed", body: `[1,2]`, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.do(t, http.MethodPost, "/api/checkout", tt.body)
			assert.Equal(t, tt.want, res.Code, res.Body)
			assert.EqualValues(t, tt.want, res.Body["code"])
			assert.NotEmpty(t, res.Body["message"])
		})
	}
	assert.Empty(t, f.orders.orders)
}

func TestOrderHistory_RequiresUserKey(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodGet, "/api/orders/history", "")
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Equal(t, map[string]any{"user_key": "is required"}, res.Body["details"])
}

func TestGuest(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/api/auth/guest", `{"key":"`+guestKey+`","name":"  Sam  "}`)
	require.Equal(t, http.StatusOK, res.Code)
	u := obj(res.Body["user"])
	assert.Equal(t, guestKey, u["key"])
	assert.Equal(t, "Sam", u["name"])

	res = f.do(t, http.MethodPost, "/api/auth/guest", `{"name":"Alex"}`)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, obj(res.Body["user"])["key"], 36)

	res = f.do(t, http.MethodPost, "/api/auth/guest", `{"key":"not-a-uuid","name":""}`)
	require.Equal(t, http.StatusBadRequest, res.Code)
	details := obj(res.Body["details"])
	assert.Contains(t, details, "user_key")
	assert.Contains(t, details, "name")
}

func TestAdmin_Auth(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		key  []string
		want int
	}{
		{name: "missing", want: http.StatusUnauthorized},
		{name: "unknown", key: []string{"nope"}, want: http.StatusUnauthorized},
		{name: "no admin scope", key: []string{readerKey}, want: http.StatusForbidden},
		{name: "admin", key: []string{adminKey}, want: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.do(t, http.MethodGet, "/api/admin/coupons", "", tt.key...)
			assert.Equal(t, tt.want, res.Code)
		})
	}
}

func TestAdmin_Products(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/api/admin/products",
		`{"name":"Cap","price":"15.00","category":"Clothing","stock":20,"pricing_tiers":[{"min_quantity":3,"discount_percentage":5}]}`,
		adminKey)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	created := obj(res.Body["product"])
	id := created["id"].(string)
	assert.Len(t, id, 36)
	assert.Contains(t, f.products.byID, id)

	res = f.do(t, http.MethodPost, "/api/admin/products",
		`{"name":"","price":-1,"category":"Clothing","pricing_tiers":[{"min_quantity":0,"discount_percentage":150}]}`, adminKey)
	require.Equal(t, http.StatusBadRequest, res.Code)
	details := obj(res.Body["details"])
	assert.Contains(t, details, "name")
	assert.Contains(t, details, "price")
	assert.Contains(t, details, "pricing_tiers[0].min_quantity")
	assert.Contains(t, details, "pricing_tiers[0].discount_percentage")

	res = f.do(t, http.MethodPut, "/api/admin/products/"+id, `{"price":12}`, adminKey)
	require.Equal(t, http.StatusOK, res.Code)
	assert.True(t, decimal.NewFromInt(12).Equal(f.products.byID[id].Price))
	assert.Equal(t, "Cap", f.products.byID[id].Name)

	res = f.do(t, http.MethodPut, "/api/admin/products/"+id+"/tiers",
		`{"pricing_tiers":[{"min_quantity":10,"discount_percentage":25,"is_active":false}]}`, adminKey)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Nil(t, obj(res.Body["product"])["entry_tier"])

	res = f.do(t, http.MethodDelete, "/api/admin/products/"+id, "", adminKey)
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = f.do(t, http.MethodDelete, "/api/admin/products/"+id, "", adminKey)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestAdmin_Stock(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/api/admin/stock/update", `{"product_id":"mug","adjustment":-10}`, adminKey)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, 90, f.products.byID["mug"].Stock)

	res = f.do(t, http.MethodPost, "/api/admin/stock/update",
		`[{"product_id":"mug","adjustment":5,"reason":"recount"},{"product_id":"hoodie","adjustment":2}]`, adminKey)
	require.Equal(t, http.StatusOK, res.Code)
	entries := res.Body["entries"].([]any)
	require.Len(t, entries, 2)
	assert.Equal(t, "recount", obj(entries[0])["reason"])
	assert.Equal(t, stock.ReasonManual, obj(entries[1])["reason"])
	assert.EqualValues(t, 12, obj(entries[1])["new_stock_level"])

	res = f.do(t, http.MethodPost, "/api/admin/stock/update", `{"product_id":"mug","adjustment":-1000}`, adminKey)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Code)

	res = f.do(t, http.MethodPost, "/api/admin/stock/update", `{"product_id":"ghost","adjustment":1}`, adminKey)
	assert.Equal(t, http.StatusNotFound, res.Code)

	res = f.do(t, http.MethodGet, "/api/admin/stock/history?limit=2", "", adminKey)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Len(t, res.List, 2)
}

func TestAdmin_Coupons(t *testing.T) {
	f := newFixture(t)

	res := f.do(t, http.MethodPost, "/api/admin/coupons",
		`{"code":"summer","discount_type":"percentage","discount_value":15,"target_category":"Clothing","expiration_date":"2026-09-01"}`, adminKey)
	require.Equal(t, http.StatusCreated, res.Code, res.Body)
	assert.Equal(t, "SUMMER", res.Body["code"])
	assert.Equal(t, true, res.Body["is_active"])

	res = f.do(t, http.MethodPost, "/api/admin/coupons",
		`{"code":"SUMMER","discount_type":"fixed","discount_value":1}`, adminKey)
	assert.Equal(t, http.StatusConflict, res.Code)

	res = f.do(t, http.MethodPost, "/api/admin/coupons",
		`{"code":"HUGE","discount_type":"percentage","discount_value":120}`, adminKey)
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, obj(res.Body["details"]), "discount_value")

	res = f.do(t, http.MethodPut, "/api/admin/coupons/summer", `{"is_active":false,"code":"OTHER"}`, adminKey)
	require.Equal(t, http.StatusOK, res.Code)
	c := f.coupons.byCode["SUMMER"]
	assert.False(t, c.Active)
	assert.True(t, decimal.NewFromInt(15).Equal(c.DiscountValue))
	assert.NotContains(t, f.coupons.byCode, "OTHER")

	res = f.do(t, http.MethodGet, "/api/admin/coupons", "", adminKey)
	assert.Len(t, res.List, 4)

	res = f.do(t, http.MethodDelete, "/api/admin/coupons/SUMMER", "", adminKey)
	assert.Equal(t, http.StatusNoContent, res.Code)
	res = f.do(t, http.MethodPut, "/api/admin/coupons/SUMMER", `{}`, adminKey)
	assert.Equal(t, http.StatusNotFound, res.Code)
}

func TestAdmin_OrdersAndAnalytics(t *testing.T) {
	f := newFixture(t)
	for range 3 {
		res := f.do(t, http.MethodPost, "/api/checkout", `{"user_key":"`+guestKey+`","items":[{"product_id":"mug","quantity":1}]}`)
		require.Equal(t, http.StatusCreated, res.Code)
	}

	res := f.do(t, http.MethodGet, "/api/admin/orders?page=2&limit=2", "", adminKey)
	require.Equal(t, http.StatusOK, res.Code)
	assert.EqualValues(t, 3, res.Body["total_orders_count"])
	assert.EqualValues(t, 2, res.Body["page"])
	assert.Len(t, res.Body["orders"], 1)

	res = f.do(t, http.MethodGet, "/api/admin/analytics?from=2026-05-01&to=2026-05-07", "", adminKey)
	require.Equal(t, http.StatusOK, res.Code)
	assert.Equal(t, "2026-05-01", res.Body["from"])
	assert.Equal(t, "2026-05-07", res.Body["to"])
	assert.EqualValues(t, 202.5, res.Body["total_revenue"])
	assert.Len(t, res.Body["revenue_trends"], 7)
	assert.True(t, f.mr.Exists("analytics:2026-05-01:2026-05-08"))

	res = f.do(t, http.MethodGet, "/api/admin/analytics?from=2026-05-07&to=2026-05-01", "", adminKey)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = f.do(t, http.MethodGet, "/api/admin/analytics?from=yesterday", "", adminKey)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}
