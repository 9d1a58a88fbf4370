package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/swag-store/internal/domain/order"
)

// Quote prices {items, coupon_code} without placing an order.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var (
		items []order.LineRequest
		code  string
	)
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items", "cart_items":
			items, err = decodeLines(d)
		case "coupon_code":
			code, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.Orders.Quote(r.Context(), items, code)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeQuote(e, q) })
}

// AnalyzeCoupons lists every active coupon with its applicability to
// {cart_items, user_key}.
func (h *Handler) AnalyzeCoupons(w http.ResponseWriter, r *http.Request) {
	var (
		items   []order.LineRequest
		userKey string
	)
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "items", "cart_items":
			items, err = decodeLines(d)
		case "user_key":
			userKey, err = decodeString(d)
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	offers, err := h.Orders.Offers(r.Context(), userKey, items)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, o := range offers {
			encodeOffer(e, o)
		}
		e.ArrEnd()
	})
}

// Checkout places an order. The totals are recomputed server side; on
// success the user's cart is cleared and cached analytics are dropped.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req order.PlaceOrderRequest
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "user_key":
			req.UserKey, err = decodeString(d)
		case "user_name":
			req.UserName, err = decodeString(d)
		case "items":
			req.Items, err = decodeLines(d)
		case "coupon_code":
			req.CouponCode, err = decodeString(d)
		case "total_amount":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var total decimal.Decimal
			total, err = decodeDecimal(d)
			req.ClientTotal = &total
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}

	ctx := r.Context()
	o, err := h.Orders.PlaceOrder(ctx, req)
	if err != nil {
		fail(w, r, err)
		return
	}

	lg := zctx.From(ctx)
	if o.UserKey != "" {
		if err := h.Carts.Clear(ctx, o.UserKey); err != nil {
			lg.Warn("Clear cart after checkout", zap.Error(err))
		}
	}
	if err := h.Analytics.Invalidate(ctx); err != nil {
		lg.Warn("Invalidate analytics cache", zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("success")
			e.Bool(true)
			e.FieldStart("order_id")
			e.Str(o.ID)
			e.FieldStart("order")
			encodeOrder(e, *o)
		})
	})
}

// OrderHistory lists the orders of ?user_key=, newest first.
func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	orders, err := h.Orders.History(r.Context(), r.URL.Query().Get("user_key"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("orders")
			encodeOrders(e, orders)
		})
	})
}
