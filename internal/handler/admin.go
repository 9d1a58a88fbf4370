package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/swag-store/internal/domain/coupon"
	"github.com/xenking/swag-store/internal/domain/stock"
)

// UpdateStock applies one adjustment {product_id, adjustment, reason} or an
// array of them.
func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	var adjustments []stock.Adjustment
	decodeOne := func(d *jx.Decoder) error {
		var a stock.Adjustment
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id":
				a.ProductID, err = d.Str()
			case "adjustment", "change":
				a.Delta, err = d.Int()
			case "reason":
				a.Reason, err = decodeString(d)
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}
		adjustments = append(adjustments, a)
		return nil
	}

	body, err := readBody(w, r)
	if err != nil {
		fail(w, r, err)
		return
	}
	d := jx.DecodeBytes(body)
	if d.Next() == jx.Array {
		err = d.Arr(decodeOne)
	} else {
		err = decodeOne(d)
	}
	if err != nil {
		fail(w, r, badRequest("invalid request body: "+err.Error()))
		return
	}
	if len(adjustments) == 0 {
		fail(w, r, badRequest("no adjustments given"))
		return
	}

	entries, err := h.Stock.Adjust(r.Context(), adjustments)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("success")
			e.Bool(true)
			e.FieldStart("entries")
			e.ArrStart()
			for _, l := range entries {
				encodeStockEntry(e, l)
			}
			e.ArrEnd()
		})
	})
}

// StockHistory returns recent stock changes, ?limit= at most.
func (h *Handler) StockHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	entries, err := h.Stock.History(r.Context(), limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, l := range entries {
			encodeStockEntry(e, l)
		}
		e.ArrEnd()
	})
}

// ListCoupons returns every coupon, active or not.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.Coupons.List(r.Context(), false)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, c := range coupons {
			encodeCoupon(e, c)
		}
		e.ArrEnd()
	})
}

// CreateCoupon defines a new coupon. New coupons are active unless the body
// says otherwise.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	c := &coupon.Coupon{Active: true}
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		return decodeCoupon(d, key, c)
	}); err != nil {
		fail(w, r, err)
		return
	}
	if err := coupon.Validate(c); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Coupons.Create(r.Context(), c); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCoupon(e, *c) })
}

// UpdateCoupon applies the fields present in the body to {code}. The code
// itself cannot change.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.Coupons.FindByCode(ctx, coupon.NormalizeCode(chi.URLParam(r, "code")))
	if err != nil {
		fail(w, r, err)
		return
	}
	code := c.Code
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		return decodeCoupon(d, key, c)
	}); err != nil {
		fail(w, r, err)
		return
	}
	c.Code = code
	if err := coupon.Validate(c); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Coupons.Update(ctx, c); err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCoupon(e, *c) })
}

// DeleteCoupon removes {code}.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	if err := h.Coupons.Delete(r.Context(), coupon.NormalizeCode(chi.URLParam(r, "code"))); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListOrders pages through all orders with ?page= and ?limit=.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 1)
	if err != nil {
		fail(w, r, err)
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		fail(w, r, err)
		return
	}
	p, err := h.Orders.List(r.Context(), page, limit)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("orders")
			encodeOrders(e, p.Orders)
			e.FieldStart("total_orders_count")
			e.Int(p.Total)
			e.FieldStart("page")
			e.Int(p.Page)
			e.FieldStart("limit")
			e.Int(p.Limit)
		})
	})
}

// GetAnalytics returns the dashboard summary for ?from= and ?to= (YYYY-MM-DD,
// inclusive). Both default to the last 30 days.
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	var from, to time.Time
	for name, dst := range map[string]*time.Time{"from": &from, "to": &to} {
		s := r.URL.Query().Get(name)
		if s == "" {
			continue
		}
		t, err := parseDate(s)
		if err != nil {
			fail(w, r, badRequest(name+" must be a date (YYYY-MM-DD)"))
			return
		}
		*dst = *t
	}
	s, err := h.Analytics.Summary(r.Context(), from, to)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeSummary(e, s) })
}
