package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/jx"

	"github.com/xenking/swag-store/internal/domain/cart"
)

// GetCart returns the priced cart of {userKey}.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	userKey := chi.URLParam(r, "userKey")
	v, err := h.Carts.View(r.Context(), userKey)
	h.writeCart(w, r, userKey, v, err)
}

// AddCartItem adds {product_id, quantity} to the cart. A missing quantity
// adds one unit.
func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var (
		productID string
		qty       int
	)
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "product_id":
			productID, err = d.Str()
		case "quantity":
			qty, err = d.Int()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	if productID == "" {
		fail(w, r, badRequest("product_id is required"))
		return
	}
	userKey := chi.URLParam(r, "userKey")
	v, err := h.Carts.Add(r.Context(), userKey, productID, qty)
	h.writeCart(w, r, userKey, v, err)
}

// SetCartItem replaces the quantity of {productID}. Zero removes it.
func (h *Handler) SetCartItem(w http.ResponseWriter, r *http.Request) {
	qty := -1
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "quantity" {
			return d.Skip()
		}
		var err error
		qty, err = d.Int()
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	if qty < 0 {
		fail(w, r, badRequest("quantity must be zero or greater"))
		return
	}
	userKey := chi.URLParam(r, "userKey")
	v, err := h.Carts.SetQuantity(r.Context(), userKey, chi.URLParam(r, "productID"), qty)
	h.writeCart(w, r, userKey, v, err)
}

// RemoveCartItem drops {productID} from the cart.
func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	userKey := chi.URLParam(r, "userKey")
	v, err := h.Carts.Remove(r.Context(), userKey, chi.URLParam(r, "productID"))
	h.writeCart(w, r, userKey, v, err)
}

// ClearCart empties the cart.
func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.Carts.Clear(r.Context(), chi.URLParam(r, "userKey")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeCart(w http.ResponseWriter, r *http.Request, userKey string, v *cart.View, err error) {
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCart(e, userKey, v) })
}
