package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/swag-store/internal/domain/product"
	"github.com/xenking/swag-store/internal/pricing"
)

// ListProducts returns the catalog, optionally filtered by ?category= and
// ?search=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	products, err := h.Products.List(r.Context(), product.Filter{
		Category: q.Get("category"),
		Search:   q.Get("search"),
	})
	if err != nil {
		fail(w, r, errors.Wrap(err, "list products"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for _, p := range products {
			h.encodeProduct(e, p)
		}
		e.ArrEnd()
	})
}

// GetProduct returns a single product.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.Products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeProduct(e, *p) })
}

// PriceProduct prices ?quantity= units of a product, 1 by default.
func (h *Handler) PriceProduct(w http.ResponseWriter, r *http.Request) {
	qty, err := queryInt(r, "quantity", 1)
	if err != nil {
		fail(w, r, err)
		return
	}
	if qty <= 0 {
		fail(w, r, badRequest("quantity must be greater than 0"))
		return
	}
	p, err := h.Products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("product_id")
			e.Str(p.ID)
			e.FieldStart("quantity")
			e.Int(qty)
			e.FieldStart("base_price")
			money(e, p.Price)
			e.FieldStart("unit_price")
			money(e, pricing.UnitPrice(*p, qty))
			e.FieldStart("line_total")
			money(e, pricing.LineTotal(*p, qty))
			e.FieldStart("savings")
			money(e, pricing.Savings(*p, qty))
			e.FieldStart("bulk_eligible")
			e.Bool(pricing.IsBulkEligible(*p, qty))
		})
	})
}

// CreateProduct adds a product to the catalog.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	p := &product.Product{PricingTiers: []product.PricingTier{}}
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		return decodeProduct(d, key, p)
	}); err != nil {
		fail(w, r, err)
		return
	}
	if err := h.Catalog.Create(r.Context(), p); err != nil {
		fail(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusCreated, p)
}

// UpdateProduct applies the fields present in the body to an existing
// product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.Products.GetByID(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		return decodeProduct(d, key, p)
	}); err != nil {
		fail(w, r, err)
		return
	}
	p.ID = id
	if err := h.Catalog.Update(r.Context(), p); err != nil {
		fail(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusOK, p)
}

// SetProductTiers replaces a product's pricing tiers.
func (h *Handler) SetProductTiers(w http.ResponseWriter, r *http.Request) {
	var tiers []product.PricingTier
	if err := decodeBody(w, r, func(d *jx.Decoder, key string) error {
		if key != "pricing_tiers" {
			return d.Skip()
		}
		var err error
		tiers, err = decodeTiers(d)
		return err
	}); err != nil {
		fail(w, r, err)
		return
	}
	if tiers == nil {
		fail(w, r, badRequest("pricing_tiers is required"))
		return
	}
	p, err := h.Catalog.SetTiers(r.Context(), chi.URLParam(r, "id"), tiers)
	if err != nil {
		fail(w, r, err)
		return
	}
	h.writeProduct(w, http.StatusOK, p)
}

// DeleteProduct removes a product.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeProduct(w http.ResponseWriter, status int, p *product.Product) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("success")
			e.Bool(true)
			e.FieldStart("product")
			h.encodeProduct(e, *p)
		})
	})
}
