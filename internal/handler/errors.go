package handler

import (
	"net/http"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/swag-store/internal/domain/auth"
	"github.com/xenking/swag-store/internal/domain/coupon"
	"github.com/xenking/swag-store/internal/domain/order"
	"github.com/xenking/swag-store/internal/domain/product"
	"github.com/xenking/swag-store/internal/domain/stock"
	"github.com/xenking/swag-store/internal/validation"
)

var errForbidden = errors.New("api key lacks the required scope")

// couponRejections are eligibility failures reported as 422.
var couponRejections = []error{
	coupon.ErrInactive,
	coupon.ErrExpired,
	coupon.ErrUsageLimitReached,
	coupon.ErrPerUserLimitReached,
	coupon.ErrFirstOrderOnly,
	coupon.ErrMinOrderNotMet,
	coupon.ErrNoEligibleItems,
}

// classify maps err to a status code, a client message and optional field
// details.
func classify(err error) (int, string, map[string]string) {
	var (
		reqErr   *requestError
		valErr   *validation.Error
		qtyErr   *order.InvalidQuantityError
		stockErr *order.InsufficientStockError
		missing  *order.ProductNotFoundError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, reqErr.msg, nil
	case errors.As(err, &valErr):
		return http.StatusBadRequest, "validation failed", valErr.Fields
	case errors.As(err, &qtyErr), errors.Is(err, order.ErrEmptyItems):
		return http.StatusBadRequest, err.Error(), nil
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid or missing api key", nil
	case errors.Is(err, errForbidden):
		return http.StatusForbidden, err.Error(), nil
	case errors.As(err, &missing):
		return http.StatusUnprocessableEntity, missing.Error(), nil
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, err.Error(), nil
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return http.StatusNotFound, coupon.ErrInvalidCoupon.Error(), nil
	case errors.Is(err, coupon.ErrAlreadyExists):
		return http.StatusConflict, err.Error(), nil
	case errors.As(err, &stockErr), errors.Is(err, stock.ErrNegativeStock):
		return http.StatusUnprocessableEntity, err.Error(), nil
	case slices.ContainsFunc(couponRejections, func(target error) bool { return errors.Is(err, target) }):
		return http.StatusUnprocessableEntity, err.Error(), nil
	default:
		return http.StatusInternalServerError, "internal server error", nil
	}
}

// fail writes the error response for err. Server errors are logged.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg, details := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeError(w, status, msg, details)
}

func writeError(w http.ResponseWriter, status int, msg string, details map[string]string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.FieldStart("code")
			e.Int(status)
			e.FieldStart("message")
			e.Str(msg)
			if len(details) == 0 {
				return
			}
			keys := make([]string, 0, len(details))
			for k := range details {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			e.FieldStart("details")
			e.Obj(func(e *jx.Encoder) {
				for _, k := range keys {
					e.FieldStart(k)
					e.Str(details[k])
				}
			})
		})
	})
}
