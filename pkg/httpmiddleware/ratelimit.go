package httpmiddleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-faster/sdk/zctx"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"
)

// RateLimitConfig configures the per-client rate limiter.
type RateLimitConfig struct {
	Max    int
	Window time.Duration
	// KeyFunc extracts the client key. Defaults to the client IP, honouring
	// X-Forwarded-For and X-Real-IP.
	KeyFunc func(r *http.Request) string
}

// RateLimit enforces cfg.Max requests per cfg.Window per client using store.
// Every response carries X-RateLimit-Limit, X-RateLimit-Remaining and
// X-RateLimit-Reset. Requests over the limit get a JSON 429 with Retry-After.
// Store failures let the request through.
func RateLimit(store limiter.Store, cfg RateLimitConfig) Middleware {
	lmt := limiter.New(store, limiter.Rate{
		Period: cfg.Window,
		Limit:  int64(cfg.Max),
	}, limiter.WithTrustForwardHeader(true))

	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = lmt.GetIPKey
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := lmt.Get(r.Context(), keyFunc(r))
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.FormatInt(res.Limit, 10))
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.Reset, 10))

			if res.Reached {
				retry := max(time.Until(time.Unix(res.Reset, 0)), 0)
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(retry.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
