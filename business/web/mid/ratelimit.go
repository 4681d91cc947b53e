package mid

import (
	"context"
	"errors"
	"net/http"

	"github.com/ardanlabs/utxochain/business/web/errs"
	"github.com/ardanlabs/utxochain/foundation/web"
	"golang.org/x/time/rate"
)

// ErrRateLimited is returned when a request exceeds the configured rate.
var ErrRateLimited = errors.New("too many requests")

// RateLimit rejects requests once the node is receiving more than rps
// requests per second, allowing bursts of up to burst requests.
func RateLimit(rps float64, burst int) web.Middleware {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	// This is the actual middleware function to be executed.
	m := func(handler web.Handler) web.Handler {

		// Create the handler that will be attached in the middleware chain.
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			if !limiter.Allow() {
				return errs.NewTrusted(ErrRateLimited, http.StatusTooManyRequests)
			}

			return handler(ctx, w, r)
		}

		return h
	}

	return m
}
