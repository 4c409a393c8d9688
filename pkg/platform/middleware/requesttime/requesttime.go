// Package requesttime provides middleware for request-scoped time. All
// operations within a single HTTP request observe the same "now", so a
// transfer requested and projected in the same request cannot disagree about
// whether a deadline has passed.
package requesttime

import (
	"net/http"
	"time"

	"github.com/unstoppabledomains/nomulus/pkg/requestcontext"
)

// Middleware captures the wall-clock time at the start of the request and
// stores it in the context for consistent time references throughout.
func Middleware(next http.Handler) http.Handler {
	return WithNow(time.Now)(next)
}

// WithNow builds the middleware on an injected time source. Tests use this
// to drive deadline behavior with a fake clock.
func WithNow(now func() time.Time) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := requestcontext.WithTime(r.Context(), now().UTC())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
