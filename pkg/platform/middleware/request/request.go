// Package request assigns each HTTP request a correlation ID and echoes it
// back in the response headers.
package request

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/unstoppabledomains/nomulus/pkg/requestcontext"
)

// HeaderRequestID is the header carrying the correlation ID.
const HeaderRequestID = "X-Request-Id"

// Middleware reuses an incoming X-Request-Id or mints a fresh one, storing
// it in the context for log correlation.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, id)
		ctx := requestcontext.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
