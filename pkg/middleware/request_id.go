package middleware

import (
	"net/http"

	"github.com/clubops/querycsv/pkg/requestid"
)

// RequestID attaches a request ID to every request, reusing the caller's
// when one is supplied, and echoes it back in the response headers.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestid.HeaderName)
		if id == "" {
			id = requestid.Generate()
		}
		w.Header().Set(requestid.HeaderName, id)
		next.ServeHTTP(w, r.WithContext(requestid.ToContext(r.Context(), id)))
	})
}
