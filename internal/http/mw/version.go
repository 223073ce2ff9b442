package mw

import (
	"net/http"

	"github.com/jmylchreest/ledgerbook-api/internal/version"
)

// VersionHeader carries the server build version on every response.
const VersionHeader = "X-Ledgerbook-Version"

// APIVersion returns middleware that adds the version header to all responses.
func APIVersion() func(http.Handler) http.Handler {
	v := version.Get().Short()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set(VersionHeader, v)
			next.ServeHTTP(w, r)
		})
	}
}
