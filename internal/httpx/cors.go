package httpx

import "net/http"

// Fixed header set for the query route. Clients rely on these values
// verbatim.
const (
	AllowOrigin  = "*"
	AllowMethods = "GET, POST, PATCH, PUT, DELETE, OPTIONS"
	AllowHeaders = "Authorization, Content-Type, X-Starbase-Source, X-Data-Source"
	MaxAge       = "86400"
)

// SetQueryCORS attaches the permissive CORS headers of the query route.
func SetQueryCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", AllowOrigin)
	h.Set("Access-Control-Allow-Methods", AllowMethods)
	h.Set("Access-Control-Allow-Headers", AllowHeaders)
	h.Set("Access-Control-Max-Age", MaxAge)
}

// Preflight answers a CORS preflight with 204 and no body.
func Preflight(w http.ResponseWriter) {
	SetQueryCORS(w.Header())
	w.WriteHeader(http.StatusNoContent)
}

// CORS middleware allowing a specific frontend origin ("*" allows any).
// Preflights (OPTIONS) are short-circuited with 204.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && (allowedOrigin == "*" || origin == allowedOrigin) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Token, X-Request-Id")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
