package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config holds authentication configuration.
type Config struct {
	Enabled bool
	Token   string
}

// protectedReads are GET paths that still require a token: the websocket
// accepts simulation control messages.
var protectedReads = map[string]bool{
	"/api/v1/ws/positions": true,
}

// publicWrites are POST paths that compute an answer without changing state.
var publicWrites = map[string]bool{
	"/api/v1/predict_route":    true,
	"/api/v1/speed_prediction": true,
}

// isExempt returns true if the request may proceed without a token.
// Reads are public; anything that changes server state is not.
func isExempt(r *http.Request) bool {
	switch r.Method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return !protectedReads[r.URL.Path]
	case http.MethodPost:
		return publicWrites[r.URL.Path]
	}
	return false
}

// requestToken returns the bearer token, or the access_token query parameter
// on websocket paths where browsers cannot set headers.
func requestToken(r *http.Request) (string, bool) {
	if header := r.Header.Get("Authorization"); header != "" {
		token, ok := strings.CutPrefix(header, "Bearer ")
		return token, ok
	}
	if protectedReads[r.URL.Path] {
		if token := r.URL.Query().Get("access_token"); token != "" {
			return token, true
		}
	}
	return "", false
}

// Middleware returns an HTTP middleware that enforces Bearer token auth
// on non-exempt requests when auth is enabled.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isExempt(r) {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := requestToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(cfg.Token)) != 1 {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("WWW-Authenticate", `Bearer realm="searoute"`)
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
