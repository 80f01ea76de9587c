package middleware

import (
	"crypto/subtle"
	"net/http"
)

// AuthMiddleware enforces a shared API key. The server holds personal
// form answers, so even on localhost a stray process should not be able
// to read them without the key the extension was configured with.
type AuthMiddleware struct {
	header string
	key    string
}

// NewAuthMiddleware creates an auth middleware. An empty key disables
// the check, which is the development default.
func NewAuthMiddleware(header, key string) *AuthMiddleware {
	if header == "" {
		header = "X-API-Key"
	}
	return &AuthMiddleware{header: header, key: key}
}

// Handler returns the middleware handler
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.key == "" {
			next.ServeHTTP(w, r)
			return
		}

		got := r.Header.Get(m.header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(m.key)) != 1 {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
