package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	domain "github.com/bryanwahyu/nutrisnap/internal/domain/meal"
)

type contextKey string

const (
	ClientKey   contextKey = "client"
	IdentityKey contextKey = "identity"
)

// IdentityHeader carries the display name whose history is used.
const IdentityHeader = "X-Username"

// APIKeyAuth validates the Authorization header against validKeys
// (client name -> key). An empty map disables the check.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			var client string
			for name, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					client = name
					break
				}
			}
			if client == "" {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			ctx := context.WithValue(r.Context(), ClientKey, client)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Identity resolves the display name from the X-Username header and stores
// it in the request context. A missing or blank name is the guest identity.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity := SanitizeString(r.Header.Get(IdentityHeader))
		if identity != "" {
			if err := ValidateIdentity(identity); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		ctx := context.WithValue(r.Context(), IdentityKey, domain.NormalizeIdentity(identity))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// IdentityFromContext returns the identity set by Identity, or the guest identity.
func IdentityFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(IdentityKey).(string); ok && id != "" {
		return id
	}
	return domain.GuestIdentity
}

// ClientFromContext returns the API client name set by APIKeyAuth.
func ClientFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(ClientKey).(string); ok {
		return c
	}
	return ""
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
