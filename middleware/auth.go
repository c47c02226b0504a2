package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

type contextKey string

const roleContextKey contextKey = "role"

// RoleAdmin sees hidden leaderboards.
const RoleAdmin = "admin"

// ResolveRole extracts the caller's role from an optional Bearer token. All
// tournament endpoints stay publicly readable; an invalid or absent token
// simply means no role, it never rejects the request.
func ResolveRole(secret string) func(http.Handler) http.Handler {
	keyFunc := func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimPrefix(header, "Bearer "), claims, keyFunc)
			if err != nil || !token.Valid {
				next.ServeHTTP(w, r)
				return
			}

			role, ok := claims["role"].(string)
			if !ok || role == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), roleContextKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRoleFromContext returns the resolved role, or "" for anonymous callers.
func GetRoleFromContext(ctx context.Context) string {
	role, _ := ctx.Value(roleContextKey).(string)
	return role
}
