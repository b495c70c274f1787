// Package auth resolves the calling party from the bearer token the
// platform's identity provider issues. It answers "who is calling, with
// what role" and nothing else; accounts live elsewhere.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/festbook/festbook-backend/internal/apperr"
)

const (
	RoleCustomer = "customer"
	RoleVendor   = "vendor"
	RoleAdmin    = "admin"
)

// Identity is the resolved caller.
type Identity struct {
	PartyID string
	Role    string
	Name    string
	Phone   string
}

type ctxKey struct{}

// FromContext returns the identity the middleware stored, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

// WithIdentity is used by tests to act as a given party.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// Middleware parses the Authorization header and stores the Identity on the
// request context. Requests without a valid token are rejected; role checks
// are left to the handlers.
func Middleware(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"unauthorized","message":"Authorization header required"}`, http.StatusUnauthorized)
				return
			}
			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			id, err := Resolve(tokenString, secret)
			if err != nil {
				http.Error(w, `{"error":"unauthorized","message":"Invalid token"}`, http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// Resolve validates the token and extracts the party claims.
func Resolve(tokenString, secret string) (Identity, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return Identity{}, apperr.New(apperr.KindUnauthorized, "invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, apperr.New(apperr.KindUnauthorized, "invalid token claims")
	}

	id := Identity{}
	id.PartyID, _ = claims["sub"].(string)
	id.Role, _ = claims["role"].(string)
	id.Name, _ = claims["name"].(string)
	id.Phone, _ = claims["phone"].(string)
	if id.PartyID == "" || id.Role == "" {
		return Identity{}, apperr.New(apperr.KindUnauthorized, "token missing party claims")
	}
	return id, nil
}
