package v1handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// subjectKey is the context key under which the authenticated subject is
// stored.
type subjectKey struct{}

// Subject returns the authenticated token subject, or "" outside an
// authenticated request.
func Subject(ctx context.Context) string {
	s, _ := ctx.Value(subjectKey{}).(string)

	return s
}

// WithAuth returns a middleware verifying RS256 bearer tokens against the
// given PEM public key. An empty key disables authentication, which is the
// development default. Tokens are accepted from the Authorization header or,
// for EventSource clients that cannot set headers, a token query parameter.
func WithAuth(publicKeyPEM string) (func(http.Handler) http.Handler, error) {
	if publicKeyPEM == "" {
		return func(next http.Handler) http.Handler { return next }, nil
	}

	key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, fmt.Errorf("could not parse RSA public key: %w", err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := ""
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				raw = strings.TrimPrefix(auth, "Bearer ")
			} else if t := r.URL.Query().Get("token"); t != "" {
				raw = t
			}

			if raw == "" {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "missing bearer token"})

				return
			}

			claims := &jwt.RegisteredClaims{}
			token, err := jwt.ParseWithClaims(raw, claims,
				func(*jwt.Token) (any, error) { return key, nil },
				jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
			if err != nil || !token.Valid {
				writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid bearer token"})

				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}, nil
}
