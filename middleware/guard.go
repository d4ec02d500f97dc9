package middleware

import (
	"context"
	"net/http"
	"strings"

	goSession "github.com/MrEthical07/goSession"
)

type identityContextKey struct{}
type credentialContextKey struct{}

// IdentityFromContext returns the identity stored by [Guard].
func IdentityFromContext(ctx context.Context) (*goSession.Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(*goSession.Identity)
	return id, ok
}

// CredentialFromContext returns the raw bearer credential accepted by [Guard].
func CredentialFromContext(ctx context.Context) (string, bool) {
	c, ok := ctx.Value(credentialContextKey{}).(string)
	return c, ok
}

// Guard rejects requests without a valid bearer credential with 401. Store
// outages are rejected the same way; the engine logs their detail.
func Guard(engine *goSession.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			id, err := engine.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey{}, id)
			ctx = context.WithValue(ctx, credentialContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
