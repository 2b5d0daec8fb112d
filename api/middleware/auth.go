package middleware

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/marketplace-checkout/api/responses"
	"github.com/angelmondragon/marketplace-checkout/internal/checkout"
	"github.com/angelmondragon/marketplace-checkout/internal/marketplace"
	pkgAuth "github.com/angelmondragon/marketplace-checkout/pkg/auth"
	"github.com/angelmondragon/marketplace-checkout/pkg/config"
	pkgerrors "github.com/angelmondragon/marketplace-checkout/pkg/errors"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
)

// OptionalAuth accepts anonymous requests. When a bearer token is present it must
// be valid; the customer is then seeded into the context and the token is
// forwarded on marketplace calls.
func OptionalAuth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" {
				next.ServeHTTP(w, r)
				return
			}

			token := raw
			if strings.HasPrefix(strings.ToLower(token), "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			ctx := WithAuthenticated(r.Context(), checkout.Authenticated{UserRef: claims.UserID, Email: claims.Email})
			ctx = marketplace.WithBearerToken(ctx, token)
			if logg != nil {
				ctx = logg.WithUserID(ctx, claims.UserID.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
