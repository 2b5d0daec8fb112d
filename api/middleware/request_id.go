package middleware

import (
	"net/http"
	"regexp"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-checkout/internal/marketplace"
	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
)

const requestIDHeader = marketplace.RequestIDHeader

// Inbound ids are echoed into headers and logs, so only plain tokens are trusted.
var requestIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// RequestID tags each request with an id taken from X-Request-Id or minted. The id
// is echoed on the response, added to log lines and forwarded on marketplace calls.
func RequestID(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(requestIDHeader)
			if !requestIDPattern.MatchString(reqID) {
				reqID = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, reqID)

			ctx := WithRequestID(r.Context(), reqID)
			ctx = marketplace.WithRequestID(ctx, reqID)
			if logg != nil {
				ctx = logg.WithRequestID(ctx, reqID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
