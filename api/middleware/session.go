package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-checkout/pkg/logger"
)

const (
	SessionHeader    = "X-Session-Id"
	sessionCookieAge = 30 * 24 * 60 * 60
)

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,128}$`)

// Session resolves the client session from the X-Session-Id header or the session
// cookie and mints a new one when neither carries a usable id.
func Session(cookieName string, secure bool, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(SessionHeader))
			if sessionID == "" {
				if cookie, err := r.Cookie(cookieName); err == nil {
					sessionID = strings.TrimSpace(cookie.Value)
				}
			}
			if !sessionIDPattern.MatchString(sessionID) {
				sessionID = uuid.NewString()
				http.SetCookie(w, &http.Cookie{
					Name:     cookieName,
					Value:    sessionID,
					Path:     "/",
					MaxAge:   sessionCookieAge,
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
			}
			w.Header().Set(SessionHeader, sessionID)

			ctx := WithSessionID(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithSessionID(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
