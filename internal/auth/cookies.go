package auth

import (
	"net/http"
	"time"
)

// TokenCookieName is the cookie carrying the access token.
const TokenCookieName = "token"

// SetTokenCookie attaches the access token to the response.
// SameSite=None with Secure lets the SPA frontend on a different origin
// send the cookie on cross-site requests.
func SetTokenCookie(w http.ResponseWriter, token string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// ClearTokenCookie removes the access token cookie. Clearing an absent
// cookie is a no-op, so logout is idempotent.
func ClearTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     TokenCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	})
}

// GetTokenFromCookie reads the access token cookie from the request
func GetTokenFromCookie(r *http.Request) (string, error) {
	cookie, err := r.Cookie(TokenCookieName)
	if err != nil {
		return "", err
	}
	return cookie.Value, nil
}
