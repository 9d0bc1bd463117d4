package middleware

import (
	"net/http"
	"time"
)

// SessionCookieName carries the dashboard session id. The __Host- prefix pins
// it to this host, path "/" and HTTPS.
const SessionCookieName = "__Host-session"

// LoginStateCookieName binds a pending sign-in to the browser that started it.
const LoginStateCookieName = "__oauth_state"

const loginStateCookiePath = "/auth"

// loginStateMaxAge matches how long a pending sign-in is kept server side.
const loginStateMaxAge = 5 * 60

// CookieOptions defines how session cookies are issued.
type CookieOptions struct {
	Secure   bool
	SameSite http.SameSite
}

func (o CookieOptions) sameSite() http.SameSite {
	if o.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return o.SameSite
}

// SetSessionCookie issues the session cookie.
func SetSessionCookie(w http.ResponseWriter, sessionID string, expiresAt time.Time, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.sameSite(),
	})
}

// ClearSessionCookie removes the session cookie from the browser.
func ClearSessionCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: opts.sameSite(),
	})
}

// SessionID returns the session id sent by the browser, or "".
func SessionID(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// SetLoginStateCookie remembers the OAuth state of a sign-in started by this
// browser.
func SetLoginStateCookie(w http.ResponseWriter, state string, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     LoginStateCookieName,
		Value:    state,
		Path:     loginStateCookiePath,
		MaxAge:   loginStateMaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearLoginStateCookie removes the OAuth state cookie.
func ClearLoginStateCookie(w http.ResponseWriter, opts CookieOptions) {
	http.SetCookie(w, &http.Cookie{
		Name:     LoginStateCookieName,
		Value:    "",
		Path:     loginStateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// LoginState returns the OAuth state remembered by the browser, or "".
func LoginState(r *http.Request) string {
	c, err := r.Cookie(LoginStateCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
