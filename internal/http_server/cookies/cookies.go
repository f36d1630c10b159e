// Package cookies centralizes the two cookies the server issues: the
// session token and the anonymous browser id the captcha challenge is
// bound to.
package cookies

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

const (
	sessionName = "bs_session"
	browserName = "bs_sid"
)

func SetSession(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func Session(r *http.Request) (string, bool) {
	c, err := r.Cookie(sessionName)
	if err != nil || c.Value == "" {
		return "", false
	}

	return c.Value, true
}

// BrowserID returns the anonymous id for the calling browser, minting
// and setting one when absent. The id keys the captcha phrase store.
func BrowserID(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(browserName); err == nil && c.Value != "" {
		return c.Value
	}

	id := uuid.NewString()

	http.SetCookie(w, &http.Cookie{
		Name:     browserName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return id
}

// ExistingBrowserID returns the browser id without minting one. Used by
// verification paths where a missing id simply means no challenge was
// ever issued.
func ExistingBrowserID(r *http.Request) string {
	c, err := r.Cookie(browserName)
	if err != nil {
		return ""
	}

	return c.Value
}
