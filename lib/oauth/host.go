package oauth

import (
	"net/http"

	"github.com/enfabrica/hubauth/lib/khttp/kcookie"
)

// Host is what the authenticator needs from the server it is embedded in.
type Host interface {
	// Cookie returns the value of the cookie, and true if it was set.
	Cookie(name string) (string, bool)
	SetCookie(cookie *http.Cookie)
	Redirect(url string)
	// ClearSession removes the login session of the host, if any.
	ClearSession()
}

// HTTPHost is a Host on top of a net/http request.
type HTTPHost struct {
	W http.ResponseWriter
	R *http.Request

	// SessionCookie is the name of the cookie ClearSession deletes.
	// Empty means the host keeps no session cookie.
	SessionCookie  string
	SessionOptions kcookie.Modifiers
}

func (h *HTTPHost) Cookie(name string) (string, bool) {
	cookie, err := h.R.Cookie(name)
	if err != nil || cookie == nil {
		return "", false
	}
	return cookie.Value, true
}

func (h *HTTPHost) SetCookie(cookie *http.Cookie) {
	http.SetCookie(h.W, cookie)
}

func (h *HTTPHost) Redirect(url string) {
	http.Redirect(h.W, h.R, url, http.StatusFound)
}

func (h *HTTPHost) ClearSession() {
	if h.SessionCookie == "" {
		return
	}
	h.SetCookie(kcookie.Clear(h.SessionCookie, h.SessionOptions...))
}

// Host returns the Host to use for w and r, configured with the session
// cookie settings of the authenticator.
func (a *Authenticator) Host(w http.ResponseWriter, r *http.Request) *HTTPHost {
	return &HTTPHost{W: w, R: r, SessionCookie: a.sessionCookie, SessionOptions: a.cookieOptions}
}
