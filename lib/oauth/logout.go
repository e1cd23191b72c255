package oauth

import (
	"net/http"
	"strings"

	"github.com/enfabrica/hubauth/lib/khttp/kcookie"
)

// Logout removes the session of the host and any login in progress.
//
// Calling it with no session is not an error.
func (a *Authenticator) Logout(host Host) {
	host.ClearSession()
	host.SetCookie(kcookie.Clear(StateCookieName, a.stateCookieOptions()...))
}

// LogoutHandler logs the user out, then redirects to target, normally the login page.
func (a *Authenticator) LogoutHandler(target string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := a.Host(w, r)
		a.Logout(host)
		host.Redirect(target)
	}
}

// LogoutURL returns the logout URL for a server rooted at base.
func LogoutURL(base string) string {
	return strings.TrimRight(base, "/") + "/logout"
}
