// Package oauth authenticates users with an oauth2 provider, and authorizes
// them based on a pluggable Authorizer.
//
// To use the library, you have to:
//
//  1. Create an Authenticator, configured with the provider and an Authorizer.
//  2. Route a login and callback URL to its handlers.
//
// Simple setup:
//
//	authenticator, err := oauth.New(srand.New(), oauth.WithSecrets(...),
//	    oauth.WithTargetURL("https://hub.example.com/oauth_callback"),
//	    ogithub.Defaults(), oauth.WithAuthorizer(verifier))
//
//	[...]
//
//	mux.Handle("/login", authenticator.LoginHandler())
//	mux.Handle("/oauth_callback", authenticator.CallbackHandler(storeSession))
//	mux.Handle("/logout", authenticator.LogoutHandler("/login"))
//
// Each login attempt is a small state machine:
//
//	Idle -> AwaitingCallback -> Exchanging -> ResolvingIdentity -> Verifying -> Authorized
//	                                                                         \-> Denied
//
// with any step possibly ending in Errored. The state cookie is removed as
// soon as a terminal state is reached, so the state of each login can be
// used only once.
package oauth

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"

	"github.com/enfabrica/hubauth/lib/khttp"
	"github.com/enfabrica/hubauth/lib/khttp/kcookie"
	"github.com/enfabrica/hubauth/lib/khttp/kfetch"
	"github.com/enfabrica/hubauth/lib/logger"
	"golang.org/x/oauth2"
)

// StateCookieName is the name of the cookie holding the LoginState during a login.
const StateCookieName = "oauthenticator-state"

// RedirectedMarker is appended to the URL the user is sent back to after login.
const RedirectedMarker = "_redirected"

type State int

const (
	Idle State = iota
	AwaitingCallback
	Exchanging
	ResolvingIdentity
	Verifying
	Authorized
	Denied
	Errored
)

var stateNames = [...]string{
	Idle:              "idle",
	AwaitingCallback:  "awaiting_callback",
	Exchanging:        "exchanging",
	ResolvingIdentity: "resolving_identity",
	Verifying:         "verifying",
	Authorized:        "authorized",
	Denied:            "denied",
	Errored:           "errored",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal returns true for the states a login attempt ends in.
func (s State) Terminal() bool {
	return s == Authorized || s == Denied || s == Errored
}

// Outcome is the result of processing a callback.
type Outcome struct {
	State State
	// Result is only set when State is Authorized.
	Result *AuthResult
	// Next is where to send the user once done, always a local path.
	Next string
	// Path lists the states the attempt went through, the last one is State.
	Path []State
}

type Authenticator struct {
	log logger.Logger

	// rand.Rand is not safe for concurrent use.
	rngLock sync.Mutex
	rng     *rand.Rand

	conf     *oauth2.Config
	fetcher  kfetch.Fetcher
	client   *http.Client
	userURL  string
	username UsernameFunc

	authorizer Authorizer
	states     *StateCodec

	cookieOptions kcookie.Modifiers
	sessionCookie string
	defaultNext   string
}

// EncodeState returns the string representation of a LoginState.
func (a *Authenticator) EncodeState(state LoginState) (string, error) {
	return a.states.Encode(state)
}

// DecodeState parses a string created by EncodeState.
func (a *Authenticator) DecodeState(value string) (LoginState, error) {
	return a.states.Decode(value)
}

func (a *Authenticator) stateCookieOptions() kcookie.Modifiers {
	return append(kcookie.Modifiers{kcookie.WithSameSite(http.SameSiteLaxMode)}, a.cookieOptions...)
}

// PerformLogin starts a login: sets the state cookie, and redirects to the provider.
//
// next is where to send the user at the end of the login. It is only
// honored if it is a local path.
func (a *Authenticator) PerformLogin(host Host, next string) error {
	if next != "" {
		next = SafeRedirect(next, a.defaultNext)
	}
	a.rngLock.Lock()
	state, err := NewLoginState(a.rng, next)
	a.rngLock.Unlock()
	if err != nil {
		return err
	}
	encoded, err := a.states.Encode(state)
	if err != nil {
		return fmt.Errorf("could not encode login state - %w", err)
	}

	host.SetCookie(kcookie.New(StateCookieName, encoded, a.stateCookieOptions()...))
	host.Redirect(a.LoginURL(encoded))
	metricAttempts.WithLabelValues(AwaitingCallback.String()).Inc()
	return nil
}

type attempt struct {
	*Authenticator
	host    Host
	outcome *Outcome
}

func (at *attempt) enter(state State) {
	at.outcome.State = state
	at.outcome.Path = append(at.outcome.Path, state)
	if !state.Terminal() {
		return
	}

	at.host.SetCookie(kcookie.Clear(StateCookieName, at.stateCookieOptions()...))
	metricAttempts.WithLabelValues(state.String()).Inc()
}

func (at *attempt) fail(err error) (*Outcome, error) {
	at.enter(Errored)
	at.log.Warnf("login failed in %s - %s", at.outcome.Path[len(at.outcome.Path)-2], err)
	return at.outcome, err
}

// PerformAuth processes the callback of the provider, query being its parameters.
//
// On Errored, the returned error is non nil. On Denied, both the error and
// the Result are nil. The state cookie is always cleared.
func (a *Authenticator) PerformAuth(ctx context.Context, host Host, query url.Values) (*Outcome, error) {
	at := &attempt{Authenticator: a, host: host, outcome: &Outcome{}}
	at.enter(AwaitingCallback)

	if code := query.Get("error"); code != "" {
		return at.fail(&CallbackError{Code: code, Description: query.Get("error_description")})
	}

	cookie, found := host.Cookie(StateCookieName)
	if !found {
		return at.fail(fmt.Errorf("%w - no state cookie, login not started or already completed", ErrStateMismatch))
	}
	expected, err := a.states.Decode(cookie)
	if err != nil {
		return at.fail(fmt.Errorf("%w - invalid state cookie: %w", ErrStateMismatch, err))
	}
	received, err := a.states.Decode(query.Get("state"))
	if err != nil {
		return at.fail(fmt.Errorf("%w - invalid state parameter: %w", ErrStateMismatch, err))
	}
	if expected.StateID != received.StateID {
		return at.fail(fmt.Errorf("%w - callback is for a different login", ErrStateMismatch))
	}
	at.outcome.Next = SafeRedirect(expected.Next, a.defaultNext)

	at.enter(Exchanging)
	tok, err := a.Exchange(ctx, query.Get("code"))
	if err != nil {
		return at.fail(err)
	}

	at.enter(ResolvingIdentity)
	identity, err := a.ResolveIdentity(ctx, tok)
	if err != nil {
		return at.fail(err)
	}

	at.enter(Verifying)
	allowed, err := a.authorizer.Authorize(ctx, a.log, identity, tok)
	if err != nil {
		return at.fail(fmt.Errorf("could not verify %s - %w", identity.Username, err))
	}
	if !allowed {
		at.enter(Denied)
		a.log.Infof("user %s authenticated - %s", identity.Username, ErrDenied)
		return at.outcome, nil
	}

	at.enter(Authorized)
	a.log.Infof("user %s authenticated and authorized", identity.Username)
	at.outcome.Result = &AuthResult{
		Name: identity.Username,
		AuthState: AuthState{
			AccessToken: tok.Token,
			TokenType:   tok.Type,
			Profile:     identity.Profile,
		},
	}
	return at.outcome, nil
}

// MarkRedirected appends RedirectedMarker to the query of target.
func MarkRedirected(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	if !khttp.HasQueryKey(u.RawQuery, RedirectedMarker) {
		u.RawQuery = khttp.JoinURLQuery(u.RawQuery, RedirectedMarker)
	}
	return u.String()
}

// Redirected returns true if target was produced by MarkRedirected.
func Redirected(target string) bool {
	u, err := url.Parse(target)
	return err == nil && khttp.HasQueryKey(u.RawQuery, RedirectedMarker)
}

// LoginHandler returns an handler starting the login process.
//
// The optional "next" query parameter is where the user is sent at the end.
// If next was already the target of a completed login, the user is shown an
// error instead, as the host page did not accept the session just created.
func (a *Authenticator) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		next := r.URL.Query().Get("next")
		if Redirected(next) {
			http.Error(w, ErrorLoops.Error(), http.StatusBadRequest)
			return
		}

		if err := a.PerformLogin(a.Host(w, r), next); err != nil {
			a.log.Errorf("could not start login - %s", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

// ResultHandler is invoked by the CallbackHandler for authorized users,
// typically to create the session of the host.
type ResultHandler func(host *HTTPHost, result *AuthResult) error

// StatusFor returns the http status to use for an error returned by PerformAuth.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrStateMismatch), errors.Is(err, ErrMalformedState):
		return http.StatusBadRequest
	case errors.Is(err, ErrProviderCallback):
		return http.StatusUnauthorized
	case errors.Is(err, ErrTokenExchange), errors.Is(err, ErrIdentityFetch), errors.Is(err, ErrTransientProvider):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// CallbackHandler returns the handler the provider redirects the user to.
func (a *Authenticator) CallbackHandler(onResult ResultHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		host := a.Host(w, r)
		outcome, err := a.PerformAuth(r.Context(), host, r.URL.Query())
		switch outcome.State {
		case Authorized:
			if onResult != nil {
				if err := onResult(host, outcome.Result); err != nil {
					a.log.Errorf("could not complete login for %s - %s", outcome.Result.Name, err)
					http.Error(w, "internal error", http.StatusInternalServerError)
					return
				}
			}
			host.Redirect(MarkRedirected(outcome.Next))

		case Denied:
			http.Error(w, "you are not allowed to access this service", http.StatusForbidden)

		default:
			status := StatusFor(err)
			http.Error(w, fmt.Sprintf("login failed - %s", http.StatusText(status)), status)
		}
	}
}
