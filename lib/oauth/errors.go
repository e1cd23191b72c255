package oauth

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedState is returned when a state token cannot be decoded.
	ErrMalformedState = errors.New("malformed state")
	// ErrStateMismatch is returned when the callback does not match the login that started it.
	ErrStateMismatch = errors.New("state mismatch")
	// ErrTokenExchange is returned when the code could not be turned into an access token.
	ErrTokenExchange = errors.New("token exchange failed")
	// ErrIdentityFetch is returned when the user profile could not be retrieved.
	ErrIdentityFetch = errors.New("identity fetch failed")
	// ErrOrgNotFound means the organization or team does not exist, or the user is not a member.
	ErrOrgNotFound = errors.New("organization or membership not found")
	// ErrTransientProvider is returned for provider answers that say nothing about membership.
	ErrTransientProvider = errors.New("transient provider error")
	// ErrProviderCallback is returned when the provider redirects back with an error.
	ErrProviderCallback = errors.New("provider returned an error")
	// ErrDenied is the outcome of a successful authentication of a user not allowed in.
	// It is never returned by PerformAuth, only logged.
	ErrDenied = errors.New("user not allowed")
)

// ErrorLoops is returned when a login is requested for a page the user was already sent back to.
var ErrorLoops = errors.New("You have been redirected back to this url - but you still don't have a valid session.\n" +
	"Sending you to login again would cause a loop, bad for my load, and your bandwidth. There's likely\n" +
	"something wrong in your cookies, or your setup")

// ProviderError carries the details of a failed call to the identity provider.
type ProviderError struct {
	URL string
	// Status is 0 if no response was received.
	Status int
	// Err is one of the sentinel errors above.
	Err error
	// Cause is the underlying error, if any.
	Cause error
}

func (e *ProviderError) Error() string {
	msg := e.Err.Error() + " - " + e.URL
	if e.Status != 0 {
		msg += fmt.Sprintf(" returned status %d", e.Status)
	}
	if e.Cause != nil {
		msg += " - " + e.Cause.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

// CallbackError is returned when the provider redirects back with ?error=.
type CallbackError struct {
	Code        string
	Description string
}

func (e *CallbackError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("%s: %s", ErrProviderCallback, e.Code)
	}
	return fmt.Sprintf("%s: %s - %s", ErrProviderCallback, e.Code, e.Description)
}

func (e *CallbackError) Unwrap() error {
	return ErrProviderCallback
}
