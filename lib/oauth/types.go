package oauth

import (
	"context"
	"strings"

	"github.com/enfabrica/hubauth/lib/logger"
)

// AccessToken is the token returned by the provider at the end of the exchange.
type AccessToken struct {
	Token string
	// Type as returned by the provider, "bearer" or "token" for example.
	Type string
}

// Authorization returns the value of the Authorization header to use with the token.
//
// "bearer", in any case, or an empty type are rendered as "Bearer", anything
// else verbatim.
func (t *AccessToken) Authorization() string {
	scheme := t.Type
	if scheme == "" || strings.EqualFold(scheme, "bearer") {
		scheme = "Bearer"
	}
	return scheme + " " + t.Token
}

// Profile is the decoded user document returned by the provider.
type Profile map[string]interface{}

// UsernameFunc extracts the user name from the provider specific profile.
type UsernameFunc func(profile Profile) (string, error)

// Identity is a user just authenticated with the provider.
type Identity struct {
	Username string
	Profile  Profile
}

// AuthState is what the host stores about an authenticated user.
type AuthState struct {
	AccessToken string  `json:"access_token"`
	TokenType   string  `json:"token_type"`
	Profile     Profile `json:"profile"`
}

// AuthResult is returned for every authorized user.
type AuthResult struct {
	Name      string    `json:"name"`
	AuthState AuthState `json:"auth_state"`
}

// Authorizer decides if an authenticated identity is allowed in.
//
// Returning false with a nil error denies access. Errors are only returned
// for conditions that prevented a decision from being made.
type Authorizer interface {
	Authorize(ctx context.Context, log logger.Logger, identity *Identity, tok *AccessToken) (bool, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, log logger.Logger, identity *Identity, tok *AccessToken) (bool, error)

func (f AuthorizerFunc) Authorize(ctx context.Context, log logger.Logger, identity *Identity, tok *AccessToken) (bool, error) {
	return f(ctx, log, identity, tok)
}
