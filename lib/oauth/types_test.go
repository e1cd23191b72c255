package oauth

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/enfabrica/hubauth/lib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorization(t *testing.T) {
	assert.Equal(t, "Bearer abc", (&AccessToken{Token: "abc"}).Authorization())
	assert.Equal(t, "Bearer abc", (&AccessToken{Token: "abc", Type: "bearer"}).Authorization())
	assert.Equal(t, "Bearer abc", (&AccessToken{Token: "abc", Type: "BEARER"}).Authorization())
	assert.Equal(t, "token abc", (&AccessToken{Token: "abc", Type: "token"}).Authorization())
}

func TestAuthorizerFunc(t *testing.T) {
	var authorizer Authorizer = AuthorizerFunc(func(ctx context.Context, log logger.Logger, identity *Identity, tok *AccessToken) (bool, error) {
		return identity.Username == "grif", nil
	})
	allowed, err := authorizer.Authorize(context.Background(), logger.Nil, &Identity{Username: "grif"}, &AccessToken{})
	assert.NoError(t, err)
	assert.True(t, allowed)
}

func TestErrors(t *testing.T) {
	cause := errors.New("connection reset")
	var err error = &ProviderError{URL: "https://api.github.com/user", Status: http.StatusBadGateway, Err: ErrIdentityFetch, Cause: cause}
	assert.ErrorIs(t, err, ErrIdentityFetch)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrTokenExchange)
	assert.Equal(t, "identity fetch failed - https://api.github.com/user returned status 502 - connection reset", err.Error())

	var perr *ProviderError
	require.ErrorAs(t, errors.Join(errors.New("other"), err), &perr)
	assert.Equal(t, http.StatusBadGateway, perr.Status)

	err = &CallbackError{Code: "access_denied", Description: "The user has denied your application access."}
	assert.ErrorIs(t, err, ErrProviderCallback)
	assert.Equal(t, "provider returned an error: access_denied - The user has denied your application access.", err.Error())
	assert.Equal(t, "provider returned an error: access_denied", (&CallbackError{Code: "access_denied"}).Error())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor(ErrStateMismatch))
	assert.Equal(t, http.StatusBadRequest, StatusFor(ErrMalformedState))
	assert.Equal(t, http.StatusUnauthorized, StatusFor(&CallbackError{Code: "access_denied"}))
	assert.Equal(t, http.StatusBadGateway, StatusFor(&ProviderError{Err: ErrTokenExchange}))
	assert.Equal(t, http.StatusBadGateway, StatusFor(&ProviderError{Err: ErrIdentityFetch}))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(errors.New("verifier exploded")))
}

func TestStateNames(t *testing.T) {
	assert.Equal(t, "awaiting_callback", AwaitingCallback.String())
	assert.Equal(t, "resolving_identity", ResolvingIdentity.String())
	assert.Equal(t, "state(42)", State(42).String())

	for _, state := range []State{Authorized, Denied, Errored} {
		assert.True(t, state.Terminal(), state.String())
	}
	for _, state := range []State{Idle, AwaitingCallback, Exchanging, ResolvingIdentity, Verifying} {
		assert.False(t, state.Terminal(), state.String())
	}
}
