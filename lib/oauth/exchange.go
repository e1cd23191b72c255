package oauth

import (
	"context"
	"errors"

	"golang.org/x/oauth2"
)

// Exchange turns the code received in the callback into an AccessToken.
//
// The request goes through the configured Fetcher. There are no retries:
// codes are single use.
func (a *Authenticator) Exchange(ctx context.Context, code string) (*AccessToken, error) {
	if code == "" {
		return nil, &ProviderError{URL: a.conf.Endpoint.TokenURL, Err: ErrTokenExchange, Cause: errors.New("no code in callback")}
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, a.client)
	tok, err := a.conf.Exchange(ctx, code)
	if err != nil {
		perr := &ProviderError{URL: a.conf.Endpoint.TokenURL, Err: ErrTokenExchange, Cause: err}
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			perr.Status = rerr.Response.StatusCode
		}
		return nil, perr
	}
	if tok.AccessToken == "" {
		return nil, &ProviderError{URL: a.conf.Endpoint.TokenURL, Err: ErrTokenExchange, Cause: errors.New("response has no access_token")}
	}

	a.log.Debugf("code exchanged for a %q token", tok.TokenType)
	return &AccessToken{Token: tok.AccessToken, Type: tok.TokenType}, nil
}

// LoginURL returns the URL of the provider to send the user to, carrying state.
func (a *Authenticator) LoginURL(state string) string {
	return a.conf.AuthCodeURL(state)
}
