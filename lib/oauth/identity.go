package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/enfabrica/hubauth/lib/khttp/kfetch"
)

// ResolveIdentity retrieves the profile of the owner of tok, and extracts the user name.
func (a *Authenticator) ResolveIdentity(ctx context.Context, tok *AccessToken) (*Identity, error) {
	header := http.Header{}
	header.Set("Authorization", tok.Authorization())

	resp, err := a.fetcher.Fetch(ctx, &kfetch.Request{URL: a.userURL, Header: header})
	if err != nil {
		return nil, &ProviderError{URL: a.userURL, Err: ErrIdentityFetch, Cause: err}
	}
	if !resp.OK() {
		return nil, &ProviderError{URL: a.userURL, Status: resp.Status, Err: ErrIdentityFetch}
	}

	var profile Profile
	if err := json.Unmarshal(resp.Body, &profile); err != nil {
		return nil, &ProviderError{URL: a.userURL, Status: resp.Status, Err: ErrIdentityFetch, Cause: err}
	}
	if profile == nil {
		return nil, &ProviderError{URL: a.userURL, Status: resp.Status, Err: ErrIdentityFetch, Cause: errors.New("empty profile")}
	}

	username, err := a.username(profile)
	if err == nil && username == "" {
		err = errors.New("profile has no user name")
	}
	if err != nil {
		return nil, &ProviderError{URL: a.userURL, Status: resp.Status, Err: ErrIdentityFetch, Cause: err}
	}

	return &Identity{Username: username, Profile: profile}, nil
}
