// Package ogithub configures the oauth library to authenticate with github,
// or a github enterprise installation.
package ogithub

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/enfabrica/hubauth/lib/kflags"
	"github.com/enfabrica/hubauth/lib/oauth"
	gh "github.com/google/go-github/github"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	DefaultURL    = "https://github.com"
	DefaultAPIURL = "https://api.github.com"
)

// DefaultScopes allow to check private organization membership.
var DefaultScopes = []string{"read:org"}

type Flags struct {
	// Base URL of the web interface, hosting the login pages.
	URL string
	// Base URL of the REST API.
	APIURL string
}

func DefaultFlags() *Flags {
	return &Flags{
		URL:    DefaultURL,
		APIURL: DefaultAPIURL,
	}
}

func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.StringVar(&f.URL, prefix+"url", f.URL,
		"Base URL of github, change for github enterprise installations")
	set.StringVar(&f.APIURL, prefix+"api-url", f.APIURL,
		"Base URL of the github API, on enterprise installations generally https://<host>/api/v3")
	return f
}

// Endpoint returns the oauth2 endpoint of the github installation at base.
func Endpoint(base string) oauth2.Endpoint {
	base = strings.TrimRight(base, "/")
	if base == "" || base == DefaultURL {
		endpoint := github.Endpoint
		endpoint.AuthStyle = oauth2.AuthStyleInParams
		return endpoint
	}
	return oauth2.Endpoint{
		AuthURL:   base + "/login/oauth/authorize",
		TokenURL:  base + "/login/oauth/access_token",
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// UserURL returns the URL returning the profile of the authenticated user.
func UserURL(api string) string {
	return strings.TrimRight(api, "/") + "/user"
}

// User decodes a profile returned by the github API.
func User(profile oauth.Profile) (*gh.User, error) {
	data, err := json.Marshal(profile)
	if err != nil {
		return nil, err
	}
	var user gh.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("invalid github user - %w", err)
	}
	return &user, nil
}

// Username returns the login of a github user.
func Username(profile oauth.Profile) (string, error) {
	user, err := User(profile)
	if err != nil {
		return "", err
	}
	if user.GetLogin() == "" {
		return "", fmt.Errorf("github user has no login")
	}
	return user.GetLogin(), nil
}

// Defaults configures public github.
func Defaults() oauth.Modifier {
	return FromFlags(DefaultFlags())
}

func FromFlags(fl *Flags) oauth.Modifier {
	return func(o *oauth.Options) error {
		if fl.APIURL == "" {
			return kflags.NewUsageErrorf("the github api url cannot be empty")
		}
		mods := []oauth.Modifier{
			oauth.WithEndpoint(Endpoint(fl.URL)),
			oauth.WithUserInfo(UserURL(fl.APIURL), Username),
		}
		if len(o.Config().Scopes) == 0 {
			mods = append(mods, oauth.WithScopes(DefaultScopes))
		}
		return oauth.Modifiers(mods).Apply(o)
	}
}
