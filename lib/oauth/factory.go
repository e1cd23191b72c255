package oauth

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"time"

	"github.com/enfabrica/hubauth/lib/kflags"
	"github.com/enfabrica/hubauth/lib/khttp/kcookie"
	"github.com/enfabrica/hubauth/lib/khttp/kfetch"
	"github.com/enfabrica/hubauth/lib/logger"
	"github.com/enfabrica/hubauth/lib/srand"
	"github.com/enfabrica/hubauth/lib/token"
	"golang.org/x/oauth2"
)

type Flags struct {
	// The URL at the end of the oauth authentication process.
	TargetURL string

	// A buffer containing a JSON file with the Credentials struct (below).
	// This is passed to WithSecretJSON().
	OauthSecretJSON []byte

	// Alternative to OauthSecretJSON, OauthSecretID and OauthSecretKey can be used.
	OauthSecretID  string
	OauthSecretKey string

	// How long the user has to complete the login with the provider.
	AuthTime time.Duration

	Scopes []string

	CookieDomain string
	CookiePath   string
	CookieSecure bool

	// Where to send the user after login, if no valid next was supplied.
	DefaultNext string
}

func DefaultFlags() *Flags {
	o := DefaultOptions(nil)
	return &Flags{
		AuthTime:    o.authTime,
		CookiePath:  "/",
		DefaultNext: o.defaultNext,
	}
}

func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.StringVar(&f.TargetURL, prefix+"target-url", f.TargetURL,
		"Absolute URL of the callback handler, as registered with the oauth provider")
	set.ByteFileVar(&f.OauthSecretJSON, prefix+"secret-file", "",
		"Path of the file containing the oauth credentials to use with the remote auth provider")
	set.StringVar(&f.OauthSecretID, prefix+"secret-id", "",
		"Prefer using the --"+prefix+"secret-file option - as it hides the secret from 'ps'. ID of the client to use with the oauth provider")
	set.StringVar(&f.OauthSecretKey, prefix+"secret-key", "",
		"Prefer using the --"+prefix+"secret-file option - as it hides the secret from 'ps'. Secret key of the client to use with the oauth provider")
	set.DurationVar(&f.AuthTime, prefix+"auth-time", f.AuthTime,
		"How long the state forwarded to the remote oauth server is valid for. This bounds how long the oauth authentication process can take at most")
	set.StringArrayVar(&f.Scopes, prefix+"scopes", f.Scopes,
		"Scopes to request to the provider, if not set the provider defaults are used")
	set.StringVar(&f.CookieDomain, prefix+"cookie-domain", f.CookieDomain,
		"Domain of the cookies set, defaults to the host of the request")
	set.StringVar(&f.CookiePath, prefix+"cookie-path", f.CookiePath,
		"Path of the cookies set")
	set.BoolVar(&f.CookieSecure, prefix+"cookie-secure", f.CookieSecure,
		"Only send cookies over https")
	set.StringVar(&f.DefaultNext, prefix+"default-next", f.DefaultNext,
		"Local path to send users to after login, when the login did not ask for a specific page")
	return f
}

// Credentials structs are generally read from json files.
// They contain the oauth credentials used by the remote service to recognize the client.
type Credentials struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

type Modifier func(auth *Options) error
type Modifiers []Modifier

func (mods Modifiers) Apply(o *Options) error {
	for _, m := range mods {
		if err := m(o); err != nil {
			return err
		}
	}
	return nil
}

func WithTargetURL(url string) Modifier {
	return func(opt *Options) error {
		opt.conf.RedirectURL = url
		return nil
	}
}

func WithScopes(scopes []string) Modifier {
	return func(opt *Options) error {
		opt.conf.Scopes = append([]string{}, scopes...)
		return nil
	}
}

func WithSecrets(cid, csecret string) Modifier {
	return func(opt *Options) error {
		if cid != "" {
			opt.conf.ClientID = cid
		}

		if csecret != "" {
			opt.conf.ClientSecret = csecret
		}
		return nil
	}
}

func WithSecretJSON(data []byte) Modifier {
	return func(opt *Options) error {
		var cred Credentials
		if err := json.Unmarshal(data, &cred); err != nil {
			return fmt.Errorf("invalid credentials - %w", err)
		}
		return WithSecrets(cred.ID, cred.Secret)(opt)
	}
}

func WithSecretFile(path string) Modifier {
	return func(opt *Options) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		return WithSecretJSON(data)(opt)
	}
}

func WithEndpoint(endpoint oauth2.Endpoint) Modifier {
	return func(opt *Options) error {
		opt.conf.Endpoint = endpoint
		return nil
	}
}

// WithUserInfo configures the URL returning the profile of the user, and
// how to extract the user name from it.
func WithUserInfo(userURL string, username UsernameFunc) Modifier {
	return func(opt *Options) error {
		opt.userURL = userURL
		opt.username = username
		return nil
	}
}

// WithAuthorizer configures who is allowed in. Mandatory.
func WithAuthorizer(authorizer Authorizer) Modifier {
	return func(opt *Options) error {
		opt.authorizer = authorizer
		return nil
	}
}

// WithFetcher configures the Fetcher used for all requests to the provider.
func WithFetcher(fetcher kfetch.Fetcher) Modifier {
	return func(opt *Options) error {
		opt.fetcher = fetcher
		return nil
	}
}

func WithLogging(log logger.Logger) Modifier {
	return func(opt *Options) error {
		opt.log = log
		return nil
	}
}

func WithRng(rng *rand.Rand) Modifier {
	return func(o *Options) error {
		o.rng = rng
		return nil
	}
}

func WithAuthTime(at time.Duration) Modifier {
	return func(opt *Options) error {
		opt.authTime = at
		return nil
	}
}

// WithTimeSource overrides the clock used to check the age of states.
func WithTimeSource(now token.TimeSource) Modifier {
	return func(opt *Options) error {
		opt.now = now
		return nil
	}
}

func WithCookieOptions(mods ...kcookie.Modifier) Modifier {
	return func(opt *Options) error {
		opt.cookieOptions = append(opt.cookieOptions, mods...)
		return nil
	}
}

// WithSessionCookie configures the name of the session cookie of the host,
// removed on logout.
func WithSessionCookie(name string) Modifier {
	return func(opt *Options) error {
		opt.sessionCookie = name
		return nil
	}
}

func WithDefaultNext(next string) Modifier {
	return func(opt *Options) error {
		if SafeRedirect(next, "") == "" {
			return fmt.Errorf("invalid default next %q - must be a local path", next)
		}
		opt.defaultNext = next
		return nil
	}
}

func WithModifiers(mods ...Modifier) Modifier {
	return func(opt *Options) error {
		return Modifiers(mods).Apply(opt)
	}
}

func WithFlags(fl *Flags) Modifier {
	return func(o *Options) error {
		if len(fl.OauthSecretJSON) == 0 && (fl.OauthSecretID == "" || fl.OauthSecretKey == "") {
			return kflags.NewUsageErrorf("you must specify the secret-file or (secret-key and secret-id) options")
		}
		if fl.TargetURL == "" {
			return kflags.NewUsageErrorf("you must specify the target-url flag")
		}
		if u, err := url.Parse(fl.TargetURL); err != nil || u.Host == "" {
			return kflags.NewUsageErrorf("invalid --target-url %q - must be an absolute URL", fl.TargetURL)
		}

		mods := []Modifier{WithTargetURL(fl.TargetURL)}
		if len(fl.OauthSecretJSON) > 0 {
			mods = append(mods, WithSecretJSON(fl.OauthSecretJSON))
		}
		if len(fl.Scopes) > 0 {
			mods = append(mods, WithScopes(fl.Scopes))
		}

		cookie := kcookie.Modifiers{kcookie.WithSecure(fl.CookieSecure)}
		if fl.CookiePath != "" {
			cookie = append(cookie, kcookie.WithPath(fl.CookiePath))
		}
		if fl.CookieDomain != "" {
			cookie = append(cookie, kcookie.WithDomain(fl.CookieDomain))
		}
		mods = append(mods, WithCookieOptions(cookie...), WithAuthTime(fl.AuthTime), WithSecrets(fl.OauthSecretID, fl.OauthSecretKey))
		if fl.DefaultNext != "" {
			mods = append(mods, WithDefaultNext(fl.DefaultNext))
		}
		return Modifiers(mods).Apply(o)
	}
}

type Options struct {
	rng      *rand.Rand
	log      logger.Logger
	authTime time.Duration // How long the user has to complete authentication.
	now      token.TimeSource

	conf       *oauth2.Config
	fetcher    kfetch.Fetcher
	userURL    string
	username   UsernameFunc
	authorizer Authorizer

	cookieOptions kcookie.Modifiers
	sessionCookie string
	defaultNext   string
}

func DefaultOptions(rng *rand.Rand) Options {
	return Options{
		rng:         rng,
		log:         logger.Nil,
		authTime:    time.Minute * 30,
		conf:        &oauth2.Config{},
		defaultNext: "/",
	}
}

// Config returns the oauth2 configuration being built, for providers that
// need to look at it.
func (opt *Options) Config() *oauth2.Config {
	return opt.conf
}

func (opt *Options) NewAuthenticator() (*Authenticator, error) {
	if opt.conf.RedirectURL == "" {
		return nil, fmt.Errorf("API used incorrectly - must supply a target auth url with WithTargetURL")
	}
	if opt.conf.ClientID == "" || opt.conf.ClientSecret == "" {
		return nil, fmt.Errorf("API used incorrectly - must supply secrets with WithSecrets")
	}
	if opt.authorizer == nil {
		return nil, fmt.Errorf("API used incorrectly - must supply an authorizer with WithAuthorizer")
	}
	if len(opt.conf.Scopes) == 0 {
		return nil, fmt.Errorf("API used incorrectly - no scopes configured")
	}
	if opt.conf.Endpoint.AuthURL == "" || opt.conf.Endpoint.TokenURL == "" {
		return nil, fmt.Errorf("API used incorrectly - endpoint has no AuthURL or TokenURL - %#v", opt.conf.Endpoint)
	}
	if opt.userURL == "" || opt.username == nil {
		return nil, fmt.Errorf("API used incorrectly - must supply the user info url with WithUserInfo")
	}
	if opt.authTime <= 0 {
		return nil, fmt.Errorf("API used incorrectly - auth time must be positive, got %s", opt.authTime)
	}

	rng := opt.rng
	if rng == nil {
		rng = srand.New()
	}
	log := opt.log
	if log == nil {
		log = logger.Nil
	}
	fetcher := opt.fetcher
	if fetcher == nil {
		gw, err := kfetch.New(kfetch.WithLogger(log))
		if err != nil {
			return nil, err
		}
		fetcher = gw
	}

	return &Authenticator{
		log:           log,
		rng:           rng,
		conf:          opt.conf,
		fetcher:       fetcher,
		client:        kfetch.HTTPClient(fetcher),
		userURL:       opt.userURL,
		username:      opt.username,
		authorizer:    opt.authorizer,
		states:        NewStateCodec(opt.authTime, opt.now),
		cookieOptions: opt.cookieOptions,
		sessionCookie: opt.sessionCookie,
		defaultNext:   opt.defaultNext,
	}, nil
}

func New(rng *rand.Rand, modifiers ...Modifier) (*Authenticator, error) {
	options := DefaultOptions(rng)
	if err := Modifiers(modifiers).Apply(&options); err != nil {
		return nil, err
	}
	return options.NewAuthenticator()
}
