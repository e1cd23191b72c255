package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/enfabrica/hubauth/lib/kflags"
	"github.com/enfabrica/hubauth/lib/khttp/kcookie"
	"github.com/enfabrica/hubauth/lib/oauth"
	"github.com/enfabrica/hubauth/lib/token"
)

const SessionCookieName = "hubauth-session"

// Session is stored, encrypted, in the session cookie of the user.
type Session struct {
	Name string `json:"name"`
}

type SessionFlags struct {
	// Raw AES key, 16, 24 or 32 bytes. A random key is generated if empty.
	Key      []byte
	Validity time.Duration
}

func DefaultSessionFlags() *SessionFlags {
	return &SessionFlags{Validity: 24 * time.Hour}
}

func (f *SessionFlags) Register(set kflags.FlagSet, prefix string) *SessionFlags {
	set.ByteFileVar(&f.Key, prefix+"session-key-file", "",
		"File with the raw AES key used to encrypt session cookies. If not set, a random key is generated, and sessions do not survive restarts")
	set.DurationVar(&f.Validity, prefix+"session-time", f.Validity,
		"How long a session is valid for after login")
	return f
}

// Sessions encodes and decodes session cookies.
type Sessions struct {
	// The encoder uses a rand.Rand for nonces, not safe for concurrent use.
	lock    sync.Mutex
	encoder *token.TypeEncoder
	options kcookie.Modifiers
}

func NewSessions(rng *rand.Rand, fl *SessionFlags, options ...kcookie.Modifier) (*Sessions, error) {
	if fl.Validity <= 0 {
		return nil, kflags.NewUsageErrorf("invalid --session-time %s - must be positive", fl.Validity)
	}
	setter := token.WithGeneratedSymmetricKey(0)
	if len(fl.Key) > 0 {
		setter = token.UseSymmetricKey(fl.Key)
	}
	symmetric, err := token.NewSymmetricEncoder(rng, setter)
	if err != nil {
		return nil, kflags.NewUsageErrorf("invalid --session-key-file: %w", err)
	}

	return &Sessions{
		encoder: token.NewTypeEncoder(token.NewChainedEncoder(
			token.NewTimeEncoder(nil, fl.Validity),
			symmetric,
			token.NewBase64UrlEncoder(),
		)),
		options: options,
	}, nil
}

// Start creates the session of a user that just logged in.
func (s *Sessions) Start(host *oauth.HTTPHost, result *oauth.AuthResult) error {
	s.lock.Lock()
	value, err := s.encoder.Encode(&Session{Name: result.Name})
	s.lock.Unlock()
	if err != nil {
		return fmt.Errorf("could not encode session - %w", err)
	}
	host.SetCookie(kcookie.New(SessionCookieName, string(value), append(kcookie.Modifiers{kcookie.WithSameSite(http.SameSiteLaxMode)}, s.options...)...))
	return nil
}

// Get returns the session of the request, nil if there is none or it is invalid.
func (s *Sessions) Get(r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie.Value == "" {
		return nil, nil
	}

	var session Session
	if _, err := s.encoder.Decode(context.Background(), []byte(cookie.Value), &session); err != nil {
		return nil, err
	}
	if session.Name == "" {
		return nil, fmt.Errorf("session has no user")
	}
	return &session, nil
}
