package oauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/enfabrica/hubauth/lib/config/marshal"
	"github.com/enfabrica/hubauth/lib/token"
	"github.com/google/uuid"
)

// LoginState is passed to the provider as state, and stored in the state cookie.
//
// The callback is accepted only if the state returned by the provider carries
// the same StateID as the cookie.
type LoginState struct {
	StateID string `json:"state_id"`
	Next    string `json:"next,omitempty"`
}

// NewLoginState creates a LoginState with a fresh random id, 32 hex characters.
func NewLoginState(rng io.Reader, next string) (LoginState, error) {
	id, err := uuid.NewRandomFromReader(rng)
	if err != nil {
		return LoginState{}, fmt.Errorf("could not generate state id - %w", err)
	}
	return LoginState{StateID: strings.ReplaceAll(id.String(), "-", ""), Next: next}, nil
}

// StateCodec turns a LoginState into an url safe string and back.
//
// The encoding is reversible, not encrypted: json, prefixed by the time of
// issue, in base64. States older than the configured validity are rejected.
type StateCodec struct {
	encoder *token.TypeEncoder
}

// NewStateCodec creates a codec. A nil source means time.Now.
func NewStateCodec(validity time.Duration, source token.TimeSource) *StateCodec {
	return &StateCodec{
		encoder: token.NewTypeEncoder(token.NewChainedEncoder(
			token.NewTimeEncoder(source, validity),
			token.NewBase64UrlEncoder(),
		), token.WithMarshaller(marshal.Json)),
	}
}

func (c *StateCodec) Encode(state LoginState) (string, error) {
	data, err := c.encoder.Encode(state)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode never returns partial states: all errors wrap ErrMalformedState.
func (c *StateCodec) Decode(value string) (LoginState, error) {
	if value == "" {
		return LoginState{}, fmt.Errorf("%w - empty state", ErrMalformedState)
	}

	var state LoginState
	if _, err := c.encoder.Decode(context.Background(), []byte(value), &state); err != nil {
		if errors.Is(err, token.ExpiredError) {
			return LoginState{}, fmt.Errorf("%w - login took too long: %w", ErrMalformedState, err)
		}
		return LoginState{}, fmt.Errorf("%w - %w", ErrMalformedState, err)
	}
	if state.StateID == "" {
		return LoginState{}, fmt.Errorf("%w - no state_id", ErrMalformedState)
	}
	return state, nil
}

// SafeRedirect returns next if it is a path on the same origin, fallback otherwise.
//
// Absolute URLs, scheme relative URLs (//host), and paths containing
// backslashes, which some browsers treat as slashes, are all rejected.
func SafeRedirect(next, fallback string) string {
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n\t") {
		return fallback
	}
	u, err := url.Parse(next)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return fallback
	}
	return next
}
