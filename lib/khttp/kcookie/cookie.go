// Package kcookie is a collection of utilities to more easily compose cookies.
package kcookie

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"
)

type Modifier func(*http.Cookie)

func WithSecure(value bool) Modifier {
	return func(cookie *http.Cookie) {
		cookie.Secure = value
	}
}

func WithPath(path string) Modifier {
	return func(cookie *http.Cookie) {
		cookie.Path = path
	}
}

func WithDomain(domain string) Modifier {
	return func(cookie *http.Cookie) {
		cookie.Domain = domain
	}
}

func WithExpires(when time.Time) Modifier {
	return func(cookie *http.Cookie) {
		cookie.Expires = when
	}
}

func WithSameSite(same http.SameSite) Modifier {
	return func(cookie *http.Cookie) {
		cookie.SameSite = same
	}
}

func WithMaxAge(seconds int) Modifier {
	return func(cookie *http.Cookie) {
		cookie.MaxAge = seconds
	}
}

// WithHttpOnly overrides the default HttpOnly set by New.
func WithHttpOnly(value bool) Modifier {
	return func(cookie *http.Cookie) {
		cookie.HttpOnly = value
	}
}

type Modifiers []Modifier

func (cg Modifiers) Apply(base *http.Cookie) *http.Cookie {
	for _, cm := range cg {
		cm(base)
	}
	return base
}

func New(name, value string, co ...Modifier) *http.Cookie {
	return Modifiers(co).Apply(&http.Cookie{
		Name:     name,
		Value:    value,
		HttpOnly: true,
	})
}

// Clear returns a cookie that causes the browser to delete the cookie
// called name. Path and domain must match the ones the cookie was set with.
func Clear(name string, co ...Modifier) *http.Cookie {
	cookie := New(name, "", co...)
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	return cookie
}

// NewJar returns a browser like jar, used by test clients to follow the flow.
func NewJar() (http.CookieJar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("can't create default CookieJar: %w", err)
	}
	return jar, nil
}
