package khttp

import (
	"net/http"
	"net/url"
	"strings"
)

// JoinURLQuery takes two escaped query strings (eg, what follows after the ? in a URL)
// and joins them into one query string.
func JoinURLQuery(q1, q2 string) string {
	if q1 == "" || q2 == "" {
		return q1 + q2
	}

	return q1 + "&" + q2
}

// HasQueryKey returns true if the raw query string contains key, with or without a value.
//
// Unlike url.Values.Has, parsing errors in unrelated parameters are ignored.
func HasQueryKey(rawquery, key string) bool {
	for _, param := range strings.Split(rawquery, "&") {
		name, _, _ := strings.Cut(param, "=")
		if unescaped, err := url.QueryUnescape(name); err == nil && unescaped == key {
			return true
		}
	}
	return false
}

// RequestURL approximates the URL the browser requested from an http.Request.
//
// Note that RequestURL can only return an approximation: it assumes that if the
// connection was encrypted it must have been done using https, while if it wasn't,
// it must have been done via HTTP.
//
// Reverse proxies and load balancers may end up mingling with the request
// headers, so by the time RequestURL is called, who knows what the browser
// actually supplied.
func RequestURL(req *http.Request) *url.URL {
	u := *req.URL
	if u.Host == "" {
		u.Host = req.Host
	}

	if req.TLS != nil {
		u.Scheme = "https"
	} else {
		u.Scheme = "http"
	}

	return &u
}
