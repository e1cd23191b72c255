package kfetch

import (
	"context"
	"flag"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/enfabrica/hubauth/lib/kflags"
	"github.com/enfabrica/hubauth/lib/khttp/ktest"
	"github.com/enfabrica/hubauth/lib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultHeaders(t *testing.T) {
	rec := ktest.Capture(ktest.JSONHandler(http.StatusOK, `{}`))
	server := httptest.NewServer(rec)
	defer server.Close()

	gw, err := New()
	require.NoError(t, err)

	resp, err := gw.Fetch(context.Background(), &Request{URL: server.URL + "/user"})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "{}", string(resp.Body))

	header := http.Header{}
	header.Set("Accept", "application/vnd.github.v3+json")
	_, err = gw.Fetch(context.Background(), &Request{URL: server.URL + "/user", Header: header})
	require.NoError(t, err)

	reqs := rec.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, DefaultUserAgent, reqs[0].Header.Get("User-Agent"))
	assert.Equal(t, "application/json", reqs[0].Header.Get("Accept"))
	assert.Equal(t, "application/vnd.github.v3+json", reqs[1].Header.Get("Accept"))
	assert.Equal(t, http.MethodGet, reqs[1].Method)
}

func TestNon2xxIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(ktest.StatusHandler(http.StatusNotFound)))
	defer server.Close()

	gw, err := New()
	require.NoError(t, err)
	resp, err := gw.Fetch(context.Background(), &Request{URL: server.URL})
	require.NoError(t, err)
	assert.False(t, resp.OK())
	assert.Equal(t, http.StatusNotFound, resp.Status)
}

func TestProxy(t *testing.T) {
	rec := ktest.Capture(ktest.JSONHandler(http.StatusOK, `{"proxied":true}`))
	proxy := httptest.NewServer(rec)
	defer proxy.Close()

	pu, err := url.Parse(proxy.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(pu.Port())
	require.NoError(t, err)

	gw, err := New(WithProxyHostPort(pu.Hostname(), port))
	require.NoError(t, err)

	resp, err := gw.Fetch(context.Background(), &Request{URL: "http://api.github.invalid/user"})
	require.NoError(t, err)
	assert.Equal(t, `{"proxied":true}`, string(resp.Body))
	require.Len(t, rec.Requests(), 1)
	assert.Equal(t, "http://api.github.invalid/user", rec.Requests()[0].URL.String())

	_, err = New(WithProxy("not a url"))
	assert.Error(t, err)
	_, err = New(WithProxyHostPort("proxy", 0))
	assert.Error(t, err)
	_, err = New(WithProxy(proxy.URL), WithTransport(roundTripperFunc(nil)))
	assert.Error(t, err)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func TestTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(ktest.HangingHandler))
	defer server.Close()

	gw, err := New(WithTimeout(50 * time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	_, err = gw.Fetch(context.Background(), &Request{URL: server.URL})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestMaxBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(ktest.StringHandler(strings.Repeat("x", 100))))
	defer server.Close()

	gw, err := New(WithMaxBody(10))
	require.NoError(t, err)
	_, err = gw.Fetch(context.Background(), &Request{URL: server.URL})
	assert.ErrorIs(t, err, ErrBodyTooLarge)

	gw, err = New(WithMaxBody(100))
	require.NoError(t, err)
	resp, err := gw.Fetch(context.Background(), &Request{URL: server.URL})
	require.NoError(t, err)
	assert.Len(t, resp.Body, 100)
}

func TestRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(ktest.StatusHandler(http.StatusNoContent)))
	defer server.Close()

	gw, err := New(WithRateLimit(0.001, 1))
	require.NoError(t, err)

	_, err = gw.Fetch(context.Background(), &Request{URL: server.URL})
	require.NoError(t, err)

	// The burst is consumed, the next token is ~16 minutes away.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = gw.Fetch(ctx, &Request{URL: server.URL})
	assert.ErrorIs(t, err, ErrRateLimited)
}

func TestHTTPClient(t *testing.T) {
	rec := ktest.Capture(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"code":"`+r.PostForm.Get("code")+`"}`)
	})
	server := httptest.NewServer(rec)
	defer server.Close()

	accumulator := logger.NewAccumulator()
	gw, err := New(WithLogger(accumulator))
	require.NoError(t, err)

	resp, err := gw.HTTPClient().PostForm(server.URL+"/login/oauth/access_token", url.Values{"code": {"1234"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"code":"1234"}`, string(body))
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, []string{"/login/oauth/access_token"}, rec.Paths())
	assert.Equal(t, DefaultUserAgent, rec.Requests()[0].Header.Get("User-Agent"))
	assert.NotEmpty(t, accumulator.Matching(logger.DebugPriority, "/login/oauth/access_token"))
}

func TestFlags(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fl := DefaultFlags().Register(&kflags.GoFlagSet{FlagSet: fs}, "")
	require.NoError(t, fs.Parse([]string{"--http-proxy", "http://proxy.internal:3128", "--http-timeout", "5s", "--http-user-agent", "hub/1.0", "--http-rate-limit", "2.5"}))

	o := DefaultOptions()
	require.NoError(t, FromFlags(fl)(o))
	assert.Equal(t, "proxy.internal:3128", o.proxy.Host)
	assert.Equal(t, 5*time.Second, o.timeout)
	assert.Equal(t, "hub/1.0", o.header.Get("User-Agent"))
	require.NotNil(t, o.limiter)
	assert.Equal(t, 10, o.limiter.Burst())

	fl.Proxy = "://bad"
	err := FromFlags(fl)(DefaultOptions())
	var usage *kflags.UsageError
	assert.ErrorAs(t, err, &usage)
}
