// Package kfetch provides the single chokepoint used for all outbound HTTP
// calls to an identity provider.
//
// A Gateway applies default headers, proxy configuration, a per call
// timeout, an optional rate limit, and caps the size of the body read.
// It never retries.
//
//	gw, err := kfetch.New(kfetch.WithProxy("http://proxy:3128"), kfetch.WithTimeout(10*time.Second))
//	resp, err := gw.Fetch(ctx, &kfetch.Request{URL: "https://api.github.com/user"})
//
// Non 2xx responses are not errors: the caller decides what a status means.
package kfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/enfabrica/hubauth/lib/logger"
	"golang.org/x/time/rate"
)

// Request is a fully materialized outbound request.
type Request struct {
	// Method defaults to GET.
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a fully read response.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// OK returns true for 2xx statuses.
func (r *Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

// Fetcher is the interface consumed by everything talking to a provider.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

var (
	// ErrBodyTooLarge is returned when the response body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body too large")
	// ErrRateLimited is returned when the context expires while waiting for the rate limiter.
	ErrRateLimited = errors.New("rate limit wait aborted")
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultMaxBody   = 8 << 20
	DefaultUserAgent = "hubauth"
)

type Options struct {
	proxy     *url.URL
	transport http.RoundTripper
	timeout   time.Duration
	header    http.Header
	limiter   *rate.Limiter
	maxBody   int64
	log       logger.Logger
}

type Modifier func(*Options) error

type Modifiers []Modifier

func (mods Modifiers) Apply(o *Options) error {
	for _, m := range mods {
		if err := m(o); err != nil {
			return err
		}
	}
	return nil
}

// WithProxy routes all requests through the proxy at the specified URL.
func WithProxy(proxy string) Modifier {
	return func(o *Options) error {
		if proxy == "" {
			o.proxy = nil
			return nil
		}
		u, err := url.Parse(proxy)
		if err != nil {
			return fmt.Errorf("invalid proxy url %q - %w", proxy, err)
		}
		if u.Host == "" {
			return fmt.Errorf("invalid proxy url %q - no host specified", proxy)
		}
		o.proxy = u
		return nil
	}
}

// WithProxyHostPort routes all requests through an http proxy at host:port.
func WithProxyHostPort(host string, port int) Modifier {
	return func(o *Options) error {
		if host == "" {
			return nil
		}
		if port <= 0 || port > 65535 {
			return fmt.Errorf("invalid proxy port %d", port)
		}
		return WithProxy("http://" + host + ":" + strconv.Itoa(port))(o)
	}
}

// WithTimeout bounds each call, in addition to the deadline of the context passed to Fetch.
func WithTimeout(timeout time.Duration) Modifier {
	return func(o *Options) error {
		o.timeout = timeout
		return nil
	}
}

func WithUserAgent(agent string) Modifier {
	return WithHeader("User-Agent", agent)
}

// WithHeader adds a default header, used when the request does not set one.
func WithHeader(key, value string) Modifier {
	return func(o *Options) error {
		o.header.Set(key, value)
		return nil
	}
}

// WithTransport replaces the transport. The proxy can only be applied to
// *http.Transport objects.
func WithTransport(rt http.RoundTripper) Modifier {
	return func(o *Options) error {
		o.transport = rt
		return nil
	}
}

// WithRateLimit allows at most rps requests per second, with bursts of burst.
// A rps <= 0 disables rate limiting.
func WithRateLimit(rps float64, burst int) Modifier {
	return func(o *Options) error {
		if rps <= 0 {
			o.limiter = nil
			return nil
		}
		if burst <= 0 {
			burst = 1
		}
		o.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

func WithMaxBody(size int64) Modifier {
	return func(o *Options) error {
		o.maxBody = size
		return nil
	}
}

func WithLogger(log logger.Logger) Modifier {
	return func(o *Options) error {
		o.log = log
		return nil
	}
}

func DefaultOptions() *Options {
	header := http.Header{}
	header.Set("User-Agent", DefaultUserAgent)
	header.Set("Accept", "application/json")
	return &Options{
		timeout: DefaultTimeout,
		header:  header,
		maxBody: DefaultMaxBody,
		log:     logger.Nil,
	}
}

// Gateway is the default Fetcher.
type Gateway struct {
	client  *http.Client
	timeout time.Duration
	header  http.Header
	limiter *rate.Limiter
	maxBody int64
	log     logger.Logger
}

func New(mods ...Modifier) (*Gateway, error) {
	o := DefaultOptions()
	if err := Modifiers(mods).Apply(o); err != nil {
		return nil, err
	}
	return o.New()
}

func (o *Options) New() (*Gateway, error) {
	transport := o.transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	if o.proxy != nil {
		ht, ok := transport.(*http.Transport)
		if !ok {
			return nil, fmt.Errorf("a proxy was configured, but the transport %T does not support proxies", transport)
		}
		ht = ht.Clone()
		ht.Proxy = http.ProxyURL(o.proxy)
		transport = ht
	}

	return &Gateway{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: o.timeout,
		header:  o.header.Clone(),
		limiter: o.limiter,
		maxBody: o.maxBody,
		log:     o.log,
	}, nil
}

func (g *Gateway) Fetch(ctx context.Context, req *Request) (*Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%s %s - %w: %v", req.method(), req.URL, ErrRateLimited, err)
		}
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	hreq, err := http.NewRequestWithContext(ctx, req.method(), req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("invalid request for %s - %w", req.URL, err)
	}
	for key, values := range req.Header {
		hreq.Header[key] = append([]string{}, values...)
	}
	for key, values := range g.header {
		if hreq.Header.Get(key) == "" {
			hreq.Header[key] = append([]string{}, values...)
		}
	}

	start := time.Now()
	resp, err := g.client.Do(hreq)
	if err != nil {
		g.log.Debugf("fetch %s %s failed after %s - %s", hreq.Method, req.URL, time.Since(start), err)
		return nil, fmt.Errorf("%s %s - %w", hreq.Method, req.URL, err)
	}
	defer resp.Body.Close()

	limited := io.Reader(resp.Body)
	if g.maxBody > 0 {
		limited = io.LimitReader(resp.Body, g.maxBody+1)
	}
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%s %s - reading body - %w", hreq.Method, req.URL, err)
	}
	if g.maxBody > 0 && int64(len(data)) > g.maxBody {
		return nil, fmt.Errorf("%s %s - %w (limit %d bytes)", hreq.Method, req.URL, ErrBodyTooLarge, g.maxBody)
	}

	g.log.Debugf("fetch %s %s -> %d in %s", hreq.Method, req.URL, resp.StatusCode, time.Since(start))
	return &Response{Status: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (r *Request) method() string {
	if r.Method == "" {
		return http.MethodGet
	}
	return r.Method
}

// HTTPClient returns an *http.Client whose requests are all sent through f.
//
// Use it to hand the gateway to libraries that only take an *http.Client,
// like golang.org/x/oauth2.
func HTTPClient(f Fetcher) *http.Client {
	return &http.Client{Transport: &roundTripper{fetcher: f}}
}

// HTTPClient returns an *http.Client sending requests through the gateway.
func (g *Gateway) HTTPClient() *http.Client {
	return HTTPClient(g)
}

type roundTripper struct {
	fetcher Fetcher
}

func (rt *roundTripper) RoundTrip(hreq *http.Request) (*http.Response, error) {
	req := &Request{Method: hreq.Method, URL: hreq.URL.String(), Header: hreq.Header.Clone()}
	if hreq.Body != nil {
		data, err := io.ReadAll(hreq.Body)
		hreq.Body.Close()
		if err != nil {
			return nil, err
		}
		req.Body = data
	}

	resp, err := rt.fetcher.Fetch(hreq.Context(), req)
	if err != nil {
		return nil, err
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", resp.Status, http.StatusText(resp.Status)),
		StatusCode:    resp.Status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        resp.Header,
		Body:          io.NopCloser(bytes.NewReader(resp.Body)),
		ContentLength: int64(len(resp.Body)),
		Request:       hreq,
	}, nil
}
