package kfetch

import (
	"time"

	"github.com/enfabrica/hubauth/lib/kflags"
)

type Flags struct {
	Proxy     string
	Timeout   time.Duration
	UserAgent string
	RateLimit float64
	RateBurst int
}

func DefaultFlags() *Flags {
	return &Flags{
		Timeout:   DefaultTimeout,
		UserAgent: DefaultUserAgent,
		RateBurst: 10,
	}
}

func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.StringVar(&f.Proxy, prefix+"http-proxy", f.Proxy,
		"Proxy to use for all the requests to the identity provider, as in http://host:port")
	set.DurationVar(&f.Timeout, prefix+"http-timeout", f.Timeout,
		"How long to wait at most for each request to the identity provider")
	set.StringVar(&f.UserAgent, prefix+"http-user-agent", f.UserAgent,
		"User-Agent header sent to the identity provider")
	set.Float64Var(&f.RateLimit, prefix+"http-rate-limit", f.RateLimit,
		"Maximum number of requests per second to the identity provider, 0 means unlimited")
	set.IntVar(&f.RateBurst, prefix+"http-rate-burst", f.RateBurst,
		"Number of requests allowed in a burst above --http-rate-limit")
	return f
}

// FromFlags returns a modifier applying the options configured via flags.
func FromFlags(fl *Flags) Modifier {
	return func(o *Options) error {
		if fl == nil {
			return nil
		}
		if fl.Timeout < 0 {
			return kflags.NewUsageErrorf("invalid --http-timeout %s - cannot be negative", fl.Timeout)
		}
		if err := WithProxy(fl.Proxy)(o); err != nil {
			return kflags.NewUsageErrorf("invalid --http-proxy: %w", err)
		}

		mods := Modifiers{WithTimeout(fl.Timeout), WithRateLimit(fl.RateLimit, fl.RateBurst)}
		if fl.UserAgent != "" {
			mods = append(mods, WithUserAgent(fl.UserAgent))
		}
		return mods.Apply(o)
	}
}
