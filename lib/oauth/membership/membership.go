// Package membership authorizes users based on their membership in
// organizations and teams, as reported by the provider API.
//
// The decision, for a policy.Policy snapshot, is:
//
//  1. A user explicitly allowed is authorized, no API call made.
//  2. With no users and no organizations configured, everyone is authorized.
//     With users but no organizations, anyone else is denied.
//  3. Each organization or team is checked, concurrently. The first
//     confirmed membership authorizes the user, canceling the other checks.
//  4. Otherwise the user is denied.
//
// Errors from the provider never authorize a user: the entry is skipped.
package membership

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/enfabrica/hubauth/lib/khttp/kfetch"
	"github.com/enfabrica/hubauth/lib/kflags"
	"github.com/enfabrica/hubauth/lib/logger"
	"github.com/enfabrica/hubauth/lib/multierror"
	"github.com/enfabrica/hubauth/lib/oauth"
	"github.com/enfabrica/hubauth/lib/oauth/ogithub"
	"github.com/enfabrica/hubauth/lib/oauth/policy"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"
)

var metricChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "hubauth",
	Subsystem: "membership",
	Name:      "checks_total",
	Help:      "Membership checks against the provider, by result",
}, []string{"result"})

// Strategy selects how membership is verified.
type Strategy string

const (
	// Direct asks the provider about the specific user, one call per entry.
	Direct Strategy = "direct"
	// List enumerates the members of each entry, for providers with no direct check.
	List Strategy = "list"
)

const DefaultConcurrency = 4

// errMatched is returned by a check to cancel its siblings.
var errMatched = errors.New("membership confirmed")

// Verifier implements oauth.Authorizer.
type Verifier struct {
	fetcher     kfetch.Fetcher
	api         string
	source      policy.Source
	concurrency int
	strategy    Strategy
	lister      *Lister
}

type Modifier func(*Verifier) error

type Modifiers []Modifier

func (mods Modifiers) Apply(v *Verifier) error {
	for _, m := range mods {
		if err := m(v); err != nil {
			return err
		}
	}
	return nil
}

func WithFetcher(fetcher kfetch.Fetcher) Modifier {
	return func(v *Verifier) error {
		v.fetcher = fetcher
		return nil
	}
}

// WithAPIURL configures the base URL of the provider API.
func WithAPIURL(api string) Modifier {
	return func(v *Verifier) error {
		if api == "" {
			return fmt.Errorf("the api url cannot be empty")
		}
		v.api = api
		return nil
	}
}

// WithSource configures where the policy is read from at each verification.
func WithSource(source policy.Source) Modifier {
	return func(v *Verifier) error {
		v.source = source
		return nil
	}
}

// WithConcurrency limits how many entries are checked in parallel.
func WithConcurrency(n int) Modifier {
	return func(v *Verifier) error {
		if n <= 0 {
			return fmt.Errorf("invalid concurrency %d - must be at least 1", n)
		}
		v.concurrency = n
		return nil
	}
}

func WithStrategy(strategy Strategy) Modifier {
	return func(v *Verifier) error {
		switch strategy {
		case Direct, List:
			v.strategy = strategy
			return nil
		}
		return fmt.Errorf("unknown membership strategy %q - valid: %s, %s", strategy, Direct, List)
	}
}

// WithPageSize configures the number of members requested per page by the List strategy.
func WithPageSize(size int) Modifier {
	return func(v *Verifier) error {
		v.lister.pageSize = size
		return nil
	}
}

// WithUsername configures how to extract the user name from listed members.
func WithUsername(username oauth.UsernameFunc) Modifier {
	return func(v *Verifier) error {
		v.lister.username = username
		return nil
	}
}

func New(mods ...Modifier) (*Verifier, error) {
	v := &Verifier{
		api:         ogithub.DefaultAPIURL,
		source:      policy.NewStore(nil),
		concurrency: DefaultConcurrency,
		strategy:    Direct,
		lister:      &Lister{pageSize: 100, username: ogithub.Username},
	}
	if err := Modifiers(mods).Apply(v); err != nil {
		return nil, err
	}

	if v.fetcher == nil {
		gw, err := kfetch.New()
		if err != nil {
			return nil, err
		}
		v.fetcher = gw
	}
	v.lister.fetcher = v.fetcher
	v.lister.api = v.api
	return v, nil
}

// Lister returns the Lister used by the verifier, configured with the same API.
func (v *Verifier) Lister() *Lister {
	return v.lister
}

// MembershipURL returns the URL checking the membership of username in entry.
func (v *Verifier) MembershipURL(entry policy.Entry, username string) string {
	return MembershipURL(v.api, entry, username)
}

// Authorize checks identity against the current policy snapshot.
func (v *Verifier) Authorize(ctx context.Context, log logger.Logger, identity *oauth.Identity, tok *oauth.AccessToken) (bool, error) {
	return v.IsAuthorized(ctx, log, identity, tok, v.source.Snapshot())
}

func (v *Verifier) IsAuthorized(ctx context.Context, log logger.Logger, identity *oauth.Identity, tok *oauth.AccessToken, p *policy.Policy) (bool, error) {
	if log == nil {
		log = logger.Nil
	}
	if p == nil {
		p = policy.New(nil, nil)
	}
	username := identity.Username

	if len(p.AllowedUsers) > 0 && p.AllowsUser(username) {
		log.Debugf("user %s is explicitly allowed", username)
		return true, nil
	}
	if len(p.AllowedOrganizations) == 0 {
		if len(p.AllowedUsers) == 0 {
			log.Debugf("no allowed users or organizations configured, allowing %s", username)
			return true, nil
		}
		return false, nil
	}

	var lock sync.Mutex
	var notFound, transient []error
	var matched policy.Entry

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.concurrency)
	for _, entry := range p.AllowedOrganizations {
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}

			member, err := v.check(gctx, tok, entry, username)
			if err == nil && member {
				metricChecks.WithLabelValues("member").Inc()
				lock.Lock()
				matched = entry
				lock.Unlock()
				return errMatched
			}
			if err == nil {
				metricChecks.WithLabelValues("not_member").Inc()
				return nil
			}
			// Interrupted by a sibling finding a match.
			if gctx.Err() != nil && ctx.Err() == nil {
				return nil
			}

			err = fmt.Errorf("%s - %w", entry, err)
			lock.Lock()
			defer lock.Unlock()
			if errors.Is(err, oauth.ErrOrgNotFound) {
				metricChecks.WithLabelValues("not_member").Inc()
				notFound = append(notFound, err)
			} else {
				metricChecks.WithLabelValues("error").Inc()
				transient = append(transient, err)
			}
			return nil
		})
	}

	err := g.Wait()
	if errors.Is(err, errMatched) {
		log.Debugf("user %s allowed as member of %s", username, matched)
		return true, nil
	}
	if ctx.Err() != nil {
		return false, fmt.Errorf("membership verification of %s interrupted - %w", username, ctx.Err())
	}

	if err := multierror.New(notFound); err != nil {
		log.Debugf("user %s is not a member of - %s", username, err)
	}
	if err := multierror.New(transient); err != nil {
		log.Warnf("user %s - ignored organizations the provider could not verify - %s", username, err)
	}
	return false, nil
}

// check returns true if username is a member of entry.
func (v *Verifier) check(ctx context.Context, tok *oauth.AccessToken, entry policy.Entry, username string) (bool, error) {
	if v.strategy == List {
		for member, err := range v.lister.Members(ctx, tok, entry) {
			if err != nil {
				return false, err
			}
			if policy.NormalizeUser(member.Username) == policy.NormalizeUser(username) {
				return true, nil
			}
		}
		return false, nil
	}

	url := v.MembershipURL(entry, username)
	resp, err := v.fetcher.Fetch(ctx, &kfetch.Request{URL: url, Header: authorization(tok)})
	if err != nil {
		return false, &oauth.ProviderError{URL: url, Err: oauth.ErrTransientProvider, Cause: err}
	}
	if resp.OK() {
		return true, nil
	}
	return false, statusError(url, resp.Status)
}

type Flags struct {
	Strategy    string
	Concurrency int
	PageSize    int
}

func DefaultFlags() *Flags {
	return &Flags{
		Strategy:    string(Direct),
		Concurrency: DefaultConcurrency,
		PageSize:    100,
	}
}

func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.StringVar(&f.Strategy, prefix+"membership-strategy", f.Strategy,
		"How to verify organization membership: 'direct' asks about the user, 'list' enumerates the members")
	set.IntVar(&f.Concurrency, prefix+"membership-concurrency", f.Concurrency,
		"How many organizations or teams to check in parallel")
	set.IntVar(&f.PageSize, prefix+"membership-page-size", f.PageSize,
		"Members to request per page with --"+prefix+"membership-strategy=list")
	return f
}

func FromFlags(fl *Flags) Modifier {
	return func(v *Verifier) error {
		if err := WithStrategy(Strategy(fl.Strategy))(v); err != nil {
			return kflags.NewUsageErrorf("invalid --membership-strategy: %w", err)
		}
		if err := WithConcurrency(fl.Concurrency)(v); err != nil {
			return kflags.NewUsageErrorf("invalid --membership-concurrency: %w", err)
		}
		return WithPageSize(fl.PageSize)(v)
	}
}

