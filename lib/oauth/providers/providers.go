// Package providers brings up a complete github authenticator, with the
// organization and team based authorization, almost entirely controlled by
// flags.
//
//	fl := providers.DefaultFlags().Register(&kcobra.FlagSet{...}, "")
//	[...]
//	setup, err := providers.FromFlags(rng, log, fl)
//	watcher, err := setup.Watch(ctx)
package providers

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/enfabrica/hubauth/lib/kflags"
	"github.com/enfabrica/hubauth/lib/khttp/kfetch"
	"github.com/enfabrica/hubauth/lib/logger"
	"github.com/enfabrica/hubauth/lib/oauth"
	"github.com/enfabrica/hubauth/lib/oauth/membership"
	"github.com/enfabrica/hubauth/lib/oauth/ogithub"
	"github.com/enfabrica/hubauth/lib/oauth/policy"
)

// Flags groups the flags of all the components of the authenticator.
//
// To pass Flags to one of the constructors, use `FromFlags`.
type Flags struct {
	*oauth.Flags
	GitHub     *ogithub.Flags
	Fetch      *kfetch.Flags
	Membership *membership.Flags
	Policy     *policy.Flags
}

func DefaultFlags() *Flags {
	return &Flags{
		Flags:      oauth.DefaultFlags(),
		GitHub:     ogithub.DefaultFlags(),
		Fetch:      kfetch.DefaultFlags(),
		Membership: membership.DefaultFlags(),
		Policy:     policy.DefaultFlags(),
	}
}

func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	f.Flags.Register(set, prefix)
	f.GitHub.Register(set, prefix+"github-")
	f.Fetch.Register(set, prefix)
	f.Membership.Register(set, prefix)
	f.Policy.Register(set, prefix)
	return f
}

// Setup is the set of components built from Flags.
type Setup struct {
	Authenticator *oauth.Authenticator
	Verifier      *membership.Verifier
	Fetcher       *kfetch.Gateway

	// Store holds the policy in use, replaced at each reload of the policy file.
	Store *policy.Store
	// Base is the policy expressed by flags, merged with the file at each reload.
	Base  *policy.Config

	log    logger.Logger
	policy *policy.Flags
}

// FromFlags builds all the components. mods are applied last to the authenticator.
func FromFlags(rng *rand.Rand, log logger.Logger, fl *Flags, mods ...oauth.Modifier) (*Setup, error) {
	if log == nil {
		log = logger.Nil
	}

	store, base, err := policy.FromFlags(fl.Policy, log)
	if err != nil {
		return nil, err
	}

	gw, err := kfetch.New(kfetch.FromFlags(fl.Fetch), kfetch.WithLogger(log))
	if err != nil {
		return nil, err
	}

	verifier, err := membership.New(
		membership.WithFetcher(gw),
		membership.WithAPIURL(fl.GitHub.APIURL),
		membership.WithSource(store),
		membership.FromFlags(fl.Membership),
	)
	if err != nil {
		return nil, fmt.Errorf("could not configure membership checks: %w", err)
	}

	authenticator, err := oauth.New(rng,
		oauth.WithLogging(log),
		oauth.WithFetcher(gw),
		oauth.WithFlags(fl.Flags),
		ogithub.FromFlags(fl.GitHub),
		oauth.WithAuthorizer(verifier),
		oauth.WithModifiers(mods...),
	)
	if err != nil {
		return nil, err
	}

	snapshot := store.Snapshot()
	log.Infof("authorizing %d users and members of %d organizations or teams", len(snapshot.AllowedUsers), len(snapshot.AllowedOrganizations))
	return &Setup{
		Authenticator: authenticator,
		Verifier:      verifier,
		Fetcher:       gw,
		Store:         store,
		Base:          base,
		log:           log,
		policy:        fl.Policy,
	}, nil
}

// Watch starts reloading the policy file on change, if requested by flags.
//
// Returns a nil Watcher if no watch was requested. The watch ends with ctx.
func (s *Setup) Watch(ctx context.Context, mods ...policy.WatchModifier) (*policy.Watcher, error) {
	if !s.policy.Watch {
		return nil, nil
	}
	mods = append([]policy.WatchModifier{policy.WithBase(s.Base), policy.WithLogger(s.log)}, mods...)
	return policy.Watch(ctx, s.Store, s.policy.File, mods...)
}
