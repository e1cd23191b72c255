package main

import (
	"context"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/enfabrica/hubauth/lib/kflags"
	"github.com/enfabrica/hubauth/lib/kflags/kcobra"
	"github.com/enfabrica/hubauth/lib/khttp"
	"github.com/enfabrica/hubauth/lib/khttp/kcookie"
	"github.com/enfabrica/hubauth/lib/logger"
	"github.com/enfabrica/hubauth/lib/logger/klog"
	"github.com/enfabrica/hubauth/lib/oauth"
	"github.com/enfabrica/hubauth/lib/oauth/providers"
	"github.com/enfabrica/hubauth/lib/srand"
	"github.com/spf13/cobra"
)

func Start(ctx context.Context, log logger.Logger, hflags *khttp.Flags, pflags *providers.Flags, sflags *SessionFlags) error {
	server, err := khttp.FromFlags(hflags)
	if err != nil {
		return err
	}

	cookies := []kcookie.Modifier{kcookie.WithPath("/"), kcookie.WithSecure(pflags.CookieSecure)}
	if pflags.CookieDomain != "" {
		cookies = append(cookies, kcookie.WithDomain(pflags.CookieDomain))
	}

	rng := srand.New()
	sessions, err := NewSessions(rng, sflags, cookies...)
	if err != nil {
		return err
	}
	if len(sflags.Key) == 0 {
		log.Warnf("no --session-key-file supplied, generated a random key: all sessions will be lost on restart")
	}

	setup, err := providers.FromFlags(rng, log, pflags, oauth.WithSessionCookie(SessionCookieName))
	if err != nil {
		return err
	}
	watcher, err := setup.Watch(ctx)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	domains := []string{}
	if target, err := url.Parse(pflags.TargetURL); err == nil && target.Hostname() != "" {
		domains = append(domains, target.Hostname())
	}
	return server.Run(ctx, log.Infof, NewServer(log, setup.Authenticator, sessions).Mux(), domains...)
}

func main() {
	command := &cobra.Command{
		Use:   "hubauth",
		Short: "hubauth authenticates users with github, and lets in members of the allowed organizations and teams",
		Args:  cobra.NoArgs,
		Example: `  $ hubauth --target-url=https://hub.example.com/oauth_callback --secret-file=credentials.json \
      --allowed-organizations=red --allowed-organizations=blue:alpha
	To let in the members of the red organization, and of the alpha team of blue.`,
	}

	set := &kcobra.FlagSet{FlagSet: command.Flags()}
	lflags := klog.DefaultFlags().Register(set, "")
	hflags := khttp.DefaultFlags().Register(set, "")
	pflags := providers.DefaultFlags().Register(set, "")
	sflags := DefaultSessionFlags().Register(set, "")

	command.RunE = func(cmd *cobra.Command, args []string) error {
		log, err := klog.New("hubauth", klog.FromFlags(*lflags))
		if err != nil {
			return err
		}
		if pflags.TargetURL == "" {
			return kflags.NewUsageErrorf("--target-url is required")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return Start(ctx, log, hflags, pflags, sflags)
	}

	kcobra.Run(command)
}
