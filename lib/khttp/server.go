package khttp

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/enfabrica/hubauth/lib/kflags"
	"github.com/enfabrica/hubauth/lib/logger"
	"github.com/kirsle/configdir"
	"golang.org/x/crypto/acme/autocert"
)

type Flags struct {
	HttpPort    int
	HttpAddress string

	HttpsPort    int
	HttpsAddress string

	Cache string

	// How long to wait for in flight requests on shutdown.
	ShutdownTimeout time.Duration
}

func DefaultFlags() *Flags {
	return &Flags{
		HttpPort:        8000,
		Cache:           configdir.LocalCache("hubauth-certs"),
		ShutdownTimeout: 10 * time.Second,
	}
}

func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.IntVar(&f.HttpPort, prefix+"http-port", f.HttpPort, "Port number on which the server will be listening for HTTP connections.")
	set.StringVar(&f.HttpAddress, prefix+"http-address", f.HttpAddress, "Address on which the server will be listening for HTTP connections. If it has no port, --http-port is used.")

	set.IntVar(&f.HttpsPort, prefix+"https-port", f.HttpsPort, "Port number on which the server will be listening for HTTPs connections. 0 disables HTTPs.")
	set.StringVar(&f.HttpsAddress, prefix+"https-address", f.HttpsAddress, "Address on which the server will be listening for HTTPs connections.")

	set.StringVar(&f.Cache, prefix+"cert-cache", f.Cache, "Location where certificates are cached.")
	set.DurationVar(&f.ShutdownTimeout, prefix+"shutdown-timeout", f.ShutdownTimeout, "How long to wait for in flight requests to complete on shutdown.")
	return f
}

type Server struct {
	HttpAddress     string
	HttpsAddress    string
	CacheDir        string
	ShutdownTimeout time.Duration
}

// addDefaultPort appends port to address, unless address already has one.
func addDefaultPort(address string, port int) (string, error) {
	if _, _, err := net.SplitHostPort(address); err == nil {
		return address, nil
	}
	if port <= 0 || port > 65535 {
		return "", fmt.Errorf("invalid port %d - must be between 1 and 65535", port)
	}

	host := address
	if len(host) > 1 && host[0] == '[' && host[len(host)-1] == ']' {
		host = host[1 : len(host)-1]
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

func FromFlags(flags *Flags) (*Server, error) {
	server := &Server{ShutdownTimeout: flags.ShutdownTimeout}

	var err error
	server.HttpAddress, err = addDefaultPort(flags.HttpAddress, flags.HttpPort)
	if err != nil {
		return nil, kflags.NewUsageErrorf("no valid http address specified - use --http-address or --http-port: %w", err)
	}

	if flags.HttpsAddress != "" || flags.HttpsPort > 0 {
		server.HttpsAddress, err = addDefaultPort(flags.HttpsAddress, flags.HttpsPort)
		if err != nil {
			return nil, kflags.NewUsageErrorf("invalid https address - check --https-address or --https-port: %w", err)
		}

		if flags.Cache == "" {
			return nil, kflags.NewUsageErrorf("https requires a certificate cache - use --cert-cache")
		}
		if err := os.MkdirAll(flags.Cache, 0700); err != nil {
			return nil, err
		}
		server.CacheDir = flags.Cache
	}

	return server, nil
}

// Run serves handler until ctx is canceled, then shuts down gracefully.
//
// If an https address is configured, certificates for the listed domains
// are obtained via ACME, and the http address only serves the ACME challenges.
func (p *Server) Run(ctx context.Context, log logger.Printer, handler http.Handler, domains ...string) error {
	if log == nil {
		log = logger.Nil.Infof
	}

	servers := []*http.Server{}
	errs := make(chan error, 2)
	serve := func(server *http.Server, secure bool) {
		servers = append(servers, server)
		go func() {
			var err error
			if secure {
				err = server.ListenAndServeTLS("", "")
			} else {
				err = server.ListenAndServe()
			}
			if !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
	}

	if p.HttpsAddress == "" {
		log("Listening on HTTP address %s", p.HttpAddress)
		serve(&http.Server{Addr: p.HttpAddress, Handler: handler}, false)
	} else {
		log("Storing certificates in '%s'", p.CacheDir)
		certManager := autocert.Manager{
			Prompt:     autocert.AcceptTOS,
			HostPolicy: autocert.HostWhitelist(domains...),
			Cache:      autocert.DirCache(p.CacheDir),
		}

		log("Serving http/https for domains: %+v", domains)
		log("Listening on HTTP address %s", p.HttpAddress)
		serve(&http.Server{Addr: p.HttpAddress, Handler: certManager.HTTPHandler(nil)}, false)

		log("Listening on HTTPs address %s", p.HttpsAddress)
		serve(&http.Server{
			Addr:      p.HttpsAddress,
			TLSConfig: &tls.Config{GetCertificate: certManager.GetCertificate},
			Handler:   handler,
		}, true)
	}

	var result error
	select {
	case <-ctx.Done():
	case result = <-errs:
	}

	sctx, cancel := context.WithTimeout(context.Background(), p.ShutdownTimeout)
	defer cancel()
	for _, server := range servers {
		if err := server.Shutdown(sctx); err != nil && result == nil {
			result = err
		}
	}
	return result
}
