package main

import (
	"fmt"
	"html"
	"net/http"
	"net/url"

	"github.com/enfabrica/hubauth/lib/logger"
	"github.com/enfabrica/hubauth/lib/metrics"
	"github.com/enfabrica/hubauth/lib/oauth"
)

type Server struct {
	log      logger.Logger
	auth     *oauth.Authenticator
	sessions *Sessions
}

func NewServer(log logger.Logger, auth *oauth.Authenticator, sessions *Sessions) *Server {
	if log == nil {
		log = logger.Nil
	}
	return &Server{log: log, auth: auth, sessions: sessions}
}

// Mux returns the routes of the server.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/login", s.auth.LoginHandler())
	mux.Handle("/oauth_callback", s.auth.CallbackHandler(s.sessions.Start))
	mux.Handle("/logout", s.auth.LogoutHandler("/login"))
	metrics.AddHandler(mux, "/metrics")
	mux.HandleFunc("/", s.Root)
	return mux
}

// Root greets logged in users, and sends anyone else to log in.
func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Get(r)
	if err != nil {
		s.log.Infof("ignoring invalid session from %s - %s", r.RemoteAddr, err)
	}
	if session == nil {
		http.Redirect(w, r, "/login?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<html><body>Hello, %s. <a href=\"/logout\">Logout</a></body></html>\n", html.EscapeString(session.Name))
}
