package membership

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strconv"
	"testing"

	"github.com/enfabrica/hubauth/lib/khttp/ktest"
	"github.com/enfabrica/hubauth/lib/oauth"
)

var testToken = &oauth.AccessToken{Token: "abc", Type: "bearer"}

// fakeGitHub serves the subset of the github API used to check membership.
//
// Listings always carry a next link, asking past the last page returns 400.
// The "broken" organization always fails with a 500.
type fakeGitHub struct {
	orgs     map[string][]string
	teams    map[string][]string
	recorder *ktest.Recorder
	server   *httptest.Server

	// Set to omit the next link from the last page, rather than answering
	// 400 past the end.
	lastPageNoLink bool
}

func newFakeGitHub(t *testing.T) *fakeGitHub {
	f := &fakeGitHub{
		orgs: map[string][]string{
			"red":  {"grif", "simmons", "sarge", "donut", "lopez"},
			"blue": {"texas", "tucker", "caboose", "church"},
		},
		teams: map[string][]string{
			"blue:alpha": {"tucker"},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /orgs/{org}/members/{user}", func(w http.ResponseWriter, r *http.Request) {
		f.check(w, r, f.orgs, r.PathValue("org"))
	})
	mux.HandleFunc("GET /orgs/{org}/teams/{team}/members/{user}", func(w http.ResponseWriter, r *http.Request) {
		f.check(w, r, f.teams, r.PathValue("org")+":"+r.PathValue("team"))
	})
	mux.HandleFunc("GET /orgs/{org}/members", func(w http.ResponseWriter, r *http.Request) {
		f.list(w, r, f.orgs, r.PathValue("org"))
	})
	mux.HandleFunc("GET /orgs/{org}/teams/{team}/members", func(w http.ResponseWriter, r *http.Request) {
		f.list(w, r, f.teams, r.PathValue("org")+":"+r.PathValue("team"))
	})

	f.recorder = ktest.Capture(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != testToken.Authorization() {
			http.Error(w, `{"message": "Requires authentication"}`, http.StatusUnauthorized)
			return
		}
		mux.ServeHTTP(w, r)
	})
	f.server = httptest.NewServer(f.recorder)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeGitHub) check(w http.ResponseWriter, r *http.Request, groups map[string][]string, name string) {
	if name == "broken" {
		ktest.ErrorHandler(w, r)
		return
	}
	if slices.Contains(groups[name], r.PathValue("user")) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusNotFound)
}

func (f *fakeGitHub) list(w http.ResponseWriter, r *http.Request, groups map[string][]string, name string) {
	if name == "broken" {
		ktest.ErrorHandler(w, r)
		return
	}
	members, found := groups[name]
	if !found {
		http.Error(w, `{"message": "Not Found"}`, http.StatusNotFound)
		return
	}

	page, pageSize := 1, 30
	if value := r.URL.Query().Get("page"); value != "" {
		page, _ = strconv.Atoi(value)
	}
	if value := r.URL.Query().Get("per_page"); value != "" {
		pageSize, _ = strconv.Atoi(value)
	}
	start := (page - 1) * pageSize
	if page < 1 || (page > 1 && start >= len(members)) {
		http.Error(w, `{"message": "Bad Request"}`, http.StatusBadRequest)
		return
	}
	end := min(start+pageSize, len(members))

	items := []map[string]interface{}{}
	for ix, login := range members[start:end] {
		items = append(items, map[string]interface{}{"login": login, "id": start + ix + 1})
	}
	if !f.lastPageNoLink || end < len(members) {
		next := *r.URL
		next.RawQuery = fmt.Sprintf("per_page=%d&page=%d", pageSize, page+1)
		w.Header().Set("Link", fmt.Sprintf(`<%s>;rel="next"`, next.String()))
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}
