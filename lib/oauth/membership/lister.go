package membership

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"

	"github.com/enfabrica/hubauth/lib/khttp/kfetch"
	"github.com/enfabrica/hubauth/lib/oauth"
	"github.com/enfabrica/hubauth/lib/oauth/policy"
)

// Page is one page of a membership listing.
type Page struct {
	Items []oauth.Identity
	// Next is the URL of the following page, empty on the last one.
	Next string
}

// Lister enumerates the members of an organization or team.
type Lister struct {
	fetcher  kfetch.Fetcher
	api      string
	pageSize int
	username oauth.UsernameFunc
}

func statusError(url string, status int) error {
	err := oauth.ErrTransientProvider
	if status == http.StatusNotFound {
		err = oauth.ErrOrgNotFound
	}
	return &oauth.ProviderError{URL: url, Status: status, Err: err}
}

func authorization(tok *oauth.AccessToken) http.Header {
	header := http.Header{}
	header.Set("Authorization", tok.Authorization())
	return header
}

// FetchPage retrieves a single page of members.
//
// A 404 returns ErrOrgNotFound, any other non 2xx status ErrTransientProvider.
func (l *Lister) FetchPage(ctx context.Context, tok *oauth.AccessToken, url string) (*Page, error) {
	resp, err := l.fetcher.Fetch(ctx, &kfetch.Request{URL: url, Header: authorization(tok)})
	if err != nil {
		return nil, &oauth.ProviderError{URL: url, Err: oauth.ErrTransientProvider, Cause: err}
	}
	if !resp.OK() {
		return nil, statusError(url, resp.Status)
	}

	var profiles []oauth.Profile
	if err := json.Unmarshal(resp.Body, &profiles); err != nil {
		return nil, &oauth.ProviderError{URL: url, Status: resp.Status, Err: oauth.ErrTransientProvider, Cause: err}
	}

	page := &Page{Next: NextLink(url, resp.Header.Values("Link"))}
	for _, profile := range profiles {
		name, err := l.username(profile)
		if err != nil {
			return nil, &oauth.ProviderError{URL: url, Status: resp.Status, Err: oauth.ErrTransientProvider, Cause: err}
		}
		page.Items = append(page.Items, oauth.Identity{Username: name, Profile: profile})
	}
	return page, nil
}

// Members lazily returns all the members of entry, following the next links.
//
// Every call performs the listing from the first page. The sequence stops at
// the first error, which is yielded. Some providers answer 400 rather than
// returning an empty page when asking past the last page: on pages reached
// through a next link, this is treated as the end of the listing.
func (l *Lister) Members(ctx context.Context, tok *oauth.AccessToken, entry policy.Entry) iter.Seq2[oauth.Identity, error] {
	return func(yield func(oauth.Identity, error) bool) {
		next := ListURL(l.api, entry, l.pageSize)
		for consumed := 0; next != ""; consumed++ {
			page, err := l.FetchPage(ctx, tok, next)
			if err != nil {
				var perr *oauth.ProviderError
				// GitHub answers 400 rather than an empty page when a next link
				// points past the end of the roster. The page count is not known
				// in advance, so any 400 after the first page ends the listing.
				if consumed > 0 && errors.As(err, &perr) && perr.Status == http.StatusBadRequest {
					return
				}
				yield(oauth.Identity{}, err)
				return
			}

			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}
			next = page.Next
		}
	}
}

// Roster returns the full list of members of entry.
func (l *Lister) Roster(ctx context.Context, tok *oauth.AccessToken, entry policy.Entry) ([]oauth.Identity, error) {
	result := []oauth.Identity{}
	for identity, err := range l.Members(ctx, tok, entry) {
		if err != nil {
			return nil, err
		}
		result = append(result, identity)
	}
	return result, nil
}
