package membership

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/enfabrica/hubauth/lib/oauth/policy"
)

func orgPath(api string, entry policy.Entry) string {
	path := strings.TrimRight(api, "/") + "/orgs/" + url.PathEscape(entry.Org)
	if entry.Team != "" {
		path += "/teams/" + url.PathEscape(entry.Team)
	}
	return path + "/members"
}

// MembershipURL returns the URL checking if username is a member of entry.
//
//	red, grif          -> {api}/orgs/red/members/grif
//	blue:alpha, tucker -> {api}/orgs/blue/teams/alpha/members/tucker
func MembershipURL(api string, entry policy.Entry, username string) string {
	return orgPath(api, entry) + "/" + url.PathEscape(username)
}

// ListURL returns the URL of the first page of members of entry.
func ListURL(api string, entry policy.Entry, pageSize int) string {
	base := orgPath(api, entry)
	if pageSize > 0 {
		return base + "?per_page=" + strconv.Itoa(pageSize)
	}
	return base
}

// NextLink returns the target of the rel="next" link in a Link header,
// resolved against base. Returns the empty string if there is none.
//
//	Link: <https://api.github.com/orgs/red/members?page=2>; rel="next", <...>; rel="last"
func NextLink(base string, header []string) string {
	for _, value := range header {
		// Targets are delimited by <>, and may contain commas themselves.
		for rest := value; ; {
			open := strings.Index(rest, "<")
			if open < 0 {
				break
			}
			closed := strings.Index(rest[open:], ">")
			if closed < 0 {
				break
			}
			target := rest[open+1 : open+closed]
			rest = rest[open+closed+1:]

			params := rest
			if next := strings.Index(rest, "<"); next >= 0 {
				params = rest[:next]
			}
			if !hasRel(strings.TrimRight(strings.TrimSpace(params), ","), "next") {
				continue
			}

			bu, err := url.Parse(base)
			if err != nil {
				return target
			}
			tu, err := bu.Parse(target)
			if err != nil {
				return ""
			}
			return tu.String()
		}
	}
	return ""
}

func hasRel(params, rel string) bool {
	for _, param := range strings.Split(params, ";") {
		key, value, found := strings.Cut(strings.TrimSpace(param), "=")
		if !found || !strings.EqualFold(strings.TrimSpace(key), "rel") {
			continue
		}
		for _, candidate := range strings.Fields(strings.Trim(strings.TrimSpace(value), `"`)) {
			if strings.EqualFold(candidate, rel) {
				return true
			}
		}
	}
	return false
}
