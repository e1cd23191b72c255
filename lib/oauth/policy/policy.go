// Package policy defines who is allowed to log in.
//
// A Policy is an immutable snapshot: a set of allowed user names, and a list
// of organizations or teams whose members are allowed. Snapshots are held in
// a Store and replaced atomically, so a verification in progress always sees
// one consistent Policy.
package policy

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Entry is an organization, optionally restricted to one of its teams.
type Entry struct {
	Org string
	// Team is empty when all the members of the organization are allowed.
	Team string
}

// ParseEntry parses "org" or "org:team".
func ParseEntry(value string) (Entry, error) {
	value = strings.TrimSpace(value)
	org, team, hasTeam := strings.Cut(value, ":")
	if org == "" {
		return Entry{}, fmt.Errorf("invalid organization entry %q - organization name is empty", value)
	}
	if hasTeam && (team == "" || strings.Contains(team, ":")) {
		return Entry{}, fmt.Errorf("invalid organization entry %q - must be 'org' or 'org:team'", value)
	}
	if strings.ContainsAny(value, "/?#") {
		return Entry{}, fmt.Errorf("invalid organization entry %q - contains invalid characters", value)
	}
	return Entry{Org: org, Team: team}, nil
}

// ParseEntries parses a list of entries, failing on the first invalid one.
func ParseEntries(values []string) ([]Entry, error) {
	result := make([]Entry, 0, len(values))
	for _, value := range values {
		entry, err := ParseEntry(value)
		if err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, nil
}

func (e Entry) String() string {
	if e.Team == "" {
		return e.Org
	}
	return e.Org + ":" + e.Team
}

// Policy is a read only snapshot of the allow lists.
type Policy struct {
	AllowedUsers         map[string]struct{}
	AllowedOrganizations []Entry
}

// NormalizeUser returns the form user names are compared in: provider user
// names are case insensitive.
func NormalizeUser(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// New creates a Policy. Duplicate users or entries are collapsed.
func New(users []string, orgs []Entry) *Policy {
	p := &Policy{AllowedUsers: map[string]struct{}{}}
	for _, user := range users {
		if user = NormalizeUser(user); user != "" {
			p.AllowedUsers[user] = struct{}{}
		}
	}

	seen := map[Entry]struct{}{}
	for _, org := range orgs {
		if _, found := seen[org]; found {
			continue
		}
		seen[org] = struct{}{}
		p.AllowedOrganizations = append(p.AllowedOrganizations, org)
	}
	return p
}

// AllowsUser returns true if the user is explicitly listed.
func (p *Policy) AllowsUser(name string) bool {
	_, found := p.AllowedUsers[NormalizeUser(name)]
	return found
}

// Users returns the sorted list of allowed users.
func (p *Policy) Users() []string {
	users := make([]string, 0, len(p.AllowedUsers))
	for user := range p.AllowedUsers {
		users = append(users, user)
	}
	sort.Strings(users)
	return users
}

func (p *Policy) String() string {
	orgs := make([]string, 0, len(p.AllowedOrganizations))
	for _, org := range p.AllowedOrganizations {
		orgs = append(orgs, org.String())
	}
	return fmt.Sprintf("users=%v organizations=%v", p.Users(), orgs)
}

// Source provides the Policy to use for a verification.
type Source interface {
	Snapshot() *Policy
}

// Static is a Source always returning the same Policy.
//
// A nil Policy behaves like an empty one.
type Static struct {
	Policy *Policy
}

func (s Static) Snapshot() *Policy {
	if s.Policy == nil {
		return New(nil, nil)
	}
	return s.Policy
}

// Store holds the current Policy, allowing to replace it while in use.
type Store struct {
	current atomic.Pointer[Policy]
}

func NewStore(p *Policy) *Store {
	s := &Store{}
	s.Replace(p)
	return s
}

// Snapshot returns the current Policy. Never nil.
func (s *Store) Snapshot() *Policy {
	if p := s.current.Load(); p != nil {
		return p
	}
	return New(nil, nil)
}

// Replace atomically installs a new Policy.
func (s *Store) Replace(p *Policy) {
	if p == nil {
		p = New(nil, nil)
	}
	s.current.Store(p)
}
