package policy

import (
	"fmt"

	"github.com/enfabrica/hubauth/lib/config/marshal"
	"github.com/enfabrica/hubauth/lib/kflags"
	"github.com/enfabrica/hubauth/lib/logger"
)

// DeprecatedSince is the release that deprecated the whitelist options.
const DeprecatedSince = "0.12.0"

func deprecated(log logger.Logger, old, replacement string) {
	log.Warnf("%s is deprecated in hubauth %s, use %s instead", old, DeprecatedSince, replacement)
}

// Config is the on disk representation of a Policy, in yaml, toml or json.
//
//	allowed_users: [texas, tucker]
//	allowed_organizations: [red, "blue:alpha"]
type Config struct {
	AllowedUsers         []string `json:"allowed_users,omitempty" yaml:"allowed_users,omitempty" toml:"allowed_users,omitempty"`
	AllowedOrganizations []string `json:"allowed_organizations,omitempty" yaml:"allowed_organizations,omitempty" toml:"allowed_organizations,omitempty"`

	// Deprecated: use AllowedUsers.
	Whitelist []string `json:"whitelist,omitempty" yaml:"whitelist,omitempty" toml:"whitelist,omitempty"`
	// Deprecated: use AllowedOrganizations.
	OrganizationWhitelist []string `json:"organization_whitelist,omitempty" yaml:"organization_whitelist,omitempty" toml:"organization_whitelist,omitempty"`
}

// Merge returns a new Config with the lists of both.
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}
	return &Config{
		AllowedUsers:          append(append([]string{}, c.AllowedUsers...), other.AllowedUsers...),
		AllowedOrganizations:  append(append([]string{}, c.AllowedOrganizations...), other.AllowedOrganizations...),
		Whitelist:             append(append([]string{}, c.Whitelist...), other.Whitelist...),
		OrganizationWhitelist: append(append([]string{}, c.OrganizationWhitelist...), other.OrganizationWhitelist...),
	}
}

// Policy validates the config and turns it into a Policy.
//
// Values of deprecated keys are added to their replacement, with a warning.
func (c *Config) Policy(log logger.Logger) (*Policy, error) {
	if log == nil {
		log = logger.Nil
	}

	users := append([]string{}, c.AllowedUsers...)
	if len(c.Whitelist) > 0 {
		deprecated(log, "whitelist", "allowed_users")
		users = append(users, c.Whitelist...)
	}

	orgs := append([]string{}, c.AllowedOrganizations...)
	if len(c.OrganizationWhitelist) > 0 {
		deprecated(log, "organization_whitelist", "allowed_organizations")
		orgs = append(orgs, c.OrganizationWhitelist...)
	}

	entries, err := ParseEntries(orgs)
	if err != nil {
		return nil, err
	}
	return New(users, entries), nil
}

// LoadFile reads a Config from a file, the format is picked by extension.
func LoadFile(path string) (*Config, error) {
	fm := marshal.ByExtension(path)
	if fm == nil {
		return nil, fmt.Errorf("policy file %s has an unknown extension - valid formats: %v", path, marshal.Known.Formats())
	}

	config := &Config{}
	if err := marshal.UnmarshalFile(path, config); err != nil {
		return nil, fmt.Errorf("could not load policy file %s - %w", path, err)
	}
	return config, nil
}

// Flags configures the Policy from the command line.
type Flags struct {
	AllowedUsers         []string
	AllowedOrganizations []string

	Whitelist             []string
	OrganizationWhitelist []string

	// Optional file with a Config, merged with the flags.
	File string
	// Reload the file on change.
	Watch bool
}

func DefaultFlags() *Flags {
	return &Flags{}
}

func (f *Flags) Register(set kflags.FlagSet, prefix string) *Flags {
	set.StringArrayVar(&f.AllowedUsers, prefix+"allowed-users", f.AllowedUsers,
		"User names allowed to log in, regardless of their organizations")
	set.StringArrayVar(&f.AllowedOrganizations, prefix+"allowed-organizations", f.AllowedOrganizations,
		"Organizations, as 'org' or 'org:team', whose members are allowed to log in")
	set.StringArrayVar(&f.Whitelist, prefix+"whitelist", f.Whitelist,
		"Deprecated, use --"+prefix+"allowed-users")
	set.StringArrayVar(&f.OrganizationWhitelist, prefix+"github-organization-whitelist", f.OrganizationWhitelist,
		"Deprecated, use --"+prefix+"allowed-organizations")
	set.StringVar(&f.File, prefix+"policy-file", f.File,
		"Path of a yaml, toml or json file with allowed_users and allowed_organizations, merged with the flags")
	set.BoolVar(&f.Watch, prefix+"policy-watch", f.Watch,
		"Reload --"+prefix+"policy-file whenever it changes")
	return f
}

// Config returns the Config expressed by the flags, warning about deprecated flags.
func (f *Flags) Config(log logger.Logger) *Config {
	if log == nil {
		log = logger.Nil
	}
	config := &Config{
		AllowedUsers:         append([]string{}, f.AllowedUsers...),
		AllowedOrganizations: append([]string{}, f.AllowedOrganizations...),
	}
	if len(f.Whitelist) > 0 {
		deprecated(log, "--whitelist", "--allowed-users")
		config.AllowedUsers = append(config.AllowedUsers, f.Whitelist...)
	}
	if len(f.OrganizationWhitelist) > 0 {
		deprecated(log, "--github-organization-whitelist", "--allowed-organizations")
		config.AllowedOrganizations = append(config.AllowedOrganizations, f.OrganizationWhitelist...)
	}
	return config
}

// FromFlags builds the initial Store.
//
// Returns the Config from flags, to be merged on every reload of the file.
func FromFlags(f *Flags, log logger.Logger) (*Store, *Config, error) {
	base := f.Config(log)
	config := base
	if f.File != "" {
		fconfig, err := LoadFile(f.File)
		if err != nil {
			return nil, nil, kflags.NewUsageErrorf("invalid --policy-file: %w", err)
		}
		config = base.Merge(fconfig)
	}
	if f.Watch && f.File == "" {
		return nil, nil, kflags.NewUsageErrorf("--policy-watch requires --policy-file")
	}

	p, err := config.Policy(log)
	if err != nil {
		return nil, nil, kflags.NewUsageErrorf("invalid policy: %w", err)
	}
	return NewStore(p), base, nil
}
