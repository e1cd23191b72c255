package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntry(t *testing.T) {
	entry, err := ParseEntry("red")
	require.NoError(t, err)
	assert.Equal(t, Entry{Org: "red"}, entry)
	assert.Equal(t, "red", entry.String())

	entry, err = ParseEntry(" blue:alpha ")
	require.NoError(t, err)
	assert.Equal(t, Entry{Org: "blue", Team: "alpha"}, entry)
	assert.Equal(t, "blue:alpha", entry.String())

	for _, invalid := range []string{"", ":alpha", "blue:", "blue:alpha:beta", "blue/alpha", "red?x"} {
		_, err := ParseEntry(invalid)
		assert.Error(t, err, "entry %q", invalid)
	}

	entries, err := ParseEntries([]string{"red", "blue:alpha"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	_, err = ParseEntries([]string{"red", ""})
	assert.Error(t, err)
}

func TestPolicy(t *testing.T) {
	p := New([]string{"Texas", "tucker", "texas", ""}, []Entry{{Org: "red"}, {Org: "red"}, {Org: "blue", Team: "alpha"}})
	assert.Equal(t, []string{"texas", "tucker"}, p.Users())
	assert.True(t, p.AllowsUser("texas"))
	assert.True(t, p.AllowsUser("TEXAS"))
	assert.False(t, p.AllowsUser("grif"))
	assert.Equal(t, []Entry{{Org: "red"}, {Org: "blue", Team: "alpha"}}, p.AllowedOrganizations)
	assert.Equal(t, "users=[texas tucker] organizations=[red blue:alpha]", p.String())
}

func TestStore(t *testing.T) {
	var empty Store
	assert.NotNil(t, empty.Snapshot())
	assert.Len(t, empty.Snapshot().AllowedUsers, 0)

	first := New([]string{"texas"}, nil)
	store := NewStore(first)
	snapshot := store.Snapshot()
	assert.Same(t, first, snapshot)

	store.Replace(New([]string{"grif"}, nil))
	// Snapshots taken before are unaffected.
	assert.True(t, snapshot.AllowsUser("texas"))
	assert.True(t, store.Snapshot().AllowsUser("grif"))

	store.Replace(nil)
	assert.NotNil(t, store.Snapshot())

	var source Source = Static{Policy: first}
	assert.Same(t, first, source.Snapshot())

	source = Static{}
	require.NotNil(t, source.Snapshot())
	assert.Empty(t, source.Snapshot().AllowedUsers)
	assert.Empty(t, source.Snapshot().AllowedOrganizations)
}
