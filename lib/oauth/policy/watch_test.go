package policy

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/enfabrica/hubauth/lib/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// waitFor consumes reloads until done returns true. A single change can
// cause more than one reload.
func waitFor(t *testing.T, reloads chan error, done func(error) bool) {
	timeout := time.After(10 * time.Second)
	for {
		select {
		case err := <-reloads:
			if done(err) {
				return
			}
		case <-timeout:
			t.Fatalf("timed out waiting for policy reload")
		}
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "policy.yaml", "allowed_users: [texas]\n")

	config, err := LoadFile(path)
	require.NoError(t, err)
	p, err := config.Policy(nil)
	require.NoError(t, err)
	store := NewStore(p)

	log := logger.NewAccumulator()
	reloads := make(chan error, 10)
	w, err := Watch(context.Background(), store, path,
		WithDebounce(10*time.Millisecond),
		WithLogger(log),
		WithBase(&Config{AllowedOrganizations: []string{"red"}}),
		WithReloadCallback(func(p *Policy, err error) { reloads <- err }))
	require.NoError(t, err)
	defer w.Close()

	// Unrelated files in the same directory are ignored.
	writeFile(t, dir, "other.yaml", "garbage")

	writeFile(t, dir, "policy.yaml", "allowed_users: [tucker]\n")
	waitFor(t, reloads, func(err error) bool {
		return err == nil && store.Snapshot().AllowsUser("tucker")
	})
	assert.True(t, store.Snapshot().AllowsUser("tucker"))
	assert.False(t, store.Snapshot().AllowsUser("texas"))
	assert.Equal(t, []Entry{{Org: "red"}}, store.Snapshot().AllowedOrganizations)

	// A broken file keeps the previous policy.
	writeFile(t, dir, "policy.yaml", "allowed_users: [tucker\n")
	waitFor(t, reloads, func(err error) bool { return err != nil })
	assert.True(t, store.Snapshot().AllowsUser("tucker"))
	assert.NotEmpty(t, log.Matching(logger.ErrorPriority, "keeping the current one"))

	// Files replaced via rename are picked up.
	tmp := filepath.Join(dir, "policy.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("allowed_users: [grif]\n"), 0600))
	require.NoError(t, os.Rename(tmp, path))
	waitFor(t, reloads, func(err error) bool {
		return err == nil && store.Snapshot().AllowsUser("grif")
	})
}

func TestWatchCancel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "policy.json", `{"allowed_users": ["texas"]}`)
	store := NewStore(nil)

	ctx, cancel := context.WithCancel(context.Background())
	w, err := Watch(ctx, store, path)
	require.NoError(t, err)

	w.Reload()
	assert.True(t, store.Snapshot().AllowsUser("texas"))

	cancel()
	assert.NoError(t, w.Close())

	_, err = Watch(context.Background(), store, filepath.Join(t.TempDir(), "missing", "policy.json"))
	assert.Error(t, err)
}
