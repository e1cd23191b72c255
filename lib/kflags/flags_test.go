package kflags

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testFlags struct {
	Orgs    []string
	Timeout time.Duration
	Rate    float64
	Secret  []byte
}

func (tf *testFlags) Register(set FlagSet, prefix string) *testFlags {
	set.StringArrayVar(&tf.Orgs, prefix+"allowed-organizations", tf.Orgs, "orgs")
	set.DurationVar(&tf.Timeout, prefix+"timeout", tf.Timeout, "timeout")
	set.Float64Var(&tf.Rate, prefix+"rate", tf.Rate, "rate")
	set.ByteFileVar(&tf.Secret, prefix+"secret-file", "", "secret")
	return tf
}

func TestGoFlagSet(t *testing.T) {
	secret := filepath.Join(t.TempDir(), "secret.json")
	assert.NoError(t, os.WriteFile(secret, []byte(`{"id":"x"}`), 0600))

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	tf := (&testFlags{Orgs: []string{"default"}, Timeout: time.Second}).Register(&GoFlagSet{FlagSet: fs}, "gh-")
	assert.Equal(t, []string{"default"}, tf.Orgs)

	err := fs.Parse([]string{
		"--gh-allowed-organizations=blue",
		"--gh-allowed-organizations=red:alpha",
		"--gh-timeout=3s",
		"--gh-rate=2.5",
		"--gh-secret-file=" + secret,
	})
	assert.NoError(t, err)
	assert.Equal(t, []string{"blue", "red:alpha"}, tf.Orgs)
	assert.Equal(t, 3*time.Second, tf.Timeout)
	assert.Equal(t, 2.5, tf.Rate)
	assert.Equal(t, `{"id":"x"}`, string(tf.Secret))
}

func TestErrors(t *testing.T) {
	base := errors.New("bad flag")
	var ue *UsageError
	assert.True(t, errors.As(NewUsageError(base), &ue))
	assert.ErrorIs(t, NewUsageError(base), base)

	var se *StatusError
	err := error(NewStatusErrorf(3, "exit with %d", 3))
	assert.True(t, errors.As(err, &se))
	assert.Equal(t, 3, se.Code)
}
