package kcobra

import (
	"bytes"
	"testing"
	"time"

	"github.com/enfabrica/hubauth/lib/kflags"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
)

func TestRunUsageError(t *testing.T) {
	var timeout time.Duration
	var orgs []string
	command := &cobra.Command{Use: "server"}
	set := &FlagSet{command.Flags()}
	set.DurationVar(&timeout, "timeout", time.Second, "timeout")
	set.StringArrayVar(&orgs, "allowed-organizations", nil, "orgs")
	command.RunE = func(cmd *cobra.Command, args []string) error {
		return kflags.NewStatusError(7, kflags.NewUsageErrorf("no orgs in %v", orgs))
	}

	out := &bytes.Buffer{}
	command.SetOut(out)
	command.SetErr(out)

	code := -1
	Run(command, WithArgs([]string{"server", "--timeout=5s", "--allowed-organizations=blue"}), WithExit(func(c int) { code = c }))
	assert.Equal(t, 7, code)
	assert.Equal(t, 5*time.Second, timeout)
	assert.Contains(t, out.String(), "ERROR: no orgs in [blue]")
	assert.Contains(t, out.String(), "Usage:")
}

func TestRunSuccess(t *testing.T) {
	ran := false
	command := &cobra.Command{Use: "server", RunE: func(cmd *cobra.Command, args []string) error {
		ran = true
		return nil
	}}
	code := -1
	Run(command, WithArgs([]string{"server"}), WithExit(func(c int) { code = c }))
	assert.True(t, ran)
	assert.Equal(t, -1, code)
}
