// Package kcobra adapts kflags to cobra and pflag.
package kcobra

import (
	"errors"
	"fmt"
	"os"

	"github.com/enfabrica/hubauth/lib/kflags"
	"github.com/enfabrica/hubauth/lib/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagSet completes a pflag.FlagSet into a kflags.FlagSet.
type FlagSet struct {
	*pflag.FlagSet
}

func (fs *FlagSet) ByteFileVar(p *[]byte, name string, defaultFile string, usage string, mods ...kflags.ByteFileModifier) {
	fs.Var(kflags.NewByteFileFlag(p, defaultFile, mods...), name, usage)
}

// LogFlags logs the value of each flag, and if it was changed by the user.
func LogFlags(command *cobra.Command, log logger.Printer) {
	log("Running: %s", os.Args)
	command.Flags().VisitAll(func(flag *pflag.Flag) {
		changed := "[not changed by user]"
		if flag.Changed {
			changed = fmt.Sprintf("[changed by user - original '%s']", flag.DefValue)
		}
		if flag.Value.Type() == "file-path" || flag.Name == "secret-key" {
			log("- flag --%s %s", flag.Name, changed)
			return
		}
		log("- flag --%s value '%s' %s", flag.Name, flag.Value, changed)
	})
}

type options struct {
	ehandlers []kflags.ErrorHandler
	printer   kflags.Printer
	argv      []string
	exit      func(int)
}

type Modifier func(*cobra.Command, *options) error

type Modifiers []Modifier

func (mods Modifiers) Apply(c *cobra.Command, o *options) error {
	for _, m := range mods {
		if err := m(c, o); err != nil {
			return err
		}
	}
	return nil
}

func WithPrinter(log kflags.Printer) Modifier {
	return func(c *cobra.Command, o *options) error {
		o.printer = log
		return nil
	}
}

func WithErrorHandler(eh ...kflags.ErrorHandler) Modifier {
	return func(c *cobra.Command, o *options) error {
		o.ehandlers = append(o.ehandlers, eh...)
		return nil
	}
}

func WithArgs(argv []string) Modifier {
	return func(c *cobra.Command, o *options) error {
		o.argv = argv
		return nil
	}
}

// WithExit replaces os.Exit, used by tests.
func WithExit(exit func(int)) Modifier {
	return func(c *cobra.Command, o *options) error {
		o.exit = exit
		return nil
	}
}

// Run executes the command, printing the usage on kflags.UsageError and
// exiting with the code of a kflags.StatusError, 1 for any other error.
func Run(root *cobra.Command, mods ...Modifier) {
	o := options{
		argv: os.Args,
		exit: os.Exit,
	}

	err := Modifiers(mods).Apply(root, &o)
	if o.printer != nil {
		LogFlags(root, (logger.Printer)(o.printer))
	}

	// Cobra expects argv without argv[0].
	if len(o.argv) >= 1 {
		o.argv = o.argv[1:]
	}
	root.SetArgs(o.argv)
	root.SilenceUsage = true
	root.SilenceErrors = true

	if err == nil {
		err = root.Execute()
	}
	if err == nil {
		return
	}

	cmd, _, nerr := root.Find(o.argv)
	if nerr != nil {
		cmd = root
	}
	for _, eh := range o.ehandlers {
		err = eh(err)
	}

	var ue *kflags.UsageError
	if errors.As(err, &ue) {
		root.Println(cmd.UsageString())
	}
	exit := 1
	var se *kflags.StatusError
	if errors.As(err, &se) {
		exit = se.Code
	}

	root.PrintErrf("ERROR: %s\n", err)
	o.exit(exit)
}
