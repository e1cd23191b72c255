// Package kflags provides an abstraction over the standard flag and the pflag
// libraries, so that libraries can register their own flags without caring
// about which one the binary uses.
//
// Each configurable component exposes a Flags struct with a DefaultFlags()
// constructor and a Register(set, prefix) method, and a modifier that turns
// the parsed flags into options.
package kflags

import (
	"flag"
	"fmt"
	"strings"
	"time"
)

// FlagSet interface provides an abstraction over a cobra or golang flag set.
//
// Use the GoFlagSet wrapper here for a flag.FlagSet, and kcobra.FlagSet for
// a pflag.FlagSet.
type FlagSet interface {
	BoolVar(p *bool, name string, value bool, usage string)
	DurationVar(p *time.Duration, name string, value time.Duration, usage string)
	StringVar(p *string, name string, value string, usage string)
	StringArrayVar(p *[]string, name string, value []string, usage string)
	ByteFileVar(p *[]byte, name string, defaultFile string, usage string, mods ...ByteFileModifier)
	IntVar(p *int, name string, value int, usage string)
	Float64Var(p *float64, name string, value float64, usage string)
}

// GoFlagSet wraps a flag.FlagSet from the go standard library and completes
// the implementation of the FlagSet interface.
//
//	var set kflags.FlagSet
//	set = &kflags.GoFlagSet{FlagSet: flag.CommandLine}
type GoFlagSet struct {
	*flag.FlagSet
}

func (fs *GoFlagSet) ByteFileVar(p *[]byte, name string, defaultFile string, usage string, mods ...ByteFileModifier) {
	fs.Var(NewByteFileFlag(p, defaultFile, mods...), name, usage)
}

func (fs *GoFlagSet) StringArrayVar(p *[]string, name string, value []string, usage string) {
	if len(value) > 0 {
		*p = value[:]
	}
	fs.Var(&stringArrayFlag{dest: p, defaults: true}, name, usage)
}

// stringArrayFlag implements flag.Value for repeated flags.
type stringArrayFlag struct {
	dest     *[]string
	defaults bool // set to true while dest points to the default value.
}

func (v *stringArrayFlag) String() string {
	if v.dest == nil {
		return "[]"
	}
	return "[" + strings.Join(*v.dest, ",") + "]"
}

func (v *stringArrayFlag) Set(value string) error {
	// Don't append to the default array, create a new one.
	if v.defaults {
		*v.dest = []string{}
		v.defaults = false
	}

	*v.dest = append(*v.dest, value)
	return nil
}

// Wrap errors in a StatusError to indicate a different exit value to be
// returned if the error causes the program to exit.
type StatusError struct {
	error
	Code int
}

func (se *StatusError) Unwrap() error {
	return se.error
}

func NewStatusError(code int, err error) *StatusError {
	return &StatusError{error: err, Code: code}
}

func NewStatusErrorf(code int, f string, args ...interface{}) *StatusError {
	return &StatusError{error: fmt.Errorf(f, args...), Code: code}
}

// Wrap errors in an UsageError to indicate that the problem has been caused
// by incorrect flags by the user, and as such, the help screen should be printed.
type UsageError struct {
	error
}

func (ue *UsageError) Unwrap() error {
	return ue.error
}

func NewUsageError(err error) *UsageError {
	return &UsageError{error: err}
}

func NewUsageErrorf(f string, args ...interface{}) *UsageError {
	return &UsageError{error: fmt.Errorf(f, args...)}
}

// An ErrorHandler takes an error as input, transforms it, and returns an error as output.
type ErrorHandler func(err error) error

// Printer is a function capable of printing Printf like strings.
type Printer func(format string, v ...interface{})
