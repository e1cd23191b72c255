// Package logger defines the logging interface used across hubauth.
//
// Libraries never pick a logging backend: they accept a Logger, and default
// to Nil. Binaries build a concrete logger with klog and pass it down.
package logger

import (
	"fmt"
	"io"
	"log"
)

// Logger is the interface used by the hubauth libraries to log messages.
//
// A zap SugaredLogger (see klog) and logrus satisfy it out of the box.
type Logger interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Warnf(format string, args ...interface{})

	SetOutput(writer io.Writer)
}

// Printer is a Printf like function.
type Printer func(format string, args ...interface{})

// DefaultLogger turns a Printer into a Logger, prefixing each message
// with its priority.
type DefaultLogger struct {
	Printer Printer
	Setter  func(writer io.Writer)
}

func (dl DefaultLogger) Debugf(format string, args ...interface{}) {
	dl.Printer("[debug] "+format, args...)
}
func (dl DefaultLogger) Infof(format string, args ...interface{}) {
	dl.Printer("[info] "+format, args...)
}
func (dl DefaultLogger) Errorf(format string, args ...interface{}) {
	dl.Printer("[error] "+format, args...)
}
func (dl DefaultLogger) Warnf(format string, args ...interface{}) {
	dl.Printer("[warning] "+format, args...)
}
func (dl DefaultLogger) SetOutput(output io.Writer) {
	if dl.Setter != nil {
		dl.Setter(output)
	}
}

// Go logs through the standard golang log package.
var Go Logger = &DefaultLogger{Printer: log.Printf, Setter: log.SetOutput}

// Nil discards all the output. It is the default of every library.
var Nil Logger = &NilLogger{}

// NilLogger is a logger that discards all messages.
type NilLogger struct{}

func (dl NilLogger) Debugf(format string, args ...interface{}) {}
func (dl NilLogger) Infof(format string, args ...interface{})  {}
func (dl NilLogger) Errorf(format string, args ...interface{}) {}
func (dl NilLogger) Warnf(format string, args ...interface{})  {}
func (dl NilLogger) SetOutput(output io.Writer)                {}

// Prefixed returns a Logger that prepends prefix to every message.
func Prefixed(log Logger, prefix string) Logger {
	return &prefixed{inner: log, prefix: prefix}
}

type prefixed struct {
	inner  Logger
	prefix string
}

func (p *prefixed) wrap(format string) string {
	return fmt.Sprintf("%s%s", p.prefix, format)
}
func (p *prefixed) Debugf(format string, args ...interface{}) {
	p.inner.Debugf(p.wrap(format), args...)
}
func (p *prefixed) Infof(format string, args ...interface{}) {
	p.inner.Infof(p.wrap(format), args...)
}
func (p *prefixed) Errorf(format string, args ...interface{}) {
	p.inner.Errorf(p.wrap(format), args...)
}
func (p *prefixed) Warnf(format string, args ...interface{}) {
	p.inner.Warnf(p.wrap(format), args...)
}
func (p *prefixed) SetOutput(output io.Writer) {
	p.inner.SetOutput(output)
}
