// Package klog builds a zap backed logger.Logger configured through flags.
//
// Messages are always written to the console above the console level, and
// on platforms that support it also to syslog above the syslog level.
package klog

import (
	"io"
	"os"
	"strings"

	"github.com/enfabrica/hubauth/lib/kflags"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger struct {
	*zap.SugaredLogger
}

func (l *Logger) SetOutput(writer io.Writer) {
}

type Flags struct {
	ConsoleLevel string
	SyslogLevel  string
	Verbosity    int
	JSON         bool
}

func DefaultFlags() *Flags {
	return &Flags{
		ConsoleLevel: "warn",
		SyslogLevel:  "info",
	}
}

func (cf *Flags) Register(flags kflags.FlagSet, prefix string) *Flags {
	flags.StringVar(&cf.ConsoleLevel, prefix+"loglevel-console", cf.ConsoleLevel, "Can be debug, info, warn, error. Indicates the minimum severity of messages to log on the console")
	flags.StringVar(&cf.SyslogLevel, prefix+"loglevel-syslog", cf.SyslogLevel, "Can be debug, info, warn, error, none. Indicates the minimum severity of messages to log in syslog")
	flags.IntVar(&cf.Verbosity, prefix+"verbosity", cf.Verbosity, "Increases the verbosity level of logs by the specified amount")
	flags.BoolVar(&cf.JSON, prefix+"log-json", cf.JSON, "Log to the console in JSON format rather than in human readable format")
	return cf
}

type Level struct {
	Name  string
	Value zapcore.Level
}

type Levels []Level

// Find returns the index and the level matching name, accepting prefixes
// like "warn" for "warning". Returns nil if no level matches.
func (levels Levels) Find(name string) (int, *Level) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		return 0, nil
	}
	for ix, level := range levels {
		if strings.HasPrefix(level.Name, name) {
			return ix, &levels[ix]
		}
	}
	return 0, nil
}

func (levels Levels) String() string {
	keys := []string{}
	for _, key := range levels {
		keys = append(keys, key.Name)
	}
	return "[" + strings.Join(keys, ", ") + "]"
}

var DefaultLevels = Levels{
	{"debug", zapcore.DebugLevel},
	{"info", zapcore.InfoLevel},
	{"warning", zapcore.WarnLevel},
	{"error", zapcore.ErrorLevel},
}

type options struct {
	minConsole zapcore.Level
	minSyslog  zapcore.Level
	syslog     bool
	json       bool
	console    zapcore.WriteSyncer
}

type Modifier func(o *options) error

type Modifiers []Modifier

func (mods Modifiers) Apply(o *options) error {
	for _, m := range mods {
		if err := m(o); err != nil {
			return err
		}
	}
	return nil
}

// WithConsole redirects the console output, os.Stderr by default.
func WithConsole(ws zapcore.WriteSyncer) Modifier {
	return func(o *options) error {
		o.console = ws
		return nil
	}
}

func FromFlags(flags Flags) Modifier {
	return func(o *options) error {
		cx, cl := DefaultLevels.Find(flags.ConsoleLevel)
		if cl == nil {
			return kflags.NewUsageErrorf("invalid --loglevel-console passed - %s is unknown, valid: %s", flags.ConsoleLevel, DefaultLevels)
		}
		o.minConsole = DefaultLevels[max(0, cx-flags.Verbosity)].Value
		o.json = flags.JSON

		if strings.EqualFold(strings.TrimSpace(flags.SyslogLevel), "none") {
			o.syslog = false
			return nil
		}
		sx, sl := DefaultLevels.Find(flags.SyslogLevel)
		if sl == nil {
			return kflags.NewUsageErrorf("invalid --loglevel-syslog passed - %s is unknown, valid: %s or none", flags.SyslogLevel, DefaultLevels)
		}
		o.minSyslog = DefaultLevels[max(0, sx-flags.Verbosity)].Value
		o.syslog = true
		return nil
	}
}

func New(name string, mods ...Modifier) (*Logger, error) {
	options := &options{
		minConsole: zap.WarnLevel,
		minSyslog:  zap.InfoLevel,
		syslog:     true,
		console:    zapcore.Lock(os.Stderr),
	}
	if err := Modifiers(mods).Apply(options); err != nil {
		return nil, err
	}

	matchConsole := zap.LevelEnablerFunc(func(lvl zapcore.Level) bool {
		return lvl >= options.minConsole
	})

	encoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
	if options.json {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	tees := []zapcore.Core{
		zapcore.NewCore(encoder, options.console, matchConsole),
	}
	if options.syslog {
		tees = append(tees, syslogCores(name, options.minSyslog)...)
	}

	logger := zap.New(zapcore.NewTee(tees...)).Sugar()
	return &Logger{logger}, nil
}
