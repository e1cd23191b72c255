package logger

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Priority of a logged message, mapping to Debugf, Infof, Warnf and Errorf.
type Priority int

const (
	DebugPriority Priority = iota
	InfoPriority
	WarnPriority
	ErrorPriority
)

func (p Priority) String() string {
	switch p {
	case DebugPriority:
		return "debug"
	case InfoPriority:
		return "info"
	case WarnPriority:
		return "warning"
	case ErrorPriority:
		return "error"
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// Event represents something that was logged.
type Event struct {
	Time     time.Time
	Priority Priority
	Message  string
}

// Accumulator is a thread safe Logger that keeps all messages in memory.
//
// Tests use it to check what a component logged, Forward can replay the
// messages into another Logger.
type Accumulator struct {
	lock  sync.Mutex
	event []Event
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// Retrieve returns the accumulated events, and clears them.
func (dl *Accumulator) Retrieve() []Event {
	dl.lock.Lock()
	defer dl.lock.Unlock()
	events := dl.event
	dl.event = nil
	return events
}

// Matching returns the messages logged at the specified priority containing
// substr, without clearing them.
func (dl *Accumulator) Matching(prio Priority, substr string) []string {
	dl.lock.Lock()
	defer dl.lock.Unlock()

	var result []string
	for _, ev := range dl.event {
		if ev.Priority == prio && strings.Contains(ev.Message, substr) {
			result = append(result, ev.Message)
		}
	}
	return result
}

func (dl *Accumulator) Forward(log Logger) {
	for _, ev := range dl.Retrieve() {
		switch ev.Priority {
		case DebugPriority:
			log.Debugf("%s", ev.Message)
		case InfoPriority:
			log.Infof("%s", ev.Message)
		case WarnPriority:
			log.Warnf("%s", ev.Message)
		case ErrorPriority:
			log.Errorf("%s", ev.Message)
		}
	}
}

func (dl *Accumulator) Add(prio Priority, format string, args ...interface{}) {
	dl.lock.Lock()
	defer dl.lock.Unlock()

	dl.event = append(dl.event, Event{
		Priority: prio,
		Message:  fmt.Sprintf(format, args...),
		Time:     time.Now(),
	})
}
func (dl *Accumulator) Debugf(format string, args ...interface{}) {
	dl.Add(DebugPriority, format, args...)
}
func (dl *Accumulator) Infof(format string, args ...interface{}) {
	dl.Add(InfoPriority, format, args...)
}
func (dl *Accumulator) Errorf(format string, args ...interface{}) {
	dl.Add(ErrorPriority, format, args...)
}
func (dl *Accumulator) Warnf(format string, args ...interface{}) {
	dl.Add(WarnPriority, format, args...)
}
func (dl *Accumulator) SetOutput(writer io.Writer) {}
