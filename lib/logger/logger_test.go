package logger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccumulator(t *testing.T) {
	acc := NewAccumulator()
	acc.Infof("hello %s", "world")
	acc.Warnf("entry %s skipped", "blue")
	acc.Warnf("entry %s skipped", "red")

	assert.Equal(t, []string{"entry blue skipped", "entry red skipped"}, acc.Matching(WarnPriority, "skipped"))
	assert.Nil(t, acc.Matching(ErrorPriority, "skipped"))

	events := acc.Retrieve()
	assert.Len(t, events, 3)
	assert.Equal(t, InfoPriority, events[0].Priority)
	assert.Equal(t, "hello world", events[0].Message)
	assert.Len(t, acc.Retrieve(), 0)
}

func TestPrefixedAndForward(t *testing.T) {
	acc := NewAccumulator()
	acc.Errorf("boom")

	var lines []string
	out := &DefaultLogger{Printer: func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}}
	acc.Forward(Prefixed(out, "oauth: "))
	assert.Equal(t, []string{"[error] oauth: boom"}, lines)
}
