package hooks

import (
	"runtime/debug"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Source paths are trimmed up to and including this segment.
const repoSegment = "scd/"

type contextHook struct {
	levels []log.Level
}

// NewContextHook adds a "file:line" field naming the caller of the logrus entry point.
func NewContextHook(levels ...log.Level) contextHook {
	if len(levels) == 0 {
		levels = log.AllLevels
	}
	return contextHook{levels: levels}
}

func (hook contextHook) Levels() []log.Level {
	return hook.levels
}

func (hook contextHook) Fire(entry *log.Entry) error {
	if loc := callerLocation(string(debug.Stack())); loc != "" {
		entry.Data["file:line"] = loc
	}
	return nil
}

// Stack frames come in pairs (function, file:line). The first file frame outside of
// logrus and this hook is the caller.
func callerLocation(stack string) string {
	lines := strings.Split(stack, "\n")
	foundLoggerBlock := false
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		if strings.Contains(line, "context_hook.go:") {
			foundLoggerBlock = true
			continue
		}
		if !foundLoggerBlock || !strings.HasPrefix(line, "\t") {
			continue
		}
		if strings.Contains(line, "sirupsen/logrus") {
			continue
		}
		ctx := strings.Split(line, repoSegment)
		loc := strings.TrimSpace(ctx[len(ctx)-1])
		if idx := strings.LastIndex(loc, " +0x"); idx > 0 {
			loc = loc[:idx]
		}
		return loc
	}
	return ""
}
