// Package logging provides logging level constants and logger helpers for the client.
package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/singleconn/internal"
)

type LogLevelT = internal.LogLevelT

const (
	LogLevelError = internal.LogLevelError
	LogLevelWarn  = internal.LogLevelWarn
	LogLevelInfo  = internal.LogLevelInfo
	LogLevelDebug = internal.LogLevelDebug
)

// VoidLogger is a logger that does nothing.
type VoidLogger struct{}

func (v *VoidLogger) Printf(_ context.Context, _ string, _ ...interface{}) {}

// Disable replaces the current logger with a VoidLogger.
//
// NOTE: This function is not thread-safe.
func Disable() {
	internal.Logger = &VoidLogger{}
}

// SetLogLevel sets the most verbose level that is printed.
func SetLogLevel(logLevel LogLevelT) {
	internal.LogLevel = logLevel
}

// NewFilterLogger wraps logger with a substring filter. A blacklist drops
// messages containing any of the substrings, e.g. to keep keys or payloads
// out of the logs; otherwise only such messages are printed.
func NewFilterLogger(logger internal.Logging, substr []string, blacklist bool) internal.Logging {
	return &filterLogger{logger: logger, substr: substr, blacklist: blacklist}
}

type filterLogger struct {
	logger    internal.Logging
	blacklist bool
	substr    []string
}

func (l *filterLogger) Printf(ctx context.Context, format string, v ...interface{}) {
	msg := fmt.Sprintf(format, v...)
	found := false
	for _, substr := range l.substr {
		if strings.Contains(msg, substr) {
			found = true
			if l.blacklist {
				return
			}
		}
	}
	// whitelist, only log if one of the substrings is present
	if !l.blacklist && !found {
		return
	}
	if l.logger != nil {
		l.logger.Printf(ctx, format, v...)
	}
}
