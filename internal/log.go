package internal

import (
	"context"
	"fmt"
	"log"
	"os"
)

// LogLevelT represents the logging level.
type LogLevelT int

const (
	LogLevelError LogLevelT = iota
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

func (l LogLevelT) String() string {
	switch l {
	case LogLevelError:
		return "ERROR"
	case LogLevelWarn:
		return "WARN"
	case LogLevelInfo:
		return "INFO"
	case LogLevelDebug:
		return "DEBUG"
	default:
		return "UNKNOWN"
	}
}

func (l LogLevelT) IsValid() bool {
	return l >= LogLevelError && l <= LogLevelDebug
}

// LogLevel is the most verbose level that gets printed.
var LogLevel = LogLevelWarn

type Logging interface {
	Printf(ctx context.Context, format string, v ...interface{})
}

type DefaultLogger struct {
	log *log.Logger
}

func (l *DefaultLogger) Printf(ctx context.Context, format string, v ...interface{}) {
	_ = l.log.Output(2, fmt.Sprintf(format, v...))
}

func NewDefaultLogger() Logging {
	return &DefaultLogger{
		log: log.New(os.Stderr, "redis: ", log.LstdFlags|log.Lshortfile),
	}
}

// Logger calls Output to print to the stderr.
// Arguments are handled in the manner of fmt.Print.
var Logger Logging = NewDefaultLogger()

func logf(ctx context.Context, level LogLevelT, format string, v ...interface{}) {
	if level > LogLevel {
		return
	}
	Logger.Printf(ctx, level.String()+" "+format, v...)
}

func Errorf(ctx context.Context, format string, v ...interface{}) {
	logf(ctx, LogLevelError, format, v...)
}

func Warnf(ctx context.Context, format string, v ...interface{}) {
	logf(ctx, LogLevelWarn, format, v...)
}

func Infof(ctx context.Context, format string, v ...interface{}) {
	logf(ctx, LogLevelInfo, format, v...)
}

func Debugf(ctx context.Context, format string, v ...interface{}) {
	logf(ctx, LogLevelDebug, format, v...)
}
