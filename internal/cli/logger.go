package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/go-redis/singleconn"
	"github.com/go-redis/singleconn/internal/cliconfig"
	"github.com/go-redis/singleconn/logging"
)

// clientLogger forwards the client library's Printf style messages to
// hclog. The library prefixes each message with its level name.
type clientLogger struct {
	log hclog.Logger
}

func (l *clientLogger) Printf(_ context.Context, format string, v ...interface{}) {
	level, msg := splitLevel(fmt.Sprintf(format, v...))
	l.log.Log(level, msg)
}

var levelPrefixes = []struct {
	prefix string
	level  hclog.Level
}{
	{"ERROR ", hclog.Error},
	{"WARN ", hclog.Warn},
	{"INFO ", hclog.Info},
	{"DEBUG ", hclog.Debug},
}

func splitLevel(msg string) (hclog.Level, string) {
	for _, p := range levelPrefixes {
		if strings.HasPrefix(msg, p.prefix) {
			return p.level, msg[len(p.prefix):]
		}
	}
	return hclog.Info, msg
}

var clientLevels = map[string]logging.LogLevelT{
	"error": logging.LogLevelError,
	"warn":  logging.LogLevelWarn,
	"info":  logging.LogLevelInfo,
	"debug": logging.LogLevelDebug,
}

// setClientLogger routes the client library's messages to logger, minus
// the ones cfg asks to redact.
func setClientLogger(logger hclog.Logger, cfg *cliconfig.Config) {
	logging.SetLogLevel(clientLevels[cfg.Log.Level])
	if cfg.Log.Quiet {
		logging.Disable()
		return
	}

	l := &clientLogger{log: logger.Named("redis")}
	if len(cfg.Log.Redact) > 0 {
		redis.SetLogger(logging.NewFilterLogger(l, cfg.Log.Redact, true))
		return
	}
	redis.SetLogger(l)
}

func newLogger(w io.Writer, level string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   "rcli",
		Level:  hclog.LevelFromString(level),
		Output: w,
	})
}
