package proto

import (
	"fmt"
	"strings"
)

// RedisError is an error reply sent by the server.
type RedisError string

func (e RedisError) Error() string { return string(e) }

func (RedisError) RedisError() {}

// Prefix returns the leading error code, e.g. "ERR" or "WRONGTYPE".
func (e RedisError) Prefix() string {
	s := string(e)
	if i := strings.IndexByte(s, ' '); i != -1 {
		return s[:i]
	}
	return s
}

// ProtocolError reports a frame that does not follow RESP framing rules.
type ProtocolError struct {
	msg string
}

func (e *ProtocolError) Error() string {
	return "redis: protocol error: " + e.msg
}

func protocolErrorf(format string, args ...interface{}) *ProtocolError {
	return &ProtocolError{msg: fmt.Sprintf(format, args...)}
}

// NewProtocolError creates a ProtocolError with the given message.
func NewProtocolError(msg string) *ProtocolError {
	return &ProtocolError{msg: msg}
}
