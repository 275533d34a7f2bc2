package redis

import (
	"errors"
	"fmt"

	"github.com/go-redis/singleconn/internal/pool"
	"github.com/go-redis/singleconn/internal/proto"
)

// ErrClosed performs any operation on the closed client will return this error.
var ErrClosed = pool.ErrClosed

// ErrConnectionLost is returned when the connection broke during a round
// trip or was abandoned because the context was done after the request was
// sent. The client can't be used afterwards; create a new one.
var ErrConnectionLost = pool.ErrConnLost

// TxFailedErr is set on the queued commands of a transaction the server
// aborted because a watched key changed.
var TxFailedErr = errors.New("redis: transaction failed")

// ErrTxClosed is returned by a Tx used after its Watch callback returned.
var ErrTxClosed = errors.New("redis: tx is closed")

// ErrSubscribed is returned for regular commands while the connection
// listens on pub/sub channels.
var ErrSubscribed = errors.New("redis: connection is in subscribed state")

// ErrSubscribeCmd is returned by Do for the pub/sub subscription commands.
var ErrSubscribeCmd = errors.New("redis: use Client.Subscribe and friends to change subscriptions")

// ErrInvalidTxState matches every *TxStateError.
var ErrInvalidTxState = errors.New("redis: invalid transaction state")

// ProtocolError reports a reply that does not follow RESP framing.
// The connection is invalidated.
type ProtocolError = proto.ProtocolError

// CommandError is an error reply sent by the server, e.g. WRONGTYPE.
// The connection stays usable.
type CommandError = proto.RedisError

// IsCommandError reports whether err is, or wraps, an error reply.
func IsCommandError(err error) bool {
	var cerr CommandError
	return errors.As(err, &cerr)
}

// ConnectionError is returned by NewClient when the server can't be reached
// or the connection could not be initialized.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("redis: can't connect to %s: %s", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TxStateError is returned when a transaction operation is not allowed in
// the current transaction state. Nothing is sent to the server.
type TxStateError struct {
	Op    string
	State TxState
}

func (e *TxStateError) Error() string {
	return fmt.Sprintf("redis: %s is not allowed in %s state", e.Op, e.State)
}

func (e *TxStateError) Is(target error) bool {
	return target == ErrInvalidTxState
}

// ReplyTypeError is set on a command whose reply has a shape the command
// can't interpret, e.g. an array in reply to GET. The connection stays usable.
type ReplyTypeError struct {
	Cmd  string
	Kind proto.Kind
}

func (e *ReplyTypeError) Error() string {
	return fmt.Sprintf("redis: unexpected %s reply to %q", e.Kind, e.Cmd)
}

func replyTypeError(cmd Cmder, r *proto.Reply) error {
	return &ReplyTypeError{Cmd: cmd.FullName(), Kind: r.Kind}
}

// isConnLost reports whether err leaves the connection unusable.
func isConnLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConnectionLost) {
		return true
	}
	var perr *ProtocolError
	return errors.As(err, &perr)
}
