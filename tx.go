package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-redis/singleconn/internal"
	"github.com/go-redis/singleconn/internal/pool"
)

// TxState is the state of a transaction on its connection.
type TxState int

const (
	// TxIdle means no keys are watched and no MULTI block is open.
	TxIdle TxState = iota
	// TxWatching means WATCH succeeded and MULTI was not sent yet.
	TxWatching
	// TxQueued means MULTI succeeded; commands are queued until EXEC.
	TxQueued
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxWatching:
		return "watching"
	case TxQueued:
		return "queued"
	default:
		return "unknown"
	}
}

// Tx implements Redis transactions as described in
// http://redis.io/topics/transactions. It owns the client's connection for
// the duration of the Watch callback, so no other caller can interleave
// commands with the transaction. It's NOT safe for concurrent use by
// multiple goroutines.
type Tx struct {
	cmdable
	hooksMixin

	c  *Client
	cn *pool.Conn

	state   TxState
	watched []string
	queued  []Cmder

	lost   error // set once the connection broke
	closed bool
}

var _ Cmdable = (*Tx)(nil)

func (c *Client) newTx(cn *pool.Conn) *Tx {
	tx := &Tx{
		c:  c,
		cn: cn,
	}
	tx.cmdable = tx.Process
	tx.hooksMixin = c.hooksMixin.withProcess(tx.process)
	return tx
}

// Watch prepares a transaction and marks the keys to be watched
// for conditional execution if there are any keys.
//
// The transaction is automatically closed when fn exits: an open MULTI
// block is discarded and watched keys are released.
//
// The Tx holds the client's only connection until fn returns. Calling a
// Client method from inside fn waits for that connection, so it blocks
// until ctx of that call is done, and forever if ctx has no deadline.
// Issue every command on the Tx instead.
func (c *Client) Watch(ctx context.Context, fn func(*Tx) error, keys ...string) error {
	cn, err := c.getConn(ctx)
	if err != nil {
		return err
	}

	tx := c.newTx(cn)
	defer tx.close(ctx)

	if len(keys) > 0 {
		if err := tx.Watch(ctx, keys...).Err(); err != nil {
			return err
		}
	}

	return fn(tx)
}

// close restores the connection to a clean state and hands it back.
func (tx *Tx) close(ctx context.Context) {
	if tx.closed {
		return
	}

	// The caller's context may be done already; cleanup still has to run
	// or the next user of the connection inherits our MULTI block.
	ctx = context.WithoutCancel(ctx)

	if tx.lost == nil {
		switch tx.state {
		case TxQueued, TxWatching:
			if err := tx.Discard(ctx).Err(); err != nil {
				internal.Errorf(ctx, "releasing %s transaction failed: %s", tx.state, err)
			}
		}
		if tx.lost == nil && tx.state != TxIdle {
			tx.lost = fmt.Errorf("%w: %s transaction could not be released", ErrConnectionLost, tx.state)
		}
	}

	tx.closed = true
	tx.c.releaseConn(ctx, tx.cn, tx.lost)
}

func (tx *Tx) Process(ctx context.Context, cmd Cmder) error {
	err := tx.processHook(ctx, cmd)
	cmd.SetErr(err)
	return err
}

func (tx *Tx) process(ctx context.Context, cmd Cmder) error {
	if tx.closed {
		cmd.SetErr(ErrTxClosed)
		return ErrTxClosed
	}
	if tx.lost != nil {
		cmd.SetErr(tx.lost)
		return tx.lost
	}

	handle := setCmdReply
	queue := tx.state == TxQueued && !isTxControl(cmd)
	if queue {
		handle = setQueuedReply
	}

	if err := tx.c.roundTrip(ctx, tx.cn, cmd, handle); err != nil {
		tx.lost = err
		return cmd.Err()
	}

	if queue && cmd.Queued() {
		tx.queued = append(tx.queued, cmd)
	}
	return cmd.Err()
}

func isTxControl(cmd Cmder) bool {
	switch cmd.Name() {
	case "watch", "unwatch", "multi", "exec", "discard":
		return true
	}
	return false
}

func (tx *Tx) stateErr(cmd Cmder) {
	if tx.closed {
		cmd.SetErr(ErrTxClosed)
		return
	}
	cmd.SetErr(&TxStateError{Op: cmd.Name(), State: tx.state})
}

// delivered reports whether the server received the command that failed
// with err, or whether that no longer matters because the connection is
// gone.
func (tx *Tx) delivered(err error) bool {
	if err == nil || tx.lost != nil || IsCommandError(err) {
		return true
	}
	var typeErr *ReplyTypeError
	var protoErr *ProtocolError
	return errors.As(err, &typeErr) || errors.As(err, &protoErr)
}

// State returns the transaction state.
func (tx *Tx) State() TxState {
	return tx.state
}

// Watched returns the keys watched since the last EXEC, DISCARD or UNWATCH.
func (tx *Tx) Watched() []string {
	return tx.watched
}

// Watch marks the keys to be watched for conditional execution
// of a transaction. It is not allowed after Multi.
func (tx *Tx) Watch(ctx context.Context, keys ...string) *StatusCmd {
	args := make([]interface{}, 1+len(keys))
	args[0] = "watch"
	for i, key := range keys {
		args[1+i] = key
	}
	cmd := NewStatusCmd(ctx, args...)
	if tx.state == TxQueued {
		tx.stateErr(cmd)
		return cmd
	}

	if err := tx.Process(ctx, cmd); err != nil {
		return cmd
	}
	tx.state = TxWatching
	tx.addWatched(keys)
	return cmd
}

func (tx *Tx) addWatched(keys []string) {
outer:
	for _, key := range keys {
		for _, k := range tx.watched {
			if k == key {
				continue outer
			}
		}
		tx.watched = append(tx.watched, key)
	}
}

// Unwatch flushes all the previously watched keys for a transaction.
func (tx *Tx) Unwatch(ctx context.Context) *StatusCmd {
	cmd := NewStatusCmd(ctx, "unwatch")
	if tx.state == TxQueued {
		tx.stateErr(cmd)
		return cmd
	}

	if err := tx.Process(ctx, cmd); err != nil {
		return cmd
	}
	tx.reset()
	return cmd
}

// Multi opens a MULTI block. Commands issued on the Tx afterwards are
// queued by the server and report Queued() == true until Exec sets their
// results or errors.
func (tx *Tx) Multi(ctx context.Context) *StatusCmd {
	cmd := NewStatusCmd(ctx, "multi")
	if tx.state == TxQueued {
		tx.stateErr(cmd)
		return cmd
	}

	if err := tx.Process(ctx, cmd); err != nil {
		return cmd
	}
	tx.state = TxQueued
	tx.queued = nil
	return cmd
}

// Exec runs the queued commands. The transaction is idle afterwards,
// whatever the outcome, and watched keys are released.
//
// When a watched key changed the server aborts the transaction:
// Aborted() reports true, Err() is nil and every queued command fails with
// TxFailedErr.
func (tx *Tx) Exec(ctx context.Context) *ExecCmd {
	cmd := newExecCmd(ctx, tx.queued)
	if tx.state != TxQueued {
		tx.stateErr(cmd)
		return cmd
	}

	if err := tx.Process(ctx, cmd); err != nil {
		setCmdsErr(cmd.cmds, err)
		if !tx.delivered(err) {
			tx.discardQueued(ctx)
		}
	}
	for _, c := range cmd.cmds {
		c.setQueued(false)
	}
	tx.reset()
	return cmd
}

// discardQueued closes the server side MULTI block after EXEC could not be
// sent.
func (tx *Tx) discardQueued(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	cmd := NewStatusCmd(ctx, "discard")
	if err := tx.c.roundTrip(ctx, tx.cn, cmd, setCmdReply); err != nil {
		tx.lost = err
		return
	}
	if err := cmd.Err(); err != nil {
		internal.Warnf(ctx, "discard after failed exec: %s", err)
	}
}

// Discard abandons the transaction. An open MULTI block is discarded; if
// keys are only watched, they are released with UNWATCH. When the request
// can't be sent, e.g. because ctx is done, the state is kept and the
// connection is cleaned up when the Watch callback returns.
func (tx *Tx) Discard(ctx context.Context) *StatusCmd {
	var cmd *StatusCmd
	switch tx.state {
	case TxQueued:
		cmd = NewStatusCmd(ctx, "discard")
	case TxWatching:
		cmd = NewStatusCmd(ctx, "unwatch")
	default:
		cmd = NewStatusCmd(ctx, "discard")
		tx.stateErr(cmd)
		return cmd
	}

	if err := tx.Process(ctx, cmd); err != nil && !tx.delivered(err) {
		return cmd
	}
	tx.reset()
	return cmd
}

func (tx *Tx) reset() {
	tx.state = TxIdle
	tx.watched = nil
	tx.queued = nil
}
