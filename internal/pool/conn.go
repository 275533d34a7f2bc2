package pool

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/go-redis/singleconn/internal/proto"
)

var noDeadline = time.Time{}

// aLongTimeAgo is a deadline that makes pending and future I/O fail at once.
var aLongTimeAgo = time.Unix(1, 0)

type Conn struct {
	netConn net.Conn

	rd   *proto.Reader
	wbuf *bytes.Buffer
	wr   *proto.Writer

	Inited bool
}

func NewConn(netConn net.Conn) *Conn {
	cn := &Conn{
		netConn: netConn,
		wbuf:    new(bytes.Buffer),
	}
	cn.rd = proto.NewReader(netConn)
	cn.wr = proto.NewWriter(cn.wbuf)
	return cn
}

func (cn *Conn) RemoteAddr() net.Addr {
	if cn.netConn != nil {
		return cn.netConn.RemoteAddr()
	}
	return nil
}

// WriteArgs encodes args as one request and sends it. The request is
// encoded in full before anything reaches the socket, so an argument that
// can't be encoded leaves the connection untouched and its error is
// returned as is, and so is ctx.Err() when ctx is done before sending.
// Socket failures are reported as ErrConnLost.
func (cn *Conn) WriteArgs(ctx context.Context, timeout time.Duration, args []interface{}) error {
	cn.wbuf.Reset()
	if err := cn.wr.WriteArgs(args); err != nil {
		return err
	}

	if err := cn.netConn.SetWriteDeadline(cn.deadline(ctx, timeout)); err != nil {
		return connLost(ctx, err)
	}
	// A cancellation that raced with the deadline above could have been
	// overwritten. Nothing has been sent yet.
	if ctx != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if _, err := cn.netConn.Write(cn.wbuf.Bytes()); err != nil {
		return connLost(ctx, err)
	}
	return nil
}

// ReadReply reads one reply. Malformed frames are reported as
// *proto.ProtocolError and socket failures as ErrConnLost.
func (cn *Conn) ReadReply(ctx context.Context, timeout time.Duration) (*proto.Reply, error) {
	if err := cn.netConn.SetReadDeadline(cn.deadline(ctx, timeout)); err != nil {
		return nil, connLost(ctx, err)
	}
	if ctx != nil && ctx.Err() != nil {
		return nil, connLost(ctx, ctx.Err())
	}
	reply, err := cn.rd.ReadReply()
	if err != nil {
		var perr *proto.ProtocolError
		if errors.As(err, &perr) {
			return nil, err
		}
		return nil, connLost(ctx, err)
	}
	return reply, nil
}

// WatchContext interrupts any I/O on the connection once ctx is done.
// The returned stop function must be called when the round trip is over;
// it waits for an interruption that already started.
func (cn *Conn) WatchContext(ctx context.Context) (stop func()) {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	stopAfter := context.AfterFunc(ctx, func() {
		_ = cn.netConn.SetDeadline(aLongTimeAgo)
		close(done)
	})
	return func() {
		if !stopAfter() {
			<-done
		}
	}
}

func (cn *Conn) deadline(ctx context.Context, timeout time.Duration) time.Time {
	tm := time.Now()

	if timeout > 0 {
		tm = tm.Add(timeout)
	}

	if ctx != nil {
		deadline, ok := ctx.Deadline()
		if ok {
			if timeout == 0 {
				return deadline
			}
			if deadline.Before(tm) {
				return deadline
			}
			return tm
		}
	}

	if timeout > 0 {
		return tm
	}

	return noDeadline
}

func (cn *Conn) Close() error {
	return cn.netConn.Close()
}

func connLost(ctx context.Context, err error) error {
	if ctx != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrConnLost, ctx.Err())
	}
	return fmt.Errorf("%w: %w", ErrConnLost, err)
}
