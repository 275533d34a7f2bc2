package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/singleconn/internal"
	"github.com/go-redis/singleconn/internal/pool"
	"github.com/go-redis/singleconn/internal/proto"
)

// SetLogger set custom log
func SetLogger(logger internal.Logging) {
	internal.Logger = logger
}

// PoolStats contains usage statistics of the client's connection.
type PoolStats pool.Stats

type baseClient struct {
	opt      *Options
	connPool *pool.SingleConnPool

	// Pub/sub state of the connection. Only the holder of the connection
	// reads or writes it.
	channels map[string]struct{}
	patterns map[string]struct{}
	subCount int
}

func (c *baseClient) String() string {
	return fmt.Sprintf("Redis<%s db:%d>", c.opt.Addr, c.opt.DB)
}

func (c *baseClient) initConn(ctx context.Context, cn *pool.Conn) error {
	if cn.Inited {
		return nil
	}

	var cmds []Cmder
	if c.opt.Password != "" {
		if c.opt.Username != "" {
			cmds = append(cmds, NewStatusCmd(ctx, "auth", c.opt.Username, c.opt.Password))
		} else {
			cmds = append(cmds, NewStatusCmd(ctx, "auth", c.opt.Password))
		}
	}
	if c.opt.DB > 0 {
		cmds = append(cmds, NewStatusCmd(ctx, "select", c.opt.DB))
	}
	if c.opt.ClientName != "" {
		cmds = append(cmds, NewStatusCmd(ctx, "client", "setname", c.opt.ClientName))
	}

	for _, cmd := range cmds {
		if err := c.roundTrip(ctx, cn, cmd, setCmdReply); err != nil {
			return err
		}
		if err := cmd.Err(); err != nil {
			return err
		}
	}

	cn.Inited = true
	internal.Infof(ctx, "connected to %s", cn.RemoteAddr())
	return nil
}

func (c *baseClient) getConn(ctx context.Context) (*pool.Conn, error) {
	cn, err := c.connPool.Get(ctx)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		c.connPool.Put(cn)
		return nil, err
	}
	return cn, nil
}

// releaseConn returns the connection, or invalidates it when err says it
// can't be trusted anymore.
func (c *baseClient) releaseConn(ctx context.Context, cn *pool.Conn, err error) {
	if isConnLost(err) {
		internal.Warnf(ctx, "connection to %s lost: %s", c.opt.Addr, err)
		c.connPool.Remove(cn, err)
		return
	}
	c.connPool.Put(cn)
}

func (c *baseClient) process(ctx context.Context, cmd Cmder) error {
	cn, err := c.getConn(ctx)
	if err != nil {
		cmd.SetErr(err)
		return err
	}

	err = c.roundTrip(ctx, cn, cmd, setCmdReply)
	c.releaseConn(ctx, cn, err)
	return cmd.Err()
}

// roundTrip sends cmd over cn and hands the reply to handle. The caller
// holds cn. Command level failures are set on cmd; the returned error is
// non-nil only when cn can't be used anymore.
func (c *baseClient) roundTrip(
	ctx context.Context, cn *pool.Conn, cmd Cmder, handle func(Cmder, *proto.Reply),
) error {
	sub, isSub := cmd.(*SubscriptionCmd)
	if c.subCount > 0 && !isSub {
		cmd.SetErr(ErrSubscribed)
		return nil
	}
	if err := ctx.Err(); err != nil {
		cmd.SetErr(err)
		return nil
	}

	stop := cn.WatchContext(ctx)
	defer stop()

	if err := cn.WriteArgs(ctx, c.opt.WriteTimeout, cmd.Args()); err != nil {
		cmd.SetErr(err)
		if isConnLost(err) {
			return err
		}
		return nil
	}

	if isSub {
		return c.readSubscriptionAcks(ctx, cn, sub)
	}

	r, err := cn.ReadReply(ctx, c.opt.ReadTimeout)
	if err != nil {
		cmd.SetErr(err)
		return err
	}
	handle(cmd, r)
	return nil
}

func (c *baseClient) close() error {
	return c.connPool.Close()
}

//------------------------------------------------------------------------------

// Client is a Redis client representing one connection to the server.
// It's safe for concurrent use by multiple goroutines; commands are sent
// one at a time in the order the goroutines acquire the connection.
type Client struct {
	*baseClient
	cmdable
	hooksMixin
}

// NewClient dials the server described by opt and initializes the
// connection. Failures are reported as *ConnectionError.
func NewClient(ctx context.Context, opt *Options) (*Client, error) {
	if opt == nil {
		opt = new(Options)
	}
	opt = opt.clone()
	opt.init()

	c := Client{
		baseClient: &baseClient{
			opt:      opt,
			channels: make(map[string]struct{}),
			patterns: make(map[string]struct{}),
		},
	}
	c.init()
	for _, hook := range opt.Hooks {
		c.AddHook(hook)
	}

	netConn, err := c.dialHook(ctx, opt.Network, opt.Addr)
	if err != nil {
		return nil, &ConnectionError{Addr: opt.Addr, Err: err}
	}

	cn := pool.NewConn(netConn)
	if err := c.initConn(ctx, cn); err != nil {
		_ = cn.Close()
		return nil, &ConnectionError{Addr: opt.Addr, Err: err}
	}
	c.connPool = pool.NewSingleConnPool(cn)

	return &c, nil
}

func (c *Client) init() {
	c.cmdable = c.Process
	c.initHooks(hooks{
		dial:    c.baseClient.opt.Dialer,
		process: c.baseClient.process,
	})
}

func (c *Client) Process(ctx context.Context, cmd Cmder) error {
	err := c.processHook(ctx, cmd)
	cmd.SetErr(err)
	return err
}

// Options returns read-only Options that were used to create the client.
func (c *Client) Options() *Options {
	return c.opt
}

// PoolStats returns connection usage statistics.
func (c *Client) PoolStats() *PoolStats {
	stats := c.connPool.Stats()
	return (*PoolStats)(stats)
}

// Close closes the connection. A command in flight fails with
// ErrConnectionLost and every later command with ErrClosed.
func (c *Client) Close() error {
	return c.close()
}
