package redis

import (
	"context"
	"fmt"

	"github.com/go-redis/singleconn/internal"
	"github.com/go-redis/singleconn/internal/pool"
	"github.com/go-redis/singleconn/internal/proto"
)

// Subscription received after a successful subscription to channel.
type Subscription struct {
	// Can be "subscribe", "unsubscribe", "psubscribe" or "punsubscribe".
	Kind string
	// Channel name we have subscribed to.
	Channel string
	// Number of channels we are currently subscribed to.
	Count int
}

func (m *Subscription) String() string {
	return fmt.Sprintf("%s: %s", m.Kind, m.Channel)
}

// SubscriptionCmd is the result of (P)SUBSCRIBE and (P)UNSUBSCRIBE. It
// holds one acknowledgement per channel or pattern.
type SubscriptionCmd struct {
	baseCmd

	val []*Subscription
}

var _ Cmder = (*SubscriptionCmd)(nil)

func newSubscriptionCmd(ctx context.Context, kind string, channels ...string) *SubscriptionCmd {
	args := make([]interface{}, 1+len(channels))
	args[0] = kind
	for i, channel := range channels {
		args[1+i] = channel
	}
	return &SubscriptionCmd{
		baseCmd: baseCmd{
			ctx:  ctx,
			args: args,
		},
	}
}

func (cmd *SubscriptionCmd) Val() []*Subscription {
	return cmd.val
}

func (cmd *SubscriptionCmd) Result() ([]*Subscription, error) {
	return cmd.val, cmd.err
}

// Count returns the number of subscriptions the connection has after the
// command, as reported by the last acknowledgement.
func (cmd *SubscriptionCmd) Count() int {
	if len(cmd.val) == 0 {
		return 0
	}
	return cmd.val[len(cmd.val)-1].Count
}

func (cmd *SubscriptionCmd) String() string {
	return cmdString(cmd, cmd.Count())
}

func (cmd *SubscriptionCmd) readReply(r *proto.Reply) error {
	sub, err := parseSubscription(r)
	if err != nil {
		return err
	}
	cmd.val = append(cmd.val, sub)
	return nil
}

func parseSubscription(r *proto.Reply) (*Subscription, error) {
	if r.Kind != proto.KindArray || len(r.Array) < 3 {
		return nil, proto.NewProtocolError(fmt.Sprintf("unexpected %s in place of a subscription reply", r.Kind))
	}
	kind, ok := r.Array[0].Text()
	if !ok {
		return nil, proto.NewProtocolError("subscription reply without a kind")
	}
	sub := &Subscription{Kind: kind}
	switch kind {
	case "message":
		sub.Channel, _ = r.Array[1].Text()
		return sub, nil
	case "pmessage":
		sub.Channel, _ = r.Array[2].Text()
		return sub, nil
	}

	sub.Channel, _ = r.Array[1].Text()
	count := r.Array[2]
	if count.Kind != proto.KindInteger {
		return nil, proto.NewProtocolError(fmt.Sprintf("unexpected %s as subscription count", count.Kind))
	}
	sub.Count = int(count.Int)
	return sub, nil
}

// readSubscriptionAcks reads the acknowledgements for cmd, one per named
// channel or, when none are named for an unsubscribe, one per current
// subscription of that kind and at least one. Published messages that arrive in between
// are dropped.
func (c *baseClient) readSubscriptionAcks(ctx context.Context, cn *pool.Conn, cmd *SubscriptionCmd) error {
	kind := cmd.Name()
	set := c.channels
	if kind == "psubscribe" || kind == "punsubscribe" {
		set = c.patterns
	}

	want := len(cmd.args) - 1
	if want == 0 && (kind == "unsubscribe" || kind == "punsubscribe") {
		want = len(set)
	}
	// An empty SUBSCRIBE is still answered, with an error.
	if want == 0 {
		want = 1
	}

	for len(cmd.val) < want {
		r, err := cn.ReadReply(ctx, c.opt.ReadTimeout)
		if err != nil {
			cmd.SetErr(err)
			return err
		}
		if err := r.Err(); err != nil {
			// The server rejected the whole command, no acks follow.
			cmd.SetErr(err)
			return nil
		}

		sub, err := parseSubscription(r)
		if err != nil {
			cmd.SetErr(err)
			return err
		}

		switch sub.Kind {
		case "message", "pmessage":
			internal.Debugf(ctx, "dropping %s on %q while waiting for %s", sub.Kind, sub.Channel, kind)
			continue
		case kind:
		default:
			err := proto.NewProtocolError(fmt.Sprintf("got %q acknowledgement in reply to %s", sub.Kind, kind))
			cmd.SetErr(err)
			return err
		}

		switch kind {
		case "subscribe", "psubscribe":
			set[sub.Channel] = struct{}{}
		default:
			delete(set, sub.Channel)
		}
		c.subCount = sub.Count
		cmd.val = append(cmd.val, sub)
	}
	return nil
}

//------------------------------------------------------------------------------

// Subscribe subscribes the client to the specified channels and waits for
// the server to acknowledge each of them. Until every subscription is
// undone, other commands fail with ErrSubscribed.
//
// Published messages are not delivered; ones that arrive while waiting for
// an acknowledgement are discarded.
func (c *Client) Subscribe(ctx context.Context, channels ...string) *SubscriptionCmd {
	cmd := newSubscriptionCmd(ctx, "subscribe", channels...)
	_ = c.Process(ctx, cmd)
	return cmd
}

// Unsubscribe the client from the given channels, or from all of them if
// none is given.
func (c *Client) Unsubscribe(ctx context.Context, channels ...string) *SubscriptionCmd {
	cmd := newSubscriptionCmd(ctx, "unsubscribe", channels...)
	_ = c.Process(ctx, cmd)
	return cmd
}

// PSubscribe subscribes the client to the given patterns.
func (c *Client) PSubscribe(ctx context.Context, patterns ...string) *SubscriptionCmd {
	cmd := newSubscriptionCmd(ctx, "psubscribe", patterns...)
	_ = c.Process(ctx, cmd)
	return cmd
}

// PUnsubscribe the client from the given patterns, or from all of them if
// none is given.
func (c *Client) PUnsubscribe(ctx context.Context, patterns ...string) *SubscriptionCmd {
	cmd := newSubscriptionCmd(ctx, "punsubscribe", patterns...)
	_ = c.Process(ctx, cmd)
	return cmd
}
