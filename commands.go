package redis

import (
	"context"
	"time"

	"github.com/go-redis/singleconn/internal"
)

// KeepTTL is a Redis KEEPTTL option to keep existing TTL, it requires your redis-server version >= 6.0,
// otherwise you will receive an error: (error) ERR syntax error.
// For example:
//
//	rdb.Set(ctx, key, value, redis.KeepTTL)
const KeepTTL = -1

func usePrecise(dur time.Duration) bool {
	return dur < time.Second || dur%time.Second != 0
}

func formatMs(ctx context.Context, dur time.Duration) int64 {
	if dur > 0 && dur < time.Millisecond {
		internal.Warnf(
			ctx,
			"specified duration is %s, but minimal supported value is %s - truncating to 1ms",
			dur, time.Millisecond,
		)
		return 1
	}
	return int64(dur / time.Millisecond)
}

func formatSec(ctx context.Context, dur time.Duration) int64 {
	if dur > 0 && dur < time.Second {
		internal.Warnf(
			ctx,
			"specified duration is %s, but minimal supported value is %s - truncating to 1s",
			dur, time.Second,
		)
		return 1
	}
	return int64(dur / time.Second)
}

func appendArgs(dst, src []interface{}) []interface{} {
	if len(src) == 1 {
		if ss, ok := src[0].([]string); ok {
			for _, s := range ss {
				dst = append(dst, s)
			}
			return dst
		}
	}
	return append(dst, src...)
}

//------------------------------------------------------------------------------

type Cmdable interface {
	Ping(ctx context.Context) *StatusCmd
	Echo(ctx context.Context, message interface{}) *StringCmd
	Do(ctx context.Context, args ...interface{}) *Cmd

	Del(ctx context.Context, keys ...string) *BoolCmd
	Exists(ctx context.Context, keys ...string) *IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *BoolCmd
	TTL(ctx context.Context, key string) *IntCmd
	Keys(ctx context.Context, pattern string) *StringSliceCmd

	Publish(ctx context.Context, channel string, message interface{}) *IntCmd

	StringCmdable
	HashCmdable
	ListCmdable
	SetCmdable
	SortedSetCmdable
	ServerCmdable
}

type cmdable func(ctx context.Context, cmd Cmder) error

func (c cmdable) Ping(ctx context.Context) *StatusCmd {
	cmd := NewStatusCmd(ctx, "ping")
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) Echo(ctx context.Context, message interface{}) *StringCmd {
	cmd := NewStringCmd(ctx, "echo", message)
	_ = c(ctx, cmd)
	return cmd
}

// Do sends an arbitrary command. The reply is not interpreted; an error
// reply is still reported as CommandError.
//
// SUBSCRIBE, PSUBSCRIBE, UNSUBSCRIBE and PUNSUBSCRIBE are answered with one
// reply per channel, so Do refuses them with ErrSubscribeCmd. Use
// Client.Subscribe and friends instead.
func (c cmdable) Do(ctx context.Context, args ...interface{}) *Cmd {
	cmd := NewCmd(ctx, args...)
	switch cmd.Name() {
	case "subscribe", "psubscribe", "unsubscribe", "punsubscribe":
		cmd.SetErr(ErrSubscribeCmd)
		return cmd
	}
	_ = c(ctx, cmd)
	return cmd
}

// Del reports true if at least one of the keys was removed.
func (c cmdable) Del(ctx context.Context, keys ...string) *BoolCmd {
	args := make([]interface{}, 1+len(keys))
	args[0] = "del"
	for i, key := range keys {
		args[1+i] = key
	}
	cmd := NewBoolCmd(ctx, args...)
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) Exists(ctx context.Context, keys ...string) *IntCmd {
	args := make([]interface{}, 1+len(keys))
	args[0] = "exists"
	for i, key := range keys {
		args[1+i] = key
	}
	cmd := NewIntCmd(ctx, args...)
	_ = c(ctx, cmd)
	return cmd
}

// Expire reports false if the key does not exist.
func (c cmdable) Expire(ctx context.Context, key string, expiration time.Duration) *BoolCmd {
	cmd := NewBoolCmd(ctx, "expire", key, formatSec(ctx, expiration))
	_ = c(ctx, cmd)
	return cmd
}

// TTL returns the remaining time to live in seconds, -1 if the key has no
// expiration and -2 if it does not exist.
func (c cmdable) TTL(ctx context.Context, key string) *IntCmd {
	cmd := NewIntCmd(ctx, "ttl", key)
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) Keys(ctx context.Context, pattern string) *StringSliceCmd {
	cmd := NewStringSliceCmd(ctx, "keys", pattern)
	_ = c(ctx, cmd)
	return cmd
}

// Publish posts the message to the channel and returns the number of
// clients that received it.
func (c cmdable) Publish(ctx context.Context, channel string, message interface{}) *IntCmd {
	cmd := NewIntCmd(ctx, "publish", channel, message)
	_ = c(ctx, cmd)
	return cmd
}
