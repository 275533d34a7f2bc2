package redis

import "context"

type SortedSetCmdable interface {
	ZAdd(ctx context.Context, key string, members ...Z) *BoolCmd
	ZCard(ctx context.Context, key string) *IntCmd
	ZRange(ctx context.Context, key string, start, stop int64) *StringSliceCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *BoolCmd
	ZScore(ctx context.Context, key, member string) *FloatCmd
}

// Z represents sorted set member.
type Z struct {
	Score  float64
	Member interface{}
}

// ZAdd Redis `ZADD key score member [score member ...]` command.
// It reports true if at least one member was added; updating the score of
// existing members reports false.
func (c cmdable) ZAdd(ctx context.Context, key string, members ...Z) *BoolCmd {
	args := make([]interface{}, 2, 2+2*len(members))
	args[0] = "zadd"
	args[1] = key
	for _, m := range members {
		args = append(args, m.Score, m.Member)
	}
	cmd := NewBoolCmd(ctx, args...)
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) ZCard(ctx context.Context, key string) *IntCmd {
	cmd := NewIntCmd(ctx, "zcard", key)
	_ = c(ctx, cmd)
	return cmd
}

// ZRange returns the members between start and stop, ordered by score.
func (c cmdable) ZRange(ctx context.Context, key string, start, stop int64) *StringSliceCmd {
	cmd := NewStringSliceCmd(ctx, "zrange", key, start, stop)
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) ZRem(ctx context.Context, key string, members ...interface{}) *BoolCmd {
	args := make([]interface{}, 2, 2+len(members))
	args[0] = "zrem"
	args[1] = key
	args = appendArgs(args, members)
	cmd := NewBoolCmd(ctx, args...)
	_ = c(ctx, cmd)
	return cmd
}

// ZScore returns 0 and no error when the member or the key does not exist.
func (c cmdable) ZScore(ctx context.Context, key, member string) *FloatCmd {
	cmd := NewFloatCmd(ctx, "zscore", key, member)
	_ = c(ctx, cmd)
	return cmd
}
