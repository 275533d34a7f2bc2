package redis

import "context"

type HashCmdable interface {
	HDel(ctx context.Context, key string, fields ...string) *BoolCmd
	HGet(ctx context.Context, key, field string) *StringCmd
	HGetAll(ctx context.Context, key string) *KeyValueSliceCmd
	HLen(ctx context.Context, key string) *IntCmd
	HSet(ctx context.Context, key, field string, value interface{}) *BoolCmd
}

func (c cmdable) HDel(ctx context.Context, key string, fields ...string) *BoolCmd {
	args := make([]interface{}, 2+len(fields))
	args[0] = "hdel"
	args[1] = key
	for i, field := range fields {
		args[2+i] = field
	}
	cmd := NewBoolCmd(ctx, args...)
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) HGet(ctx context.Context, key, field string) *StringCmd {
	cmd := NewStringCmd(ctx, "hget", key, field)
	_ = c(ctx, cmd)
	return cmd
}

// HGetAll returns the fields and values in the order the server sent them.
// A missing key yields an empty slice.
func (c cmdable) HGetAll(ctx context.Context, key string) *KeyValueSliceCmd {
	cmd := NewKeyValueSliceCmd(ctx, "hgetall", key)
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) HLen(ctx context.Context, key string) *IntCmd {
	cmd := NewIntCmd(ctx, "hlen", key)
	_ = c(ctx, cmd)
	return cmd
}

// HSet reports true when the field was created and false when an existing
// field was overwritten.
func (c cmdable) HSet(ctx context.Context, key, field string, value interface{}) *BoolCmd {
	cmd := NewBoolCmd(ctx, "hset", key, field, value)
	_ = c(ctx, cmd)
	return cmd
}
