package redis

import "context"

type ServerCmdable interface {
	ConfigGet(ctx context.Context, parameter string) *KeyValueSliceCmd
	ConfigSet(ctx context.Context, parameter, value string) *BoolCmd
	DBSize(ctx context.Context) *IntCmd
	FlushAll(ctx context.Context) *BoolCmd
	FlushDB(ctx context.Context) *BoolCmd
	Info(ctx context.Context, section ...string) *StringCmd
}

func (c cmdable) ConfigGet(ctx context.Context, parameter string) *KeyValueSliceCmd {
	cmd := NewKeyValueSliceCmd(ctx, "config", "get", parameter)
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) ConfigSet(ctx context.Context, parameter, value string) *BoolCmd {
	cmd := NewBoolCmd(ctx, "config", "set", parameter, value)
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) DBSize(ctx context.Context) *IntCmd {
	cmd := NewIntCmd(ctx, "dbsize")
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) FlushAll(ctx context.Context) *BoolCmd {
	cmd := NewBoolCmd(ctx, "flushall")
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) FlushDB(ctx context.Context) *BoolCmd {
	cmd := NewBoolCmd(ctx, "flushdb")
	_ = c(ctx, cmd)
	return cmd
}

func (c cmdable) Info(ctx context.Context, sections ...string) *StringCmd {
	args := make([]interface{}, 1+len(sections))
	args[0] = "info"
	for i, section := range sections {
		args[i+1] = section
	}
	cmd := NewStringCmd(ctx, args...)
	_ = c(ctx, cmd)
	return cmd
}
