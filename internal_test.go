package redis

import (
	"context"
	"errors"

	. "github.com/bsm/ginkgo/v2"
	. "github.com/bsm/gomega"

	"github.com/go-redis/singleconn/internal/proto"
)

var _ = Describe("reply interpretation", func() {
	ctx := context.TODO()

	DescribeTable("BoolCmd",
		func(args []interface{}, r *proto.Reply, want bool) {
			cmd := NewBoolCmd(ctx, args...)
			setCmdReply(cmd, r)
			Expect(cmd.Err()).NotTo(HaveOccurred())
			Expect(cmd.Val()).To(Equal(want))
		},
		Entry("SET ok", []interface{}{"set", "k", "v"}, proto.StatusReply("OK"), true),
		Entry("SET NX on existing key", []interface{}{"set", "k", "v", "nx"}, proto.NullReply(), false),
		Entry("HSET new field", []interface{}{"hset", "h", "f", "v"}, proto.IntReply(1), true),
		Entry("HSET existing field", []interface{}{"hset", "h", "f", "v"}, proto.IntReply(0), false),
		Entry("EXPIRE", []interface{}{"expire", "k", 10}, proto.IntReply(1), true),
		Entry("EXPIRE missing key", []interface{}{"expire", "k", 10}, proto.IntReply(0), false),
		Entry("CONFIG SET", []interface{}{"config", "set", "maxmemory", "0"}, proto.StatusReply("OK"), true),
		Entry("FLUSHDB", []interface{}{"flushdb"}, proto.StatusReply("OK"), true),
		Entry("DEL several", []interface{}{"del", "a", "b"}, proto.IntReply(2), true),
		Entry("DEL none", []interface{}{"del", "a"}, proto.IntReply(0), false),
		Entry("SADD", []interface{}{"sadd", "s", "a"}, proto.IntReply(1), true),
		Entry("ZADD existing member", []interface{}{"zadd", "z", 1, "a"}, proto.IntReply(0), false),
		Entry("SISMEMBER", []interface{}{"sismember", "s", "a"}, proto.IntReply(1), true),
		Entry("upper case name", []interface{}{"SET", "k", "v"}, proto.StatusReply("OK"), true),
	)

	It("rejects reply shapes a BoolCmd never gets", func() {
		cmd := NewBoolCmd(ctx, "del", "a")
		setCmdReply(cmd, proto.StatusReply("OK"))

		var terr *ReplyTypeError
		Expect(errors.As(cmd.Err(), &terr)).To(BeTrue())
		Expect(terr.Cmd).To(Equal("del"))
		Expect(terr.Kind).To(Equal(proto.KindStatus))
	})

	It("turns error replies into CommandError for every command", func() {
		for _, cmd := range []Cmder{
			NewCmd(ctx, "get", "k"),
			NewStatusCmd(ctx, "ping"),
			NewBoolCmd(ctx, "set", "k", "v"),
			NewIntCmd(ctx, "incr", "k"),
			NewStringCmd(ctx, "get", "k"),
			NewFloatCmd(ctx, "zscore", "z", "m"),
			NewStringSliceCmd(ctx, "keys", "*"),
			NewKeyValueSliceCmd(ctx, "hgetall", "h"),
		} {
			setCmdReply(cmd, proto.ErrorReply("WRONGTYPE Operation against a key holding the wrong kind of value"))
			Expect(IsCommandError(cmd.Err())).To(BeTrue(), cmd.Name())
		}
	})

	It("projects strings", func() {
		cmd := NewStringCmd(ctx, "get", "k")
		setCmdReply(cmd, proto.NullReply())
		Expect(cmd.Err()).NotTo(HaveOccurred())
		Expect(cmd.IsNil()).To(BeTrue())

		cmd = NewStringCmd(ctx, "get", "k")
		setCmdReply(cmd, proto.IntReply(1))
		Expect(cmd.Err()).To(BeAssignableToTypeOf(&ReplyTypeError{}))
	})

	It("projects floats", func() {
		for r, want := range map[*proto.Reply]float64{
			proto.BulkReply("1.5"):     1.5,
			proto.BulkReply("garbage"): 0,
			proto.IntReply(3):          3,
			proto.NullReply():          0,
		} {
			cmd := NewFloatCmd(ctx, "zscore", "z", "m")
			setCmdReply(cmd, r)
			Expect(cmd.Err()).NotTo(HaveOccurred())
			Expect(cmd.Val()).To(Equal(want))
		}
	})

	It("projects collections", func() {
		cmd := NewStringSliceCmd(ctx, "lrange", "l", 0, -1)
		setCmdReply(cmd, proto.NullReply())
		Expect(cmd.Val()).To(Equal([]string{}))

		cmd = NewStringSliceCmd(ctx, "lrange", "l", 0, -1)
		setCmdReply(cmd, proto.ArrayReply(proto.BulkReply("a"), proto.IntReply(1), proto.NullReply()))
		Expect(cmd.Val()).To(Equal([]string{"a", "1", ""}))

		kv := NewKeyValueSliceCmd(ctx, "hgetall", "h")
		setCmdReply(kv, proto.BulkArray("a", "1", "b"))
		Expect(kv.Err()).To(BeAssignableToTypeOf(&ReplyTypeError{}))
	})

	It("accepts QUEUED inside MULTI", func() {
		cmd := NewIntCmd(ctx, "incr", "k")
		setQueuedReply(cmd, proto.StatusReply("QUEUED"))
		Expect(cmd.Err()).NotTo(HaveOccurred())
		Expect(cmd.Queued()).To(BeTrue())

		cmd = NewIntCmd(ctx, "incr", "k")
		setQueuedReply(cmd, proto.IntReply(1))
		Expect(cmd.Queued()).To(BeFalse())
		Expect(cmd.Err()).To(BeAssignableToTypeOf(&ReplyTypeError{}))
	})

	Describe("ExecCmd", func() {
		It("fills in the queued commands", func() {
			incr := NewIntCmd(ctx, "incr", "k")
			get := NewStringCmd(ctx, "get", "l")
			exec := newExecCmd(ctx, []Cmder{incr, get})

			setCmdReply(exec, proto.ArrayReply(proto.IntReply(1), proto.ErrorReply("WRONGTYPE x")))
			Expect(exec.Err()).NotTo(HaveOccurred())
			Expect(exec.Aborted()).To(BeFalse())
			Expect(incr.Val()).To(Equal(int64(1)))
			Expect(IsCommandError(get.Err())).To(BeTrue())
		})

		It("marks an aborted transaction", func() {
			incr := NewIntCmd(ctx, "incr", "k")
			exec := newExecCmd(ctx, []Cmder{incr})

			setCmdReply(exec, proto.NullReply())
			Expect(exec.Err()).NotTo(HaveOccurred())
			Expect(exec.Aborted()).To(BeTrue())
			Expect(incr.Err()).To(Equal(TxFailedErr))
		})

		It("reports a result count mismatch", func() {
			exec := newExecCmd(ctx, []Cmder{NewIntCmd(ctx, "incr", "k")})

			setCmdReply(exec, proto.ArrayReply())
			Expect(exec.Err()).To(BeAssignableToTypeOf(&ProtocolError{}))
		})
	})

	It("names container commands with their sub command", func() {
		Expect(NewBoolCmd(ctx, "CONFIG", "SET", "a", "b").FullName()).To(Equal("config set"))
		Expect(NewStatusCmd(ctx, "client", "setname", "x").FullName()).To(Equal("client setname"))
		Expect(NewIntCmd(ctx, "incr", "k").FullName()).To(Equal("incr"))
	})

	It("formats commands", func() {
		cmd := NewStringCmd(ctx, "get", "key")
		cmd.SetVal("hello")
		Expect(cmd.String()).To(Equal("get key: hello"))

		cmd.SetErr(errors.New("boom"))
		Expect(cmd.String()).To(Equal("get key: boom"))
	})
})

var _ = Describe("TxState", func() {
	It("has names", func() {
		Expect(TxIdle.String()).To(Equal("idle"))
		Expect(TxWatching.String()).To(Equal("watching"))
		Expect(TxQueued.String()).To(Equal("queued"))
	})

	It("formats state errors", func() {
		err := &TxStateError{Op: "exec", State: TxIdle}
		Expect(err.Error()).To(Equal("redis: exec is not allowed in idle state"))
		Expect(errors.Is(err, ErrInvalidTxState)).To(BeTrue())
	})
})
