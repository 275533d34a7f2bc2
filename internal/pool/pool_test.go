package pool_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"time"

	. "github.com/bsm/ginkgo/v2"
	. "github.com/bsm/gomega"

	"github.com/go-redis/singleconn/internal/pool"
	"github.com/go-redis/singleconn/internal/proto"
)

var _ = Describe("SingleConnPool", func() {
	var ctx context.Context
	var cn *pool.Conn
	var connPool *pool.SingleConnPool

	BeforeEach(func() {
		ctx = context.Background()
		cn = pool.NewConn(pipeServer(func(args []string) *proto.Reply {
			return proto.StatusReply("PONG")
		}))
		connPool = pool.NewSingleConnPool(cn)
	})

	AfterEach(func() {
		_ = connPool.Close()
	})

	It("hands out the same connection", func() {
		got, err := connPool.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeIdenticalTo(cn))
		connPool.Put(got)

		got, err = connPool.Get(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeIdenticalTo(cn))
		connPool.Put(got)

		Expect(connPool.Stats()).To(Equal(&pool.Stats{Acquires: 2}))
	})

	It("makes a second caller wait", func() {
		got, err := connPool.Get(ctx)
		Expect(err).NotTo(HaveOccurred())

		waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()
		_, err = connPool.Get(waitCtx)
		Expect(err).To(Equal(context.DeadlineExceeded))

		connPool.Put(got)

		stats := connPool.Stats()
		Expect(stats.Waits).To(Equal(uint32(1)))
		Expect(stats.Timeouts).To(Equal(uint32(1)))
	})

	It("serializes concurrent holders", func() {
		var inside, maxInside int32
		perform(20, func(int) {
			got, err := connPool.Get(ctx)
			Expect(err).NotTo(HaveOccurred())

			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)

			connPool.Put(got)
		})
		Expect(maxInside).To(Equal(int32(1)))
	})

	It("refuses a removed connection", func() {
		got, err := connPool.Get(ctx)
		Expect(err).NotTo(HaveOccurred())

		reason := errors.New("boom")
		connPool.Remove(got, reason)

		_, err = connPool.Get(ctx)
		Expect(errors.Is(err, pool.ErrConnLost)).To(BeTrue())
		Expect(errors.Is(err, reason)).To(BeTrue())
		Expect(connPool.Stats().Lost).To(Equal(uint32(1)))
	})

	It("wakes waiters of a removed connection with the failure", func() {
		got, err := connPool.Get(ctx)
		Expect(err).NotTo(HaveOccurred())

		errc := make(chan error, 1)
		go func() {
			_, err := connPool.Get(ctx)
			errc <- err
		}()

		Eventually(func() uint32 { return connPool.Stats().Waits }).Should(Equal(uint32(1)))
		connPool.Remove(got, pool.ErrConnLost)

		Eventually(errc).Should(Receive(MatchError(pool.ErrConnLost)))
	})

	It("closes once", func() {
		Expect(connPool.Close()).To(Succeed())
		Expect(connPool.Close()).To(Equal(pool.ErrClosed))

		_, err := connPool.Get(ctx)
		Expect(err).To(Equal(pool.ErrClosed))
	})
})

var _ = Describe("Conn", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	It("writes a request and reads its reply", func() {
		var got []string
		cn := pool.NewConn(pipeServer(func(args []string) *proto.Reply {
			got = args
			return proto.BulkReply("bar")
		}))
		defer cn.Close()

		Expect(cn.WriteArgs(ctx, 0, []interface{}{"get", "foo"})).To(Succeed())
		reply, err := cn.ReadReply(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply).To(Equal(proto.BulkReply("bar")))
		Expect(got).To(Equal([]string{"get", "foo"}))
	})

	It("sends nothing when an argument can't be encoded", func() {
		var calls int32
		cn := pool.NewConn(pipeServer(func(args []string) *proto.Reply {
			atomic.AddInt32(&calls, 1)
			return proto.StatusReply("OK")
		}))
		defer cn.Close()

		err := cn.WriteArgs(ctx, 0, []interface{}{"set", "foo", struct{}{}})
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, pool.ErrConnLost)).To(BeFalse())

		Expect(cn.WriteArgs(ctx, 0, []interface{}{"ping"})).To(Succeed())
		reply, err := cn.ReadReply(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Str).To(Equal("OK"))
		Expect(atomic.LoadInt32(&calls)).To(Equal(int32(1)))
	})

	It("reports a silent server as lost once the deadline passes", func() {
		cn := pool.NewConn(pipeServer(func(args []string) *proto.Reply {
			return nil
		}))
		defer cn.Close()

		ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		Expect(cn.WriteArgs(ctx, 0, []interface{}{"blpop", "list", 0})).To(Succeed())
		_, err := cn.ReadReply(ctx, 0)
		Expect(errors.Is(err, pool.ErrConnLost)).To(BeTrue())
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})

	It("honours the read timeout", func() {
		cn := pool.NewConn(pipeServer(func(args []string) *proto.Reply {
			return nil
		}))
		defer cn.Close()

		Expect(cn.WriteArgs(ctx, 0, []interface{}{"ping"})).To(Succeed())
		_, err := cn.ReadReply(ctx, 20*time.Millisecond)
		Expect(errors.Is(err, pool.ErrConnLost)).To(BeTrue())

		var netErr net.Error
		Expect(errors.As(err, &netErr)).To(BeTrue())
		Expect(netErr.Timeout()).To(BeTrue())
	})

	It("interrupts a read when the context is cancelled", func() {
		cn := pool.NewConn(pipeServer(func(args []string) *proto.Reply {
			return nil
		}))
		defer cn.Close()

		ctx, cancel := context.WithCancel(ctx)
		stop := cn.WatchContext(ctx)
		defer stop()

		Expect(cn.WriteArgs(ctx, 0, []interface{}{"ping"})).To(Succeed())
		time.AfterFunc(20*time.Millisecond, cancel)

		_, err := cn.ReadReply(ctx, 0)
		Expect(errors.Is(err, pool.ErrConnLost)).To(BeTrue())
		Expect(errors.Is(err, context.Canceled)).To(BeTrue())
	})

	It("passes protocol errors through", func() {
		client, server := net.Pipe()
		defer client.Close()
		go func() {
			_, _ = server.Write([]byte("?garbage\r\n"))
		}()

		cn := pool.NewConn(client)
		_, err := cn.ReadReply(ctx, 0)
		var perr *proto.ProtocolError
		Expect(errors.As(err, &perr)).To(BeTrue())
		Expect(errors.Is(err, pool.ErrConnLost)).To(BeFalse())
	})
})
