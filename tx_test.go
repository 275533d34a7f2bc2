package redis_test

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	. "github.com/bsm/ginkgo/v2"
	. "github.com/bsm/gomega"

	"github.com/go-redis/singleconn"
)

var _ = Describe("Tx", func() {
	var client *redis.Client

	BeforeEach(func() {
		client = newClient(redisOptions())
		Expect(client.FlushDB(ctx).Err()).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(client.Close()).NotTo(HaveOccurred())
	})

	It("should commit", func() {
		var exec *redis.ExecCmd
		var incr1, incr2 *redis.IntCmd
		err := client.Watch(ctx, func(tx *redis.Tx) error {
			Expect(tx.State()).To(Equal(redis.TxWatching))
			Expect(tx.Watched()).To(Equal([]string{"key"}))

			Expect(tx.Multi(ctx).Err()).NotTo(HaveOccurred())
			Expect(tx.State()).To(Equal(redis.TxQueued))

			incr1 = tx.Incr(ctx, "key")
			incr2 = tx.Incr(ctx, "key")
			Expect(incr1.Queued()).To(BeTrue())
			Expect(incr1.Err()).NotTo(HaveOccurred())
			Expect(incr1.Val()).To(Equal(int64(0)))

			exec = tx.Exec(ctx)
			Expect(tx.State()).To(Equal(redis.TxIdle))
			Expect(tx.Watched()).To(BeEmpty())
			return exec.Err()
		}, "key")
		Expect(err).NotTo(HaveOccurred())

		Expect(exec.Aborted()).To(BeFalse())
		Expect(exec.Val()).To(HaveLen(2))
		Expect(incr1.Queued()).To(BeFalse())
		Expect(incr2.Queued()).To(BeFalse())
		Expect(incr1.Val()).To(Equal(int64(1)))
		Expect(incr2.Val()).To(Equal(int64(2)))
		Expect(client.Get(ctx, "key").Val()).To(Equal("2"))
	})

	It("should make Client calls inside Watch wait for their ctx", func() {
		err := client.Watch(ctx, func(tx *redis.Tx) error {
			wctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			Expect(client.Get(wctx, "key").Err()).To(Equal(context.DeadlineExceeded))

			return tx.Set(ctx, "key", "v", 0).Err()
		}, "key")
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Get(ctx, "key").Val()).To(Equal("v"))
	})

	It("should abort when a watched key changes", func() {
		other := newClient(redisOptions())
		defer other.Close()

		var exec *redis.ExecCmd
		var set *redis.BoolCmd
		err := client.Watch(ctx, func(tx *redis.Tx) error {
			Expect(other.Set(ctx, "key", "changed", 0).Err()).NotTo(HaveOccurred())

			Expect(tx.Multi(ctx).Err()).NotTo(HaveOccurred())
			set = tx.Set(ctx, "key", "mine", 0)

			exec = tx.Exec(ctx)
			return exec.Err()
		}, "key")
		Expect(err).NotTo(HaveOccurred())

		Expect(exec.Aborted()).To(BeTrue())
		Expect(set.Err()).To(Equal(redis.TxFailedErr))
		Expect(set.Queued()).To(BeFalse())
		Expect(client.Get(ctx, "key").Val()).To(Equal("changed"))
	})

	It("should increment concurrently with optimistic locking", func() {
		const clients = 5
		const incrs = 10

		incr := func(c *redis.Client) error {
			for {
				var aborted bool
				err := c.Watch(ctx, func(tx *redis.Tx) error {
					get := tx.Get(ctx, "key")
					if err := get.Err(); err != nil {
						return err
					}
					var n int64
					if !get.IsNil() {
						var err error
						if n, err = get.Int64(); err != nil {
							return err
						}
					}

					tx.Multi(ctx)
					tx.Set(ctx, "key", strconv.FormatInt(n+1, 10), 0)
					exec := tx.Exec(ctx)
					aborted = exec.Aborted()
					return exec.Err()
				}, "key")
				if err != nil || !aborted {
					return err
				}
			}
		}

		var wg sync.WaitGroup
		for i := 0; i < clients; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()

				c, err := redis.NewClient(ctx, redisOptions())
				Expect(err).NotTo(HaveOccurred())
				defer c.Close()

				for j := 0; j < incrs; j++ {
					Expect(incr(c)).NotTo(HaveOccurred())
				}
			}()
		}
		wg.Wait()

		Expect(client.Get(ctx, "key").Val()).To(Equal(strconv.Itoa(clients * incrs)))
	})

	It("should Discard a MULTI block", func() {
		err := client.Watch(ctx, func(tx *redis.Tx) error {
			Expect(tx.Multi(ctx).Err()).NotTo(HaveOccurred())
			tx.Set(ctx, "key", "v", 0)

			Expect(tx.Discard(ctx).Err()).NotTo(HaveOccurred())
			Expect(tx.State()).To(Equal(redis.TxIdle))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(client.Exists(ctx, "key").Val()).To(Equal(int64(0)))
	})

	It("should Discard watched keys with UNWATCH", func() {
		s := startServer()
		c := newClient(&redis.Options{Addr: s.Addr()})
		defer c.Close()

		err := c.Watch(ctx, func(tx *redis.Tx) error {
			Expect(tx.Discard(ctx).Err()).NotTo(HaveOccurred())
			Expect(tx.State()).To(Equal(redis.TxIdle))
			return nil
		}, "key")
		Expect(err).NotTo(HaveOccurred())

		received := s.Received()
		Expect(received[len(received)-1]).To(Equal([]string{"unwatch"}))
	})

	It("should Unwatch", func() {
		err := client.Watch(ctx, func(tx *redis.Tx) error {
			Expect(tx.Watch(ctx, "b", "a", "b").Err()).NotTo(HaveOccurred())
			Expect(tx.Watched()).To(Equal([]string{"a", "b"}))

			Expect(tx.Unwatch(ctx).Err()).NotTo(HaveOccurred())
			Expect(tx.State()).To(Equal(redis.TxIdle))
			Expect(tx.Watched()).To(BeEmpty())
			return nil
		}, "a")
		Expect(err).NotTo(HaveOccurred())
	})

	It("should reject operations in the wrong state without sending them", func() {
		s := startServer()
		c := newClient(&redis.Options{Addr: s.Addr()})
		defer c.Close()

		err := c.Watch(ctx, func(tx *redis.Tx) error {
			before := len(s.Received())

			for _, cmd := range []redis.Cmder{tx.Exec(ctx), tx.Discard(ctx)} {
				Expect(errors.Is(cmd.Err(), redis.ErrInvalidTxState)).To(BeTrue())
				var serr *redis.TxStateError
				Expect(errors.As(cmd.Err(), &serr)).To(BeTrue())
				Expect(serr.State).To(Equal(redis.TxIdle))
			}

			Expect(tx.Multi(ctx).Err()).NotTo(HaveOccurred())
			for _, cmd := range []redis.Cmder{tx.Multi(ctx), tx.Watch(ctx, "key"), tx.Unwatch(ctx)} {
				Expect(errors.Is(cmd.Err(), redis.ErrInvalidTxState)).To(BeTrue())
			}

			// only MULTI reached the server
			Expect(s.Received()[before:]).To(Equal([][]string{{"multi"}}))
			return nil
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should discard an open MULTI block when the callback returns", func() {
		s := startServer()
		c := newClient(&redis.Options{Addr: s.Addr()})
		defer c.Close()

		fnErr := errors.New("bail out")
		err := c.Watch(ctx, func(tx *redis.Tx) error {
			Expect(tx.Multi(ctx).Err()).NotTo(HaveOccurred())
			tx.Set(ctx, "key", "v", 0)
			return fnErr
		})
		Expect(err).To(Equal(fnErr))

		received := s.Received()
		Expect(received[len(received)-1]).To(Equal([]string{"discard"}))
		Expect(c.Exists(ctx, "key").Val()).To(Equal(int64(0)))
	})

	It("should fail with ErrTxClosed after the callback returned", func() {
		var leaked *redis.Tx
		err := client.Watch(ctx, func(tx *redis.Tx) error {
			leaked = tx
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(leaked.Get(ctx, "key").Err()).To(Equal(redis.ErrTxClosed))
		Expect(leaked.Multi(ctx).Err()).To(Equal(redis.ErrTxClosed))
		Expect(leaked.Exec(ctx).Err()).To(Equal(redis.ErrTxClosed))
	})

	It("should report a command the server rejected while queueing", func() {
		var exec *redis.ExecCmd
		var bad *redis.Cmd
		err := client.Watch(ctx, func(tx *redis.Tx) error {
			Expect(tx.Multi(ctx).Err()).NotTo(HaveOccurred())
			tx.Set(ctx, "key", "v", 0)
			bad = tx.Do(ctx, "nosuchcommand")
			exec = tx.Exec(ctx)
			return nil
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(redis.IsCommandError(bad.Err())).To(BeTrue())
		Expect(bad.Queued()).To(BeFalse())
		Expect(redis.IsCommandError(exec.Err())).To(BeTrue())
		Expect(exec.Err().Error()).To(HavePrefix("EXECABORT"))
		Expect(exec.Val()).To(HaveLen(1))
		Expect(exec.Val()[0].Err()).To(Equal(exec.Err()))
		Expect(client.Exists(ctx, "key").Val()).To(Equal(int64(0)))
	})

	It("should set runtime errors on the failing command only", func() {
		Expect(client.LPush(ctx, "list", "a").Err()).NotTo(HaveOccurred())

		var get *redis.StringCmd
		var set *redis.BoolCmd
		err := client.Watch(ctx, func(tx *redis.Tx) error {
			tx.Multi(ctx)
			get = tx.Get(ctx, "list")
			set = tx.Set(ctx, "key", "v", 0)
			return tx.Exec(ctx).Err()
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(get.Err()).To(MatchError(ContainSubstring("WRONGTYPE")))
		Expect(set.Err()).NotTo(HaveOccurred())
		Expect(set.Val()).To(BeTrue())
	})

	It("should hold the connection for the whole callback", func() {
		started := make(chan struct{})
		done := make(chan struct{})

		go func() {
			defer GinkgoRecover()
			<-started
			Expect(client.Set(ctx, "key", "outside", 0).Err()).NotTo(HaveOccurred())
			close(done)
		}()

		err := client.Watch(ctx, func(tx *redis.Tx) error {
			close(started)
			Consistently(done).ShouldNot(BeClosed())

			tx.Multi(ctx)
			tx.Set(ctx, "key", "inside", 0)
			return tx.Exec(ctx).Err()
		}, "key")
		Expect(err).NotTo(HaveOccurred())

		Eventually(done).Should(BeClosed())
		Expect(client.Get(ctx, "key").Val()).To(Equal("outside"))
	})

	It("should return the context error when ctx is done before Watch", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		called := false
		err := client.Watch(cctx, func(tx *redis.Tx) error {
			called = true
			return nil
		}, "key")
		Expect(err).To(Equal(context.Canceled))
		Expect(called).To(BeFalse())
		Expect(client.Ping(ctx).Err()).NotTo(HaveOccurred())
	})

	It("should run hooks for transaction commands", func() {
		hook := &recordHook{}
		client.AddHook(hook)

		err := client.Watch(ctx, func(tx *redis.Tx) error {
			tx.Multi(ctx)
			tx.Set(ctx, "key", "v", 0)
			return tx.Exec(ctx).Err()
		}, "key")
		Expect(err).NotTo(HaveOccurred())

		Expect(hook.names()).To(Equal([]string{"watch", "multi", "set", "exec"}))
	})
})
