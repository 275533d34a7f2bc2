package redis_test

import (
	"errors"
	"time"

	. "github.com/bsm/ginkgo/v2"
	. "github.com/bsm/gomega"

	"github.com/go-redis/singleconn"
)

var _ = Describe("Commands", func() {
	var client *redis.Client

	BeforeEach(func() {
		client = newClient(redisOptions())
		Expect(client.FlushDB(ctx).Err()).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(client.Close()).NotTo(HaveOccurred())
	})

	Describe("server", func() {
		It("should Ping", func() {
			ping := client.Ping(ctx)
			Expect(ping.Err()).NotTo(HaveOccurred())
			Expect(ping.Val()).To(Equal("PONG"))
		})

		It("should Echo", func() {
			echo := client.Echo(ctx, "hello")
			Expect(echo.Err()).NotTo(HaveOccurred())
			Expect(echo.Val()).To(Equal("hello"))
		})

		It("should DBSize", func() {
			Expect(client.Set(ctx, "key", "v", 0).Err()).NotTo(HaveOccurred())

			size, err := client.DBSize(ctx).Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(Equal(int64(1)))
		})

		It("should FlushDB", func() {
			Expect(client.Set(ctx, "key", "v", 0).Err()).NotTo(HaveOccurred())

			ok, err := client.FlushDB(ctx).Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(client.DBSize(ctx).Val()).To(Equal(int64(0)))
		})

		It("should ConfigGet and ConfigSet", func() {
			ok, err := client.ConfigSet(ctx, "maxmemory", "1024").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			kvs, err := client.ConfigGet(ctx, "maxmemory*").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(kvs).To(Equal([]redis.KeyValue{
				{Key: "maxmemory", Value: "1024"},
				{Key: "maxmemory-policy", Value: "noeviction"},
			}))

			Expect(client.ConfigSet(ctx, "maxmemory", "0").Err()).NotTo(HaveOccurred())
		})

		It("should report an unknown config parameter as a command error", func() {
			err := client.ConfigSet(ctx, "no-such-param", "1").Err()
			Expect(err).To(HaveOccurred())
			Expect(redis.IsCommandError(err)).To(BeTrue())
		})

		It("should Info", func() {
			info, err := client.Info(ctx, "server").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(info).To(ContainSubstring("redis_version"))
		})
	})

	Describe("keys", func() {
		It("should Del", func() {
			Expect(client.Set(ctx, "key1", "v", 0).Err()).NotTo(HaveOccurred())
			Expect(client.Set(ctx, "key2", "v", 0).Err()).NotTo(HaveOccurred())

			ok, err := client.Del(ctx, "key1", "key2", "key3").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			ok, err = client.Del(ctx, "key1").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("should Exists", func() {
			Expect(client.Set(ctx, "key", "v", 0).Err()).NotTo(HaveOccurred())

			n, err := client.Exists(ctx, "key", "missing").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(1)))
		})

		It("should Expire and TTL", func() {
			Expect(client.TTL(ctx, "key").Val()).To(Equal(int64(-2)))

			Expect(client.Set(ctx, "key", "v", 0).Err()).NotTo(HaveOccurred())
			Expect(client.TTL(ctx, "key").Val()).To(Equal(int64(-1)))

			ok, err := client.Expire(ctx, "key", 10*time.Second).Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(client.TTL(ctx, "key").Val()).To(Equal(int64(10)))

			ok, err = client.Expire(ctx, "missing", 10*time.Second).Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("should Keys", func() {
			for _, key := range []string{"one", "two", "three"} {
				Expect(client.Set(ctx, key, "v", 0).Err()).NotTo(HaveOccurred())
			}

			keys, err := client.Keys(ctx, "t*").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).To(ConsistOf("two", "three"))

			keys, err = client.Keys(ctx, "nothing*").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(keys).NotTo(BeNil())
			Expect(keys).To(BeEmpty())
		})
	})

	Describe("strings", func() {
		It("should Set and Get", func() {
			ok, err := client.Set(ctx, "key", "hello", 0).Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			get := client.Get(ctx, "key")
			Expect(get.Err()).NotTo(HaveOccurred())
			Expect(get.Val()).To(Equal("hello"))
			Expect(get.IsNil()).To(BeFalse())
		})

		It("should Get a missing key without an error", func() {
			get := client.Get(ctx, "missing")
			Expect(get.Err()).NotTo(HaveOccurred())
			Expect(get.Val()).To(Equal(""))
			Expect(get.IsNil()).To(BeTrue())
		})

		It("should tell an empty string from a missing key", func() {
			Expect(client.Set(ctx, "key", "", 0).Err()).NotTo(HaveOccurred())

			get := client.Get(ctx, "key")
			Expect(get.Err()).NotTo(HaveOccurred())
			Expect(get.IsNil()).To(BeFalse())
		})

		It("should Set with expiration", func() {
			Expect(client.Set(ctx, "key", "v", 100*time.Millisecond).Err()).NotTo(HaveOccurred())
			Expect(client.Get(ctx, "key").Val()).To(Equal("v"))

			Eventually(func() bool {
				return client.Get(ctx, "key").IsNil()
			}).Should(BeTrue())
		})

		It("should Set with KeepTTL", func() {
			Expect(client.Set(ctx, "key", "v1", 10*time.Second).Err()).NotTo(HaveOccurred())
			Expect(client.Set(ctx, "key", "v2", redis.KeepTTL).Err()).NotTo(HaveOccurred())

			Expect(client.Get(ctx, "key").Val()).To(Equal("v2"))
			Expect(client.TTL(ctx, "key").Val()).To(Equal(int64(10)))
		})

		It("should Set arbitrary values", func() {
			Expect(client.Set(ctx, "int", 42, 0).Err()).NotTo(HaveOccurred())
			Expect(client.Set(ctx, "float", 1.5, 0).Err()).NotTo(HaveOccurred())
			Expect(client.Set(ctx, "bytes", []byte("raw"), 0).Err()).NotTo(HaveOccurred())

			n, err := client.Get(ctx, "int").Int64()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(42)))

			f, err := client.Get(ctx, "float").Float64()
			Expect(err).NotTo(HaveOccurred())
			Expect(f).To(Equal(1.5))

			b, err := client.Get(ctx, "bytes").Bytes()
			Expect(err).NotTo(HaveOccurred())
			Expect(b).To(Equal([]byte("raw")))
		})

		It("should not send an argument it can't encode", func() {
			set := client.Set(ctx, "key", struct{}{}, 0)
			Expect(set.Err()).To(MatchError(ContainSubstring("can't marshal")))
			Expect(errors.Is(set.Err(), redis.ErrConnectionLost)).To(BeFalse())

			Expect(client.Ping(ctx).Err()).NotTo(HaveOccurred())
			Expect(client.Exists(ctx, "key").Val()).To(Equal(int64(0)))
		})

		It("should Incr, IncrBy and Decr", func() {
			Expect(client.Incr(ctx, "n").Val()).To(Equal(int64(1)))
			Expect(client.IncrBy(ctx, "n", 10).Val()).To(Equal(int64(11)))
			Expect(client.Decr(ctx, "n").Val()).To(Equal(int64(10)))
		})

		It("should report WRONGTYPE as a command error", func() {
			Expect(client.LPush(ctx, "list", "a").Err()).NotTo(HaveOccurred())

			err := client.Get(ctx, "list").Err()
			Expect(err).To(HaveOccurred())
			Expect(redis.IsCommandError(err)).To(BeTrue())
			Expect(err.Error()).To(HavePrefix("WRONGTYPE"))

			var cerr redis.CommandError
			Expect(errors.As(err, &cerr)).To(BeTrue())
			Expect(cerr.Prefix()).To(Equal("WRONGTYPE"))

			// the connection stays usable
			Expect(client.Ping(ctx).Err()).NotTo(HaveOccurred())
		})
	})

	Describe("hashes", func() {
		It("should HSet and HGet", func() {
			ok, err := client.HSet(ctx, "hash", "key", "hello").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			// updating an existing field creates nothing
			ok, err = client.HSet(ctx, "hash", "key", "world").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())

			Expect(client.HGet(ctx, "hash", "key").Val()).To(Equal("world"))
			Expect(client.HGet(ctx, "hash", "missing").IsNil()).To(BeTrue())
		})

		It("should HGetAll in field order", func() {
			Expect(client.HSet(ctx, "hash", "b", "1").Err()).NotTo(HaveOccurred())
			Expect(client.HSet(ctx, "hash", "a", "2").Err()).NotTo(HaveOccurred())

			kvs, err := client.HGetAll(ctx, "hash").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(kvs).To(Equal([]redis.KeyValue{{Key: "b", Value: "1"}, {Key: "a", Value: "2"}}))
			Expect(client.HGetAll(ctx, "hash").Map()).To(Equal(map[string]string{"a": "2", "b": "1"}))
		})

		It("should HDel and HLen", func() {
			Expect(client.HSet(ctx, "hash", "a", "1").Err()).NotTo(HaveOccurred())
			Expect(client.HSet(ctx, "hash", "b", "2").Err()).NotTo(HaveOccurred())
			Expect(client.HLen(ctx, "hash").Val()).To(Equal(int64(2)))

			Expect(client.HDel(ctx, "hash", "a", "missing").Val()).To(BeTrue())
			Expect(client.HDel(ctx, "hash", "a").Val()).To(BeFalse())
			Expect(client.HLen(ctx, "hash").Val()).To(Equal(int64(1)))

			Expect(client.HDel(ctx, "hash", "b").Val()).To(BeTrue())
			kvs := client.HGetAll(ctx, "hash").Val()
			Expect(kvs).NotTo(BeNil())
			Expect(kvs).To(BeEmpty())
			Expect(client.HLen(ctx, "hash").Val()).To(Equal(int64(0)))
		})
	})

	Describe("lists", func() {
		It("should push, pop and range", func() {
			Expect(client.RPush(ctx, "list", "b", "c").Val()).To(Equal(int64(2)))
			Expect(client.LPush(ctx, "list", "a").Val()).To(Equal(int64(3)))
			Expect(client.LLen(ctx, "list").Val()).To(Equal(int64(3)))

			Expect(client.LRange(ctx, "list", 0, -1).Val()).To(Equal([]string{"a", "b", "c"}))
			Expect(client.LRange(ctx, "list", 1, 1).Val()).To(Equal([]string{"b"}))

			Expect(client.LPop(ctx, "list").Val()).To(Equal("a"))
			Expect(client.RPop(ctx, "list").Val()).To(Equal("c"))
		})

		It("should pop from a missing list", func() {
			pop := client.LPop(ctx, "missing")
			Expect(pop.Err()).NotTo(HaveOccurred())
			Expect(pop.IsNil()).To(BeTrue())
		})
	})

	Describe("sets", func() {
		It("should SAdd and SRem", func() {
			Expect(client.SAdd(ctx, "set", "a", "b").Val()).To(BeTrue())
			Expect(client.SAdd(ctx, "set", "a").Val()).To(BeFalse())
			Expect(client.SCard(ctx, "set").Val()).To(Equal(int64(2)))

			Expect(client.SIsMember(ctx, "set", "a").Val()).To(BeTrue())
			Expect(client.SIsMember(ctx, "set", "z").Val()).To(BeFalse())

			Expect(client.SRem(ctx, "set", "a").Val()).To(BeTrue())
			Expect(client.SRem(ctx, "set", "a").Val()).To(BeFalse())
			Expect(client.SMembers(ctx, "set").Val()).To(Equal([]string{"b"}))
		})
	})

	Describe("sorted sets", func() {
		It("should ZAdd and ZRange", func() {
			added, err := client.ZAdd(ctx, "zset",
				redis.Z{Score: 2, Member: "two"},
				redis.Z{Score: 1, Member: "one"},
			).Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(BeTrue())

			Expect(client.ZAdd(ctx, "zset", redis.Z{Score: 3, Member: "two"}).Val()).To(BeFalse())
			Expect(client.ZCard(ctx, "zset").Val()).To(Equal(int64(2)))
			Expect(client.ZRange(ctx, "zset", 0, -1).Val()).To(Equal([]string{"one", "two"}))
		})

		It("should ZScore", func() {
			Expect(client.ZAdd(ctx, "zset", redis.Z{Score: 1.5, Member: "one"}).Err()).NotTo(HaveOccurred())

			score, err := client.ZScore(ctx, "zset", "one").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(score).To(Equal(1.5))

			score, err = client.ZScore(ctx, "zset", "missing").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(score).To(Equal(float64(0)))
		})

		It("should ZRem", func() {
			Expect(client.ZAdd(ctx, "zset", redis.Z{Score: 1, Member: "one"}).Err()).NotTo(HaveOccurred())
			Expect(client.ZRem(ctx, "zset", "one").Val()).To(BeTrue())
			Expect(client.ZRem(ctx, "zset", "one").Val()).To(BeFalse())
		})
	})

	Describe("Do", func() {
		It("should keep the raw reply", func() {
			Expect(client.Set(ctx, "key", "hello", 0).Err()).NotTo(HaveOccurred())

			val, err := client.Do(ctx, "get", "key").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal("hello"))

			val, err = client.Do(ctx, "get", "missing").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(BeNil())

			Expect(client.RPush(ctx, "list", "a", "b").Err()).NotTo(HaveOccurred())
			val, err = client.Do(ctx, "lrange", "list", 0, -1).Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(val).To(Equal([]interface{}{"a", "b"}))
		})

		It("should report an unknown command", func() {
			err := client.Do(ctx, "nosuchcommand").Err()
			Expect(redis.IsCommandError(err)).To(BeTrue())
		})

		It("should refuse subscription commands", func() {
			for _, name := range []string{"subscribe", "PSUBSCRIBE", "unsubscribe", "punsubscribe"} {
				err := client.Do(ctx, name, "a", "b").Err()
				Expect(err).To(Equal(redis.ErrSubscribeCmd))
			}

			Expect(client.Ping(ctx).Val()).To(Equal("PONG"))
			Expect(client.Do(ctx, "get", "key").Err()).NotTo(HaveOccurred())
		})
	})

	Describe("Publish", func() {
		It("should return the number of receivers", func() {
			n, err := client.Publish(ctx, "nobody", "hello").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(int64(0)))
		})
	})
})
