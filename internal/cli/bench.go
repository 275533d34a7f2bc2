package cli

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/go-redis/singleconn"
	"github.com/go-redis/singleconn/extra/redisprometheus"
)

func benchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "run INCR against one key from concurrent callers sharing the connection",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "requests",
				Aliases: []string{"r"},
				Value:   10000,
			},
			&cli.IntFlag{
				Name:    "concurrency",
				Aliases: []string{"p"},
				Usage:   "goroutines issuing commands",
				Value:   4,
			},
			&cli.Float64Flag{
				Name:  "rate",
				Usage: "requests per second, 0 for no limit",
			},
			&cli.StringFlag{
				Name:  "key",
				Value: "rcli:bench",
			},
			&cli.BoolFlag{
				Name:  "metrics",
				Usage: "dump the collected metrics in the Prometheus text format",
			},
		},
		Action: withClient(runBench),
	}
}

type benchResult struct {
	requests int64
	failed   int64
	elapsed  time.Duration
}

func runBench(c *cli.Context, client *redis.Client) error {
	reg := prometheus.NewRegistry()
	hook := redisprometheus.NewHook("rcli", "bench", nil)
	client.AddHook(hook)
	reg.MustRegister(hook, redisprometheus.NewCollector("rcli", "bench", client, nil))

	limiter := rate.NewLimiter(rate.Inf, 0)
	if r := c.Float64("rate"); r > 0 {
		limiter = rate.NewLimiter(rate.Limit(r), 1)
	}

	res := bench(c, client, limiter)

	w := c.App.Writer
	fmt.Fprintf(w, "%d requests in %s (%.0f req/s), %d failed\n",
		res.requests, res.elapsed.Round(time.Millisecond),
		float64(res.requests)/res.elapsed.Seconds(), res.failed)

	stats := client.PoolStats()
	fmt.Fprintf(w, "connection: %d acquires, %d waits, %d timeouts, %d lost\n",
		stats.Acquires, stats.Waits, stats.Timeouts, stats.Lost)

	if !c.Bool("metrics") {
		return nil
	}
	mfs, err := reg.Gather()
	if err != nil {
		return err
	}
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func bench(c *cli.Context, client *redis.Client, limiter *rate.Limiter) benchResult {
	var (
		next, done, failed atomic.Int64
		once               sync.Once
		wg                 sync.WaitGroup
	)
	total := int64(c.Int("requests"))
	key := c.String("key")
	logger := appLogger(c)

	start := time.Now()
	for i := 0; i < max(c.Int("concurrency"), 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for next.Add(1) <= total {
				if err := limiter.Wait(c.Context); err != nil {
					return
				}
				err := client.Incr(c.Context, key).Err()
				done.Add(1)
				if err != nil {
					failed.Add(1)
					once.Do(func() { logger.Warn("bench command failed", "error", err) })
				}
			}
		}()
	}
	wg.Wait()

	return benchResult{
		requests: done.Load(),
		failed:   failed.Load(),
		elapsed:  time.Since(start),
	}
}
