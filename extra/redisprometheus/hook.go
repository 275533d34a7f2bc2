package redisprometheus

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-redis/singleconn"
)

// Hook records command and dial latency. Register it with a
// prometheus.Registerer and install it with Client.AddHook, or pass it in
// Options.Hooks to also observe the dial.
type Hook struct {
	commands *prometheus.HistogramVec
	dials    *prometheus.HistogramVec
}

var (
	_ redis.Hook           = (*Hook)(nil)
	_ prometheus.Collector = (*Hook)(nil)
)

// NewHook returns a Hook whose metrics are named
// "{namespace}_{subsystem}_command_duration_seconds" and
// "{namespace}_{subsystem}_dial_duration_seconds".
func NewHook(namespace, subsystem string, constantLabels prometheus.Labels) *Hook {
	return &Hook{
		commands: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "command_duration_seconds",
			Help:        "Time spent processing a command, including waiting for the connection.",
			Buckets:     prometheus.ExponentialBuckets(0.0001, 4, 10),
			ConstLabels: constantLabels,
		}, []string{"command", "status"}),
		dials: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   subsystem,
			Name:        "dial_duration_seconds",
			Help:        "Time it took to dial the server.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constantLabels,
		}, []string{"status"}),
	}
}

// Describe implements the prometheus.Collector interface.
func (h *Hook) Describe(descs chan<- *prometheus.Desc) {
	h.commands.Describe(descs)
	h.dials.Describe(descs)
}

// Collect implements the prometheus.Collector interface.
func (h *Hook) Collect(metrics chan<- prometheus.Metric) {
	h.commands.Collect(metrics)
	h.dials.Collect(metrics)
}

func (h *Hook) DialHook(next redis.DialHook) redis.DialHook {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		start := time.Now()
		conn, err := next(ctx, network, addr)
		h.dials.WithLabelValues(status(err)).Observe(time.Since(start).Seconds())
		return conn, err
	}
}

func (h *Hook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		start := time.Now()
		err := next(ctx, cmd)
		h.commands.WithLabelValues(cmd.FullName(), status(err)).Observe(time.Since(start).Seconds())
		return err
	}
}

// status buckets errors by what the caller can do about them.
func status(err error) string {
	var txErr *redis.TxStateError
	switch {
	case err == nil:
		return "ok"
	case redis.IsCommandError(err):
		return "command_error"
	case errors.Is(err, redis.TxFailedErr):
		return "tx_failed"
	case errors.As(err, &txErr):
		return "tx_state"
	case errors.Is(err, redis.ErrConnectionLost):
		return "conn_lost"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
