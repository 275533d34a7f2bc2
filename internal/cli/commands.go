package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/go-redis/singleconn"
)

// withClient runs fn with a connected client and closes it afterwards.
func withClient(fn func(c *cli.Context, client *redis.Client) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		client, err := connect(c)
		if err != nil {
			return err
		}
		defer client.Close()
		return fn(c, client)
	}
}

func requireArgs(c *cli.Context, n int) error {
	if c.Args().Len() < n {
		return fmt.Errorf("usage: %s %s %s", c.App.Name, c.Command.Name, c.Command.ArgsUsage)
	}
	return nil
}

func pingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "check the connection",
		Action: withClient(func(c *cli.Context, client *redis.Client) error {
			start := time.Now()
			pong, err := client.Ping(c.Context).Result()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "%s (%s)\n", pong, time.Since(start).Round(time.Microsecond))
			return nil
		}),
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "print the value of a key",
		ArgsUsage: "KEY",
		Action: withClient(func(c *cli.Context, client *redis.Client) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			cmd := client.Get(c.Context, c.Args().First())
			if err := cmd.Err(); err != nil {
				return err
			}
			if cmd.IsNil() {
				fmt.Fprintln(c.App.Writer, "(nil)")
				return nil
			}
			fmt.Fprintln(c.App.Writer, strconv.Quote(cmd.Val()))
			return nil
		}),
	}
}

func setCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "set a key to a string value",
		ArgsUsage: "KEY VALUE",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "ttl",
				Usage: "expire the key after this long",
			},
		},
		Action: withClient(func(c *cli.Context, client *redis.Client) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			if err := client.Set(c.Context, c.Args().Get(0), c.Args().Get(1), c.Duration("ttl")).Err(); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "OK")
			return nil
		}),
	}
}

func delCommand() *cli.Command {
	return &cli.Command{
		Name:      "del",
		Usage:     "delete keys",
		ArgsUsage: "KEY [KEY...]",
		Action: withClient(func(c *cli.Context, client *redis.Client) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			deleted, err := client.Del(c.Context, c.Args().Slice()...).Result()
			if err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, deleted)
			return nil
		}),
	}
}

func incrCommand() *cli.Command {
	return &cli.Command{
		Name:      "incr",
		Usage:     "increment the integer stored at a key",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "by",
				Value: 1,
			},
		},
		Action: withClient(func(c *cli.Context, client *redis.Client) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			n, err := client.IncrBy(c.Context, c.Args().First(), c.Int64("by")).Result()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "(integer) %d\n", n)
			return nil
		}),
	}
}

// txIncrCommand increments a key with an optimistic WATCH/MULTI/EXEC
// transaction instead of INCRBY, retrying when another client changes the
// key in between.
func txIncrCommand() *cli.Command {
	return &cli.Command{
		Name:      "tx-incr",
		Usage:     "increment a key inside a watched transaction",
		ArgsUsage: "KEY",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:  "by",
				Value: 1,
			},
			&cli.IntFlag{
				Name:  "retries",
				Usage: "attempts before giving up on conflicts",
				Value: 10,
			},
		},
		Action: withClient(func(c *cli.Context, client *redis.Client) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			key := c.Args().First()
			for attempt := 1; attempt <= c.Int("retries"); attempt++ {
				n, err := watchIncr(c, client, key, c.Int64("by"))
				if errors.Is(err, redis.TxFailedErr) {
					appLogger(c).Debug("transaction aborted, retrying", "key", key, "attempt", attempt)
					continue
				}
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "(integer) %d\n", n)
				return nil
			}
			return fmt.Errorf("rcli: %s kept changing after %d attempts", key, c.Int("retries"))
		}),
	}
}

func watchIncr(c *cli.Context, client *redis.Client, key string, by int64) (int64, error) {
	var n int64
	err := client.Watch(c.Context, func(tx *redis.Tx) error {
		get := tx.Get(c.Context, key)
		if err := get.Err(); err != nil {
			return err
		}
		if !get.IsNil() {
			var err error
			if n, err = get.Int64(); err != nil {
				return err
			}
		}
		n += by

		if err := tx.Multi(c.Context).Err(); err != nil {
			return err
		}
		set := tx.Set(c.Context, key, n, redis.KeepTTL)
		exec := tx.Exec(c.Context)
		if err := exec.Err(); err != nil {
			return err
		}
		if exec.Aborted() {
			return redis.TxFailedErr
		}
		return set.Err()
	}, key)
	return n, err
}

func doCommand() *cli.Command {
	return &cli.Command{
		Name:      "do",
		Usage:     "send an arbitrary command and print the reply",
		ArgsUsage: "COMMAND [ARG...]",
		Action: withClient(func(c *cli.Context, client *redis.Client) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			args := make([]interface{}, c.Args().Len())
			for i, arg := range c.Args().Slice() {
				args[i] = arg
			}
			cmd := client.Do(c.Context, args...)
			if err := cmd.Err(); err != nil {
				if redis.IsCommandError(err) {
					fmt.Fprintf(c.App.Writer, "(error) %s\n", err)
					return nil
				}
				return err
			}
			writeReply(c.App.Writer, cmd.Reply())
			return nil
		}),
	}
}

func subscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "subscribe to channels, print the acknowledgements and unsubscribe",
		ArgsUsage: "CHANNEL [CHANNEL...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "pattern",
				Usage: "treat arguments as glob patterns (PSUBSCRIBE)",
			},
			&cli.DurationFlag{
				Name:  "hold",
				Usage: "stay subscribed this long before unsubscribing",
			},
		},
		Action: withClient(func(c *cli.Context, client *redis.Client) error {
			if err := requireArgs(c, 1); err != nil {
				return err
			}
			subscribe, unsubscribe := client.Subscribe, client.Unsubscribe
			if c.Bool("pattern") {
				subscribe, unsubscribe = client.PSubscribe, client.PUnsubscribe
			}

			subs, err := subscribe(c.Context, c.Args().Slice()...).Result()
			if err != nil {
				return err
			}
			printSubscriptions(c, subs)

			if hold := c.Duration("hold"); hold > 0 {
				timer := time.NewTimer(hold)
				select {
				case <-timer.C:
				case <-c.Context.Done():
					timer.Stop()
				}
			}

			subs, err = unsubscribe(c.Context).Result()
			if err != nil {
				return err
			}
			printSubscriptions(c, subs)
			return nil
		}),
	}
}

func printSubscriptions(c *cli.Context, subs []*redis.Subscription) {
	for _, sub := range subs {
		fmt.Fprintf(c.App.Writer, "%s %s %d\n", sub.Kind, sub.Channel, sub.Count)
	}
}

func publishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "post a message to a channel",
		ArgsUsage: "CHANNEL MESSAGE",
		Action: withClient(func(c *cli.Context, client *redis.Client) error {
			if err := requireArgs(c, 2); err != nil {
				return err
			}
			n, err := client.Publish(c.Context, c.Args().Get(0), c.Args().Get(1)).Result()
			if err != nil {
				return err
			}
			fmt.Fprintf(c.App.Writer, "(integer) %d\n", n)
			return nil
		}),
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:      "info",
		Usage:     "print server information",
		ArgsUsage: "[SECTION...]",
		Action: withClient(func(c *cli.Context, client *redis.Client) error {
			info, err := client.Info(c.Context, c.Args().Slice()...).Result()
			if err != nil {
				return err
			}
			fmt.Fprint(c.App.Writer, info)
			return nil
		}),
	}
}
