/*
Package redis implements a Redis client that talks to the server over a
single connection.

Let's start with connecting to Redis:

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, &redis.Options{
		Addr: "localhost:6379",
	})
	if err != nil {
		panic(err)
	}
	defer rdb.Close()

Every command returns a typed result that carries the value and the error:

	if err := rdb.Set(ctx, "key", "value", 0).Err(); err != nil {
		panic(err)
	}

	val, err := rdb.Get(ctx, "key").Result()
	if err != nil {
		panic(err)
	}
	fmt.Println("key", val)

A missing key is not an error; Get returns an empty string and
StringCmd.IsNil reports true. Error replies from the server are returned as
CommandError and leave the connection usable. A connection that broke, or
was abandoned because the context was done in the middle of a command, is
not reopened: every later command fails with ErrConnectionLost.

Optimistic locking holds the connection for the whole callback, so nothing
else runs in between:

	err = rdb.Watch(ctx, func(tx *redis.Tx) error {
		get := tx.Get(ctx, "counter")
		if err := get.Err(); err != nil {
			return err
		}
		n, _ := strconv.Atoi(get.Val()) // a missing counter reads as ""
		if err := tx.Multi(ctx).Err(); err != nil {
			return err
		}
		tx.Set(ctx, "counter", n+1, 0)
		exec := tx.Exec(ctx)
		if exec.Aborted() {
			// counter changed since WATCH, try again
		}
		return exec.Err()
	}, "counter")
*/
package redis
