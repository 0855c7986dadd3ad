package redisserver

import (
	"math"
	"strings"
	"time"
)

func init() {
	register(
		&Command{Name: "SET", MinArgs: 2, MaxArgs: -1, Flags: flagWrite, FirstKey: 0, LastKey: 0, KeyStep: 1, Handler: setCommand},
		&Command{Name: "GET", MinArgs: 1, MaxArgs: 1, Flags: flagReadOnly | flagFast, FirstKey: 0, LastKey: 0, KeyStep: 1, Handler: getCommand},
		&Command{Name: "INCR", MinArgs: 1, MaxArgs: 1, Flags: flagWrite | flagFast, FirstKey: 0, LastKey: 0, KeyStep: 1, Handler: incrCommand},
		&Command{Name: "INCRBY", MinArgs: 2, MaxArgs: 2, Flags: flagWrite | flagFast, FirstKey: 0, LastKey: 0, KeyStep: 1, Handler: incrByCommand},
		&Command{Name: "DECR", MinArgs: 1, MaxArgs: 1, Flags: flagWrite | flagFast, FirstKey: 0, LastKey: 0, KeyStep: 1, Handler: decrCommand},
		&Command{Name: "DECRBY", MinArgs: 2, MaxArgs: 2, Flags: flagWrite | flagFast, FirstKey: 0, LastKey: 0, KeyStep: 1, Handler: decrByCommand},
	)
}

// maxExpireMillis keeps an expiry representable as a time.Duration.
const maxExpireMillis = math.MaxInt64 / int64(time.Millisecond)

// SET key value [EX seconds | PX milliseconds]
func setCommand(ctx *Context, args [][]byte) (Value, error) {
	var (
		ttl    time.Duration
		seenEx bool
	)
	for i := 2; i < len(args); i++ {
		opt := strings.ToUpper(string(args[i]))
		if (opt != "EX" && opt != "PX") || seenEx || i+1 >= len(args) {
			return Value{}, errSyntax
		}
		seenEx = true
		i++

		n, ok := parseInt(args[i])
		if !ok || n <= 0 {
			return Value{}, errInvalidExpire(ctx.Name)
		}
		if opt == "EX" {
			if n > maxExpireMillis/1000 {
				return Value{}, errInvalidExpire(ctx.Name)
			}
			ttl = time.Duration(n) * time.Second
		} else {
			if n > maxExpireMillis {
				return Value{}, errInvalidExpire(ctx.Name)
			}
			ttl = time.Duration(n) * time.Millisecond
		}
	}

	ctx.Keyspace.Set(string(args[0]), args[1], ttl)
	return OK, nil
}

// GET key
func getCommand(ctx *Context, args [][]byte) (Value, error) {
	v, ok := ctx.Keyspace.Get(string(args[0]))
	if !ok {
		return NullBulk(), nil
	}
	return Value{typ: TypeBulkString, str: v}, nil
}

func incrBy(ctx *Context, key []byte, delta int64) (Value, error) {
	n, err := ctx.Keyspace.IncrBy(string(key), delta)
	if err != nil {
		return Value{}, err
	}
	return Integer(n), nil
}

// INCR key
func incrCommand(ctx *Context, args [][]byte) (Value, error) {
	return incrBy(ctx, args[0], 1)
}

// DECR key
func decrCommand(ctx *Context, args [][]byte) (Value, error) {
	return incrBy(ctx, args[0], -1)
}

// INCRBY key increment
func incrByCommand(ctx *Context, args [][]byte) (Value, error) {
	delta, ok := parseInt(args[1])
	if !ok {
		return Value{}, errNotAnInteger
	}
	return incrBy(ctx, args[0], delta)
}

// DECRBY key decrement
func decrByCommand(ctx *Context, args [][]byte) (Value, error) {
	delta, ok := parseInt(args[1])
	if !ok {
		return Value{}, errNotAnInteger
	}
	if delta == math.MinInt64 {
		return Value{}, errOutOfRange
	}
	return incrBy(ctx, args[0], -delta)
}
