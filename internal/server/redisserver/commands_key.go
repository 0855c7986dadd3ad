package redisserver

import "time"

func init() {
	register(
		&Command{Name: "DEL", MinArgs: 1, MaxArgs: -1, Flags: flagWrite, FirstKey: 0, LastKey: -1, KeyStep: 1, Handler: delCommand},
		&Command{Name: "EXISTS", MinArgs: 1, MaxArgs: -1, Flags: flagReadOnly | flagFast, FirstKey: 0, LastKey: -1, KeyStep: 1, Handler: existsCommand},
		&Command{Name: "TTL", MinArgs: 1, MaxArgs: 1, Flags: flagReadOnly | flagFast, FirstKey: 0, LastKey: 0, KeyStep: 1, Handler: ttlCommand},
		&Command{Name: "PTTL", MinArgs: 1, MaxArgs: 1, Flags: flagReadOnly | flagFast, FirstKey: 0, LastKey: 0, KeyStep: 1, Handler: pttlCommand},
	)
}

// DEL key [key ...]
func delCommand(ctx *Context, args [][]byte) (Value, error) {
	var n int64
	for _, k := range args {
		if ctx.Keyspace.Delete(string(k)) {
			n++
		}
	}
	return Integer(n), nil
}

// EXISTS key [key ...]
// A key named twice is counted twice.
func existsCommand(ctx *Context, args [][]byte) (Value, error) {
	var n int64
	for _, k := range args {
		if ctx.Keyspace.Exists(string(k)) {
			n++
		}
	}
	return Integer(n), nil
}

// ttlReply maps a remaining lifetime to the TTL/PTTL reply: -2 when the key
// is absent, -1 when it never expires.
func ttlReply(ctx *Context, key []byte, unit time.Duration) Value {
	ttl, ok := ctx.Keyspace.TTL(string(key))
	switch {
	case !ok:
		return Integer(-2)
	case ttl < 0:
		return Integer(-1)
	default:
		// Round to the nearest unit.
		return Integer(int64((ttl + unit/2) / unit))
	}
}

// TTL key
func ttlCommand(ctx *Context, args [][]byte) (Value, error) {
	return ttlReply(ctx, args[0], time.Second), nil
}

// PTTL key
func pttlCommand(ctx *Context, args [][]byte) (Value, error) {
	return ttlReply(ctx, args[0], time.Millisecond), nil
}
