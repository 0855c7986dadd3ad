// Package redisserver serves the keyspace over a RESP2 subset.
//
//   - resp.go: resumable frame codec (Decode, Value.AppendTo)
//   - command.go: command table, arity checks and error kinds
//   - commands_*.go: command handlers
//   - multi.go: per-connection session and MULTI/EXEC/DISCARD
//   - conn.go: read/execute/reply loop with pipelining
//   - server.go: listener, admission limits, shutdown
//
// Supported commands:
//   - PING, ECHO, QUIT
//   - SET (EX/PX), GET, INCR, INCRBY, DECR, DECRBY
//   - DEL, EXISTS, TTL, PTTL
//   - MULTI, EXEC, DISCARD
package redisserver
