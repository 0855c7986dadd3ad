// Package repl implements the interactive kvmesh-cli prompt. Lines are split
// into arguments with redis-cli quoting rules and handed to an Executor.
package repl
