package redisserver

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/yndnr/kvmesh-go/internal/storage/memory"
)

// ErrorKind classifies command-level errors.
type ErrorKind int

const (
	KindWrongArgs ErrorKind = iota + 1
	KindUnknownCommand
	KindNotAnInteger
	KindOutOfRange
	KindNestedMulti
	KindSyntax
	KindInvalidExpire
	KindNoMulti
	KindExecAbort
	KindProtocol
	KindRateLimited
	KindMaxClients
	KindInternal
)

var kindNames = map[ErrorKind]string{
	KindWrongArgs:      "wrong_args",
	KindUnknownCommand: "unknown_command",
	KindNotAnInteger:   "not_an_integer",
	KindOutOfRange:     "out_of_range",
	KindNestedMulti:    "nested_multi",
	KindSyntax:         "syntax",
	KindInvalidExpire:  "invalid_expire",
	KindNoMulti:        "no_multi",
	KindExecAbort:      "exec_abort",
	KindProtocol:       "protocol",
	KindRateLimited:    "rate_limited",
	KindMaxClients:     "max_clients",
	KindInternal:       "internal",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// CommandError is a recoverable command failure. Line is the full error line
// sent to the client.
type CommandError struct {
	Kind ErrorKind
	Line string
}

func (e *CommandError) Error() string { return e.Line }

// Reply returns the error as a protocol value.
func (e *CommandError) Reply() Value { return Error(e.Line) }

func newCommandError(kind ErrorKind, format string, args ...any) *CommandError {
	return &CommandError{Kind: kind, Line: fmt.Sprintf(format, args...)}
}

func errWrongArgs(name string) *CommandError {
	return newCommandError(KindWrongArgs, "ERR wrong number of arguments for '%s' command", strings.ToLower(name))
}

func errUnknownCommand(name []byte, args [][]byte) *CommandError {
	var b strings.Builder
	for _, a := range args {
		b.WriteString("'")
		b.Write(clip(a, 128))
		b.WriteString("' ")
	}
	return newCommandError(KindUnknownCommand, "ERR unknown command '%s', with args beginning with: %s", clip(name, 128), b.String())
}

var (
	errNotAnInteger = &CommandError{Kind: KindNotAnInteger, Line: "ERR value is not an integer or out of range"}
	errOutOfRange   = &CommandError{Kind: KindOutOfRange, Line: "ERR increment or decrement would overflow"}
	errNestedMulti  = &CommandError{Kind: KindNestedMulti, Line: "ERR MULTI calls can not be nested"}
	errSyntax       = &CommandError{Kind: KindSyntax, Line: "ERR syntax error"}
	errExecAbort    = &CommandError{Kind: KindExecAbort, Line: "EXECABORT Transaction discarded because of previous errors."}
	errRateLimited  = &CommandError{Kind: KindRateLimited, Line: "ERR rate limit exceeded"}
	errMaxClients   = &CommandError{Kind: KindMaxClients, Line: "ERR max number of clients reached"}
	errInternal     = &CommandError{Kind: KindInternal, Line: "ERR internal error"}
)

func errInvalidExpire(name string) *CommandError {
	return newCommandError(KindInvalidExpire, "ERR invalid expire time in '%s' command", strings.ToLower(name))
}

func errNoMulti(name string) *CommandError {
	return newCommandError(KindNoMulti, "ERR %s without MULTI", name)
}

func errProtocol(detail string) *CommandError {
	return newCommandError(KindProtocol, "ERR Protocol error: %s", detail)
}

func clip(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// Command flags.
const (
	flagWrite    = 1 << iota // modifies the keyspace
	flagReadOnly             // only reads the keyspace
	flagNoQueue              // runs immediately even inside MULTI
	flagFast                 // O(1)
)

// Handler executes a command. args excludes the command name.
type Handler func(ctx *Context, args [][]byte) (Value, error)

// Command describes one entry of the command table.
type Command struct {
	Name string
	// MinArgs and MaxArgs bound the argument count, excluding the name.
	// MaxArgs -1 means unbounded.
	MinArgs int
	MaxArgs int
	Flags   int
	// FirstKey, LastKey and KeyStep locate key arguments (0-based, excluding
	// the name). A negative LastKey counts from the end. KeyStep 0 means the
	// command takes no keys.
	FirstKey int
	LastKey  int
	KeyStep  int
	Handler  Handler
}

// IsWrite reports whether the command modifies the keyspace.
func (c *Command) IsWrite() bool { return c.Flags&flagWrite != 0 }

// checkArity validates the argument count.
func (c *Command) checkArity(args [][]byte) error {
	if len(args) < c.MinArgs || (c.MaxArgs >= 0 && len(args) > c.MaxArgs) {
		return errWrongArgs(c.Name)
	}
	return nil
}

// Keys returns the key arguments of an invocation. args must have passed the
// arity check.
func (c *Command) Keys(args [][]byte) []string {
	if c.KeyStep <= 0 || c.FirstKey >= len(args) {
		return nil
	}
	last := c.LastKey
	if last < 0 {
		last = len(args) + last
	}
	if last >= len(args) {
		last = len(args) - 1
	}
	keys := make([]string, 0, (last-c.FirstKey)/c.KeyStep+1)
	for i := c.FirstKey; i <= last; i += c.KeyStep {
		keys = append(keys, string(args[i]))
	}
	return keys
}

// Context carries what a handler may touch.
type Context struct {
	// Keyspace is the store, or a locked view of it during EXEC.
	Keyspace memory.Keyspace
	// Name is the canonical command name.
	Name string

	sess *Session
}

// commandTable is the static name -> command mapping. It is filled by init
// functions in the commands_*.go files and never modified afterwards.
var commandTable = map[string]*Command{}

func register(cmds ...*Command) {
	for _, c := range cmds {
		if _, dup := commandTable[c.Name]; dup {
			panic("redisserver: duplicate command " + c.Name)
		}
		commandTable[c.Name] = c
	}
}

// Lookup returns the command for name, matching case-insensitively.
func Lookup(name []byte) (*Command, bool) {
	c, ok := commandTable[normalizeCommandName(name)]
	return c, ok
}

// Commands returns the sorted names of every registered command.
func Commands() []string {
	names := make([]string, 0, len(commandTable))
	for n := range commandTable {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// resolve finds the command for a frame and checks its arity. On an arity
// error the command is still returned.
func resolve(frame [][]byte) (*Command, error) {
	cmd, ok := Lookup(frame[0])
	if !ok {
		return nil, errUnknownCommand(frame[0], frame[1:])
	}
	if err := cmd.checkArity(frame[1:]); err != nil {
		return cmd, err
	}
	return cmd, nil
}

// Dispatch runs cmd against ks. Errors are *CommandError values; runtime store
// errors are translated to their command kinds.
func Dispatch(ctx *Context, cmd *Command, args [][]byte) (Value, error) {
	ctx.Name = cmd.Name
	v, err := cmd.Handler(ctx, args)
	if err != nil {
		return Value{}, asCommandError(err)
	}
	return v, nil
}

// replyOf renders a dispatch result as a protocol value.
func replyOf(v Value, err error) Value {
	if err != nil {
		return asCommandError(err).Reply()
	}
	return v
}

func asCommandError(err error) *CommandError {
	var ce *CommandError
	switch {
	case errors.As(err, &ce):
		return ce
	case errors.Is(err, memory.ErrNotInteger):
		return errNotAnInteger
	case errors.Is(err, memory.ErrOverflow):
		return errOutOfRange
	default:
		return errInternal
	}
}
