package redisserver

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Protocol limits to prevent DoS attacks.
const (
	// MaxArrayLen limits the number of elements in a RESP array.
	MaxArrayLen = 1024

	// MaxBulkLen limits the size of a single bulk string (512KB).
	MaxBulkLen = 512 * 1024

	// MaxLineLen limits a header or simple line, excluding CRLF (4KB).
	MaxLineLen = 4 * 1024

	// MaxDepth limits array nesting.
	MaxDepth = 8
)

var (
	// ErrIncomplete means the buffer holds only a prefix of a frame.
	// Nothing was consumed; retry once more bytes arrive.
	ErrIncomplete = errors.New("resp: incomplete frame")

	ErrProtocol      = errors.New("resp: protocol error")
	ErrLimitExceeded = errors.New("resp: limit exceeded")
)

// ProtocolError describes a malformed frame. It matches ErrProtocol, and
// ErrLimitExceeded too when a size limit was hit.
type ProtocolError struct {
	// Offset is the byte offset in the decoded buffer where the problem was found.
	Offset int
	Msg    string
	limit  bool
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("resp: %s (offset %d)", e.Msg, e.Offset)
}

func (e *ProtocolError) Unwrap() []error {
	if e.limit {
		return []error{ErrProtocol, ErrLimitExceeded}
	}
	return []error{ErrProtocol}
}

func protocolErr(off int, format string, args ...any) error {
	return &ProtocolError{Offset: off, Msg: fmt.Sprintf(format, args...)}
}

func limitErr(off int, format string, args ...any) error {
	return &ProtocolError{Offset: off, Msg: fmt.Sprintf(format, args...), limit: true}
}

// Type is the RESP2 type tag of a Value.
type Type uint8

const (
	TypeNone Type = iota
	TypeSimpleString
	TypeError
	TypeInteger
	TypeBulkString
	TypeArray
)

var typeNames = [...]string{"none", "simple-string", "error", "integer", "bulk-string", "array"}

func (t Type) String() string {
	if int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "type(" + strconv.Itoa(int(t)) + ")"
}

// Value is a RESP2 protocol value.
//
// Values produced by Decode alias the decoded buffer. Copy Bytes before the
// buffer is reused.
type Value struct {
	typ   Type
	str   []byte
	num   int64
	null  bool
	elems []Value
}

var (
	// OK is the +OK reply.
	OK = SimpleString("OK")
	// Queued is the reply to a command queued inside MULTI.
	Queued = SimpleString("QUEUED")
)

// SimpleString returns a simple string value.
func SimpleString(s string) Value {
	return Value{typ: TypeSimpleString, str: []byte(s)}
}

// Error returns an error value. line is the full error line, for example
// "ERR syntax error".
func Error(line string) Value {
	return Value{typ: TypeError, str: []byte(line)}
}

// Errorf formats an error value.
func Errorf(format string, args ...any) Value {
	return Error(fmt.Sprintf(format, args...))
}

// Integer returns an integer value.
func Integer(n int64) Value {
	return Value{typ: TypeInteger, num: n}
}

// Bulk returns a bulk string value. A nil slice is the null bulk string.
func Bulk(b []byte) Value {
	if b == nil {
		return NullBulk()
	}
	return Value{typ: TypeBulkString, str: b}
}

// BulkString returns a bulk string value holding s.
func BulkString(s string) Value {
	return Value{typ: TypeBulkString, str: []byte(s)}
}

// NullBulk returns the null bulk string ($-1).
func NullBulk() Value {
	return Value{typ: TypeBulkString, null: true}
}

// Array returns an array value.
func Array(elems ...Value) Value {
	return Value{typ: TypeArray, elems: elems}
}

// Type returns the type tag.
func (v Value) Type() Type { return v.typ }

// IsNull reports whether v is the null bulk string.
func (v Value) IsNull() bool { return v.null }

// Bytes returns the payload of a simple string, error or bulk string.
func (v Value) Bytes() []byte { return v.str }

// Str returns Bytes as a string.
func (v Value) Str() string { return string(v.str) }

// Int returns the integer payload.
func (v Value) Int() int64 { return v.num }

// Elems returns the elements of an array.
func (v Value) Elems() []Value { return v.elems }

// IsError reports whether v is an error value.
func (v Value) IsError() bool { return v.typ == TypeError }

// Kind returns the first word of an error line ("ERR", "EXECABORT", ...).
func (v Value) Kind() string {
	if v.typ != TypeError {
		return ""
	}
	s := string(v.str)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}

// Message returns the error line without its kind.
func (v Value) Message() string {
	if v.typ != TypeError {
		return ""
	}
	s := string(v.str)
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// Equal reports whether two values are structurally equal.
func (v Value) Equal(o Value) bool {
	if v.typ != o.typ || v.null != o.null {
		return false
	}
	switch v.typ {
	case TypeInteger:
		return v.num == o.num
	case TypeArray:
		if len(v.elems) != len(o.elems) {
			return false
		}
		for i := range v.elems {
			if !v.elems[i].Equal(o.elems[i]) {
				return false
			}
		}
		return true
	default:
		return bytes.Equal(v.str, o.str)
	}
}

// String returns a readable rendering for logs and test failures.
func (v Value) String() string {
	switch v.typ {
	case TypeSimpleString:
		return "+" + string(v.str)
	case TypeError:
		return "-" + string(v.str)
	case TypeInteger:
		return ":" + strconv.FormatInt(v.num, 10)
	case TypeBulkString:
		if v.null {
			return "(nil)"
		}
		return strconv.Quote(string(v.str))
	case TypeArray:
		parts := make([]string, len(v.elems))
		for i, e := range v.elems {
			parts[i] = e.String()
		}
		return "[" + strings.Join(parts, " ") + "]"
	default:
		return "(none)"
	}
}

// ============================================================
// Encoding
// ============================================================

// AppendTo appends the wire form of v to dst.
// CR and LF inside simple strings and errors are replaced by spaces so the
// output always frames correctly.
func (v Value) AppendTo(dst []byte) []byte {
	switch v.typ {
	case TypeSimpleString:
		dst = append(dst, '+')
		dst = appendLine(dst, v.str)
	case TypeError:
		dst = append(dst, '-')
		dst = appendLine(dst, v.str)
	case TypeInteger:
		dst = append(dst, ':')
		dst = strconv.AppendInt(dst, v.num, 10)
		dst = append(dst, '\r', '\n')
	case TypeArray:
		dst = append(dst, '*')
		dst = strconv.AppendInt(dst, int64(len(v.elems)), 10)
		dst = append(dst, '\r', '\n')
		for _, e := range v.elems {
			dst = e.AppendTo(dst)
		}
	default:
		// Bulk strings; the zero Value encodes as null.
		if v.null || v.typ == TypeNone {
			return append(dst, "$-1\r\n"...)
		}
		dst = append(dst, '$')
		dst = strconv.AppendInt(dst, int64(len(v.str)), 10)
		dst = append(dst, '\r', '\n')
		dst = append(dst, v.str...)
		dst = append(dst, '\r', '\n')
	}
	return dst
}

// Encode returns the wire form of v.
func Encode(v Value) []byte {
	return v.AppendTo(nil)
}

func appendLine(dst, s []byte) []byte {
	for _, c := range s {
		if c == '\r' || c == '\n' {
			c = ' '
		}
		dst = append(dst, c)
	}
	return append(dst, '\r', '\n')
}

// ============================================================
// Decoding
// ============================================================

// Decode parses one frame from the start of buf and returns it with the
// number of bytes consumed. It returns ErrIncomplete when buf holds only a
// prefix of a frame, or a *ProtocolError when the bytes can never form a
// valid frame.
func Decode(buf []byte) (Value, int, error) {
	return decode(buf, 0, 0)
}

func decode(buf []byte, off, depth int) (Value, int, error) {
	if off >= len(buf) {
		return Value{}, 0, ErrIncomplete
	}

	line, next, err := readLine(buf, off)
	if err != nil {
		return Value{}, 0, err
	}

	switch buf[off] {
	case '+':
		return Value{typ: TypeSimpleString, str: line}, next, nil
	case '-':
		return Value{typ: TypeError, str: line}, next, nil
	case ':':
		n, ok := parseInt(line)
		if !ok {
			return Value{}, 0, protocolErr(off, "invalid integer %q", line)
		}
		return Integer(n), next, nil
	case '$':
		return decodeBulk(buf, off, line, next)
	case '*':
		return decodeArray(buf, off, line, next, depth)
	default:
		return Value{}, 0, protocolErr(off, "unexpected type byte %q", buf[off])
	}
}

func decodeBulk(buf []byte, off int, line []byte, next int) (Value, int, error) {
	n, ok := parseInt(line)
	if !ok {
		return Value{}, 0, protocolErr(off, "invalid bulk length")
	}
	if n == -1 {
		return NullBulk(), next, nil
	}
	if n < 0 {
		return Value{}, 0, protocolErr(off, "invalid bulk length")
	}
	if n > MaxBulkLen {
		return Value{}, 0, limitErr(off, "bulk length %d exceeds limit %d", n, MaxBulkLen)
	}

	end := next + int(n)
	if len(buf) < end+2 {
		return Value{}, 0, ErrIncomplete
	}
	if buf[end] != '\r' || buf[end+1] != '\n' {
		return Value{}, 0, protocolErr(end, "invalid bulk terminator")
	}
	return Value{typ: TypeBulkString, str: buf[next:end:end]}, end + 2, nil
}

func decodeArray(buf []byte, off int, line []byte, next, depth int) (Value, int, error) {
	n, ok := parseInt(line)
	if !ok || n < 0 {
		return Value{}, 0, protocolErr(off, "invalid multibulk length")
	}
	if n > MaxArrayLen {
		return Value{}, 0, limitErr(off, "array length %d exceeds limit %d", n, MaxArrayLen)
	}
	if depth >= MaxDepth {
		return Value{}, 0, limitErr(off, "array nesting exceeds limit %d", MaxDepth)
	}

	elems := make([]Value, 0, n)
	pos := next
	for i := int64(0); i < n; i++ {
		v, end, err := decode(buf, pos, depth+1)
		if err != nil {
			return Value{}, 0, err
		}
		elems = append(elems, v)
		pos = end
	}
	return Value{typ: TypeArray, elems: elems}, pos, nil
}

// readLine returns the line starting after the type byte at off and the
// offset just past its CRLF.
func readLine(buf []byte, off int) ([]byte, int, error) {
	rest := buf[off+1:]
	i := bytes.IndexByte(rest, '\n')
	if i < 0 {
		if len(rest) > MaxLineLen+1 {
			return nil, 0, limitErr(off, "line length exceeds limit %d", MaxLineLen)
		}
		return nil, 0, ErrIncomplete
	}
	if i == 0 || rest[i-1] != '\r' {
		return nil, 0, protocolErr(off+1+i, "missing CRLF")
	}
	if i-1 > MaxLineLen {
		return nil, 0, limitErr(off, "line length exceeds limit %d", MaxLineLen)
	}
	return rest[: i-1 : i-1], off + 1 + i + 1, nil
}

// parseInt parses a strict base-10 int64: an optional '-' then digits.
func parseInt(b []byte) (int64, bool) {
	if len(b) == 0 || b[0] == '+' {
		return 0, false
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// CommandArgs validates that v is a command frame, a non-empty array of
// non-null bulk strings, and returns its arguments.
func CommandArgs(v Value) ([][]byte, error) {
	if v.typ != TypeArray {
		return nil, &ProtocolError{Msg: "expected '*', got '" + typeByte(v.typ) + "'"}
	}
	if len(v.elems) == 0 {
		return nil, nil
	}
	args := make([][]byte, len(v.elems))
	for i, e := range v.elems {
		if e.typ != TypeBulkString || e.null {
			return nil, &ProtocolError{Msg: "expected '$', got '" + typeByte(e.typ) + "'"}
		}
		args[i] = e.str
	}
	return args, nil
}

func typeByte(t Type) string {
	switch t {
	case TypeSimpleString:
		return "+"
	case TypeError:
		return "-"
	case TypeInteger:
		return ":"
	case TypeBulkString:
		return "$"
	case TypeArray:
		return "*"
	default:
		return "?"
	}
}

// normalizeCommandName upper-cases an ASCII command token without
// allocating twice for tokens that are already upper case.
func normalizeCommandName(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	if bytes.ContainsAny(b, "abcdefghijklmnopqrstuvwxyz") {
		return strings.ToUpper(string(b))
	}
	return string(b)
}
