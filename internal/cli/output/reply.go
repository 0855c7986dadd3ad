package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yndnr/kvmesh-go/internal/server/redisserver"
)

// TextFormatter prints replies like redis-cli and everything else as a
// table. Raw drops quoting and type annotations.
type TextFormatter struct {
	Raw bool
}

// Format writes data followed by a newline.
func (f *TextFormatter) Format(w io.Writer, data any) error {
	v, ok := data.(redisserver.Value)
	if !ok {
		return formatTable(w, data)
	}
	var b strings.Builder
	if f.Raw {
		writeRaw(&b, v)
	} else {
		writeText(&b, v, "")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writeText(b *strings.Builder, v redisserver.Value, indent string) {
	switch v.Type() {
	case redisserver.TypeSimpleString:
		b.WriteString(v.Str())
	case redisserver.TypeError:
		b.WriteString("(error) ")
		b.WriteString(v.Str())
	case redisserver.TypeInteger:
		fmt.Fprintf(b, "(integer) %d", v.Int())
	case redisserver.TypeBulkString:
		if v.IsNull() {
			b.WriteString("(nil)")
		} else {
			b.WriteString(strconv.Quote(v.Str()))
		}
	case redisserver.TypeArray:
		elems := v.Elems()
		if len(elems) == 0 {
			b.WriteString("(empty array)")
			break
		}
		width := len(strconv.Itoa(len(elems)))
		for i, e := range elems {
			if i > 0 {
				b.WriteString("\n")
				b.WriteString(indent)
			}
			prefix := fmt.Sprintf("%*d) ", width, i+1)
			b.WriteString(prefix)
			writeText(b, e, indent+strings.Repeat(" ", len(prefix)))
		}
	default:
		b.WriteString("(none)")
	}
	if indent == "" {
		b.WriteString("\n")
	}
}

func writeRaw(b *strings.Builder, v redisserver.Value) {
	switch v.Type() {
	case redisserver.TypeInteger:
		b.WriteString(strconv.FormatInt(v.Int(), 10))
		b.WriteString("\n")
	case redisserver.TypeBulkString:
		if !v.IsNull() {
			b.Write(v.Bytes())
		}
		b.WriteString("\n")
	case redisserver.TypeArray:
		for _, e := range v.Elems() {
			writeRaw(b, e)
		}
	default:
		b.WriteString(v.Str())
		b.WriteString("\n")
	}
}

// ReplyData converts a reply into plain data for JSON and YAML: strings,
// int64, nil, slices, and {"error": line} for error replies.
func ReplyData(v redisserver.Value) any {
	switch v.Type() {
	case redisserver.TypeSimpleString:
		return v.Str()
	case redisserver.TypeError:
		return map[string]string{"error": v.Str()}
	case redisserver.TypeInteger:
		return v.Int()
	case redisserver.TypeBulkString:
		if v.IsNull() {
			return nil
		}
		return v.Str()
	case redisserver.TypeArray:
		out := make([]any, len(v.Elems()))
		for i, e := range v.Elems() {
			out[i] = ReplyData(e)
		}
		return out
	default:
		return nil
	}
}
