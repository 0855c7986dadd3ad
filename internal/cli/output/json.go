package output

import (
	"encoding/json"
	"io"

	"github.com/yndnr/kvmesh-go/internal/server/redisserver"
)

// JSONFormatter formats data as JSON.
type JSONFormatter struct{}

// Format formats data as indented JSON. Replies are converted with
// ReplyData first.
func (f *JSONFormatter) Format(w io.Writer, data any) error {
	if v, ok := data.(redisserver.Value); ok {
		data = ReplyData(v)
	}
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}
