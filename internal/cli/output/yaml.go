package output

import (
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/yndnr/kvmesh-go/internal/server/redisserver"
)

// YAMLFormatter formats data as YAML.
type YAMLFormatter struct{}

// Format formats data as a YAML document. Replies are converted with
// ReplyData first.
func (f *YAMLFormatter) Format(w io.Writer, data any) error {
	if v, ok := data.(redisserver.Value); ok {
		data = ReplyData(v)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return err
	}
	return enc.Close()
}
