package benchmark

import (
	"fmt"
	"testing"

	"github.com/yndnr/kvmesh-go/internal/server/redisserver"
)

func commandFrame(args ...string) []byte {
	elems := make([]redisserver.Value, len(args))
	for i, a := range args {
		elems[i] = redisserver.BulkString(a)
	}
	return redisserver.Encode(redisserver.Array(elems...))
}

// BenchmarkDecodeCommand benchmarks parsing a command frame.
func BenchmarkDecodeCommand(b *testing.B) {
	for _, size := range []int{16, 1024, 64 * 1024} {
		b.Run(fmt.Sprintf("value_%d", size), func(b *testing.B) {
			frame := commandFrame("SET", "bench:key", string(make([]byte, size)))

			b.SetBytes(int64(len(frame)))
			b.ReportAllocs()
			b.ResetTimer()

			for i := 0; i < b.N; i++ {
				if _, _, err := redisserver.Decode(frame); err != nil {
					b.Fatalf("Decode failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkEncodeReply benchmarks encoding common replies.
func BenchmarkEncodeReply(b *testing.B) {
	replies := map[string]redisserver.Value{
		"ok":      redisserver.OK,
		"integer": redisserver.Integer(1234567),
		"bulk":    redisserver.BulkString("hello world"),
		"exec":    redisserver.Array(redisserver.OK, redisserver.Integer(2), redisserver.NullBulk()),
	}
	for name, v := range replies {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				redisserver.Encode(v)
			}
		})
	}
}
