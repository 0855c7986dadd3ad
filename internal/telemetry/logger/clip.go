package logger

import (
	"log/slog"
	"strconv"
)

// DefaultMaxValueLen is the default length past which string attributes are
// clipped. Keys and values echoed from clients can be up to 512KB.
const DefaultMaxValueLen = 256

// clipAttr truncates long string values, recursing into groups.
func clipAttr(a slog.Attr, maxLen int) slog.Attr {
	if maxLen < 0 {
		return a
	}
	switch a.Value.Kind() {
	case slog.KindString:
		if s := a.Value.String(); len(s) > maxLen {
			return slog.String(a.Key, Clip(s, maxLen))
		}
	case slog.KindGroup:
		attrs := a.Value.Group()
		out := make([]slog.Attr, len(attrs))
		for i, attr := range attrs {
			out[i] = clipAttr(attr, maxLen)
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	}
	return a
}

// Clip shortens s to at most maxLen bytes and notes how much was dropped.
func Clip(s string, maxLen int) string {
	if maxLen < 0 || len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "...(" + strconv.Itoa(len(s)-maxLen) + " more bytes)"
}
