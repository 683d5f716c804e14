package zap

import (
	"go.uber.org/zap"

	"github.com/goliatone/go-swr-cache/swr"
)

var _ swr.Logger = ZapLogger{}

// ZapLogger adapts a zap.Logger to the engine's Logger interface.
type ZapLogger struct{ L *zap.Logger }

func (z ZapLogger) Debug(msg string, f swr.Fields) { z.L.Debug(msg, zf(f)...) }
func (z ZapLogger) Info(msg string, f swr.Fields)  { z.L.Info(msg, zf(f)...) }
func (z ZapLogger) Warn(msg string, f swr.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z ZapLogger) Error(msg string, f swr.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f swr.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		out = append(out, zap.Any(k, v))
	}
	return out
}
