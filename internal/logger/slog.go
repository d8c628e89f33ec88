package logger

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// slogBridge routes log/slog records into the service's zerolog logger so
// dependencies that speak slog share one output format and level switch.
// main installs it as the slog default.
type slogBridge struct {
	zl     *zerolog.Logger
	prefix string
	attrs  []slog.Attr
}

func NewSlog(zl *zerolog.Logger) *slog.Logger {
	return slog.New(&slogBridge{zl: zl})
}

func (b *slogBridge) Enabled(_ context.Context, l slog.Level) bool {
	return zerologLevel(l) >= zerolog.GlobalLevel()
}

func (b *slogBridge) Handle(ctx context.Context, rec slog.Record) error {
	ev := FromContext(ctx, b.zl).WithLevel(zerologLevel(rec.Level))
	for _, a := range b.attrs {
		ev = field(ev, a.Key, a.Value)
	}
	rec.Attrs(func(a slog.Attr) bool {
		ev = field(ev, b.prefixed(a.Key), a.Value)
		return true
	})
	ev.Msg(rec.Message)
	return nil
}

func (b *slogBridge) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *b
	cp.attrs = make([]slog.Attr, 0, len(b.attrs)+len(attrs))
	cp.attrs = append(cp.attrs, b.attrs...)
	for _, a := range attrs {
		cp.attrs = append(cp.attrs, slog.Attr{Key: b.prefixed(a.Key), Value: a.Value})
	}
	return &cp
}

func (b *slogBridge) WithGroup(name string) slog.Handler {
	if name == "" {
		return b
	}
	cp := *b
	cp.prefix = b.prefixed(name)
	return &cp
}

func (b *slogBridge) prefixed(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + "." + key
}

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l >= slog.LevelError:
		return zerolog.ErrorLevel
	case l >= slog.LevelWarn:
		return zerolog.WarnLevel
	case l >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

func field(ev *zerolog.Event, key string, v slog.Value) *zerolog.Event {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return ev.Str(key, v.String())
	case slog.KindInt64:
		return ev.Int64(key, v.Int64())
	case slog.KindUint64:
		return ev.Uint64(key, v.Uint64())
	case slog.KindFloat64:
		return ev.Float64(key, v.Float64())
	case slog.KindBool:
		return ev.Bool(key, v.Bool())
	case slog.KindDuration:
		return ev.Dur(key, v.Duration())
	case slog.KindTime:
		return ev.Time(key, v.Time())
	default:
		return ev.Interface(key, v.Any())
	}
}
