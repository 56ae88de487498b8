package logging

import (
	"context"
	"log/slog"
)

// ToSlog returns a *slog.Logger that writes through l. Libraries that accept
// a *slog.Logger log to the configured backend this way.
func ToSlog(l Logger) *slog.Logger {
	switch v := l.(type) {
	case nil:
		return slog.New(&loggerHandler{logger: NoOpLogger{}})
	case *SlogAdapter:
		return v.Logger
	default:
		return slog.New(&loggerHandler{logger: l})
	}
}

type loggerHandler struct {
	logger Logger
	attrs  []any
	group  string
}

func (h *loggerHandler) Enabled(context.Context, slog.Level) bool {
	_, noop := h.logger.(NoOpLogger)
	return !noop
}

func (h *loggerHandler) Handle(_ context.Context, r slog.Record) error {
	args := make([]any, 0, len(h.attrs)+2*r.NumAttrs())
	args = append(args, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		args = append(args, h.key(a.Key), a.Value.Resolve().Any())
		return true
	})

	switch {
	case r.Level >= slog.LevelError:
		h.logger.Error(r.Message, args...)
	case r.Level >= slog.LevelWarn:
		h.logger.Warn(r.Message, args...)
	case r.Level >= slog.LevelInfo:
		h.logger.Info(r.Message, args...)
	default:
		h.logger.Debug(r.Message, args...)
	}

	return nil
}

func (h *loggerHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &loggerHandler{logger: h.logger, group: h.group, attrs: append([]any(nil), h.attrs...)}
	for _, a := range attrs {
		next.attrs = append(next.attrs, h.key(a.Key), a.Value.Resolve().Any())
	}
	return next
}

func (h *loggerHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &loggerHandler{logger: h.logger, attrs: h.attrs, group: h.key(name)}
}

func (h *loggerHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}
