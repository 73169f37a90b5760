package logging

import (
	"context"
	"errors"
	"log/slog"
)

// MultiHandler duplicates every record across a fixed set of handlers,
// so stdout and the database sink see the same stream. Enabled is an OR
// over the set; Handle skips handlers whose own level gate rejects the
// record.
type MultiHandler struct {
	handlers []slog.Handler
}

func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle delivers to every interested handler even when one fails, and
// joins the failures so none is silently dropped. Records are cloned
// per delivery since handlers may retain them.
func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return m
	}
	return m.transform(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *MultiHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return m
	}
	return m.transform(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *MultiHandler) transform(f func(slog.Handler) slog.Handler) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = f(h)
	}
	return &MultiHandler{handlers: next}
}
