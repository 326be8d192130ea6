package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Options configures the process logger.
type Options struct {
	Level string
	// JSON switches the console handler from text to JSON.
	JSON bool
	// Dir, when set, receives info.log and error.log in JSON format.
	Dir string
}

// New creates a structured slog.Logger. Console output is always enabled and
// file output is added when Options.Dir is set.
func New(opts Options) (*slog.Logger, error) {
	handlerLevel, err := parseLevel(opts.Level)
	if err != nil {
		return nil, err
	}

	var console slog.Handler
	if opts.JSON {
		console = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: handlerLevel})
	} else {
		console = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: handlerLevel})
	}

	if opts.Dir == "" {
		return slog.New(NewContextHandler(console)), nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, err
	}

	errorFile, err := openAppend(filepath.Join(opts.Dir, "error.log"))
	if err != nil {
		return nil, err
	}
	infoFile, err := openAppend(filepath.Join(opts.Dir, "info.log"))
	if err != nil {
		return nil, err
	}

	handler := NewMultiLevelHandler(handlerLevel,
		console,
		slog.NewJSONHandler(infoFile, &slog.HandlerOptions{Level: handlerLevel}),
		slog.NewJSONHandler(errorFile, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	return slog.New(NewContextHandler(handler)), nil
}

// NewWriter builds a JSON logger on w, used by tests and scripts.
func NewWriter(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(NewContextHandler(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
}

// MultiLevelHandler fans records out to several handlers. Each child applies its own level.
type MultiLevelHandler struct {
	handlers []slog.Handler
	level    slog.Leveler
}

func NewMultiLevelHandler(level slog.Leveler, handlers ...slog.Handler) *MultiLevelHandler {
	return &MultiLevelHandler{handlers: handlers, level: level}
}

func (h *MultiLevelHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *MultiLevelHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, child := range h.handlers {
		if !child.Enabled(ctx, r.Level) {
			continue
		}
		if err := child.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *MultiLevelHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, child := range h.handlers {
		next[i] = child.WithAttrs(attrs)
	}
	return &MultiLevelHandler{handlers: next, level: h.level}
}

func (h *MultiLevelHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, child := range h.handlers {
		next[i] = child.WithGroup(name)
	}
	return &MultiLevelHandler{handlers: next, level: h.level}
}

type ctxAttrsKey struct{}

// AppendCtx returns a context whose log records carry attrs.
func AppendCtx(ctx context.Context, attrs ...slog.Attr) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	existing, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	merged := make([]slog.Attr, 0, len(existing)+len(attrs))
	merged = append(merged, existing...)
	merged = append(merged, attrs...)
	return context.WithValue(ctx, ctxAttrsKey{}, merged)
}

// ContextHandler adds attributes stored with AppendCtx to every record.
type ContextHandler struct {
	slog.Handler
}

func NewContextHandler(next slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: next}
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx != nil {
		if attrs, ok := ctx.Value(ctxAttrsKey{}).([]slog.Attr); ok {
			r.AddAttrs(attrs...)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}

func parseLevel(level string) (slog.Leveler, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return nil, errors.New("invalid log level")
	}
}
