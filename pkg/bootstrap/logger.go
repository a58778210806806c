package bootstrap

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// GetSlogHandlerOptions returns standard handler options for GCP
func GetSlogHandlerOptions(level slog.Level) *slog.HandlerOptions {
	return &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Map standard keys to Cloud Logging keys
			if a.Key == slog.MessageKey {
				return slog.Attr{Key: "message", Value: a.Value}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{Key: "severity", Value: a.Value}
			}
			return a
		},
	}
}

// ParseLevel maps a LOG_LEVEL value to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ComponentKey is the attribute that names the emitting component.
const ComponentKey = "component"

// componentHandler prefixes each message with "[component] " when a top-level
// component attribute is present, either bound through With or on the record.
// The attribute itself stays in the payload.
type componentHandler struct {
	next      slog.Handler
	component string
	grouped   bool
}

func newComponentHandler(next slog.Handler) *componentHandler {
	return &componentHandler{next: next}
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := *h
	clone.next = h.next.WithAttrs(attrs)
	if !h.grouped {
		if c, ok := findComponent(attrs); ok {
			clone.component = c
		}
	}
	return &clone
}

// WithGroup nests later attributes, so they can no longer name the component.
func (h *componentHandler) WithGroup(name string) slog.Handler {
	clone := *h
	clone.next = h.next.WithGroup(name)
	clone.grouped = clone.grouped || name != ""
	return &clone
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	component := h.component
	if !h.grouped {
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == ComponentKey {
				component = a.Value.String()
				return false
			}
			return true
		})
	}
	if component != "" {
		r.Message = "[" + component + "] " + r.Message
	}
	return h.next.Handle(ctx, r)
}

func findComponent(attrs []slog.Attr) (string, bool) {
	found, value := false, ""
	for _, a := range attrs {
		if a.Key == ComponentKey {
			found, value = true, a.Value.String()
		}
	}
	return value, found
}

// NewLoggerTo creates a Cloud Logging compatible logger writing to w.
func NewLoggerTo(w io.Writer, serviceName string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, GetSlogHandlerOptions(level))
	logger := slog.New(newComponentHandler(handler))
	if serviceName != "" {
		logger = logger.With("service", serviceName)
	}
	return logger
}

// NewLogger creates a configured logger instance on stdout
func NewLogger(serviceName string, level slog.Level) *slog.Logger {
	return NewLoggerTo(os.Stdout, serviceName, level)
}

// InitLogger configures the process default logger
func InitLogger(level slog.Level) {
	slog.SetDefault(NewLogger("", level))
}
