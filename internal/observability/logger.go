package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger builds the JSON logger used by every process. Records carry the
// active trace/span ids when a span is present in the context.
func NewLogger(env, service string) *slog.Logger {
	return newLogger(os.Stdout, env, service)
}

func newLogger(w io.Writer, env, service string) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewTraceHandler(handler)).With("service", service, "env", env)
}
