package runtime

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// NewLogger returns a slog logger rendered by charmbracelet/log.
func NewLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", level, err)
	}
	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
		Level:           lvl,
		Prefix:          "vacationd",
	})
	return slog.New(handler), nil
}

func DefaultLogger() *slog.Logger {
	logger, err := NewLogger(os.Stderr, "info")
	if err != nil {
		panic(err)
	}
	return logger
}
