// Package querylog writes one structured line per handled query.
package querylog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/lcalzada-xor/eapsul/internal/core/domain"
)

// Logger records exchanges as JSON lines.
type Logger struct {
	log    *slog.Logger
	closer io.Closer
}

// New returns a Logger writing to w.
func New(w io.Writer) *Logger {
	return &Logger{
		log: slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})),
	}
}

// Open appends to the file at path, creating it if needed.
func Open(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open query log: %w", err)
	}
	l := New(f)
	l.closer = f
	return l, nil
}

// RecordExchange implements ports.ExchangeRecorder.
func (l *Logger) RecordExchange(ex domain.Exchange) {
	attrs := []slog.Attr{
		slog.String("session_id", ex.SessionID),
		slog.String("query", ex.Query),
		slog.String("response", ex.Response),
		slog.Time("at", ex.At),
	}
	level := slog.LevelInfo
	if ex.Error != "" {
		level = slog.LevelWarn
		attrs = append(attrs, slog.String("error", ex.Error))
	}
	l.log.LogAttrs(context.Background(), level, "exchange", attrs...)
}

// Close closes the underlying file, if Open created one.
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}
