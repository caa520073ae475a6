// Package logger sets up the global zerolog logger and derives request- and
// game-scoped loggers from it.
package logger

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type contextKey string

const requestIDKey contextKey = "request_id"

const (
	milliTimeFormat = "2006-01-02T15:04:05.000Z07:00"
	callerWidth     = 30
	maxLoggedBody   = 1000
)

// Options configures the global logger.
type Options struct {
	Level string
	File  string
	Dev   bool
	// JSON writes one JSON object per line instead of the console format.
	JSON bool
}

// Init initializes the global logger.
func Init(opts Options) {
	zerolog.TimeFieldFormat = milliTimeFormat
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	zerolog.CallerMarshalFunc = padCaller

	level, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer = os.Stdout
	if !opts.JSON {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: milliTimeFormat,
			NoColor:    !opts.Dev,
		}
	}

	var fileErr error
	if opts.File != "" {
		f, ferr := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if ferr == nil {
			output = io.MultiWriter(output, f)
		}
		fileErr = ferr
	}

	log.Logger = zerolog.New(output).With().Timestamp().Caller().Logger()

	log.Info().
		Str("level", level.String()).
		Bool("dev", opts.Dev).
		Bool("json", opts.JSON).
		Msg("Logger initialized")
	if fileErr != nil {
		log.Warn().Err(fileErr).Str("file", opts.File).Msg("Log file unavailable, logging to stdout only")
	}
}

// padCaller keeps the caller column a fixed width so console lines align.
func padCaller(_ uintptr, file string, line int) string {
	path := fmt.Sprintf("%s:%d", filepath.Base(file), line)
	if len(path) >= callerWidth {
		return path[len(path)-callerWidth:]
	}
	return path + strings.Repeat(" ", callerWidth-len(path))
}

// Get returns the global logger instance.
func Get() zerolog.Logger {
	return log.Logger
}

// ForGame returns a logger that tags every line with the game ID.
func ForGame(gameID string) zerolog.Logger {
	return log.Logger.With().Str("gameId", gameID).Logger()
}

// NewRequestID returns the first 8 hex characters of a random UUID.
func NewRequestID() string {
	return uuid.NewString()[:8]
}

// WithRequestID returns a new context with the given request ID stored.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the request ID from context, or empty string.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// ForRequest returns a logger enriched with the request ID from context.
func ForRequest(ctx context.Context) zerolog.Logger {
	id := RequestIDFromContext(ctx)
	if id == "" {
		return log.Logger
	}
	return log.Logger.With().Str("requestId", id).Logger()
}

// LogRequest logs a request body at debug level.
func LogRequest(l zerolog.Logger, body []byte) {
	logBody(l, "request_body", "Request body", body)
}

// LogResponse logs a response body at debug level.
func LogResponse(l zerolog.Logger, body []byte) {
	logBody(l, "response", "Response body", body)
}

func logBody(l zerolog.Logger, field, msg string, body []byte) {
	if len(body) == 0 {
		return
	}
	ev := l.Debug()
	if len(body) > maxLoggedBody {
		body = body[:maxLoggedBody]
		ev = ev.Bool("truncated", true)
	}
	ev.Str(field, string(body)).Msg(msg)
}
