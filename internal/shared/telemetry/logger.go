package telemetry

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// stdout resolves os.Stdout on every write so redirected output is honored.
type stdout struct{}

func (stdout) Write(p []byte) (int, error) {
	return os.Stdout.Write(p)
}

var logger atomic.Pointer[zerolog.Logger]

func init() {
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "msg"
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	SetLevel("info")
}

// SetLevel changes the minimum level written. Unknown names mean info.
func SetLevel(level string) {
	l := zerolog.New(stdout{}).Level(parseLevel(level)).With().Timestamp().Logger()
	logger.Store(&l)
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	logger.Load().Debug().Fields(fields).Msg(msg)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	logger.Load().Info().Fields(fields).Msg(msg)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	logger.Load().Warn().Fields(fields).Msg(msg)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	logger.Load().Error().Fields(fields).Msg(msg)
}

func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
