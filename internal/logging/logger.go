package logging

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ServerErrorPrefix marks lines that report a server-side rejection.
const ServerErrorPrefix = "server responded with error: "

// Logger is a named, leveled logger over the global zerolog logger.
type Logger struct {
	z zerolog.Logger
}

// New returns a Logger tagged with component. It reads the global logger at
// call time, so call it after Configure.
func New(component string) Logger {
	return Logger{z: log.Logger.With().Str("component", component).Logger()}
}

// With returns a copy carrying an extra key/value on every line.
func (l Logger) With(key, value string) Logger {
	return Logger{z: l.z.With().Str(key, value).Logger()}
}

// WithFields returns a copy carrying every entry of fields on each line.
func (l Logger) WithFields(fields map[string]any) Logger {
	return Logger{z: l.z.With().Fields(fields).Logger()}
}

func (l Logger) Debugf(format string, args ...any) {
	l.z.Debug().Msgf(format, args...)
}

func (l Logger) Infof(format string, args ...any) {
	l.z.Info().Msgf(format, args...)
}

func (l Logger) Warnf(format string, args ...any) {
	l.z.Warn().Msgf(format, args...)
}

func (l Logger) Errorf(format string, args ...any) {
	l.z.Error().Msgf(format, args...)
}

// ServerErrorf logs at error level with ServerErrorPrefix.
func (l Logger) ServerErrorf(format string, args ...any) {
	l.z.Error().Bool("server", true).Msgf(ServerErrorPrefix+format, args...)
}
