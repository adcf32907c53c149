// log.go - Emitter writing events to the structured log.

package events

import (
	"github.com/rs/zerolog"
)

// LogEmitter writes every event as one structured log line.
type LogEmitter struct {
	log zerolog.Logger
}

// NewLogEmitter returns an emitter that logs at info level.
func NewLogEmitter(log zerolog.Logger) *LogEmitter {
	return &LogEmitter{log: log.With().Str("component", "events").Logger()}
}

func (l *LogEmitter) Emit(e Event) {
	l.log.Info().
		Str("kind", string(e.Kind)).
		Str("source", e.Source).
		Str("caller", e.Caller.Hex()).
		Time("at", e.Time).
		Fields(e.Fields).
		Msg("event")
}
