package telemetry

import (
	"context"

	"github.com/rs/zerolog"
)

// LogObserver writes events to a zerolog logger. Errors log at error level,
// everything else at debug.
type LogObserver struct {
	logger zerolog.Logger
}

// NewLogObserver constructs a LogObserver with the provided logger.
func NewLogObserver(logger zerolog.Logger) *LogObserver {
	return &LogObserver{logger: logger}
}

func (l *LogObserver) Observe(ctx context.Context, ev Event) {
	if ev.Err != nil {
		l.logger.Error().Ctx(ctx).Str("op", ev.Op).Int("rows", ev.Rows).Dur("duration", ev.Duration).Err(ev.Err).Msg("operation failed")
		return
	}
	evt := l.logger.Debug().Ctx(ctx).Str("op", ev.Op).Int("rows", ev.Rows).Dur("duration", ev.Duration)
	if ev.NoResult {
		evt.Bool("no_result", true).Msg("operation had insufficient data")
		return
	}
	evt.Msg("operation completed")
}
