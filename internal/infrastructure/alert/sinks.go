package alert

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"tickd/internal/application/port"
)

// LogSink writes alerts to the process logger.
type LogSink struct{}

func NewLogSink() *LogSink { return &LogSink{} }

func (s *LogSink) Emit(level port.Level, msg string, ts time.Time) error {
	switch level {
	case port.LevelDebug:
		log.Debug().Msg(msg)
	case port.LevelInfo:
		log.Info().Msg(msg)
	case port.LevelWarning:
		log.Warn().Msg(msg)
	default:
		log.Error().Str("level", level.String()).Msg(msg)
	}
	return nil
}

// StoreSink appends alerts to the logs table of the durable store.
type StoreSink struct {
	repo    port.Repository
	timeout time.Duration
}

func NewStoreSink(repo port.Repository) *StoreSink {
	return &StoreSink{repo: repo, timeout: 5 * time.Second}
}

func (s *StoreSink) Emit(level port.Level, msg string, ts time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.repo.InsertLog(ctx, port.LogRecord{
		Level: level.String(),
		Msg:   msg,
		Time:  ts,
	})
}
