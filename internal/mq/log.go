package mq

import (
	"context"
	"log/slog"
	"strconv"
	"sync/atomic"
)

// LogBackend writes published messages to a logger. It has no subscribers,
// so Subscribe blocks until the context ends.
type LogBackend struct {
	logger *slog.Logger
	seq    atomic.Int64
}

func NewLogBackend(logger *slog.Logger) *LogBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogBackend{logger: logger}
}

func (l *LogBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	id := strconv.FormatInt(l.seq.Add(1), 10)
	l.logger.InfoContext(ctx, "event",
		"channel", channel,
		"message_id", id,
		"type", attrs[attrEventType],
		"payload", string(data),
	)
	return id, nil
}

func (l *LogBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	<-ctx.Done()
	return ctx.Err()
}

func (l *LogBackend) Close() error {
	return nil
}
