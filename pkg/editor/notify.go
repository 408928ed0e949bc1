package editor

import (
	"context"
	"log/slog"
)

// Level is the severity of a user notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notifier shows short-lived messages to the user.
type Notifier interface {
	Notify(ctx context.Context, level Level, message string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, level Level, message string)

func (f NotifierFunc) Notify(ctx context.Context, level Level, message string) {
	f(ctx, level, message)
}

// LogNotifier writes notifications to a logger.
func LogNotifier(logger *slog.Logger) Notifier {
	return NotifierFunc(func(ctx context.Context, level Level, message string) {
		switch level {
		case LevelError:
			logger.ErrorContext(ctx, message)
		default:
			logger.InfoContext(ctx, message, "level", string(level))
		}
	})
}

// Opener shows a URL to the user in a separate context (browser tab, popup).
type Opener interface {
	Open(ctx context.Context, url string) error
}
