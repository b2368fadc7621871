package catalog

import (
	"context"
	"log/slog"
)

// NoopEventSink is a no-operation implementation of EventSink
type NoopEventSink struct{}

// NewNoopEventSink creates a new no-operation event sink
func NewNoopEventSink() EventSink {
	return &NoopEventSink{}
}

func (n *NoopEventSink) ContentCreated(ctx context.Context, content *Content) error {
	return nil
}

func (n *NoopEventSink) ContentUpdated(ctx context.Context, content *Content) error {
	return nil
}

func (n *NoopEventSink) ContentRetired(ctx context.Context, content *Content) error {
	return nil
}

func (n *NoopEventSink) UserRegistered(ctx context.Context, user *User, profile *Profile) error {
	return nil
}

// LoggingEventSink is an event sink that logs events but takes no other action
// Useful for development and debugging
type LoggingEventSink struct {
	logger *slog.Logger
}

// NewLoggingEventSink creates a new logging event sink. A nil logger uses
// slog.Default().
func NewLoggingEventSink(logger *slog.Logger) EventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingEventSink{logger: logger}
}

func (l *LoggingEventSink) ContentCreated(ctx context.Context, content *Content) error {
	l.logger.InfoContext(ctx, "content created", "content_id", content.ID, "title", content.Title, "file_name", content.FileName)
	return nil
}

func (l *LoggingEventSink) ContentUpdated(ctx context.Context, content *Content) error {
	l.logger.InfoContext(ctx, "content updated", "content_id", content.ID, "status", content.Status)
	return nil
}

func (l *LoggingEventSink) ContentRetired(ctx context.Context, content *Content) error {
	l.logger.InfoContext(ctx, "content retired", "content_id", content.ID)
	return nil
}

func (l *LoggingEventSink) UserRegistered(ctx context.Context, user *User, profile *Profile) error {
	l.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username, "profile_id", profile.ID)
	return nil
}
