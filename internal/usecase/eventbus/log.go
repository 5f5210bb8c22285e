package eventbus

import (
	"context"
	"log/slog"

	"sandbox-term/internal/domain"
)

// LogHandler returns a handler that writes every event to logger at debug level.
func LogHandler(logger *slog.Logger) domain.EventHandler {
	return func(ctx context.Context, e domain.Event) {
		attrs := []any{"event", string(e.Type)}
		if e.SessionID != "" {
			attrs = append(attrs, "session_id", e.SessionID)
		}
		if len(e.Payload) > 0 {
			attrs = append(attrs, "payload", string(e.Payload))
		}
		logger.DebugContext(ctx, "session event", attrs...)
	}
}
