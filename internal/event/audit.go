package event

import (
	"context"
	"log/slog"
)

// RunAuditLog writes every received event to logger until ctx is done or
// events is closed.
func RunAuditLog(ctx context.Context, events <-chan Event, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			attrs := []any{"event_id", e.ID, "type", string(e.Type), "subject", e.Subject}
			for k, v := range e.Payload {
				attrs = append(attrs, k, v)
			}
			logger.Info("audit", attrs...)
		}
	}
}
