package sim

import (
	"log/slog"
	"reflect"
)

// EventLogger is a hook that logs every event the engine handles.
type EventLogger struct {
	logger *slog.Logger
}

// NewEventLogger returns an EventLogger that writes into the logger at debug
// level.
func NewEventLogger(logger *slog.Logger) *EventLogger {
	return &EventLogger{logger: logger}
}

// Func writes the event information into the logger.
func (h *EventLogger) Func(ctx HookCtx) {
	evt, ok := ctx.Item.(Event)
	if !ok {
		return
	}

	switch ctx.Pos {
	case HookPosBeforeEvent:
		attrs := []any{
			"time", float64(evt.Time()),
			"event", reflect.TypeOf(evt).String(),
		}

		if comp, ok := evt.Handler().(Named); ok {
			attrs = append(attrs, "handler", comp.Name())
		}

		h.logger.Debug("event", attrs...)
	case HookPosAfterEvent:
		if err, ok := ctx.Detail.(error); ok && err != nil {
			h.logger.Debug("event failed",
				"time", float64(evt.Time()),
				"event", reflect.TypeOf(evt).String(),
				"error", err)
		}
	}
}
