package logx

import (
	"context"

	"pkt.systems/capturebadge/schema"
	"pkt.systems/pslog"
)

type contextKey int

const (
	tabKey contextKey = iota
)

// Ctx returns the logger bound to the provided context.
func Ctx(ctx context.Context) pslog.Logger {
	return pslog.Ctx(ctx)
}

// WithTab annotates the logger with the tab id unless the context already
// carries the same tab marker.
func WithTab(ctx context.Context, tabID schema.TabID) pslog.Logger {
	log := pslog.Ctx(ctx)
	if current, ok := ctx.Value(tabKey).(schema.TabID); ok && current == tabID {
		return log
	}
	return log.With("tab", int(tabID))
}

// WithCall annotates the logger with indicator call metadata.
func WithCall(log pslog.Logger, call schema.IndicatorCall) pslog.Logger {
	if call.Method != "" {
		log = log.With("method", string(call.Method))
	}
	return log
}

// ContextWithTab stores the tab marker on the context for log de-duplication.
func ContextWithTab(ctx context.Context, tabID schema.TabID) context.Context {
	if ctx == nil {
		return ctx
	}
	return context.WithValue(ctx, tabKey, tabID)
}

// ContextWithTabLogger attaches a tab-annotated logger and the tab marker.
func ContextWithTabLogger(ctx context.Context, log pslog.Logger, tabID schema.TabID) context.Context {
	ctx = pslog.ContextWithLogger(ctx, log.With("tab", int(tabID)))
	return ContextWithTab(ctx, tabID)
}
