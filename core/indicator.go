package core

import (
	"context"

	"pkt.systems/capturebadge/schema"
	"pkt.systems/pslog"
)

// Indicator is the native toolbar indicator.
type Indicator interface {
	// Supports reports whether the setter exists; unsupported setters are
	// skipped without touching the applied state.
	Supports(method schema.Method) bool
	Apply(ctx context.Context, call schema.IndicatorCall) error
	// SetEnabled enables or disables the toolbar action for a tab. It
	// returns schema.ErrUnsupported when the indicator cannot toggle it.
	SetEnabled(ctx context.Context, tabID schema.TabID, enabled bool) error
}

// LogIndicator writes indicator calls to a logger instead of a browser.
type LogIndicator struct {
	log pslog.Logger
}

// NewLogIndicator constructs a LogIndicator.
func NewLogIndicator(logger pslog.Logger) *LogIndicator {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &LogIndicator{log: logger}
}

// Supports reports true for every setter.
func (l *LogIndicator) Supports(schema.Method) bool {
	return true
}

// Apply logs the call.
func (l *LogIndicator) Apply(_ context.Context, call schema.IndicatorCall) error {
	l.log.Info("indicator call", "tab", call.TabID, "method", call.Method, "value", call.Value)
	return nil
}

// SetEnabled logs the toggle.
func (l *LogIndicator) SetEnabled(_ context.Context, tabID schema.TabID, enabled bool) error {
	l.log.Info("indicator toggle", "tab", tabID, "enabled", enabled)
	return nil
}
