package nativemsg

import (
	"context"
	"sync"

	"pkt.systems/capturebadge/internal/logx"
	"pkt.systems/capturebadge/schema"
)

// Indicator forwards indicator calls to the extension, which invokes the
// matching toolbar setter. Until the extension announces its methods every
// setter is assumed to exist.
type Indicator struct {
	w *Writer

	mu        sync.RWMutex
	supported map[schema.Method]bool
}

// NewIndicator constructs an Indicator writing to w.
func NewIndicator(w *Writer) *Indicator {
	return &Indicator{w: w}
}

// SetSupported replaces the set of setters the extension can run.
func (i *Indicator) SetSupported(methods []schema.Method) {
	supported := make(map[schema.Method]bool, len(methods))
	for _, method := range methods {
		supported[method] = true
	}
	i.mu.Lock()
	i.supported = supported
	i.mu.Unlock()
}

// Supports reports whether the extension announced method.
func (i *Indicator) Supports(method schema.Method) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.supported == nil {
		return true
	}
	return i.supported[method]
}

// Apply writes a call message.
func (i *Indicator) Apply(ctx context.Context, call schema.IndicatorCall) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !i.Supports(call.Method) {
		return schema.ErrUnsupported
	}
	logx.WithCall(logx.WithTab(ctx, call.TabID), call).Trace("nativemsg call")
	return i.w.Write(Outbound{
		Type:   TypeCall,
		Method: call.Method,
		Args: map[string]any{
			"tabId":               int(call.TabID),
			string(call.Property): call.Value,
		},
	})
}

// SetEnabled writes an enable or disable message.
func (i *Indicator) SetEnabled(ctx context.Context, tabID schema.TabID, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	kind := TypeDisable
	if enabled {
		kind = TypeEnable
	}
	return i.w.Write(Outbound{Type: kind, TabID: &tabID})
}
