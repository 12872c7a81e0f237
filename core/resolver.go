package core

import (
	json "github.com/goccy/go-json"

	"pkt.systems/capturebadge/schema"
)

// Resolver computes visual states from lifecycle inputs.
type Resolver struct {
	cfg  schema.EngineConfig
	msgs Messages
}

// NewResolver constructs a Resolver.
func NewResolver(cfg schema.EngineConfig, msgs Messages) (*Resolver, error) {
	normalized, err := schema.NormalizeEngineConfig(cfg)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = MessageFunc(func(key string) string { return key })
	}
	return &Resolver{cfg: normalized, msgs: msgs}, nil
}

// Config returns the normalized engine config.
func (r *Resolver) Config() schema.EngineConfig {
	return r.cfg
}

// Defaults returns the idle visual state.
func (r *Resolver) Defaults() schema.VisualState {
	return schema.VisualState{
		Color:       r.cfg.DefaultColor,
		Title:       r.msgs.Message(MsgDefaultTooltip),
		IconPath:    r.cfg.DefaultIconPath,
		Progress:    schema.NotApplicable,
		BarProgress: schema.NotApplicable,
	}
}

// AutoSave returns the fixed state shown while auto-save is active.
func (r *Resolver) AutoSave(autoColor *schema.Color) schema.VisualState {
	color := r.cfg.AutoColor
	if autoColor != nil {
		color = *autoColor
	}
	return schema.VisualState{
		Text:        r.msgs.Message(MsgAutoSaveActiveBadge),
		Color:       color,
		Title:       r.msgs.Message(MsgAutoSaveActiveTooltip),
		IconPath:    r.cfg.DefaultIconPath,
		Progress:    schema.NotApplicable,
		BarProgress: schema.NotApplicable,
	}
}

// Resolve returns the visual state for options and optional overrides.
// Auto-save takes precedence over every override.
func (r *Resolver) Resolve(options schema.Options, overrides *schema.Overrides) schema.VisualState {
	if options.AutoSave {
		if overrides != nil {
			return r.AutoSave(overrides.AutoColor)
		}
		return r.AutoSave(nil)
	}
	state := r.Defaults()
	if overrides == nil {
		return state
	}
	if overrides.Text != nil {
		state.Text = *overrides.Text
	}
	if overrides.Color != nil {
		state.Color = *overrides.Color
	}
	if overrides.Title != nil {
		state.Title = *overrides.Title
	}
	if overrides.IconPath != nil {
		state.IconPath = *overrides.IconPath
	}
	if overrides.Progress != nil {
		state.Progress = *overrides.Progress
	}
	if overrides.BarProgress != nil {
		state.BarProgress = *overrides.BarProgress
	}
	return state
}

// FromSnapshot resolves the idle render of a tab, reusing the persisted
// button snapshot when there is one.
func (r *Resolver) FromSnapshot(options schema.Options, data schema.TabData) schema.VisualState {
	if options.AutoSave || len(data.Button) == 0 {
		return r.Resolve(options, nil)
	}
	overrides := &schema.Overrides{}
	var text, title, icon string
	var color schema.Color
	if decodeApplied(data.Button, schema.MethodSetBadgeText, &text) {
		overrides.Text = &text
	}
	if decodeApplied(data.Button, schema.MethodSetBadgeBackgroundColor, &color) {
		overrides.Color = &color
	}
	if decodeApplied(data.Button, schema.MethodSetTitle, &title) {
		overrides.Title = &title
	}
	if decodeApplied(data.Button, schema.MethodSetIcon, &icon) {
		overrides.IconPath = &icon
	}
	return r.Resolve(options, overrides)
}

func decodeApplied(applied schema.AppliedState, method schema.Method, dst any) bool {
	raw, ok := applied[method]
	if !ok || len(raw) == 0 {
		return false
	}
	return json.Unmarshal(raw, dst) == nil
}
