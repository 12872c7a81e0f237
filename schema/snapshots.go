package schema

import json "github.com/goccy/go-json"

// NotApplicable marks a progress field that does not apply.
const NotApplicable = -1

// VisualState is the computed appearance of one tab's indicator.
type VisualState struct {
	Text        string
	Color       Color
	Title       string
	IconPath    string
	Progress    int
	BarProgress int
}

// Animated reports whether the state selects an animated icon frame.
func (s VisualState) Animated() bool {
	return s.BarProgress != NotApplicable
}

// Value returns the value pushed to the indicator for the property.
func (s VisualState) Value(p Property) any {
	switch p {
	case PropertyColor:
		return s.Color
	case PropertyIcon:
		return s.IconPath
	case PropertyText:
		return s.Text
	case PropertyTitle:
		return s.Title
	default:
		return nil
	}
}

// Overrides carries caller-supplied values for a VisualState. Nil fields
// fall back to defaults.
type Overrides struct {
	Text        *string
	Color       *Color
	Title       *string
	IconPath    *string
	Progress    *int
	BarProgress *int
	// AutoColor replaces the auto-save badge color when auto-save is active.
	AutoColor *Color
}

// Options carries the per-event policy flags.
type Options struct {
	AutoSave bool `json:"autoSave"`
}

// AppliedState holds the last value pushed per indicator method.
type AppliedState map[Method]json.RawMessage

// TabData is the ephemeral record kept for a tab. URL and Pinned hold the
// last activation update; URL is empty until the tab was activated.
type TabData struct {
	Button   AppliedState `json:"button,omitempty"`
	AutoSave bool         `json:"autoSave,omitempty"`
	URL      string       `json:"url,omitempty"`
	Pinned   bool         `json:"pinned,omitempty"`
}

// Clone returns a deep copy of the record.
func (d TabData) Clone() TabData {
	out := TabData{AutoSave: d.AutoSave, URL: d.URL, Pinned: d.Pinned}
	if d.Button != nil {
		out.Button = make(AppliedState, len(d.Button))
		for method, raw := range d.Button {
			out.Button[method] = append(json.RawMessage(nil), raw...)
		}
	}
	return out
}
