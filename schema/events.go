package schema

// EventKind is the lifecycle stage reported by the capture pipeline.
type EventKind string

const (
	// EventInitialize reports an initialization step (1 or 2).
	EventInitialize EventKind = "initialize"
	// EventProgress reports capture progress as index of maxIndex.
	EventProgress EventKind = "progress"
	// EventError reports a failed capture.
	EventError EventKind = "error"
	// EventCancelled reports a capture cancelled by the user.
	EventCancelled EventKind = "cancelled"
	// EventEnd reports a successful capture.
	EventEnd EventKind = "end"
)

// LifecycleEvent is a capture lifecycle notification for one tab.
type LifecycleEvent struct {
	TabID    TabID     `json:"tabId"`
	Kind     EventKind `json:"kind"`
	Step     int       `json:"step,omitempty"`
	Index    int       `json:"index,omitempty"`
	MaxIndex int       `json:"maxIndex,omitempty"`
	Options  Options   `json:"options"`
	// Error carries the upstream error text for EventError.
	Error string `json:"error,omitempty"`
}

// TabUpdate reports a tab activation, creation or navigation.
type TabUpdate struct {
	TabID   TabID  `json:"tabId"`
	URL     string `json:"url"`
	Loading bool   `json:"loading,omitempty"`
	Pinned  bool   `json:"pinned,omitempty"`
}
