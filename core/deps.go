package core

import "pkt.systems/pslog"

// EngineDeps captures the collaborators of the engine.
type EngineDeps struct {
	Store     Store
	Indicator Indicator
	Messages  Messages
	EventSink EventSink
	Logger    pslog.Logger
}
