package capturebadge

import (
	"pkt.systems/capturebadge/core"
	"pkt.systems/capturebadge/schema"
)

type eventFanout struct {
	sinks []core.EventSink
}

func (f eventFanout) OnApplied(event schema.AppliedEvent) {
	for _, sink := range f.sinks {
		if sink == nil {
			continue
		}
		sink.OnApplied(event)
	}
}
