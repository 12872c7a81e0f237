package core

import "pkt.systems/capturebadge/schema"

// EventSink receives a notification for every attempted indicator call.
type EventSink interface {
	OnApplied(event schema.AppliedEvent)
}
