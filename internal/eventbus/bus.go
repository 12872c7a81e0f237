package eventbus

import (
	"context"
	"sync"

	"pkt.systems/capturebadge/schema"
	"pkt.systems/pslog"
)

// AllTabs subscribes to events of every tab.
const AllTabs schema.TabID = -1

// Bus fans out applied indicator calls to per-tab subscribers. Slow
// subscribers lose events instead of stalling the tab's refresh chain.
type Bus struct {
	mu    sync.Mutex
	subs  map[schema.TabID]map[chan schema.AppliedEvent]struct{}
	log   pslog.Logger
	depth int
}

// New constructs a Bus.
func New(logger pslog.Logger) *Bus {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Bus{
		subs:  make(map[schema.TabID]map[chan schema.AppliedEvent]struct{}),
		log:   logger,
		depth: 256,
	}
}

// Subscribe registers a subscriber for the tab, or for every tab with
// AllTabs, and returns a channel + cancel.
func (b *Bus) Subscribe(tabID schema.TabID) (<-chan schema.AppliedEvent, func()) {
	if b == nil {
		return nil, func() {}
	}
	ch := make(chan schema.AppliedEvent, b.depth)
	b.mu.Lock()
	tabSubs := b.subs[tabID]
	if tabSubs == nil {
		tabSubs = make(map[chan schema.AppliedEvent]struct{})
		b.subs[tabID] = tabSubs
	}
	tabSubs[ch] = struct{}{}
	count := len(tabSubs)
	b.mu.Unlock()
	if b.log != nil {
		b.log.With("tab", int(tabID)).Debug("eventbus subscribe", "subs", count)
	}
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if subs := b.subs[tabID]; subs != nil {
				delete(subs, ch)
				if len(subs) == 0 {
					delete(b.subs, tabID)
				}
			}
			close(ch)
			b.mu.Unlock()
			if b.log != nil {
				b.log.With("tab", int(tabID)).Debug("eventbus unsubscribe")
			}
		})
	}
}

// OnApplied publishes an applied indicator call.
func (b *Bus) OnApplied(event schema.AppliedEvent) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	dropped := 0
	for _, key := range []schema.TabID{event.TabID, AllTabs} {
		for sub := range b.subs[key] {
			select {
			case sub <- event:
			default:
				dropped++
			}
		}
	}
	if dropped > 0 && b.log != nil {
		b.log.With("tab", int(event.TabID)).Trace("eventbus dropped", "count", dropped)
	}
}
