package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"pkt.systems/capturebadge/internal/persist"
	"pkt.systems/capturebadge/schema"
)

var testMessages = MessageFunc(func(key string) string {
	switch key {
	case MsgDefaultTooltip:
		return "Save page"
	case MsgInitializingBadge:
		return "..."
	case MsgInitializingTooltip:
		return "Initializing"
	case MsgErrorBadge:
		return "ERR"
	case MsgOKBadge:
		return "OK"
	case MsgSaveProgressTooltip:
		return "Save progress: "
	case MsgAutoSaveActiveBadge:
		return "[A]"
	case MsgAutoSaveActiveTooltip:
		return "Auto-save active"
	default:
		return key
	}
})

type recordingIndicator struct {
	mu          sync.Mutex
	calls       []schema.IndicatorCall
	toggles     map[schema.TabID]bool
	unsupported map[schema.Method]bool
	fail        map[schema.Method]error
	delay       func(call schema.IndicatorCall) time.Duration
}

func newRecordingIndicator() *recordingIndicator {
	return &recordingIndicator{
		toggles:     make(map[schema.TabID]bool),
		unsupported: make(map[schema.Method]bool),
		fail:        make(map[schema.Method]error),
	}
}

func (r *recordingIndicator) Supports(method schema.Method) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return !r.unsupported[method]
}

func (r *recordingIndicator) Apply(_ context.Context, call schema.IndicatorCall) error {
	r.mu.Lock()
	delay := r.delay
	r.mu.Unlock()
	if delay != nil {
		time.Sleep(delay(call))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return r.fail[call.Method]
}

func (r *recordingIndicator) SetEnabled(_ context.Context, tabID schema.TabID, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toggles[tabID] = enabled
	return nil
}

func (r *recordingIndicator) snapshot() []schema.IndicatorCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]schema.IndicatorCall, len(r.calls))
	copy(out, r.calls)
	return out
}

func (r *recordingIndicator) callsFor(tabID schema.TabID, method schema.Method) []any {
	var out []any
	for _, call := range r.snapshot() {
		if call.TabID == tabID && call.Method == method {
			out = append(out, call.Value)
		}
	}
	return out
}

type recordingSink struct {
	mu     sync.Mutex
	events []schema.AppliedEvent
}

func (s *recordingSink) OnApplied(event schema.AppliedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []schema.AppliedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.AppliedEvent, len(s.events))
	copy(out, s.events)
	return out
}

type failingStore struct {
	*persist.MemoryStore
	loadErr error
}

func (f failingStore) Load(ctx context.Context, tabID schema.TabID) (schema.TabData, bool, error) {
	if f.loadErr != nil {
		return schema.TabData{}, false, f.loadErr
	}
	return f.MemoryStore.Load(ctx, tabID)
}

var errNative = errors.New("native call rejected")

func newTestRouter(t *testing.T, cfg schema.EngineConfig) (*Router, *recordingIndicator, *persist.MemoryStore, *recordingSink) {
	t.Helper()
	store := persist.NewMemoryStore()
	indicator := newRecordingIndicator()
	sink := &recordingSink{}
	router, err := NewRouter(cfg, EngineDeps{
		Store:     store,
		Indicator: indicator,
		Messages:  testMessages,
		EventSink: sink,
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	return router, indicator, store, sink
}

func wait(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for refresh")
	}
}

func waitAll(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Wait(ctx); err != nil {
		t.Fatalf("wait: %v", err)
	}
}
