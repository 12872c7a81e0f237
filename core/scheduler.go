package core

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"pkt.systems/capturebadge/internal/logx"
	"pkt.systems/capturebadge/schema"
	"pkt.systems/pslog"
)

// Step is one unit of work executed inside a tab's chain.
type Step func(ctx context.Context, tab *TabSession) error

// Scheduler serializes indicator refreshes per tab. Steps for one tab run
// strictly in submission order, each after the previous one finished or
// failed; different tabs run independently.
type Scheduler struct {
	store     Store
	indicator Indicator
	sink      EventSink
	logger    pslog.Logger

	mu      sync.Mutex
	tails   map[schema.TabID]chan struct{}
	pending int
	// idle is closed when pending drops to zero.
	idle chan struct{}
}

// NewScheduler constructs a Scheduler.
func NewScheduler(deps EngineDeps) (*Scheduler, error) {
	if deps.Store == nil {
		return nil, errors.New("store is required")
	}
	if deps.Indicator == nil {
		return nil, errors.New("indicator is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	return &Scheduler{
		store:     deps.Store,
		indicator: deps.Indicator,
		sink:      deps.EventSink,
		logger:    logger,
		tails:     make(map[schema.TabID]chan struct{}),
	}, nil
}

// Enqueue schedules state to be applied to the tab's indicator. The
// returned channel closes once the refresh ran; failures are logged only.
func (s *Scheduler) Enqueue(ctx context.Context, tabID schema.TabID, state schema.VisualState, force bool) <-chan struct{} {
	return s.Schedule(ctx, tabID, func(ctx context.Context, tab *TabSession) error {
		tab.Apply(ctx, state, force)
		return nil
	})
}

// Schedule appends step to the tab's chain.
func (s *Scheduler) Schedule(ctx context.Context, tabID schema.TabID, step Step) <-chan struct{} {
	return s.schedule(ctx, tabID, step, false)
}

// Forget deletes the tab's record after every pending step ran and
// releases its chain.
func (s *Scheduler) Forget(ctx context.Context, tabID schema.TabID) <-chan struct{} {
	return s.schedule(ctx, tabID, func(ctx context.Context, tab *TabSession) error {
		tab.discard = true
		return s.store.Delete(ctx, tabID)
	}, true)
}

// Pending returns the number of tabs with a chain.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tails)
}

// Wait blocks until every scheduled step finished or ctx is done.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	if s.pending == 0 {
		s.mu.Unlock()
		return nil
	}
	idle := s.idle
	s.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) schedule(ctx context.Context, tabID schema.TabID, step Step, release bool) <-chan struct{} {
	if ctx == nil {
		ctx = context.Background()
	}
	// Enqueued work always runs to completion.
	ctx = context.WithoutCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	prev := s.tails[tabID]
	s.tails[tabID] = done
	if s.pending == 0 {
		s.idle = make(chan struct{})
	}
	s.pending++
	s.mu.Unlock()

	go func() {
		if prev != nil {
			<-prev
		}
		s.run(ctx, tabID, step)
		s.mu.Lock()
		if release && s.tails[tabID] == done {
			delete(s.tails, tabID)
		}
		close(done)
		s.pending--
		if s.pending == 0 {
			close(s.idle)
		}
		s.mu.Unlock()
	}()
	return done
}

func (s *Scheduler) run(ctx context.Context, tabID schema.TabID, step Step) {
	log := s.logger.With("tab", int(tabID))
	ctx = logx.ContextWithTabLogger(ctx, s.logger, tabID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("refresh step panic", "panic", fmt.Sprint(r))
		}
	}()

	data, _, err := s.store.Load(ctx, tabID)
	if errors.Is(err, schema.ErrStoreClosed) {
		log.Debug("refresh skipped", "reason", "store closed")
		return
	}
	if err != nil {
		log.Warn("refresh load failed", "err", err)
		data = schema.TabData{}
	}
	tab := &TabSession{ID: tabID, Data: data, scheduler: s, log: log}
	if err := step(ctx, tab); err != nil {
		log.Debug("refresh step failed", "err", err)
	}
	if tab.dirty && !tab.discard {
		tab.save(ctx)
	}
}

// TabSession is the view of a tab's record inside its chain. It is only
// valid for the duration of the step it is passed to.
type TabSession struct {
	ID   schema.TabID
	Data schema.TabData

	scheduler *Scheduler
	log       pslog.Logger
	dirty     bool
	discard   bool
}

// ResetButton clears the persisted button snapshot.
func (t *TabSession) ResetButton() {
	t.Data.Button = nil
	t.dirty = true
}

// SetAutoSave records the per-tab auto-save flag.
func (t *TabSession) SetAutoSave(enabled bool) {
	t.Data.AutoSave = enabled
	t.dirty = true
}

// SetLocation records the tab's last known URL and pinned state.
func (t *TabSession) SetLocation(url string, pinned bool) {
	if t.Data.URL == url && t.Data.Pinned == pinned {
		return
	}
	t.Data.URL = url
	t.Data.Pinned = pinned
	t.dirty = true
}

// Apply pushes the properties of state that differ from the applied state,
// in color, icon, text, title order. The applied state is recorded before
// the calls are issued so a failing call is not retried for the same value.
func (t *TabSession) Apply(ctx context.Context, state schema.VisualState, force bool) {
	indicator := t.scheduler.indicator
	if t.Data.Button == nil {
		t.Data.Button = schema.AppliedState{}
		t.dirty = true
	}
	calls := make([]schema.IndicatorCall, 0, len(schema.Properties))
	for _, property := range schema.Properties {
		method := property.Method()
		if !indicator.Supports(method) {
			t.log.Trace("refresh property unsupported", "method", string(method))
			continue
		}
		value := state.Value(property)
		raw, apply, err := Diff(t.Data.Button, method, value, force)
		if err != nil {
			t.log.Warn("refresh property encode failed", "method", string(method), "err", err)
			continue
		}
		if !apply {
			t.log.Trace("refresh property unchanged", "method", string(method))
			continue
		}
		t.Data.Button[method] = raw
		t.dirty = true
		calls = append(calls, schema.IndicatorCall{TabID: t.ID, Property: property, Method: method, Value: value})
	}
	if len(calls) == 0 {
		return
	}
	t.save(ctx)
	for _, call := range calls {
		err := indicator.Apply(ctx, call)
		if err != nil {
			logx.WithCall(t.log, call).Debug("refresh property failed", "err", err)
		}
		if sink := t.scheduler.sink; sink != nil {
			sink.OnApplied(schema.AppliedEvent{
				TabID:    call.TabID,
				Property: call.Property,
				Method:   call.Method,
				Value:    call.Value,
				Forced:   force,
				Err:      err,
			})
		}
	}
}

func (t *TabSession) save(ctx context.Context) {
	if err := t.scheduler.store.Save(ctx, t.ID, t.Data); err != nil {
		t.log.Warn("refresh save failed", "err", err)
		return
	}
	t.dirty = false
}
