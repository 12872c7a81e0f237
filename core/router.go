package core

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"pkt.systems/capturebadge/internal/logx"
	"pkt.systems/capturebadge/schema"
	"pkt.systems/pslog"
)

// DefaultRefreshConcurrency bounds RefreshAll fan-out.
const DefaultRefreshConcurrency = 16

// Router maps capture lifecycle and tab events onto visual states.
type Router struct {
	cfg         schema.EngineConfig
	resolver    *Resolver
	scheduler   *Scheduler
	store       Store
	indicator   Indicator
	msgs        Messages
	logger      pslog.Logger
	concurrency int
}

// RouterOption customizes a Router.
type RouterOption func(*Router)

// WithRefreshConcurrency bounds the number of tabs RefreshAll renders at once.
func WithRefreshConcurrency(n int) RouterOption {
	return func(r *Router) {
		if n > 0 {
			r.concurrency = n
		}
	}
}

// NewRouter wires a resolver and scheduler around deps.
func NewRouter(cfg schema.EngineConfig, deps EngineDeps, opts ...RouterOption) (*Router, error) {
	if deps.Messages == nil {
		return nil, errors.New("messages are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	deps.Logger = logger
	resolver, err := NewResolver(cfg, deps.Messages)
	if err != nil {
		return nil, err
	}
	scheduler, err := NewScheduler(deps)
	if err != nil {
		return nil, err
	}
	r := &Router{
		cfg:         resolver.Config(),
		resolver:    resolver,
		scheduler:   scheduler,
		store:       deps.Store,
		indicator:   deps.Indicator,
		msgs:        deps.Messages,
		logger:      logger,
		concurrency: DefaultRefreshConcurrency,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Resolver returns the router's resolver.
func (r *Router) Resolver() *Resolver {
	return r.resolver
}

// Scheduler returns the router's scheduler.
func (r *Router) Scheduler() *Scheduler {
	return r.scheduler
}

// OnLifecycle dispatches a lifecycle event.
func (r *Router) OnLifecycle(ctx context.Context, event schema.LifecycleEvent) (<-chan struct{}, error) {
	if err := schema.ValidateTabID(event.TabID); err != nil {
		return nil, err
	}
	switch event.Kind {
	case schema.EventInitialize:
		if event.Step != 1 && event.Step != 2 {
			return nil, fmt.Errorf("%w: initialize step %d", schema.ErrInvalidEvent, event.Step)
		}
		return r.OnInitialize(ctx, event.TabID, event.Options, event.Step), nil
	case schema.EventProgress:
		if event.MaxIndex <= 0 {
			logx.WithTab(ctx, event.TabID).Trace("router progress ignored", "index", event.Index, "max_index", event.MaxIndex)
			return closedChan(), nil
		}
		return r.OnProgress(ctx, event.TabID, event.Index, event.MaxIndex, event.Options), nil
	case schema.EventError:
		return r.OnError(ctx, event.TabID, event.Options, event.Error), nil
	case schema.EventCancelled:
		return r.OnCancelled(ctx, event.TabID, event.Options), nil
	case schema.EventEnd:
		return r.OnEnd(ctx, event.TabID, event.Options), nil
	default:
		return nil, fmt.Errorf("%w: kind %q", schema.ErrInvalidEvent, event.Kind)
	}
}

// OnInitialize renders initialization step 1 or 2. Step 1 starts a new
// capture and drops the previous button snapshot first.
func (r *Router) OnInitialize(ctx context.Context, tabID schema.TabID, options schema.Options, step int) <-chan struct{} {
	logx.WithTab(ctx, tabID).Debug("router initialize", "step", step)
	color := r.cfg.DefaultColor
	if step != 1 {
		color = r.cfg.AccentColor
	}
	state := r.resolver.Resolve(options, &schema.Overrides{
		Text:     ptr(r.msgs.Message(MsgInitializingBadge)),
		Color:    &color,
		Title:    ptr(r.msgs.Message(MsgInitializingTooltip) + " (" + strconv.Itoa(step) + "/2)"),
		IconPath: ptr(r.cfg.WaitIconPath(0)),
	})
	return r.scheduler.Schedule(ctx, tabID, func(ctx context.Context, tab *TabSession) error {
		if step == 1 {
			tab.ResetButton()
		}
		tab.Apply(ctx, state, false)
		return nil
	})
}

// OnProgress renders capture progress. maxIndex must be positive.
func (r *Router) OnProgress(ctx context.Context, tabID schema.TabID, index, maxIndex int, options schema.Options) <-chan struct{} {
	progress := Quantize(index, maxIndex)
	state := r.resolver.Resolve(options, &schema.Overrides{
		Text:        ptr(""),
		Color:       ptr(r.cfg.AccentColor),
		Title:       ptr(r.msgs.Message(MsgSaveProgressTooltip) + strconv.Itoa(progress.Percent()) + "%"),
		IconPath:    ptr(r.cfg.WaitIconPath(progress.BarProgress)),
		Progress:    ptr(progress.Progress),
		BarProgress: ptr(progress.BarProgress),
		AutoColor:   ptr(r.cfg.ProgressAutoColor),
	})
	return r.scheduler.Enqueue(ctx, tabID, state, false)
}

// OnError renders a failed capture. A non-empty errText is logged as a
// notice and not propagated.
func (r *Router) OnError(ctx context.Context, tabID schema.TabID, options schema.Options, errText string) <-chan struct{} {
	if errText != "" {
		logx.WithTab(ctx, tabID).Warn("capture init error", "err", errText)
	}
	state := r.resolver.Resolve(options, &schema.Overrides{
		Text:  ptr(r.msgs.Message(MsgErrorBadge)),
		Color: ptr(r.cfg.ErrorColor),
	})
	return r.scheduler.Enqueue(ctx, tabID, state, false)
}

// OnCancelled restores the idle appearance after a cancelled capture.
func (r *Router) OnCancelled(ctx context.Context, tabID schema.TabID, options schema.Options) <-chan struct{} {
	state := r.resolver.Resolve(options, &schema.Overrides{
		Text:  ptr(""),
		Color: ptr(r.cfg.DefaultColor),
		Title: ptr(r.msgs.Message(MsgDefaultTooltip)),
	})
	return r.scheduler.Enqueue(ctx, tabID, state, false)
}

// OnEnd renders a successful capture.
func (r *Router) OnEnd(ctx context.Context, tabID schema.TabID, options schema.Options) <-chan struct{} {
	state := r.resolver.Resolve(options, &schema.Overrides{
		Text:  ptr(r.msgs.Message(MsgOKBadge)),
		Color: ptr(r.cfg.AccentColor),
	})
	return r.scheduler.Enqueue(ctx, tabID, state, false)
}

// OnTabActivated re-renders a tab that was activated, created or updated.
// A loading update is a new top-level navigation and resets the tab to idle.
func (r *Router) OnTabActivated(ctx context.Context, update schema.TabUpdate) (<-chan struct{}, error) {
	if err := schema.ValidateTabID(update.TabID); err != nil {
		return nil, err
	}
	log := logx.WithTab(ctx, update.TabID)
	allowed := schema.AllowedURL(update.URL, r.cfg.AllowedSchemes)
	done := r.scheduler.Schedule(ctx, update.TabID, func(ctx context.Context, tab *TabSession) error {
		if update.Loading {
			tab.ResetButton()
		}
		tab.SetLocation(update.URL, update.Pinned)
		options := schema.Options{AutoSave: r.autoSaveFor(update, allowed, tab.Data)}
		tab.Apply(ctx, r.resolver.FromSnapshot(options, tab.Data), true)
		return nil
	})
	if err := r.indicator.SetEnabled(ctx, update.TabID, allowed); err != nil && !errors.Is(err, schema.ErrUnsupported) {
		log.Debug("router toggle failed", "enabled", allowed, "err", err)
	}
	return done, nil
}

// OnTabRemoved drops the tab's record and chain.
func (r *Router) OnTabRemoved(ctx context.Context, tabID schema.TabID) <-chan struct{} {
	logx.WithTab(ctx, tabID).Debug("router tab removed")
	return r.scheduler.Forget(ctx, tabID)
}

// SetAutoSave enables or disables auto-save for one tab and re-renders it.
func (r *Router) SetAutoSave(ctx context.Context, tabID schema.TabID, enabled bool) (<-chan struct{}, error) {
	if err := schema.ValidateTabID(tabID); err != nil {
		return nil, err
	}
	logx.WithTab(ctx, tabID).Info("router auto-save toggled", "enabled", enabled)
	state := r.resolver.Resolve(schema.Options{AutoSave: enabled}, nil)
	return r.scheduler.Schedule(ctx, tabID, func(ctx context.Context, tab *TabSession) error {
		tab.SetAutoSave(enabled)
		tab.Apply(ctx, state, false)
		return nil
	}), nil
}

// IsAutoSaveEnabled reports whether auto-save applies to the tab.
func (r *Router) IsAutoSaveEnabled(ctx context.Context, update schema.TabUpdate) (bool, error) {
	allowed := schema.AllowedURL(update.URL, r.cfg.AllowedSchemes)
	if !allowed {
		return false, nil
	}
	data, _, err := r.store.Load(ctx, update.TabID)
	if err != nil {
		return false, err
	}
	return r.autoSaveFor(update, allowed, data), nil
}

// RefreshAll re-renders every tab with a record, a bounded number at a time.
func (r *Router) RefreshAll(ctx context.Context) error {
	tabs, err := r.store.Tabs(ctx)
	if err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for _, tabID := range tabs {
		g.Go(func() error {
			done := r.scheduler.Schedule(ctx, tabID, func(ctx context.Context, tab *TabSession) error {
				options := schema.Options{AutoSave: r.recordAutoSave(tabID, tab.Data)}
				tab.Apply(ctx, r.resolver.FromSnapshot(options, tab.Data), false)
				return nil
			})
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	return g.Wait()
}

// Wait blocks until every scheduled refresh finished or ctx is done.
func (r *Router) Wait(ctx context.Context) error {
	return r.scheduler.Wait(ctx)
}

func (r *Router) autoSaveFor(update schema.TabUpdate, allowed bool, data schema.TabData) bool {
	if !allowed {
		return false
	}
	return r.cfg.AutoSaveAll || (r.cfg.AutoSaveUnpinned && !update.Pinned) || data.AutoSave
}

// recordAutoSave applies the auto-save policy to a stored record. A tab
// that was never activated has no URL and only the global and per-tab
// flags apply.
func (r *Router) recordAutoSave(tabID schema.TabID, data schema.TabData) bool {
	if data.URL == "" {
		return r.cfg.AutoSaveAll || data.AutoSave
	}
	update := schema.TabUpdate{TabID: tabID, URL: data.URL, Pinned: data.Pinned}
	return r.autoSaveFor(update, schema.AllowedURL(data.URL, r.cfg.AllowedSchemes), data)
}

func ptr[T any](v T) *T {
	return &v
}

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
