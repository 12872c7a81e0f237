package capturebadge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"pkt.systems/capturebadge/core"
	"pkt.systems/capturebadge/internal/appconfig"
	"pkt.systems/capturebadge/internal/cdpindicator"
	"pkt.systems/capturebadge/internal/eventbus"
	"pkt.systems/capturebadge/internal/i18n"
	"pkt.systems/capturebadge/internal/nativemsg"
	"pkt.systems/capturebadge/internal/persist"
	"pkt.systems/pslog"
)

// EngineDeps overrides the collaborators NewEngine would build from config.
type EngineDeps struct {
	// Out receives native messaging frames. Required for the nativemsg
	// indicator.
	Out       io.Writer
	Store     core.Store
	Indicator core.Indicator
	Messages  core.Messages
	EventSink core.EventSink
	Logger    pslog.Logger
}

// Engine bundles the router with its store, indicator and event bus.
type Engine struct {
	router  *core.Router
	bus     *eventbus.Bus
	store   core.Store
	native  *nativemsg.Indicator
	writer  *nativemsg.Writer
	closers []func() error
}

// NewEngine builds an engine from cfg.
func NewEngine(ctx context.Context, cfg appconfig.Config, deps EngineDeps) (*Engine, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(ctx)
	}
	engineCfg, err := cfg.ToEngineConfig()
	if err != nil {
		return nil, err
	}
	e := &Engine{bus: eventbus.New(logger)}
	if deps.Out != nil {
		e.writer = nativemsg.NewWriter(deps.Out)
	}

	store := deps.Store
	if store == nil {
		store, err = e.openStore(cfg, logger)
		if err != nil {
			return nil, err
		}
	}
	e.store = store

	indicator := deps.Indicator
	if indicator == nil {
		indicator, err = e.openIndicator(ctx, cfg, logger)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
	}

	msgs := deps.Messages
	if msgs == nil {
		catalog, err := i18n.Load(cfg.Messages.Locale, cfg.Messages.File)
		if err != nil {
			_ = e.Close()
			return nil, err
		}
		logger.Debug("engine messages loaded", "locale", catalog.Locale())
		msgs = catalog
	}

	var sink core.EventSink = e.bus
	if deps.EventSink != nil {
		sink = eventFanout{sinks: []core.EventSink{deps.EventSink, e.bus}}
	}
	router, err := core.NewRouter(engineCfg, core.EngineDeps{
		Store:     store,
		Indicator: indicator,
		Messages:  msgs,
		EventSink: sink,
		Logger:    logger,
	}, core.WithRefreshConcurrency(cfg.Host.RefreshConcurrency))
	if err != nil {
		_ = e.Close()
		return nil, err
	}
	e.router = router
	return e, nil
}

func (e *Engine) openStore(cfg appconfig.Config, logger pslog.Logger) (core.Store, error) {
	switch cfg.Store.Kind {
	case "", appconfig.StoreMemory:
		store := persist.NewMemoryStore()
		e.closers = append(e.closers, store.Close)
		return store, nil
	case appconfig.StoreFile:
		dir := cfg.Store.Dir
		if dir == "" {
			dir = filepath.Join(cfg.StateDir, "tabs")
		}
		return persist.NewFileStoreWithLogger(dir, cfg.Store.ResetOnStart, logger)
	default:
		return nil, fmt.Errorf("unsupported store kind %q", cfg.Store.Kind)
	}
}

func (e *Engine) openIndicator(ctx context.Context, cfg appconfig.Config, logger pslog.Logger) (core.Indicator, error) {
	switch cfg.Indicator.Kind {
	case "", appconfig.IndicatorNativeMessaging:
		if e.writer == nil {
			return nil, errors.New("nativemsg indicator requires an output stream")
		}
		e.native = nativemsg.NewIndicator(e.writer)
		return e.native, nil
	case appconfig.IndicatorCDP:
		ind, err := cdpindicator.New(pslog.ContextWithLogger(ctx, logger), cdpindicator.Config{
			URL:         cfg.Indicator.CDP.URL,
			ExtensionID: cfg.Indicator.CDP.ExtensionID,
			Namespace:   cfg.Indicator.CDP.Namespace,
			Timeout:     time.Duration(cfg.Indicator.CDP.TimeoutSeconds) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, func() error {
			ind.Close()
			return nil
		})
		return ind, nil
	case appconfig.IndicatorLog:
		return core.NewLogIndicator(logger), nil
	default:
		return nil, fmt.Errorf("unsupported indicator kind %q", cfg.Indicator.Kind)
	}
}

// Router returns the engine's router.
func (e *Engine) Router() *core.Router {
	return e.router
}

// Bus returns the applied-call event bus.
func (e *Engine) Bus() *eventbus.Bus {
	return e.bus
}

// Store returns the tab store.
func (e *Engine) Store() core.Store {
	return e.store
}

// Close releases the store and indicator.
func (e *Engine) Close() error {
	var errs []error
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	e.closers = nil
	return errors.Join(errs...)
}
