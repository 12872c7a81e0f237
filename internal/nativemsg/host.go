package nativemsg

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"pkt.systems/capturebadge/schema"
	"pkt.systems/pslog"
)

// Engine receives the events decoded from the extension.
type Engine interface {
	OnLifecycle(ctx context.Context, event schema.LifecycleEvent) (<-chan struct{}, error)
	OnTabActivated(ctx context.Context, update schema.TabUpdate) (<-chan struct{}, error)
	OnTabRemoved(ctx context.Context, tabID schema.TabID) <-chan struct{}
	SetAutoSave(ctx context.Context, tabID schema.TabID, enabled bool) (<-chan struct{}, error)
	IsAutoSaveEnabled(ctx context.Context, update schema.TabUpdate) (bool, error)
	RefreshAll(ctx context.Context) error
}

// Source yields inbound messages. Read returns io.EOF once exhausted.
type Source interface {
	Read() (Inbound, error)
}

// Replier sends replies to queries.
type Replier interface {
	Write(v any) error
}

// Host reads messages from the extension and routes them to the engine.
type Host struct {
	source    Source
	replies   Replier
	indicator *Indicator
	engine    Engine
	refreshes sync.WaitGroup
}

// NewHost constructs a Host. indicator may be nil when indicator calls do
// not travel back over native messaging.
func NewHost(source Source, replies Replier, indicator *Indicator, engine Engine) *Host {
	return &Host{source: source, replies: replies, indicator: indicator, engine: engine}
}

type readResult struct {
	msg Inbound
	err error
}

// Serve handles messages until the extension closes the stream or ctx is
// done. A closed stream is a normal shutdown and returns nil. Serve returns
// only after refreshes it started have been scheduled.
func (h *Host) Serve(ctx context.Context) error {
	log := pslog.Ctx(ctx)
	log.Info("nativemsg serve start")
	defer h.refreshes.Wait()
	results := make(chan readResult)
	go func() {
		for {
			msg, err := h.source.Read()
			select {
			case results <- readResult{msg: msg, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil && !recoverable(err) {
				return
			}
		}
	}()
	for {
		select {
		case <-ctx.Done():
			log.Info("nativemsg serve stop", "reason", ctx.Err())
			return nil
		case res := <-results:
			if res.err != nil {
				if recoverable(res.err) {
					log.Warn("nativemsg message rejected", "err", res.err)
					continue
				}
				if errors.Is(res.err, io.EOF) {
					log.Info("nativemsg stream closed")
					return nil
				}
				log.Error("nativemsg read failed", "err", res.err)
				return res.err
			}
			h.dispatch(ctx, res.msg)
		}
	}
}

func recoverable(err error) bool {
	var decodeErr *decodeError
	return errors.Is(err, schema.ErrMessageTooLarge) || errors.As(err, &decodeErr)
}

func (h *Host) dispatch(ctx context.Context, msg Inbound) {
	log := pslog.Ctx(ctx).With("type", msg.Type)
	log.Trace("nativemsg message")
	var err error
	switch msg.Type {
	case TypeHello:
		if h.indicator != nil {
			h.indicator.SetSupported(msg.Methods)
		}
		log.Info("nativemsg hello", "methods", len(msg.Methods))
		h.refreshes.Add(1)
		go func() {
			defer h.refreshes.Done()
			if err := h.engine.RefreshAll(ctx); err != nil {
				if ctx.Err() != nil {
					log.Debug("nativemsg refresh interrupted", "err", err)
					return
				}
				log.Warn("nativemsg refresh failed", "err", err)
			}
		}()
	case TypeLifecycle:
		if msg.Event == nil {
			err = fmt.Errorf("%w: missing event", schema.ErrInvalidEvent)
			break
		}
		_, err = h.engine.OnLifecycle(ctx, *msg.Event)
	case TypeTab:
		if msg.Tab == nil {
			err = fmt.Errorf("%w: missing tab", schema.ErrInvalidTab)
			break
		}
		_, err = h.engine.OnTabActivated(ctx, *msg.Tab)
	case TypeTabRemoved:
		if msg.TabID == nil {
			err = fmt.Errorf("%w: missing tabId", schema.ErrInvalidTab)
			break
		}
		h.engine.OnTabRemoved(ctx, *msg.TabID)
	case TypeAutoSave:
		if msg.TabID == nil {
			err = fmt.Errorf("%w: missing tabId", schema.ErrInvalidTab)
			break
		}
		_, err = h.engine.SetAutoSave(ctx, *msg.TabID, msg.Enabled)
	case TypeAutoSaveQuery:
		err = h.answerAutoSave(ctx, msg)
	default:
		err = fmt.Errorf("unknown message type %q", msg.Type)
	}
	if err != nil {
		log.Warn("nativemsg message rejected", "err", err)
		if msg.ID != "" {
			if werr := h.replies.Write(Outbound{Type: TypeError, ID: msg.ID, Error: err.Error()}); werr != nil {
				log.Warn("nativemsg reply failed", "err", werr)
			}
		}
	}
}

func (h *Host) answerAutoSave(ctx context.Context, msg Inbound) error {
	if msg.Tab == nil {
		return fmt.Errorf("%w: missing tab", schema.ErrInvalidTab)
	}
	enabled, err := h.engine.IsAutoSaveEnabled(ctx, *msg.Tab)
	if err != nil {
		return err
	}
	return h.replies.Write(Outbound{Type: TypeAutoSaveState, ID: msg.ID, TabID: &msg.Tab.TabID, Enabled: &enabled})
}
