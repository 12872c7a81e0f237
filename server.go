package capturebadge

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"pkt.systems/capturebadge/internal/appconfig"
	"pkt.systems/capturebadge/internal/nativemsg"
	"pkt.systems/pslog"
)

// Server runs the native messaging host.
type Server interface {
	Start(ctx context.Context) error
	Wait() error
	Stop(ctx context.Context) error
}

// ServerDeps captures the streams and overrides used to build the server.
type ServerDeps struct {
	// In and Out are the browser's pipes, normally stdin and stdout.
	In     io.Reader
	Out    io.Writer
	Engine EngineDeps
}

// New constructs a native messaging host server.
func New(ctx context.Context, cfg appconfig.Config, deps ServerDeps) (Server, error) {
	if deps.In == nil || deps.Out == nil {
		return nil, errors.New("input and output streams are required")
	}
	engineDeps := deps.Engine
	engineDeps.Out = deps.Out
	engine, err := NewEngine(ctx, cfg, engineDeps)
	if err != nil {
		return nil, err
	}
	host := nativemsg.NewHost(
		nativemsg.NewReader(deps.In, cfg.Host.MaxMessageBytes),
		engine.writer,
		engine.native,
		engine.Router(),
	)
	return &hostServer{cfg: cfg, engine: engine, host: host}, nil
}

type hostServer struct {
	cfg    appconfig.Config
	engine *Engine
	host   *nativemsg.Host
	logger pslog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	errCh   chan error
	served  chan struct{}
	started bool
	stopped bool
}

func (s *hostServer) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		pslog.Ctx(ctx).Warn("server start rejected", "reason", "already started")
		return errors.New("server already started")
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.errCh = make(chan error, 1)
	s.served = make(chan struct{})
	s.started = true
	s.logger = pslog.Ctx(s.ctx)
	s.mu.Unlock()

	log := s.logger
	log.Info(
		"server start",
		"store", s.cfg.Store.Kind,
		"indicator", s.cfg.Indicator.Kind,
		"max_message_bytes", s.cfg.Host.MaxMessageBytes,
	)
	served := s.served
	go func() {
		defer close(served)
		err := s.host.Serve(s.ctx)
		if err != nil {
			log.Error("host failed", "err", err)
		}
		s.errCh <- err
	}()
	return nil
}

// Wait returns once the browser closed the stream, the host failed or the
// start context was cancelled.
func (s *hostServer) Wait() error {
	s.mu.Lock()
	ctx := s.ctx
	errCh := s.errCh
	started := s.started
	s.mu.Unlock()
	if !started {
		return errors.New("server not started")
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		if err != nil {
			pslog.Ctx(ctx).Error("server stopped", "err", err)
			return err
		}
		return nil
	}
}

// Stop cancels the host, drains pending refreshes and closes the engine.
func (s *hostServer) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	served := s.served
	started := s.started
	stopped := s.stopped
	s.stopped = true
	log := s.logger
	s.mu.Unlock()
	if !started || stopped {
		return nil
	}
	if log == nil {
		log = pslog.Ctx(context.Background())
	}
	log.Info("server stop requested")
	if cancel != nil {
		cancel()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout := s.cfg.Host.ShutdownTimeoutSeconds; timeout > 0 {
		var done context.CancelFunc
		ctx, done = context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
		defer done()
	}
	// Serve returns after its own refreshes were scheduled.
	select {
	case <-served:
	case <-ctx.Done():
	}
	drainErr := s.engine.Router().Wait(ctx)
	if drainErr != nil {
		log.Warn("server drain timed out", "err", drainErr, "pending", s.engine.Router().Scheduler().Pending())
	}
	if err := s.engine.Close(); err != nil {
		log.Warn("server engine close failed", "err", err)
		return errors.Join(drainErr, err)
	}
	log.Info("server stopped")
	return drainErr
}
