package capturebadge

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"pkt.systems/capturebadge/core"
	"pkt.systems/capturebadge/internal/appconfig"
	"pkt.systems/capturebadge/internal/eventbus"
	"pkt.systems/capturebadge/internal/nativemsg"
	"pkt.systems/capturebadge/schema"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.buf.Bytes()...)
}

func testConfig(t *testing.T) appconfig.Config {
	t.Helper()
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.StateDir = t.TempDir()
	cfg.Store.Dir = ""
	cfg.Messages.Locale = "en"
	return cfg
}

func frames(t *testing.T, msgs ...string) io.Reader {
	t.Helper()
	var buf bytes.Buffer
	w := nativemsg.NewWriter(&buf)
	for _, msg := range msgs {
		if err := w.WriteFrame([]byte(msg)); err != nil {
			t.Fatalf("frame: %v", err)
		}
	}
	return &buf
}

func decodeFrames(t *testing.T, data []byte) []nativemsg.Outbound {
	t.Helper()
	r := nativemsg.NewReader(bytes.NewReader(data), 0)
	var out []nativemsg.Outbound
	for {
		body, err := r.ReadFrame()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("read frame: %v", err)
		}
		var msg nativemsg.Outbound
		if err := json.Unmarshal(body, &msg); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		out = append(out, msg)
	}
}

func TestServerRunsUntilStreamCloses(t *testing.T) {
	cfg := testConfig(t)
	out := &syncBuffer{}
	sink := &countingSink{}
	in := frames(t,
		`{"type":"hello","methods":["setBadgeText","setTitle"]}`,
		`{"type":"lifecycle","event":{"tabId":5,"kind":"end"}}`,
	)
	srv, err := New(context.Background(), cfg, ServerDeps{In: in, Out: out, Engine: EngineDeps{EventSink: sink}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := srv.Start(ctx); err == nil {
		t.Fatalf("expected second start to fail")
	}
	if err := srv.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	var calls []nativemsg.Outbound
	for _, msg := range decodeFrames(t, out.Bytes()) {
		if msg.Type == nativemsg.TypeCall {
			calls = append(calls, msg)
		}
	}
	if len(calls) != 2 {
		t.Fatalf("expected text and title calls, got %+v", calls)
	}
	if calls[0].Method != schema.MethodSetBadgeText || calls[0].Args["text"] != "OK" {
		t.Fatalf("unexpected call %+v", calls[0])
	}
	if got := sink.count(); got != 2 {
		t.Fatalf("expected external sink to see 2 events, got %d", got)
	}
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestServerWaitRequiresStart(t *testing.T) {
	srv, err := New(context.Background(), testConfig(t), ServerDeps{In: frames(t), Out: &syncBuffer{}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := srv.Wait(); err == nil {
		t.Fatalf("expected wait before start to fail")
	}
	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("stop before start: %v", err)
	}
}

func TestServerRequiresStreams(t *testing.T) {
	if _, err := New(context.Background(), testConfig(t), ServerDeps{}); err == nil {
		t.Fatalf("expected stream error")
	}
}

func TestNewEngineFileStoreAndBus(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Kind = appconfig.StoreFile
	cfg.Indicator.Kind = appconfig.IndicatorLog
	engine, err := NewEngine(context.Background(), cfg, EngineDeps{})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	defer engine.Close()
	events, cancel := engine.Bus().Subscribe(eventbus.AllTabs)
	defer cancel()

	ctx := context.Background()
	done, err := engine.Router().OnLifecycle(ctx, schema.LifecycleEvent{TabID: 2, Kind: schema.EventInitialize, Step: 1})
	if err != nil {
		t.Fatalf("lifecycle: %v", err)
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("refresh did not finish")
	}
	tabs, err := engine.Store().Tabs(ctx)
	if err != nil || len(tabs) != 1 || tabs[0] != 2 {
		t.Fatalf("expected persisted tab 2, got %v %v", tabs, err)
	}
	if got := len(events); got != len(schema.Properties) {
		t.Fatalf("expected %d bus events, got %d", len(schema.Properties), got)
	}
}

func TestNewEngineRejectsUnknownKinds(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.Kind = "redis"
	if _, err := NewEngine(context.Background(), cfg, EngineDeps{}); err == nil {
		t.Fatalf("expected store kind error")
	}
	cfg = testConfig(t)
	cfg.Indicator.Kind = "dbus"
	if _, err := NewEngine(context.Background(), cfg, EngineDeps{}); err == nil {
		t.Fatalf("expected indicator kind error")
	}
	cfg = testConfig(t)
	if _, err := NewEngine(context.Background(), cfg, EngineDeps{}); err == nil {
		t.Fatalf("expected nativemsg indicator to require output")
	}
	if _, err := NewEngine(context.Background(), cfg, EngineDeps{Indicator: core.NewLogIndicator(nil)}); err != nil {
		t.Fatalf("expected injected indicator to satisfy engine: %v", err)
	}
}

type countingSink struct {
	mu sync.Mutex
	n  int
}

func (c *countingSink) OnApplied(schema.AppliedEvent) {
	c.mu.Lock()
	c.n++
	c.mu.Unlock()
}

func (c *countingSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
