package logx

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"pkt.systems/capturebadge/schema"
	"pkt.systems/pslog"
)

func TestWithTabAddsField(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture)
	ctx := pslog.ContextWithLogger(context.Background(), logger)
	log := WithTab(ctx, 7)
	log.Info("hello")

	entry := capture.firstEntry(t)
	if entry["tab"] != float64(7) {
		t.Fatalf("expected tab field, got %+v", entry)
	}
}

func TestWithTabSkipsDuplicate(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture)
	ctx := ContextWithTabLogger(context.Background(), logger, 3)
	WithTab(ctx, 3).Info("hello")

	line := capture.buf.String()
	if n := bytes.Count([]byte(line), []byte(`"tab"`)); n != 1 {
		t.Fatalf("expected a single tab field, got %d in %s", n, line)
	}
}

func TestWithCallAddsMethod(t *testing.T) {
	capture := &logCapture{}
	logger := newCaptureLogger(capture)
	WithCall(logger, schema.IndicatorCall{Method: schema.MethodSetTitle}).Info("hello")

	entry := capture.firstEntry(t)
	if entry["method"] != "setTitle" {
		t.Fatalf("expected method field, got %+v", entry)
	}
}

func newCaptureLogger(capture *logCapture) pslog.Logger {
	return pslog.NewWithOptions(capture, pslog.Options{
		Mode:          pslog.ModeStructured,
		NoColor:       true,
		MinLevel:      pslog.InfoLevel,
		VerboseFields: true,
	})
}

type logCapture struct {
	buf bytes.Buffer
}

func (c *logCapture) Write(p []byte) (int, error) {
	return c.buf.Write(p)
}

func (c *logCapture) firstEntry(t *testing.T) map[string]any {
	t.Helper()
	data := c.buf.Bytes()
	idx := bytes.IndexByte(data, '\n')
	if idx == -1 {
		idx = len(data)
	}
	line := bytes.TrimSpace(data[:idx])
	entry := map[string]any{}
	if err := json.Unmarshal(line, &entry); err != nil {
		t.Fatalf("parse log entry: %v", err)
	}
	return entry
}
