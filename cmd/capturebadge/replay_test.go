package main

import (
	"bufio"
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	json "github.com/goccy/go-json"

	"pkt.systems/capturebadge/internal/appconfig"
	"pkt.systems/capturebadge/schema"
)

func replayConfig(t *testing.T) appconfig.Config {
	t.Helper()
	cfg, err := appconfig.DefaultConfig()
	if err != nil {
		t.Fatalf("default config: %v", err)
	}
	cfg.StateDir = t.TempDir()
	cfg.Messages.Locale = "en"
	cfg.Indicator.Kind = appconfig.IndicatorLog
	return cfg
}

func runScenario(t *testing.T, cfg appconfig.Config, input string) []appliedLine {
	t.Helper()
	var out bytes.Buffer
	if err := runReplay(context.Background(), cfg, strings.NewReader(input), &out); err != nil {
		t.Fatalf("replay: %v", err)
	}
	var lines []appliedLine
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var line appliedLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			t.Fatalf("decode %q: %v", scanner.Text(), err)
		}
		lines = append(lines, line)
	}
	return lines
}

func titles(lines []appliedLine, tabID schema.TabID) []string {
	var out []string
	for _, line := range lines {
		if line.Type == "applied" && line.TabID == tabID && line.Method == schema.MethodSetTitle {
			out = append(out, line.Value.(string))
		}
	}
	return out
}

func TestReplayCaptureScenario(t *testing.T) {
	input := `
# one capture on tab 9
{"type":"lifecycle","event":{"tabId":9,"kind":"initialize","step":1}}
{"type":"lifecycle","event":{"tabId":9,"kind":"initialize","step":2}}
{"type":"lifecycle","event":{"tabId":9,"kind":"progress","index":5,"maxIndex":20}}
{"type":"lifecycle","event":{"tabId":9,"kind":"end"}}
`
	lines := runScenario(t, replayConfig(t), input)
	got := titles(lines, 9)
	want := []string{"Initializing (1/2)", "Initializing (2/2)", "Save progress: 25%", "Save page"}
	if len(got) != len(want) {
		t.Fatalf("expected titles %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("title %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	var texts []string
	for _, line := range lines {
		if line.Method == schema.MethodSetBadgeText {
			texts = append(texts, line.Value.(string))
		}
	}
	if len(texts) == 0 || texts[len(texts)-1] != "OK" {
		t.Fatalf("expected final OK badge, got %v", texts)
	}
}

func TestReplayWithFileStore(t *testing.T) {
	cfg := replayConfig(t)
	cfg.Store.Kind = appconfig.StoreFile
	cfg.Store.Dir = filepath.Join(cfg.StateDir, "tabs")
	input := `{"type":"auto_save","tabId":4,"enabled":true}
{"type":"lifecycle","event":{"tabId":4,"kind":"progress","index":1,"maxIndex":2,"options":{"autoSave":true}}}
`
	lines := runScenario(t, cfg, input)
	got := titles(lines, 4)
	if len(got) != 1 || got[0] != "Auto-save active" {
		t.Fatalf("expected a single auto-save title, got %v", got)
	}
	if matches, _ := filepath.Glob(filepath.Join(cfg.Store.Dir, "tab-4.json")); len(matches) != 1 {
		t.Fatalf("expected tab record on disk")
	}
}
