package cdpindicator

import (
	"context"
	"strings"
	"testing"

	"github.com/chromedp/cdproto/target"

	"pkt.systems/capturebadge/schema"
)

func TestCallScriptEmbedsArguments(t *testing.T) {
	script, err := CallScript(DefaultNamespace, schema.MethodSetBadgeBackgroundColor, map[string]any{
		"tabId": 3,
		"color": schema.Color{4, 229, 36, 255},
	})
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if !strings.Contains(script, `chrome.browserAction.setBadgeBackgroundColor({"color":[4,229,36,255],"tabId":3}`) {
		t.Fatalf("unexpected script:\n%s", script)
	}
	if !strings.Contains(script, "chrome.runtime.lastError") {
		t.Fatalf("expected lastError check:\n%s", script)
	}
}

func TestCallScriptEscapesStrings(t *testing.T) {
	script, err := CallScript(DefaultNamespace, schema.MethodSetTitle, map[string]any{"title": `"); alert(1); ("`})
	if err != nil {
		t.Fatalf("script: %v", err)
	}
	if strings.Contains(script, `"); alert(1); ("`) {
		t.Fatalf("title was not escaped:\n%s", script)
	}
}

func TestCallScriptRejectsInvalidTarget(t *testing.T) {
	if _, err := CallScript("chrome.browserAction;alert(1)", schema.MethodSetTitle, nil); err == nil {
		t.Fatalf("expected invalid namespace error")
	}
	if _, err := CallScript(DefaultNamespace, schema.Method("set title"), nil); err == nil {
		t.Fatalf("expected invalid method error")
	}
}

func TestPickTarget(t *testing.T) {
	targets := []*target.Info{
		{TargetID: "page", Type: "page", URL: "chrome-extension://abc/popup.html"},
		{TargetID: "other", Type: "background_page", URL: "chrome-extension://xyz/background.html"},
		nil,
		{TargetID: "bg", Type: "background_page", URL: "chrome-extension://abc/background.html"},
	}
	id, ok := PickTarget(targets, "abc")
	if !ok || id != "bg" {
		t.Fatalf("expected bg target, got %q %v", id, ok)
	}
	if _, ok := PickTarget(targets, "missing"); ok {
		t.Fatalf("expected no target")
	}
}

func TestNewValidatesConfig(t *testing.T) {
	ctx := context.Background()
	if _, err := New(ctx, Config{ExtensionID: "abc"}); err == nil {
		t.Fatalf("expected url error")
	}
	if _, err := New(ctx, Config{URL: "ws://127.0.0.1:9222"}); err == nil {
		t.Fatalf("expected extension id error")
	}
	if _, err := New(ctx, Config{URL: "ws://127.0.0.1:9222", ExtensionID: "abc", Namespace: "x;y"}); err == nil {
		t.Fatalf("expected namespace error")
	}
	ind, err := New(ctx, Config{URL: "ws://127.0.0.1:9222", ExtensionID: "abc"})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer ind.Close()
	if ind.cfg.Namespace != DefaultNamespace || ind.cfg.Timeout != DefaultTimeout {
		t.Fatalf("expected defaults, got %+v", ind.cfg)
	}
}
