// Package cdpindicator drives the toolbar action of an extension through
// the Chrome DevTools Protocol by evaluating the action API inside the
// extension's background page.
package cdpindicator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	json "github.com/goccy/go-json"

	"pkt.systems/capturebadge/internal/logx"
	"pkt.systems/capturebadge/schema"
	"pkt.systems/pslog"
)

const (
	// DefaultNamespace is the MV2 toolbar action API.
	DefaultNamespace = "chrome.browserAction"
	// DefaultTimeout bounds one evaluation.
	DefaultTimeout = 5 * time.Second
)

var identPath = regexp.MustCompile(`^[A-Za-z_$][\w$]*(\.[A-Za-z_$][\w$]*)*$`)

// Config configures the CDP connection.
type Config struct {
	// URL is the browser DevTools websocket or http endpoint.
	URL         string
	ExtensionID string
	Namespace   string
	Timeout     time.Duration
}

// Indicator implements core.Indicator over CDP.
type Indicator struct {
	cfg         Config
	log         pslog.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc

	mu          sync.Mutex
	targetCtx   context.Context
	cancelFuncs []context.CancelFunc
	supported   map[schema.Method]bool
}

// New validates cfg and prepares a remote allocator. The browser is
// attached lazily on the first call.
func New(ctx context.Context, cfg Config) (*Indicator, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("cdp url is required")
	}
	if strings.TrimSpace(cfg.ExtensionID) == "" {
		return nil, errors.New("cdp extension id is required")
	}
	if cfg.Namespace == "" {
		cfg.Namespace = DefaultNamespace
	}
	if !identPath.MatchString(cfg.Namespace) {
		return nil, fmt.Errorf("invalid cdp namespace %q", cfg.Namespace)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	log := pslog.Ctx(ctx).With("cdp_url", cfg.URL, "extension", cfg.ExtensionID)
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), cfg.URL)
	return &Indicator{
		cfg:         cfg,
		log:         log,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		supported:   make(map[schema.Method]bool),
	}, nil
}

// Close releases the CDP connection.
func (i *Indicator) Close() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.detachLocked()
	i.allocCancel()
}

// Supports evaluates whether the setter exists and caches a definite answer.
func (i *Indicator) Supports(method schema.Method) bool {
	i.mu.Lock()
	supported, ok := i.supported[method]
	i.mu.Unlock()
	if ok {
		return supported
	}
	var exists bool
	err := i.evaluate(context.Background(), fmt.Sprintf("typeof %s.%s === \"function\"", i.cfg.Namespace, method), &exists)
	if err != nil {
		// Let Apply surface the connection failure.
		i.log.Debug("cdp probe failed", "method", string(method), "err", err)
		return true
	}
	i.mu.Lock()
	i.supported[method] = exists
	i.mu.Unlock()
	return exists
}

// Apply invokes the setter for call.
func (i *Indicator) Apply(ctx context.Context, call schema.IndicatorCall) error {
	script, err := CallScript(i.cfg.Namespace, call.Method, map[string]any{
		"tabId":               int(call.TabID),
		string(call.Property): call.Value,
	})
	if err != nil {
		return err
	}
	logx.WithCall(logx.WithTab(ctx, call.TabID), call).Trace("cdp call")
	return i.evaluate(ctx, script, nil)
}

// SetEnabled enables or disables the action for the tab.
func (i *Indicator) SetEnabled(ctx context.Context, tabID schema.TabID, enabled bool) error {
	method := "disable"
	if enabled {
		method = "enable"
	}
	script, err := CallScript(i.cfg.Namespace, schema.Method(method), int(tabID))
	if err != nil {
		return err
	}
	return i.evaluate(ctx, script, nil)
}

// CallScript builds an expression that calls namespace.method(arg) and
// resolves once the browser acknowledged it.
func CallScript(namespace string, method schema.Method, arg any) (string, error) {
	if !identPath.MatchString(namespace) || !identPath.MatchString(string(method)) {
		return "", fmt.Errorf("invalid call target %s.%s", namespace, method)
	}
	encoded, err := json.Marshal(arg)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(`new Promise((resolve, reject) => {
	%s.%s(%s, () => {
		const err = chrome.runtime.lastError;
		if (err) { reject(new Error(err.message)); } else { resolve(true); }
	});
})`, namespace, method, encoded), nil
}

// PickTarget returns the background page of the extension.
func PickTarget(targets []*target.Info, extensionID string) (target.ID, bool) {
	prefix := "chrome-extension://" + extensionID + "/"
	for _, info := range targets {
		if info == nil || info.Type != "background_page" {
			continue
		}
		if strings.HasPrefix(info.URL, prefix) {
			return info.TargetID, true
		}
	}
	return "", false
}

func (i *Indicator) evaluate(ctx context.Context, script string, res any) error {
	targetCtx, err := i.attach()
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithTimeout(targetCtx, i.cfg.Timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err = chromedp.Run(runCtx, chromedp.Evaluate(script, res, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil && targetCtx.Err() != nil {
		i.mu.Lock()
		if i.targetCtx == targetCtx {
			i.detachLocked()
		}
		i.mu.Unlock()
	}
	return err
}

func (i *Indicator) attach() (context.Context, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.targetCtx != nil && i.targetCtx.Err() == nil {
		return i.targetCtx, nil
	}
	i.detachLocked()
	browserCtx, browserCancel := chromedp.NewContext(i.allocCtx)
	targets, err := chromedp.Targets(browserCtx)
	if err != nil {
		browserCancel()
		i.log.Warn("cdp attach failed", "err", err)
		return nil, err
	}
	id, ok := PickTarget(targets, i.cfg.ExtensionID)
	if !ok {
		browserCancel()
		err := fmt.Errorf("extension %s background page not found", i.cfg.ExtensionID)
		i.log.Warn("cdp attach failed", "err", err)
		return nil, err
	}
	targetCtx, targetCancel := chromedp.NewContext(browserCtx, chromedp.WithTargetID(id))
	i.targetCtx = targetCtx
	i.cancelFuncs = []context.CancelFunc{targetCancel, browserCancel}
	i.log.Info("cdp attached", "target", string(id))
	return targetCtx, nil
}

func (i *Indicator) detachLocked() {
	for _, cancel := range i.cancelFuncs {
		cancel()
	}
	i.cancelFuncs = nil
	i.targetCtx = nil
	i.supported = make(map[schema.Method]bool)
}
