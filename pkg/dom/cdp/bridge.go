package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/BilliamsFluster/stockpilot/pkg/plan"
)

// Page-side contract. ExecBinding is the console-accessible executor hook
// this process exposes; the nav hooks are registered by the hosting
// application's router and preferred over a hard reload.
const (
	ExecBinding    = "__pilotExecute"
	pushNavHook    = "__pilotNavigate"
	replaceNavHook = "__pilotReplaceNavigate"
)

// PlanRunner is the slice of the executor the bridge needs.
type PlanRunner interface {
	Execute(ctx context.Context, raw []plan.Action) plan.Ledger
}

// Bridge is the explicitly owned registration point between the engine and
// the page. Attach installs the executor binding; Detach removes it. There
// are no ambient globals beyond what Attach installs.
type Bridge struct {
	session *Session
	logger  *zap.Logger

	mu       sync.Mutex
	attached bool
}

func NewBridge(session *Session, logger *zap.Logger) *Bridge {
	return &Bridge{
		session: session,
		logger:  logger.Named("bridge"),
	}
}

// Attach exposes the executor to the page so a plan can be run from the
// console: window.__pilotExecute('[{"op":"click",...}]').
func (b *Bridge) Attach(runner PlanRunner) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.attached {
		return fmt.Errorf("bridge already attached")
	}

	fn := func(args string) (string, error) {
		actions, err := plan.Decode([]byte(args))
		if err != nil {
			return "", err
		}
		ledger := runner.Execute(b.session.Tab(), actions)
		out, err := json.Marshal(ledger)
		if err != nil {
			return "", err
		}
		return string(out), nil
	}

	if err := chromedp.Run(b.session.Tab(), chromedp.Expose(ExecBinding, fn)); err != nil {
		return fmt.Errorf("expose executor binding: %w", err)
	}
	b.attached = true
	b.logger.Info("executor binding attached", zap.String("binding", ExecBinding))
	return nil
}

// Detach removes the executor binding.
func (b *Bridge) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.attached {
		return nil
	}
	b.attached = false

	return chromedp.Run(b.session.Tab(), chromedp.ActionFunc(func(ctx context.Context) error {
		return runtime.RemoveBinding(ExecBinding).Do(ctx)
	}))
}

// SoftNavigate asks the hosting application's router to handle the path
// in-app. done=true means the step is complete: either the router navigated
// or the destination already matches the current location.
func (b *Bridge) SoftNavigate(ctx context.Context, path string) (bool, error) {
	var verdict string
	if err := b.session.eval(ctx, softNavScript(pushNavHook, path), &verdict); err != nil {
		return false, err
	}
	switch {
	case verdict == "done" || verdict == "current":
		return true, nil
	case verdict == "none":
		return false, nil
	case strings.HasPrefix(verdict, "error"):
		return false, fmt.Errorf("soft navigation hook failed: %s", verdict)
	default:
		return false, nil
	}
}

// SoftReplace is SoftNavigate through the history-replacing hook.
func (b *Bridge) SoftReplace(ctx context.Context, path string) (bool, error) {
	var verdict string
	if err := b.session.eval(ctx, softNavScript(replaceNavHook, path), &verdict); err != nil {
		return false, err
	}
	return verdict == "done" || verdict == "current", nil
}
