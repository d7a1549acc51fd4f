// Package executor runs sanitized action plans against a live document with
// per-step failure containment: a failing step is recorded in the ledger and
// never prevents later steps from running.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/BilliamsFluster/stockpilot/pkg/dom"
	"github.com/BilliamsFluster/stockpilot/pkg/plan"
)

// ErrUnsupportedOp reports an op tag the dispatcher does not know.
var ErrUnsupportedOp = errors.New("unsupported op")

// SoftNav attempts an in-app route change. done=true means the step is
// complete, including the case where the destination already matches the
// current location.
type SoftNav func(ctx context.Context, path string) (done bool, err error)

// Executor dispatches each action of a plan to its handler, strictly in
// order, awaiting each step before starting the next.
type Executor struct {
	session dom.Session
	softNav SoftNav
	logger  *zap.Logger

	waitTimeout   time.Duration
	navProbeDelay time.Duration
}

// Option tunes an Executor.
type Option func(*Executor)

// WithSoftNav registers the hosting application's in-app routing capability.
func WithSoftNav(fn SoftNav) Option {
	return func(e *Executor) { e.softNav = fn }
}

// WithWaitTimeout overrides the default wait_for budget.
func WithWaitTimeout(d time.Duration) Option {
	return func(e *Executor) { e.waitTimeout = d }
}

// WithNavProbeDelay overrides how long the click compensation waits before
// checking whether a link click actually moved the document.
func WithNavProbeDelay(d time.Duration) Option {
	return func(e *Executor) { e.navProbeDelay = d }
}

func New(session dom.Session, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		session:       session,
		logger:        logger.Named("executor"),
		waitTimeout:   dom.DefaultWaitTimeout,
		navProbeDelay: 400 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute sanitizes the raw plan once, then runs it step by step. It never
// returns an error: every outcome lands in the ledger, whose length always
// equals the sanitized plan's length.
func (e *Executor) Execute(ctx context.Context, raw []plan.Action) plan.Ledger {
	actions := plan.Sanitize(raw)
	ledger := make(plan.Ledger, 0, len(actions))

	for i, action := range actions {
		err := e.step(ctx, action)
		res := plan.StepResult{Op: action.Op, OK: err == nil}
		if err != nil {
			res.Error = err.Error()
			e.logger.Warn("step failed",
				zap.Int("step", i),
				zap.String("op", string(action.Op)),
				zap.Error(err))
		}
		ledger = append(ledger, res)
	}

	e.logger.Info("plan executed",
		zap.Int("raw_steps", len(raw)),
		zap.Int("steps", len(actions)),
		zap.Int("failures", ledger.Failures()))
	return ledger
}

// step dispatches one action. A panicking handler is contained here so the
// rest of the plan still runs.
func (e *Executor) step(ctx context.Context, a plan.Action) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	switch a.Op {
	case plan.OpWaitFor:
		return e.waitFor(ctx, a)
	case plan.OpClick:
		return e.click(ctx, a.Selector)
	case plan.OpNavigate:
		return e.navigate(ctx, a)
	case plan.OpFill:
		return e.session.Fill(ctx, a.Selector, a.Value, a.Submit)
	case plan.OpType:
		return e.session.Type(ctx, a.Selector, a.Text)
	case plan.OpPress:
		return e.session.Press(ctx, a.Selector, a.Keys)
	case plan.OpSetStyle:
		return e.session.SetStyle(ctx, a.Selector, a.Style)
	case plan.OpSetText:
		return e.session.SetText(ctx, a.Selector, a.Text)
	case plan.OpSelect:
		return e.session.Select(ctx, a.Selector, a.Value)
	case plan.OpScroll:
		return e.session.Scroll(ctx, a.Selector, a.To, a.Y)
	case plan.OpScrollIntoView:
		return e.session.ScrollIntoView(ctx, a.Selector)
	default:
		return ErrUnsupportedOp
	}
}

func (e *Executor) waitFor(ctx context.Context, a plan.Action) error {
	timeout := e.waitTimeout
	if a.TimeoutMs > 0 {
		timeout = time.Duration(a.TimeoutMs) * time.Millisecond
	}
	return e.session.WaitFor(ctx, a.Selector, timeout)
}

// click dispatches the gesture and, when the target sits inside a link,
// verifies shortly afterwards that the location moved. Frameworks drop
// click handlers on events they do not consider trusted gestures; the
// compensation forces a hard navigation in that case.
func (e *Executor) click(ctx context.Context, selector string) error {
	if err := e.session.Click(ctx, selector); err != nil {
		return err
	}

	link, err := e.session.EnclosingLink(ctx, selector)
	if err != nil || link.Href == "" {
		return nil
	}

	before, err := e.session.Location(ctx)
	if err != nil {
		return nil
	}
	if err := sleepCtx(ctx, e.navProbeDelay); err != nil {
		return nil
	}
	after, err := e.session.Location(ctx)
	if err != nil || after != before {
		return nil
	}

	target, err := resolveAgainst(link.Href, before)
	if err != nil || sameDocument(target, before) {
		return nil
	}
	if err := e.session.Navigate(ctx, target); err != nil {
		e.logger.Warn("click compensation navigation failed", zap.Error(err))
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
