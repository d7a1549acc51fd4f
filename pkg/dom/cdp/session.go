// Package cdp implements dom.Session against a live browser tab over the
// Chrome DevTools Protocol.
package cdp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BilliamsFluster/stockpilot/pkg/dom"
)

var _ dom.Session = (*Session)(nil)

// Options tunes a session.
type Options struct {
	// PostLoadWait lets async rendering settle after a hard navigation.
	PostLoadWait time.Duration
	// NavigationTimeout bounds a hard page load.
	NavigationTimeout time.Duration
}

// Session owns one browser tab for the lifetime of the automation engine.
type Session struct {
	id     string
	tab    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
	opts   Options
}

// NewSession opens a tab inside the given allocator context.
func NewSession(allocCtx context.Context, logger *zap.Logger, opts Options) *Session {
	if opts.PostLoadWait <= 0 {
		opts.PostLoadWait = 500 * time.Millisecond
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}

	id := uuid.New().String()
	tab, cancel := chromedp.NewContext(allocCtx)
	return &Session{
		id:     id,
		tab:    tab,
		cancel: cancel,
		logger: logger.Named("session").With(zap.String("session_id", id[:8])),
		opts:   opts,
	}
}

// Tab exposes the underlying chromedp context for wiring (bridge, run loop).
func (s *Session) Tab() context.Context { return s.tab }

// Close tears the tab down and waits briefly for it to go away.
func (s *Session) Close(ctx context.Context) error {
	s.cancel()
	waitCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	select {
	case <-s.tab.Done():
	case <-waitCtx.Done():
		s.logger.Warn("tab did not close before deadline", zap.Error(waitCtx.Err()))
	}
	return nil
}

// eval runs a script in the page and unmarshals its JSON result into out
// (out may be nil).
func (s *Session) eval(ctx context.Context, script string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.tab, chromedp.Evaluate(script, out))
}

// evalAwait is eval for scripts that return a promise.
func (s *Session) evalAwait(ctx context.Context, script string, out interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return chromedp.Run(s.tab, chromedp.Evaluate(script, out,
		func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
}

// requireMatch runs a boolean element script, translating "no match" into the
// step taxonomy.
func (s *Session) requireMatch(ctx context.Context, script string) error {
	var ok bool
	if err := s.eval(ctx, script, &ok); err != nil {
		return err
	}
	if !ok {
		return dom.ErrSelectorNotFound
	}
	return nil
}

func (s *Session) ResolveNow(ctx context.Context, selector string) (bool, error) {
	if selector == "" {
		return false, nil
	}
	var ok bool
	if err := s.eval(ctx, resolveScript(selector), &ok); err != nil {
		return false, err
	}
	return ok, nil
}

func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = dom.DefaultWaitTimeout
	}

	// Fast path: no observer armed when the element already exists.
	present, err := s.ResolveNow(ctx, selector)
	if err != nil {
		return err
	}
	if present {
		return nil
	}

	// Guard the CDP round trip a little past the in-page timer.
	waitCtx, cancel := context.WithTimeout(ctx, timeout+2*time.Second)
	defer cancel()

	err = s.evalAwait(waitCtx, waitForScript(selector, timeout.Milliseconds()), nil)
	if err != nil {
		if strings.Contains(err.Error(), waitTimeoutMessage) || waitCtx.Err() != nil {
			return dom.ErrWaitTimeout
		}
		return err
	}
	return nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.requireMatch(ctx, clickScript(selector))
}

func (s *Session) Fill(ctx context.Context, selector, value string, submit bool) error {
	return s.requireMatch(ctx, fillScript(selector, value, submit))
}

func (s *Session) Type(ctx context.Context, selector, text string) error {
	return s.requireMatch(ctx, typeScript(selector, text))
}

func (s *Session) Press(ctx context.Context, selector, keys string) error {
	return s.requireMatch(ctx, pressScript(selector, keys))
}

func (s *Session) SetStyle(ctx context.Context, selector string, style map[string]string) error {
	kebabed := make(map[string]string, len(style))
	for k, v := range style {
		kebabed[dom.KebabCase(k)] = v
	}
	return s.requireMatch(ctx, setStyleScript(selector, kebabed))
}

func (s *Session) SetText(ctx context.Context, selector, text string) error {
	return s.requireMatch(ctx, setTextScript(selector, text))
}

func (s *Session) Select(ctx context.Context, selector, value string) error {
	return s.requireMatch(ctx, selectScript(selector, value))
}

func (s *Session) Scroll(ctx context.Context, selector, to string, y float64) error {
	// The resolver inside the script always finds some scroller.
	return s.eval(ctx, scrollScript(selector, to, y), nil)
}

func (s *Session) ScrollIntoView(ctx context.Context, selector string) error {
	return s.requireMatch(ctx, scrollIntoViewScript(selector))
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var href string
	if err := s.eval(ctx, "location.href", &href); err != nil {
		return "", err
	}
	return href, nil
}

func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Debug("hard navigation", zap.String("url", url))

	navCtx, cancel := context.WithTimeout(s.tab, s.opts.NavigationTimeout)
	defer cancel()
	return chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(s.opts.PostLoadWait),
	)
}

type linkResult struct {
	Href     string `json:"href"`
	Selector string `json:"selector"`
}

func (s *Session) EnclosingLink(ctx context.Context, selector string) (dom.Link, error) {
	var res linkResult
	if err := s.eval(ctx, enclosingLinkScript(selector, s.mark()), &res); err != nil {
		return dom.Link{}, err
	}
	return dom.Link{Href: res.Href, Selector: res.Selector}, nil
}

func (s *Session) FindLink(ctx context.Context, ref string) (dom.Link, error) {
	var res linkResult
	if err := s.eval(ctx, findLinkScript(ref, s.mark()), &res); err != nil {
		return dom.Link{}, err
	}
	return dom.Link{Href: res.Href, Selector: res.Selector}, nil
}

func (s *Session) mark() string {
	return fmt.Sprintf("pilot-%d", time.Now().UnixNano())
}
