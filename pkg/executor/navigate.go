package executor

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/BilliamsFluster/stockpilot/pkg/dom"
	"github.com/BilliamsFluster/stockpilot/pkg/plan"
)

// navigate resolves a destination and routes to it through a layered
// fallback: the hosting application's soft navigation, then a real
// activation of the resolved link, then an unconditional hard load. The
// first success wins.
func (e *Executor) navigate(ctx context.Context, a plan.Action) error {
	loc, err := e.session.Location(ctx)
	if err != nil {
		return err
	}
	base, err := url.Parse(loc)
	if err != nil {
		return dom.ErrNoNavTarget
	}

	link, ref := e.resolveNavTarget(ctx, a)
	if ref == "" {
		return dom.ErrNoNavTarget
	}
	target := normalizeRef(ref, base)
	if target == nil {
		return dom.ErrNoNavTarget
	}

	// (a) soft navigation through the host's router.
	if e.softNav != nil {
		if current := normalizeRef(loc, base); current != nil && samePage(current, target) {
			return nil
		}
		done, err := e.softNav(ctx, pageKey(target))
		if err != nil {
			e.logger.Debug("soft navigation declined", zap.Error(err))
		} else if done {
			return nil
		}
	}

	// (b) activate the real link element, then verify the document moved.
	if link.Selector != "" {
		if err := e.session.Click(ctx, link.Selector); err == nil {
			if sleepCtx(ctx, e.navProbeDelay) == nil {
				if after, err := e.session.Location(ctx); err == nil {
					if cur := normalizeRef(after, base); cur != nil && samePage(cur, target) {
						return nil
					}
				}
			}
		}
	}

	// (c) hard page load, unconditional.
	return e.session.Navigate(ctx, target.String())
}

// resolveNavTarget applies the destination precedence: enclosing link of the
// selector, then an explicit path, then a link matched by reference or
// visible text.
func (e *Executor) resolveNavTarget(ctx context.Context, a plan.Action) (dom.Link, string) {
	if a.Selector != "" {
		if link, err := e.session.EnclosingLink(ctx, a.Selector); err == nil && link.Href != "" {
			return link, link.Href
		}
	}
	if a.To == "" {
		return dom.Link{}, ""
	}
	if strings.HasPrefix(a.To, "/") || strings.Contains(a.To, "://") {
		return dom.Link{}, a.To
	}
	if link, err := e.session.FindLink(ctx, a.To); err == nil && link.Href != "" {
		return link, link.Href
	}
	return dom.Link{}, ""
}

// normalizeRef resolves a reference against the current origin and collapses
// path noise so equivalent references compare equal. A nil result means the
// reference is unusable.
func normalizeRef(ref string, base *url.URL) *url.URL {
	u, err := base.Parse(ref)
	if err != nil {
		return nil
	}
	u.Path = normalizePath(u.Path)
	return u
}

func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 1 {
		p = strings.TrimSuffix(p, "/")
	}
	return p
}

// pageKey is the comparable identity of a destination: path plus query plus
// fragment, never the raw string.
func pageKey(u *url.URL) string {
	key := u.Path
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}
	if u.Fragment != "" {
		key += "#" + u.Fragment
	}
	return key
}

func samePage(a, b *url.URL) bool {
	return pageKey(a) == pageKey(b)
}

// resolveAgainst turns a possibly-relative href into an absolute URL string.
func resolveAgainst(href, location string) (string, error) {
	base, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	u := normalizeRef(href, base)
	if u == nil {
		return "", dom.ErrNoNavTarget
	}
	return u.String(), nil
}

// sameDocument reports whether target already names the current location.
func sameDocument(target, location string) bool {
	t, err := url.Parse(target)
	if err != nil {
		return false
	}
	l, err := url.Parse(location)
	if err != nil {
		return false
	}
	t.Path = normalizePath(t.Path)
	l.Path = normalizePath(l.Path)
	return samePage(t, l)
}
