// Package dom defines the contract between the action executor and a live
// document. The cdp subpackage implements it against a real browser tab; the
// executor's tests implement it in memory.
package dom

import (
	"context"
	"errors"
	"time"
)

// Step failure taxonomy. Handlers return these so the executor can record a
// stable error string per step.
var (
	ErrSelectorNotFound = errors.New("selector not found")
	ErrWaitTimeout      = errors.New("timed out waiting for selector")
	ErrNoNavTarget      = errors.New("no target to navigate")
)

// DefaultWaitTimeout bounds a wait_for step when the plan does not carry its
// own timeout.
const DefaultWaitTimeout = 5 * time.Second

// Link describes the nearest enclosing anchor of a resolved element. Selector
// is a temporary marker the session installs so the link can be activated
// later without re-running the match.
type Link struct {
	Href     string
	Selector string
}

// Session is a live, mutating document the executor drives. Every method that
// takes a selector resolves it first and returns ErrSelectorNotFound when no
// element matches; a syntactically invalid selector counts as no match, never
// as a panic.
type Session interface {
	// ResolveNow reports whether the selector matches right now. It never
	// fails on a malformed selector.
	ResolveNow(ctx context.Context, selector string) (bool, error)

	// WaitFor resolves as soon as the selector matches, arming a single
	// subtree observer plus a single timer when it does not match yet. Both
	// are disposed whichever way the wait settles. ErrWaitTimeout after
	// timeout.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// Click dispatches the full gesture sequence (pointerdown, mousedown,
	// focus, mouseup, click) on the matched element.
	Click(ctx context.Context, selector string) error

	// Fill focuses the element, overwrites its value, fires input and change,
	// and optionally submits the owning form.
	Fill(ctx context.Context, selector, value string, submit bool) error

	// Type appends text to the element's current value and fires input.
	Type(ctx context.Context, selector, text string) error

	// Press fires a keydown/keyup pair with the given key name.
	Press(ctx context.Context, selector, keys string) error

	// SetStyle applies each property via direct style assignment, skipping
	// pairs the runtime rejects rather than failing the step.
	SetStyle(ctx context.Context, selector string, style map[string]string) error

	// SetText overwrites the element's text content.
	SetText(ctx context.Context, selector, text string) error

	// Select sets the control's value and fires change.
	Select(ctx context.Context, selector, value string) error

	// Scroll moves the nearest meaningfully scrollable ancestor of the
	// element (or the default page scroller) to "top", "bottom", or a pixel
	// offset. It never fails on an unresolvable scroll container.
	Scroll(ctx context.Context, selector, to string, y float64) error

	// ScrollIntoView brings the matched element into the viewport.
	ScrollIntoView(ctx context.Context, selector string) error

	// Location returns the document's current absolute URL.
	Location(ctx context.Context) (string, error)

	// Navigate performs a hard page load to the given absolute URL.
	Navigate(ctx context.Context, url string) error

	// EnclosingLink returns the anchor containing the matched element, or a
	// zero Link when the element is not inside one.
	EnclosingLink(ctx context.Context, selector string) (Link, error)

	// FindLink locates an anchor whose reference equals ref or whose visible
	// text contains ref case-insensitively. A zero Link means no match.
	FindLink(ctx context.Context, ref string) (Link, error)
}
