package executor

import (
	"context"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BilliamsFluster/stockpilot/pkg/dom"
	"github.com/BilliamsFluster/stockpilot/pkg/plan"
)

func TestNavigateAlreadyCurrentShortCircuits(t *testing.T) {
	f := newFakeSession()
	f.location = "https://app.local/portfolio"

	var softCalls int
	e := newExecutor(f, WithSoftNav(func(_ context.Context, _ string) (bool, error) {
		softCalls++
		return true, nil
	}))

	ledger := e.Execute(context.Background(), []plan.Action{
		{Op: plan.OpNavigate, To: "/portfolio"},
	})

	require.True(t, ledger[0].OK)
	assert.Zero(t, softCalls)
	assert.Empty(t, f.navs)
}

func TestNavigateSoftNavWins(t *testing.T) {
	f := newFakeSession()
	var gotPath string
	e := newExecutor(f, WithSoftNav(func(_ context.Context, path string) (bool, error) {
		gotPath = path
		return true, nil
	}))

	ledger := e.Execute(context.Background(), []plan.Action{
		{Op: plan.OpNavigate, To: "/watchlist?tab=tech"},
	})

	require.True(t, ledger[0].OK)
	assert.Equal(t, "/watchlist?tab=tech", gotPath)
	assert.Empty(t, f.navs, "soft navigation must suppress the hard load")
}

func TestNavigateFallsBackToLinkActivation(t *testing.T) {
	f := newFakeSession()
	f.found = dom.Link{Href: "/orders", Selector: "[data-pilot-nav=m1]"}
	f.onClick = func(selector string) error {
		if selector == "[data-pilot-nav=m1]" {
			f.location = "https://app.local/orders"
		}
		return nil
	}
	e := newExecutor(f, WithSoftNav(func(_ context.Context, _ string) (bool, error) {
		return false, nil
	}))

	ledger := e.Execute(context.Background(), []plan.Action{
		{Op: plan.OpNavigate, To: "Orders"},
	})

	require.True(t, ledger[0].OK)
	assert.Contains(t, f.calls, "click")
	assert.Empty(t, f.navs, "a successful link activation must suppress the hard load")
}

func TestNavigateHardLoadIsLastResort(t *testing.T) {
	f := newFakeSession()
	f.found = dom.Link{Href: "/orders", Selector: "[data-pilot-nav=m1]"}
	// Clicking the link does nothing, so the location never moves.
	e := newExecutor(f, WithSoftNav(func(_ context.Context, _ string) (bool, error) {
		return false, nil
	}))

	ledger := e.Execute(context.Background(), []plan.Action{
		{Op: plan.OpNavigate, To: "Orders"},
	})

	require.True(t, ledger[0].OK)
	require.Len(t, f.navs, 1)
	assert.Equal(t, "https://app.local/orders", f.navs[0])
}

func TestNavigateNoSoftNavGoesStraightToLink(t *testing.T) {
	f := newFakeSession()
	e := newExecutor(f)

	ledger := e.Execute(context.Background(), []plan.Action{
		{Op: plan.OpNavigate, To: "/settings"},
	})

	require.True(t, ledger[0].OK)
	require.Len(t, f.navs, 1)
	assert.Equal(t, "https://app.local/settings", f.navs[0])
}

func TestNavigatePrefersSelectorLink(t *testing.T) {
	f := newFakeSession()
	f.enclosing = dom.Link{Href: "/alerts", Selector: "[data-pilot-nav=m2]"}
	f.onClick = func(selector string) error {
		f.location = "https://app.local/alerts"
		return nil
	}
	e := newExecutor(f)

	ledger := e.Execute(context.Background(), []plan.Action{
		{Op: plan.OpNavigate, Selector: "#alerts-item", To: "/somewhere-else"},
	})

	require.True(t, ledger[0].OK)
	assert.Empty(t, f.navs)
}

func TestNavigateNoTarget(t *testing.T) {
	f := newFakeSession()
	e := newExecutor(f)

	ledger := e.Execute(context.Background(), []plan.Action{
		{Op: plan.OpNavigate},
	})

	require.False(t, ledger[0].OK)
	assert.Equal(t, "no target to navigate", ledger[0].Error)
}

func TestNavigateUnmatchedTextIsNoTarget(t *testing.T) {
	f := newFakeSession()
	e := newExecutor(f)

	ledger := e.Execute(context.Background(), []plan.Action{
		{Op: plan.OpNavigate, To: "Nonexistent Page"},
	})

	require.False(t, ledger[0].OK)
	assert.Equal(t, "no target to navigate", ledger[0].Error)
	assert.Empty(t, f.navs)
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                 "/",
		"/":                "/",
		"/dashboard/":      "/dashboard",
		"//portfolio//x":   "/portfolio/x",
		"/orders":          "/orders",
		"/a///b/":          "/a/b",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizePath(in), "normalizePath(%q)", in)
	}
}

func TestPageKey(t *testing.T) {
	u, err := url.Parse("https://app.local/watchlist?tab=tech#row-3")
	require.NoError(t, err)
	assert.Equal(t, "/watchlist?tab=tech#row-3", pageKey(u))

	u2, err := url.Parse("https://app.local/")
	require.NoError(t, err)
	assert.Equal(t, "/", pageKey(u2))
}

func TestSamePageIgnoresTrailingSlashAndHost(t *testing.T) {
	base, err := url.Parse("https://app.local/dashboard")
	require.NoError(t, err)

	a := normalizeRef("/portfolio/", base)
	b := normalizeRef("https://app.local/portfolio", base)
	require.NotNil(t, a)
	require.NotNil(t, b)
	assert.True(t, samePage(a, b))

	c := normalizeRef("/portfolio?view=all", base)
	require.NotNil(t, c)
	assert.False(t, samePage(a, c))
}
