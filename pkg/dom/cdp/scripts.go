package cdp

import (
	"encoding/json"
	"fmt"
)

// jsString embeds a Go string into a script as a JSON literal, so hostile
// selector/value content cannot escape into the page's scripting context.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func resolveScript(selector string) string {
	return fmt.Sprintf(`(() => {
	try { return document.querySelector(%s) !== null; } catch (_) { return false; }
})()`, jsString(selector))
}

// waitTimeoutMessage is the rejection marker the session maps back to
// dom.ErrWaitTimeout.
const waitTimeoutMessage = "__pilot_wait_timeout__"

// waitForScript arms exactly one MutationObserver and one timer; both are
// disposed whichever way the promise settles.
func waitForScript(selector string, timeoutMs int64) string {
	return fmt.Sprintf(`new Promise((resolve, reject) => {
	const sel = %s;
	const find = () => { try { return document.querySelector(sel) !== null; } catch (_) { return false; } };
	if (find()) { resolve(true); return; }
	let timer = 0;
	const obs = new MutationObserver(() => {
		if (!find()) return;
		obs.disconnect();
		clearTimeout(timer);
		resolve(true);
	});
	timer = setTimeout(() => {
		obs.disconnect();
		reject(new Error(%s));
	}, %d);
	obs.observe(document.documentElement, { childList: true, subtree: true, attributes: true });
})`, jsString(selector), jsString(waitTimeoutMessage), timeoutMs)
}

// clickScript dispatches the full gesture sequence. Many dashboard widgets
// ignore a bare synthetic click.
func clickScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const opts = { bubbles: true, cancelable: true, view: window };
	el.dispatchEvent(new PointerEvent('pointerdown', opts));
	el.dispatchEvent(new MouseEvent('mousedown', opts));
	if (typeof el.focus === 'function') el.focus();
	el.dispatchEvent(new MouseEvent('mouseup', opts));
	el.dispatchEvent(new MouseEvent('click', opts));
	return true;
})()`, jsString(selector))
}

func fillScript(selector, value string, submit bool) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	if (typeof el.focus === 'function') el.focus();
	el.value = %s;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	el.dispatchEvent(new Event('change', { bubbles: true }));
	if (%t && el.form) {
		if (typeof el.form.requestSubmit === 'function') el.form.requestSubmit();
		else el.form.submit();
	}
	return true;
})()`, jsString(selector), jsString(value), submit)
}

func typeScript(selector, text string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.value = (el.value || '') + %s;
	el.dispatchEvent(new Event('input', { bubbles: true }));
	return true;
})()`, jsString(selector), jsString(text))
}

func pressScript(selector, keys string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const opts = { key: %s, bubbles: true, cancelable: true };
	el.dispatchEvent(new KeyboardEvent('keydown', opts));
	el.dispatchEvent(new KeyboardEvent('keyup', opts));
	return true;
})()`, jsString(selector), jsString(keys))
}

// setStyleScript applies properties one at a time; a property the runtime
// rejects is skipped, never fatal.
func setStyleScript(selector string, style map[string]string) string {
	pairs, _ := json.Marshal(style)
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	const style = %s;
	for (const prop of Object.keys(style)) {
		try { el.style.setProperty(prop, style[prop]); } catch (_) {}
	}
	return true;
})()`, jsString(selector), string(pairs))
}

func setTextScript(selector, text string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.textContent = %s;
	return true;
})()`, jsString(selector), jsString(text))
}

func selectScript(selector, value string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.value = %s;
	el.dispatchEvent(new Event('change', { bubbles: true }));
	return true;
})()`, jsString(selector), jsString(value))
}

// shellContainers are conventional app-shell scrollers tried when no ancestor
// of the start node scrolls.
var shellContainers = []string{
	"main", "#root", "#app", ".app-shell", ".dashboard-content", ".page-content",
}

// scrollScript resolves the nearest meaningfully scrollable ancestor of the
// start node (or the focused element), falling back to the shell containers
// and finally the page's default scroller. It never throws.
func scrollScript(selector, to string, y float64) string {
	shells, _ := json.Marshal(shellContainers)
	return fmt.Sprintf(`(() => {
	const sel = %s, to = %s, y = %v, shells = %s;
	const overflows = (n) => !!n && n.scrollHeight > n.clientHeight;
	const scrollable = (n) => {
		if (!(n instanceof Element)) return false;
		const o = getComputedStyle(n).overflowY;
		return (o === 'auto' || o === 'scroll') && overflows(n);
	};
	let start = null;
	try { start = sel ? document.querySelector(sel) : document.activeElement; } catch (_) {}
	let target = null;
	for (let n = start; n; n = n.parentElement) {
		if (scrollable(n)) { target = n; break; }
	}
	if (!target) {
		for (const s of shells) {
			let el = null;
			try { el = document.querySelector(s); } catch (_) {}
			if (el && overflows(el)) { target = el; break; }
		}
	}
	if (!target) target = document.scrollingElement || document.documentElement;
	if (to === 'top') target.scrollTop = 0;
	else if (to === 'bottom') target.scrollTop = target.scrollHeight;
	else {
		const n = Number(to);
		target.scrollTop = isNaN(n) ? y : n;
	}
	return true;
})()`, jsString(selector), jsString(to), y, string(shells))
}

func scrollIntoViewScript(selector string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return false;
	el.scrollIntoView({ block: 'center' });
	return true;
})()`, jsString(selector))
}

// linkMarkAttr tags a matched anchor so it can be activated later by a stable
// selector, the same trick the page cannot race against a re-query.
const linkMarkAttr = "data-pilot-nav"

func enclosingLinkScript(selector, mark string) string {
	return fmt.Sprintf(`(() => {
	const el = document.querySelector(%s);
	if (!el) return { href: '', selector: '' };
	const a = el.closest('a[href]');
	if (!a) return { href: '', selector: '' };
	a.setAttribute(%s, %s);
	return { href: a.getAttribute('href') || '', selector: '[%s=' + JSON.stringify(%s) + ']' };
})()`, jsString(selector), jsString(linkMarkAttr), jsString(mark), linkMarkAttr, jsString(mark))
}

func findLinkScript(ref, mark string) string {
	return fmt.Sprintf(`(() => {
	const ref = %s;
	const want = ref.toLowerCase();
	for (const a of Array.from(document.querySelectorAll('a[href]'))) {
		const href = a.getAttribute('href') || '';
		const text = (a.textContent || '').trim().toLowerCase();
		if (href === ref || a.pathname === ref || (want && text.includes(want))) {
			a.setAttribute(%s, %s);
			return { href: href, selector: '[%s=' + JSON.stringify(%s) + ']' };
		}
	}
	return { href: '', selector: '' };
})()`, jsString(ref), jsString(linkMarkAttr), jsString(mark), linkMarkAttr, jsString(mark))
}

// softNavScript calls the router hook the hosting application registered, if
// any. Return values: "none" (no hook), "current" (already there), "done"
// (handled), anything else is an error message.
func softNavScript(hook, path string) string {
	return fmt.Sprintf(`(() => {
	const fn = window[%s];
	if (typeof fn !== 'function') return 'none';
	try { return String(fn(%s) || 'done'); } catch (e) { return 'error: ' + (e && e.message); }
})()`, jsString(hook), jsString(path))
}
