package plan

import (
	"regexp"
	"strings"
)

const (
	// MaxSteps is the hard cap on plan length. Extra entries are silently
	// dropped, not reported as failures.
	MaxSteps = 15

	// MaxSelectorLen bounds every selector after sanitization.
	MaxSelectorLen = 300

	// StyleFallback replaces obviously-bad style values so a broken plan is
	// visibly detectable on the page instead of silently no-opping.
	StyleFallback = "#ff00ff"
)

// placeholderValue matches the junk values models emit when they have no real
// style value: template tokens, literal null/undefined, and "tbd" markers.
var placeholderValue = regexp.MustCompile(`(?i)^\s*(new_color|tbd|null|undefined|<[^>]*>)\s*$`)

// Sanitize clamps a raw plan into an executable one. It is pure: the input is
// never mutated and the same input always yields the same output.
func Sanitize(raw []Action) []Action {
	n := len(raw)
	if n > MaxSteps {
		n = MaxSteps
	}

	out := make([]Action, n)
	for i := 0; i < n; i++ {
		a := raw[i]
		a.Selector = truncate(a.Selector, MaxSelectorLen)
		if a.Op == OpSetStyle && len(a.Style) > 0 {
			a.Style = sanitizeStyle(a.Style)
		}
		out[i] = a
	}
	return out
}

func sanitizeStyle(style map[string]string) map[string]string {
	clean := make(map[string]string, len(style))
	for k, v := range style {
		if strings.TrimSpace(v) == "" || placeholderValue.MatchString(v) {
			clean[k] = StyleFallback
			continue
		}
		clean[k] = v
	}
	return clean
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
