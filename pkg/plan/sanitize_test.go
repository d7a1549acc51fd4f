package plan

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeCapsPlanLength(t *testing.T) {
	raw := make([]Action, 20)
	for i := range raw {
		raw[i] = Action{Op: OpClick, Selector: fmt.Sprintf("#btn-%d", i)}
	}

	out := Sanitize(raw)
	assert.Len(t, out, MaxSteps)
	// The first MaxSteps entries survive in order.
	assert.Equal(t, "#btn-0", out[0].Selector)
	assert.Equal(t, "#btn-14", out[14].Selector)
}

func TestSanitizeShortPlanKeepsLength(t *testing.T) {
	raw := []Action{
		{Op: OpClick, Selector: "#a"},
		{Op: OpFill, Selector: "#b", Value: "x"},
	}
	assert.Len(t, Sanitize(raw), 2)
	assert.Empty(t, Sanitize(nil))
}

func TestSanitizeTruncatesSelectors(t *testing.T) {
	long := strings.Repeat("div > ", 100) + "span"
	out := Sanitize([]Action{{Op: OpClick, Selector: long}})
	assert.Len(t, out[0].Selector, MaxSelectorLen)
}

func TestSanitizeStylePlaceholders(t *testing.T) {
	cases := map[string]string{
		"":            StyleFallback,
		"  ":          StyleFallback,
		"new_color":   StyleFallback,
		"NEW_COLOR":   StyleFallback,
		"tbd":         StyleFallback,
		"null":        StyleFallback,
		"undefined":   StyleFallback,
		"<color>":     StyleFallback,
		"<HEX_VALUE>": StyleFallback,
		"red":         "red",
		"#336699":    "#336699",
		"12px":        "12px",
	}

	for in, want := range cases {
		out := Sanitize([]Action{{
			Op:    OpSetStyle,
			Selector: "#hdr",
			Style: map[string]string{"background-color": in},
		}})
		assert.Equal(t, want, out[0].Style["background-color"], "input %q", in)
	}
}

func TestSanitizeIsPure(t *testing.T) {
	raw := []Action{{
		Op:       OpSetStyle,
		Selector: strings.Repeat("x", 400),
		Style:    map[string]string{"color": "null"},
	}}

	first := Sanitize(raw)
	second := Sanitize(raw)
	assert.Equal(t, first, second)

	// The caller's plan is untouched.
	assert.Len(t, raw[0].Selector, 400)
	assert.Equal(t, "null", raw[0].Style["color"])
}
