// Package plan defines the action vocabulary the inference collaborator may
// emit, the wire decoding for raw plans, and the sanitizer that clamps a raw
// plan before anything touches the document.
package plan

import (
	"encoding/json"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"
)

// Op discriminates the action variants. Unknown values survive decoding so
// the executor can report them per-step instead of rejecting the whole plan.
type Op string

const (
	OpWaitFor        Op = "wait_for"
	OpClick          Op = "click"
	OpNavigate       Op = "navigate"
	OpFill           Op = "fill"
	OpType           Op = "type"
	OpPress          Op = "press"
	OpSetStyle       Op = "set_style"
	OpSetText        Op = "set_text"
	OpSelect         Op = "select"
	OpScroll         Op = "scroll"
	OpScrollIntoView Op = "scroll_into_view"
)

// Action is one automation instruction. Which fields are meaningful depends
// on Op; every variant except a navigate with an explicit To carries a
// Selector.
type Action struct {
	Op       Op                `json:"op"`
	Selector string            `json:"selector,omitempty"`
	To       string            `json:"to,omitempty"`
	Value    string            `json:"value,omitempty"`
	Text     string            `json:"text,omitempty"`
	Keys     string            `json:"keys,omitempty"`
	Style    map[string]string `json:"style,omitempty"`
	Submit   bool              `json:"submit,omitempty"`
	Y        float64           `json:"y,omitempty"`
	// TimeoutMs bounds a wait_for step. Zero means the executor default.
	TimeoutMs int `json:"timeout_ms,omitempty"`
}

// rawAction mirrors Action with loosely typed fields for the hostile parts of
// the wire format: models emit `to` as a number for scroll offsets and
// `value` as either a string or an array.
type rawAction struct {
	Op        string            `json:"op"`
	Selector  string            `json:"selector"`
	To        json.RawMessage   `json:"to"`
	Value     json.RawMessage   `json:"value"`
	Text      string            `json:"text"`
	Keys      string            `json:"keys"`
	Style     map[string]string `json:"style"`
	Submit    bool              `json:"submit"`
	Y         float64           `json:"y"`
	TimeoutMs int               `json:"timeout_ms"`
}

var wire = jsoniter.ConfigCompatibleWithStandardLibrary

// Decode parses the wire format: a JSON array of action objects. Field-level
// sloppiness is repaired here; structural garbage is the only hard error.
func Decode(data []byte) ([]Action, error) {
	var raw []rawAction
	if err := wire.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode action plan: %w", err)
	}

	actions := make([]Action, 0, len(raw))
	for _, r := range raw {
		a := Action{
			Op:        Op(r.Op),
			Selector:  r.Selector,
			Text:      r.Text,
			Keys:      r.Keys,
			Style:     r.Style,
			Submit:    r.Submit,
			Y:         r.Y,
			TimeoutMs: r.TimeoutMs,
		}
		a.To = coerceString(r.To)
		a.Value = coerceValue(r.Value)
		actions = append(actions, a)
	}
	return actions, nil
}

// coerceString accepts a JSON string or number and renders it as a string.
func coerceString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := wire.Unmarshal(raw, &s); err == nil {
		return s
	}
	var f float64
	if err := wire.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return ""
}

// coerceValue accepts a string or an array of strings; an array collapses to
// its first element, matching how select handles multi-valued input.
func coerceValue(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := wire.Unmarshal(raw, &s); err == nil {
		return s
	}
	var list []string
	if err := wire.Unmarshal(raw, &list); err == nil && len(list) > 0 {
		return list[0]
	}
	return coerceString(raw)
}

// StepResult records the outcome of one attempted action.
type StepResult struct {
	Op    Op     `json:"op"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Ledger holds one StepResult per sanitized step, in plan order. Its length
// always equals the sanitized plan's length; a failing step never shortens it.
type Ledger []StepResult

// Failures counts the steps that did not succeed.
func (l Ledger) Failures() int {
	n := 0
	for _, r := range l {
		if !r.OK {
			n++
		}
	}
	return n
}
