package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeWireFormat(t *testing.T) {
	data := []byte(`[
		{"op":"wait_for","selector":"#chart","timeout_ms":2500},
		{"op":"click","selector":".buy-btn"},
		{"op":"fill","selector":"input[name=qty]","value":"10","submit":true},
		{"op":"navigate","to":"/settings"}
	]`)

	actions, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, actions, 4)

	assert.Equal(t, OpWaitFor, actions[0].Op)
	assert.Equal(t, 2500, actions[0].TimeoutMs)
	assert.Equal(t, ".buy-btn", actions[1].Selector)
	assert.True(t, actions[2].Submit)
	assert.Equal(t, "/settings", actions[3].To)
}

func TestDecodeCoercesSloppyFields(t *testing.T) {
	// Models emit numeric scroll targets and array-valued selects.
	data := []byte(`[
		{"op":"scroll","to":400},
		{"op":"select","selector":"#acct","value":["margin","cash"]}
	]`)

	actions, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, "400", actions[0].To)
	assert.Equal(t, "margin", actions[1].Value)
}

func TestDecodeKeepsUnknownOps(t *testing.T) {
	actions, err := Decode([]byte(`[{"op":"teleport","selector":"#x"}]`))
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, Op("teleport"), actions[0].Op)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	_, err := Decode([]byte(`{"op":"click"}`))
	assert.Error(t, err)
}

func TestLedgerFailures(t *testing.T) {
	l := Ledger{
		{Op: OpClick, OK: true},
		{Op: OpFill, OK: false, Error: "selector not found"},
		{Op: OpNavigate, OK: false, Error: "no target to navigate"},
	}
	assert.Equal(t, 2, l.Failures())
	assert.Equal(t, 0, Ledger{}.Failures())
}
