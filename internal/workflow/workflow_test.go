package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTable = Definition{
	Name:    "test document",
	Initial: "DRAFT",
	Terminal: map[State]bool{
		"REJECTED": true,
		"CLOSED":   true,
	},
	Transitions: map[State]map[Action]Rule{
		"DRAFT": {
			"SUBMIT": {Next: "SUBMITTED"},
		},
		"SUBMITTED": {
			"APPROVE": {Next: "APPROVED"},
			"REJECT":  {Next: "REJECTED", RequireReason: true},
		},
		"APPROVED": {
			"CLOSE": {Next: "CLOSED"},
		},
	},
}

func TestApplyHappyPath(t *testing.T) {
	next, err := testTable.Apply("DRAFT", "SUBMIT", "")
	require.NoError(t, err)
	assert.Equal(t, State("SUBMITTED"), next)

	next, err = testTable.Apply(next, "APPROVE", "")
	require.NoError(t, err)
	assert.Equal(t, State("APPROVED"), next)
}

func TestApplyRejectsIllegalAction(t *testing.T) {
	_, err := testTable.Apply("DRAFT", "APPROVE", "")
	require.ErrorIs(t, err, ErrTransition)
}

func TestApplyRejectsTerminalState(t *testing.T) {
	_, err := testTable.Apply("REJECTED", "SUBMIT", "")
	require.ErrorIs(t, err, ErrTransition)
}

func TestApplyUnknownState(t *testing.T) {
	_, err := testTable.Apply("NO_SUCH_STATE", "SUBMIT", "")
	require.ErrorIs(t, err, ErrUnknownState)
}

func TestApplyRequiresReason(t *testing.T) {
	_, err := testTable.Apply("SUBMITTED", "REJECT", "")
	require.ErrorIs(t, err, ErrReasonRequired)

	_, err = testTable.Apply("SUBMITTED", "REJECT", "   ")
	require.ErrorIs(t, err, ErrReasonRequired)

	next, err := testTable.Apply("SUBMITTED", "REJECT", "supplier blacklisted")
	require.NoError(t, err)
	assert.Equal(t, State("REJECTED"), next)
}

func TestCanAndIsTerminal(t *testing.T) {
	assert.True(t, testTable.Can("DRAFT", "SUBMIT"))
	assert.False(t, testTable.Can("DRAFT", "CLOSE"))
	assert.True(t, testTable.IsTerminal("CLOSED"))
	assert.False(t, testTable.IsTerminal("DRAFT"))
}

func TestActionsListsAvailable(t *testing.T) {
	actions := testTable.Actions("SUBMITTED")
	assert.ElementsMatch(t, []Action{"APPROVE", "REJECT"}, actions)
	assert.Nil(t, testTable.Actions("CLOSED"))
}
