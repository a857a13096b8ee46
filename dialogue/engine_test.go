package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/staffgate/core/telegram/state"
)

func newTestEngine() *Engine {
	return NewEngine(state.NewMemoryManager())
}

func runToConfirm(t *testing.T, e *Engine, userID int64) {
	t.Helper()
	e.Begin(userID)
	for _, input := range []string{"Иванов", "Иван", "-", "5", "3", "9001112233"} {
		res := e.HandleText(userID, input)
		require.False(t, res.Rejected, "input %q", input)
	}
	step, ok := e.CurrentStep(userID)
	require.True(t, ok)
	require.Equal(t, StepConfirming, step)
}

func TestEngineBeginStartsAtLastName(t *testing.T) {
	e := newTestEngine()
	prompt := e.Begin(42)
	assert.Equal(t, PromptLastName, prompt)

	step, ok := e.CurrentStep(42)
	require.True(t, ok)
	assert.Equal(t, StepWaitingLastName, step)
}

func TestEngineFullFlow(t *testing.T) {
	e := newTestEngine()
	runToConfirm(t, e, 42)

	form, ok := e.TakeForm(42)
	require.True(t, ok)
	assert.Equal(t, "Иванов", form.LastName)
	assert.Nil(t, form.MiddleName)
	assert.Equal(t, "9001112233", form.Phone)
	assert.False(t, e.Active(42), "conversation ends after the form is taken")
}

func TestEngineTakeFormOnlyFromConfirmation(t *testing.T) {
	e := newTestEngine()
	e.Begin(42)
	e.HandleText(42, "Иванов")

	_, ok := e.TakeForm(42)
	assert.False(t, ok)
	assert.True(t, e.Active(42), "failed take must not drop the conversation")
}

func TestEngineDoubleConfirmIsNoOp(t *testing.T) {
	e := newTestEngine()
	runToConfirm(t, e, 42)

	_, first := e.TakeForm(42)
	_, second := e.TakeForm(42)
	assert.True(t, first)
	assert.False(t, second, "second confirm press must not produce a form")
}

func TestEngineStartEdit(t *testing.T) {
	e := newTestEngine()
	runToConfirm(t, e, 42)

	prompt, ok := e.StartEdit(42, FieldPhone)
	require.True(t, ok)
	assert.Equal(t, PromptPhone, prompt)

	res := e.HandleText(42, "89002224455")
	assert.Equal(t, StepConfirming, res.Next)
	assert.True(t, res.Confirming)

	form, ok := e.TakeForm(42)
	require.True(t, ok)
	assert.Equal(t, "9002224455", form.Phone)
}

func TestEngineStartEditOutsideConfirmation(t *testing.T) {
	e := newTestEngine()
	e.Begin(42)
	_, ok := e.StartEdit(42, FieldPhone)
	assert.False(t, ok)
}

func TestEngineUsersAreIsolated(t *testing.T) {
	e := newTestEngine()
	runToConfirm(t, e, 1)
	e.Begin(2)
	e.HandleText(2, "Петров")

	form, ok := e.TakeForm(1)
	require.True(t, ok)
	assert.Equal(t, "Иванов", form.LastName)

	step, ok := e.CurrentStep(2)
	require.True(t, ok)
	assert.Equal(t, StepWaitingFirstName, step)
}

func TestEngineReset(t *testing.T) {
	e := newTestEngine()
	runToConfirm(t, e, 42)
	e.Reset(42)
	assert.False(t, e.Active(42))
	_, ok := e.TakeForm(42)
	assert.False(t, ok)
}
