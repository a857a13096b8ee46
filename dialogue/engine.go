package dialogue

import (
	"sync"

	"github.com/m3rciful/staffgate/core/telegram/state"
)

const formKey = "registration_form"

// Engine glues the pure transition function to the per-user session store.
// Each user's state is only ever touched by that user's own updates; the
// session manager handles cross-user concurrency. takeMu serializes the
// confirm snapshot so a rapid double-tap cannot run verification twice.
type Engine struct {
	sessions state.Manager
	takeMu   sync.Mutex
}

// NewEngine builds an Engine over a session manager.
func NewEngine(sessions state.Manager) *Engine {
	return &Engine{sessions: sessions}
}

// Begin resets the user's conversation and returns the first prompt.
func (e *Engine) Begin(userID int64) string {
	e.sessions.Clear(userID)
	e.sessions.SetTemp(userID, formKey, &Form{})
	e.sessions.SetState(userID, StepWaitingLastName.State())
	return Prompt(StepWaitingLastName)
}

// Reset drops the user's conversation entirely.
func (e *Engine) Reset(userID int64) {
	e.sessions.Clear(userID)
}

// Active reports whether the user is inside the registration flow.
func (e *Engine) Active(userID int64) bool {
	return e.sessions.HasState(userID)
}

// CurrentStep returns the user's step; ok is false when no flow is active.
func (e *Engine) CurrentStep(userID int64) (Step, bool) {
	if !e.sessions.HasState(userID) {
		return "", false
	}
	return Step(e.sessions.GetState(userID)), true
}

// HandleText feeds one text message into the machine and persists the
// resulting step.
func (e *Engine) HandleText(userID int64, text string) Result {
	step, ok := e.CurrentStep(userID)
	if !ok {
		return Result{Rejected: true}
	}
	form := e.form(userID)
	res := Advance(step, form, text)
	e.sessions.SetTemp(userID, formKey, form)
	e.sessions.SetState(userID, res.Next.State())
	return res
}

// StartEdit switches the user into the editing step for a field and returns
// its prompt. It only acts from the confirmation screen.
func (e *Engine) StartEdit(userID int64, field Field) (string, bool) {
	step, ok := e.CurrentStep(userID)
	if !ok || step != StepConfirming {
		return "", false
	}
	edit, ok := EditStep(field)
	if !ok {
		return "", false
	}
	e.sessions.SetState(userID, edit.State())
	return Prompt(edit), true
}

// TakeForm atomically snapshots the collected form and clears the
// conversation. It only succeeds from the confirmation screen, which makes a
// rapid double-tap on the confirm button a no-op for the second press.
func (e *Engine) TakeForm(userID int64) (Form, bool) {
	e.takeMu.Lock()
	defer e.takeMu.Unlock()

	step, ok := e.CurrentStep(userID)
	if !ok || step != StepConfirming {
		return Form{}, false
	}
	form := e.form(userID)
	snapshot := *form
	e.sessions.Clear(userID)
	return snapshot, true
}

// Snapshot returns a copy of the current form without touching the state.
func (e *Engine) Snapshot(userID int64) Form {
	return *e.form(userID)
}

func (e *Engine) form(userID int64) *Form {
	if v, ok := e.sessions.GetTemp(userID, formKey); ok {
		if f, ok := v.(*Form); ok {
			return f
		}
	}
	f := &Form{}
	e.sessions.SetTemp(userID, formKey, f)
	return f
}
