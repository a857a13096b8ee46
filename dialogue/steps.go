// Package dialogue implements the registration conversation: a linear
// sequence of identity questions with an edit sub-flow and a confirmation
// gate. Transition logic is pure and transport-free; persistence of the
// per-user step lives in the session engine.
package dialogue

import "github.com/m3rciful/staffgate/core/telegram/state"

// Step identifies a position in the registration state machine.
type Step string

const (
	StepWaitingLastName     Step = "waiting_last_name"
	StepWaitingFirstName    Step = "waiting_first_name"
	StepWaitingMiddleName   Step = "waiting_middle_name"
	StepWaitingDepartmentID Step = "waiting_department_id"
	StepWaitingPositionID   Step = "waiting_position_id"
	StepWaitingPhone        Step = "waiting_phone"
	StepConfirming          Step = "confirming_data"

	StepEditingLastName     Step = "editing_last_name"
	StepEditingFirstName    Step = "editing_first_name"
	StepEditingMiddleName   Step = "editing_middle_name"
	StepEditingDepartmentID Step = "editing_department_id"
	StepEditingPositionID   Step = "editing_position_id"
	StepEditingPhone        Step = "editing_phone"
)

// Steps lists every dialogue step that consumes a text message. Used by the
// wiring layer to register FSM handlers.
func Steps() []Step {
	return []Step{
		StepWaitingLastName, StepWaitingFirstName, StepWaitingMiddleName,
		StepWaitingDepartmentID, StepWaitingPositionID, StepWaitingPhone,
		StepConfirming,
		StepEditingLastName, StepEditingFirstName, StepEditingMiddleName,
		StepEditingDepartmentID, StepEditingPositionID, StepEditingPhone,
	}
}

// State converts a step into the session-manager state tag.
func (s Step) State() state.State {
	return state.State(s)
}

// Field names an editable form field, carried in edit-menu callback payloads.
type Field string

const (
	FieldLastName     Field = "last_name"
	FieldFirstName    Field = "first_name"
	FieldMiddleName   Field = "middle_name"
	FieldDepartmentID Field = "department_id"
	FieldPositionID   Field = "position_id"
	FieldPhone        Field = "phone"
)

// EditFields enumerates the fields offered by the edit menu, in display order.
func EditFields() []Field {
	return []Field{
		FieldLastName, FieldFirstName, FieldMiddleName,
		FieldDepartmentID, FieldPositionID, FieldPhone,
	}
}

var editStepByField = map[Field]Step{
	FieldLastName:     StepEditingLastName,
	FieldFirstName:    StepEditingFirstName,
	FieldMiddleName:   StepEditingMiddleName,
	FieldDepartmentID: StepEditingDepartmentID,
	FieldPositionID:   StepEditingPositionID,
	FieldPhone:        StepEditingPhone,
}

// EditStep maps a field to its editing step; ok is false for unknown fields.
func EditStep(f Field) (Step, bool) {
	s, ok := editStepByField[f]
	return s, ok
}
