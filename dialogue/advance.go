package dialogue

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/staffgate/identity"
)

// Prompts and validation hints shown to the user.
const (
	PromptLastName     = "Введи фамилию:"
	PromptFirstName    = "Введи имя:"
	PromptMiddleName   = "Введи отчество (или «-», если отчества нет):"
	PromptDepartmentID = "Введи номер отдела (число):"
	PromptPositionID   = "Введи номер должности (число):"
	PromptPhone        = "Введи номер мобильного телефона:"

	hintNameTooShort = "Слишком коротко: нужно не менее 2 символов. Попробуй ещё раз."
	hintNotNumeric   = "Нужно число. Попробуй ещё раз."
	hintBadPhone     = "Не похоже на номер мобильного. Пример: +7 900 111-22-33. Попробуй ещё раз."
	hintConfirmOnly  = "Нажми «Подтвердить» или «Изменить» под сообщением с данными."
)

// Result describes the outcome of feeding one text message into the machine.
type Result struct {
	// Next is the step the conversation is in after the message.
	Next Step
	// Reply is the next prompt, the confirmation summary, or a validation
	// hint when the input was rejected.
	Reply string
	// Rejected reports that the input failed validation and the step did
	// not advance.
	Rejected bool
	// Confirming reports that Next is the confirmation screen, so the
	// caller should attach the confirm/edit keyboard.
	Confirming bool
}

// Prompt returns the question asked at a given step.
func Prompt(step Step) string {
	switch step {
	case StepWaitingLastName, StepEditingLastName:
		return PromptLastName
	case StepWaitingFirstName, StepEditingFirstName:
		return PromptFirstName
	case StepWaitingMiddleName, StepEditingMiddleName:
		return PromptMiddleName
	case StepWaitingDepartmentID, StepEditingDepartmentID:
		return PromptDepartmentID
	case StepWaitingPositionID, StepEditingPositionID:
		return PromptPositionID
	case StepWaitingPhone, StepEditingPhone:
		return PromptPhone
	default:
		return ""
	}
}

// Advance validates the input for the current step, mutates the form on
// success, and returns the resulting step with the reply to send. It is a
// pure function of (step, form, input) apart from the form mutation.
func Advance(step Step, form *Form, input string) Result {
	switch step {
	case StepWaitingLastName:
		return applyName(&form.LastName, input, StepWaitingLastName, StepWaitingFirstName, form)
	case StepWaitingFirstName:
		return applyName(&form.FirstName, input, StepWaitingFirstName, StepWaitingMiddleName, form)
	case StepWaitingMiddleName:
		return applyMiddleName(form, input, StepWaitingMiddleName, StepWaitingDepartmentID)
	case StepWaitingDepartmentID:
		return applyID(&form.DepartmentID, input, StepWaitingDepartmentID, StepWaitingPositionID, form)
	case StepWaitingPositionID:
		return applyID(&form.PositionID, input, StepWaitingPositionID, StepWaitingPhone, form)
	case StepWaitingPhone:
		return applyPhone(form, input, StepWaitingPhone)

	case StepEditingLastName:
		return applyName(&form.LastName, input, StepEditingLastName, StepConfirming, form)
	case StepEditingFirstName:
		return applyName(&form.FirstName, input, StepEditingFirstName, StepConfirming, form)
	case StepEditingMiddleName:
		return applyMiddleName(form, input, StepEditingMiddleName, StepConfirming)
	case StepEditingDepartmentID:
		return applyID(&form.DepartmentID, input, StepEditingDepartmentID, StepConfirming, form)
	case StepEditingPositionID:
		return applyID(&form.PositionID, input, StepEditingPositionID, StepConfirming, form)
	case StepEditingPhone:
		return applyPhone(form, input, StepEditingPhone)

	case StepConfirming:
		// Only the confirm/edit buttons act here; free text is bounced.
		return Result{Next: StepConfirming, Reply: hintConfirmOnly, Rejected: true, Confirming: true}
	}
	return Result{Next: step, Reply: hintConfirmOnly, Rejected: true}
}

func advanceTo(next Step, form *Form) Result {
	if next == StepConfirming {
		return Result{Next: next, Reply: Summary(form), Confirming: true}
	}
	return Result{Next: next, Reply: Prompt(next)}
}

func applyName(dst *string, input string, cur, next Step, form *Form) Result {
	trimmed := strings.TrimSpace(input)
	if utf8.RuneCountInString(trimmed) < 2 {
		return Result{Next: cur, Reply: hintNameTooShort, Rejected: true}
	}
	*dst = trimmed
	return advanceTo(next, form)
}

func applyMiddleName(form *Form, input string, cur, next Step) Result {
	trimmed := strings.TrimSpace(input)
	if trimmed == "-" {
		form.MiddleName = nil
		return advanceTo(next, form)
	}
	if utf8.RuneCountInString(trimmed) < 2 {
		return Result{Next: cur, Reply: hintNameTooShort, Rejected: true}
	}
	form.MiddleName = &trimmed
	return advanceTo(next, form)
}

func applyID(dst *int64, input string, cur, next Step, form *Form) Result {
	v, err := strconv.ParseInt(strings.TrimSpace(input), 10, 64)
	if err != nil {
		return Result{Next: cur, Reply: hintNotNumeric, Rejected: true}
	}
	*dst = v
	return advanceTo(next, form)
}

func applyPhone(form *Form, input string, cur Step) Result {
	if !identity.ValidPhoneInput(input) {
		return Result{Next: cur, Reply: hintBadPhone, Rejected: true}
	}
	form.Phone = identity.NormalizePhone(strings.TrimSpace(input))
	return advanceTo(StepConfirming, form)
}
