package dialogue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdvanceLinearFlow(t *testing.T) {
	form := &Form{}

	res := Advance(StepWaitingLastName, form, "Иванов")
	assert.Equal(t, StepWaitingFirstName, res.Next)
	assert.False(t, res.Rejected)

	res = Advance(StepWaitingFirstName, form, "Иван")
	assert.Equal(t, StepWaitingMiddleName, res.Next)

	res = Advance(StepWaitingMiddleName, form, "-")
	assert.Equal(t, StepWaitingDepartmentID, res.Next)
	assert.Nil(t, form.MiddleName)

	res = Advance(StepWaitingDepartmentID, form, "5")
	assert.Equal(t, StepWaitingPositionID, res.Next)

	res = Advance(StepWaitingPositionID, form, "3")
	assert.Equal(t, StepWaitingPhone, res.Next)

	res = Advance(StepWaitingPhone, form, "+7 900 111-22-33")
	assert.Equal(t, StepConfirming, res.Next)
	assert.True(t, res.Confirming)
	assert.False(t, res.Rejected)

	assert.Equal(t, "Иванов", form.LastName)
	assert.Equal(t, "Иван", form.FirstName)
	assert.Equal(t, int64(5), form.DepartmentID)
	assert.Equal(t, int64(3), form.PositionID)
	assert.Equal(t, "9001112233", form.Phone, "phone stored trunk-canonical")
}

func TestAdvanceRejectsShortName(t *testing.T) {
	form := &Form{}
	res := Advance(StepWaitingLastName, form, "И")
	assert.True(t, res.Rejected)
	assert.Equal(t, StepWaitingLastName, res.Next, "step must not advance on rejection")
	assert.Empty(t, form.LastName)
}

func TestAdvanceRejectsNonNumericID(t *testing.T) {
	form := &Form{}
	res := Advance(StepWaitingDepartmentID, form, "пятый")
	assert.True(t, res.Rejected)
	assert.Equal(t, StepWaitingDepartmentID, res.Next)
}

func TestAdvanceRejectsBadPhone(t *testing.T) {
	form := &Form{}
	res := Advance(StepWaitingPhone, form, "не скажу")
	assert.True(t, res.Rejected)
	assert.Equal(t, StepWaitingPhone, res.Next)
	assert.Empty(t, form.Phone)
}

func TestAdvanceMiddleNameKept(t *testing.T) {
	form := &Form{}
	res := Advance(StepWaitingMiddleName, form, "  Петрович ")
	assert.Equal(t, StepWaitingDepartmentID, res.Next)
	require.NotNil(t, form.MiddleName)
	assert.Equal(t, "Петрович", *form.MiddleName)
}

func TestAdvanceEditReturnsToConfirmation(t *testing.T) {
	form := &Form{LastName: "Иванов", FirstName: "Иван", DepartmentID: 5, PositionID: 3, Phone: "9001112233"}

	res := Advance(StepEditingLastName, form, "Петров")
	assert.Equal(t, StepConfirming, res.Next)
	assert.True(t, res.Confirming)
	assert.Equal(t, "Петров", form.LastName)

	res = Advance(StepEditingPhone, form, "89002224455")
	assert.Equal(t, StepConfirming, res.Next)
	assert.Equal(t, "9002224455", form.Phone)
}

func TestAdvanceFreeTextOnConfirmationBounces(t *testing.T) {
	form := &Form{}
	res := Advance(StepConfirming, form, "да")
	assert.True(t, res.Rejected)
	assert.Equal(t, StepConfirming, res.Next)
}

func TestSummaryShowsDashForMissingMiddle(t *testing.T) {
	form := &Form{LastName: "Иванов", FirstName: "Иван", DepartmentID: 5, PositionID: 3, Phone: "9001112233"}
	s := Summary(form)
	assert.Contains(t, s, "Иванов")
	assert.Contains(t, s, "Отчество: —")
	assert.Contains(t, s, "9001112233")
}
