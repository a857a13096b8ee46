package dialogue

import (
	"fmt"
	"strings"
)

// Form is the partially filled registration data for one user.
type Form struct {
	LastName     string
	FirstName    string
	MiddleName   *string
	DepartmentID int64
	PositionID   int64
	Phone        string
}

// DisplayName joins the collected name parts.
func (f *Form) DisplayName() string {
	parts := []string{f.LastName, f.FirstName}
	if f.MiddleName != nil {
		parts = append(parts, *f.MiddleName)
	}
	return strings.Join(parts, " ")
}

// Summary renders the collected form for the confirmation screen.
func Summary(f *Form) string {
	middle := "—"
	if f.MiddleName != nil {
		middle = *f.MiddleName
	}
	return fmt.Sprintf(
		"Проверь данные:\n"+
			"Фамилия: %s\n"+
			"Имя: %s\n"+
			"Отчество: %s\n"+
			"Отдел: %d\n"+
			"Должность: %d\n"+
			"Телефон: %s",
		f.LastName, f.FirstName, middle, f.DepartmentID, f.PositionID, f.Phone)
}
