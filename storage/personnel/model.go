package personnel

import (
	"strings"
	"time"
)

// Record mirrors a row of the external personnel table. The table is loaded
// by an HR feed outside of this system; the bot only ever writes the
// telegram linkage and blacklist columns.
type Record struct {
	Code             int64      `db:"code"`
	LastName         string     `db:"last_name"`
	FirstName        string     `db:"first_name"`
	MiddleName       *string    `db:"middle_name"`
	DepartmentID     int64      `db:"department_id"`
	PositionID       int64      `db:"position_id"`
	Phone            *string    `db:"phone"`
	TerminationDate  *time.Time `db:"termination_date"`
	TelegramID       *int64     `db:"telegram_id"`
	TelegramUsername *string    `db:"telegram_username"`
	Blacklisted      bool       `db:"blacklisted"`
}

// Employed reports whether the record belongs to a current employee.
func (r *Record) Employed() bool {
	return r.TerminationDate == nil
}

// DisplayName joins the name parts into a single human-readable string.
func (r *Record) DisplayName() string {
	parts := []string{r.LastName, r.FirstName}
	if r.MiddleName != nil && strings.TrimSpace(*r.MiddleName) != "" {
		parts = append(parts, *r.MiddleName)
	}
	return strings.Join(parts, " ")
}

// IdentityFilter describes the broad candidate query: substring match on the
// name parts, exact match on department and position. A nil middle name is
// omitted from the filter entirely.
type IdentityFilter struct {
	LastName     string
	FirstName    string
	MiddleName   *string
	DepartmentID int64
	PositionID   int64
}
