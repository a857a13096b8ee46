package personnel

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/staffgate/core/logger"
)

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("personnel: record not found")

const table = "personnel_cards"

const selectColumns = `code, last_name, first_name, middle_name, department_id,
	position_id, phone, termination_date, telegram_id, telegram_username, blacklisted`

// Repository is the fixed, pre-mapped access layer over the personnel table.
// Field names are resolved at deploy time by the HR feed; the bot never
// discovers the schema at runtime.
type Repository struct {
	db *sqlx.DB
}

// NewRepository wraps an established personnel database handle.
func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// FindCandidates runs the broad identity filter. The exact refinement happens
// in the identity package; this query only narrows the candidate set, because
// collation and case behaviour of the personnel database are not reliable
// across deployments.
func (r *Repository) FindCandidates(ctx context.Context, f IdentityFilter) ([]Record, error) {
	query := `SELECT ` + selectColumns + ` FROM ` + table + `
		WHERE last_name ILIKE '%' || $1 || '%'
		  AND first_name ILIKE '%' || $2 || '%'
		  AND department_id = $3
		  AND position_id = $4`
	args := []interface{}{f.LastName, f.FirstName, f.DepartmentID, f.PositionID}
	if f.MiddleName != nil {
		query += ` AND middle_name ILIKE '%' || $5 || '%'`
		args = append(args, *f.MiddleName)
	}

	start := time.Now()
	var out []Record
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("personnel: find candidates: %w", err)
	}
	logger.DBPersonnel.Debug("candidates loaded",
		slog.String("event", "db.personnel.candidates"),
		slog.Int("count", len(out)),
		slog.Duration("duration", logger.Took(start)),
	)
	return out, nil
}

// FindByTelegramID returns the record linked to the given telegram id.
func (r *Repository) FindByTelegramID(ctx context.Context, telegramID int64) (*Record, error) {
	var rec Record
	err := r.db.GetContext(ctx, &rec,
		`SELECT `+selectColumns+` FROM `+table+` WHERE telegram_id = $1`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("personnel: find by telegram id: %w", err)
	}
	return &rec, nil
}

// LinkTelegram attaches the telegram identity to a record. The telegram id is
// only written when the record has none yet; the username is refreshed on
// every successful verification.
func (r *Repository) LinkTelegram(ctx context.Context, code, telegramID int64, username *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET telegram_id = COALESCE(telegram_id, $2), telegram_username = $3 WHERE code = $1`,
		code, telegramID, username)
	if err != nil {
		return fmt.Errorf("personnel: link telegram: %w", err)
	}
	return nil
}

// RelinkTelegram moves a record's telegram identity to a new account,
// overwriting any previous link. Used when an account takeover is allowed
// by the previous holder.
func (r *Repository) RelinkTelegram(ctx context.Context, code, telegramID int64, username *string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET telegram_id = $2, telegram_username = $3 WHERE code = $1`,
		code, telegramID, username)
	if err != nil {
		return fmt.Errorf("personnel: relink telegram: %w", err)
	}
	return nil
}

// SetBlacklist flips the blacklist flag on a record.
func (r *Repository) SetBlacklist(ctx context.Context, code int64, blacklisted bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE `+table+` SET blacklisted = $2 WHERE code = $1`, code, blacklisted)
	if err != nil {
		return fmt.Errorf("personnel: set blacklist: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// EmployedLinked returns current employees that have a telegram account
// attached. Used by the nightly sweep to heal stale blacklist flags.
func (r *Repository) EmployedLinked(ctx context.Context) ([]Record, error) {
	var out []Record
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+selectColumns+` FROM `+table+`
		 WHERE telegram_id IS NOT NULL AND termination_date IS NULL`)
	if err != nil {
		return nil, fmt.Errorf("personnel: employed linked: %w", err)
	}
	return out, nil
}

// TerminatedLinked returns former employees that still have a telegram
// account attached. Used by the nightly sweep to block them.
func (r *Repository) TerminatedLinked(ctx context.Context) ([]Record, error) {
	var out []Record
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+selectColumns+` FROM `+table+`
		 WHERE telegram_id IS NOT NULL AND termination_date IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("personnel: terminated linked: %w", err)
	}
	return out, nil
}

// ListEmployed returns up to limit current employees sorted for listing.
func (r *Repository) ListEmployed(ctx context.Context, limit int) ([]Record, error) {
	var out []Record
	err := r.db.SelectContext(ctx, &out,
		`SELECT `+selectColumns+` FROM `+table+`
		 WHERE termination_date IS NULL
		 ORDER BY department_id, last_name, first_name
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("personnel: list employed: %w", err)
	}
	return out, nil
}
