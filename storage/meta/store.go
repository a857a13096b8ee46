// Package meta owns the bot's metadata database: invite links, audit and
// admin logs, the admin allowlist, department-channel bindings, settings,
// and the verified-user projection. Schema is managed by golang-migrate
// (see migrations/).
package meta

import (
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a metadata lookup matches nothing.
var ErrNotFound = errors.New("meta: not found")

// Invite link lifecycle states.
const (
	InviteStatusActive  = "ACTIVE"
	InviteStatusExpired = "EXPIRED"
)

// InviteLink is a persisted single-use channel invitation.
type InviteLink struct {
	ID           int64     `db:"id"`
	TelegramID   int64     `db:"telegram_id"`
	ChannelID    string    `db:"channel_id"`
	URL          string    `db:"url"`
	InviteLinkID *string   `db:"invite_link_id"`
	TTLSeconds   int64     `db:"ttl_seconds"`
	ExpiresAt    time.Time `db:"expires_at"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
}

// AuditEntry is an append-only record of a verification-related outcome.
type AuditEntry struct {
	ID          int64     `db:"id"`
	TelegramID  int64     `db:"telegram_id"`
	Action      string    `db:"action"`
	PayloadJSON string    `db:"payload_json"`
	CreatedAt   time.Time `db:"created_at"`
}

// AdminLogEntry records an administrative action, optionally echoed to the
// configured admin-log chat.
type AdminLogEntry struct {
	ID               int64     `db:"id"`
	Action           string    `db:"action"`
	ActorTelegramID  int64     `db:"actor_telegram_id"`
	ActorUsername    *string   `db:"actor_username"`
	TargetTelegramID *int64    `db:"target_telegram_id"`
	TargetUsername   *string   `db:"target_username"`
	Department       *string   `db:"department"`
	ChannelID        *string   `db:"channel_id"`
	ChannelName      *string   `db:"channel_name"`
	Reason           *string   `db:"reason"`
	CreatedAt        time.Time `db:"created_at"`
}

// VerifiedUser is the local projection of a successfully verified employee.
type VerifiedUser struct {
	TelegramID   int64     `db:"telegram_id"`
	EmployeeCode int64     `db:"employee_code"`
	FullName     string    `db:"full_name"`
	Phone        *string   `db:"phone"`
	Department   string    `db:"department"`
	Position     string    `db:"position"`
	Username     *string   `db:"username"`
	VerifiedAt   time.Time `db:"verified_at"`
}

// Admin is an allowlisted administrator account.
type Admin struct {
	TelegramID int64   `db:"telegram_id"`
	Username   *string `db:"username"`
}

// Store provides access to all metadata tables over a single handle.
type Store struct {
	db *sqlx.DB
}

// NewStore wraps an established metadata database handle.
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}
