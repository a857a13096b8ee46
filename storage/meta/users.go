package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const verifiedUserColumns = `telegram_id, employee_code, full_name, phone,
	department, position, username, verified_at`

// UpsertVerifiedUser stores or refreshes the verified-user projection.
func (s *Store) UpsertVerifiedUser(ctx context.Context, u *VerifiedUser) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO verified_users
			(telegram_id, employee_code, full_name, phone, department, position, username, verified_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (telegram_id) DO UPDATE SET
			employee_code = EXCLUDED.employee_code,
			full_name     = EXCLUDED.full_name,
			phone         = EXCLUDED.phone,
			department    = EXCLUDED.department,
			position      = EXCLUDED.position,
			username      = EXCLUDED.username,
			verified_at   = EXCLUDED.verified_at`,
		u.TelegramID, u.EmployeeCode, u.FullName, u.Phone,
		u.Department, u.Position, u.Username, u.VerifiedAt)
	if err != nil {
		return fmt.Errorf("meta: upsert verified user: %w", err)
	}
	return nil
}

// VerifiedUserByTelegramID looks a verified user up by telegram id.
func (s *Store) VerifiedUserByTelegramID(ctx context.Context, telegramID int64) (*VerifiedUser, error) {
	var u VerifiedUser
	err := s.db.GetContext(ctx, &u,
		`SELECT `+verifiedUserColumns+` FROM verified_users WHERE telegram_id = $1`, telegramID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("meta: verified user by id: %w", err)
	}
	return &u, nil
}

// VerifiedUserByUsername looks a verified user up by telegram username.
func (s *Store) VerifiedUserByUsername(ctx context.Context, username string) (*VerifiedUser, error) {
	var u VerifiedUser
	err := s.db.GetContext(ctx, &u,
		`SELECT `+verifiedUserColumns+` FROM verified_users WHERE username = $1 LIMIT 1`, username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("meta: verified user by username: %w", err)
	}
	return &u, nil
}
