package meta

import (
	"context"
	"fmt"
)

// IsAdmin reports whether the telegram id is on the admin allowlist.
func (s *Store) IsAdmin(ctx context.Context, telegramID int64) (bool, error) {
	var n int
	err := s.db.GetContext(ctx, &n,
		`SELECT COUNT(1) FROM admins WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return false, fmt.Errorf("meta: is admin: %w", err)
	}
	return n > 0, nil
}

// UpsertAdmin adds or refreshes an allowlisted administrator.
func (s *Store) UpsertAdmin(ctx context.Context, telegramID int64, username *string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admins (telegram_id, username)
		VALUES ($1, $2)
		ON CONFLICT (telegram_id) DO UPDATE SET username = EXCLUDED.username`,
		telegramID, username)
	if err != nil {
		return fmt.Errorf("meta: upsert admin: %w", err)
	}
	return nil
}

// DeleteAdminByID removes an administrator by telegram id; reports whether a
// row was deleted.
func (s *Store) DeleteAdminByID(ctx context.Context, telegramID int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM admins WHERE telegram_id = $1`, telegramID)
	if err != nil {
		return false, fmt.Errorf("meta: delete admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("meta: delete admin: %w", err)
	}
	return n > 0, nil
}

// DeleteAdminByUsername removes an administrator by username; reports whether
// a row was deleted.
func (s *Store) DeleteAdminByUsername(ctx context.Context, username string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM admins WHERE username = $1`, username)
	if err != nil {
		return false, fmt.Errorf("meta: delete admin: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("meta: delete admin: %w", err)
	}
	return n > 0, nil
}
