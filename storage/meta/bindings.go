package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ChannelForDepartment resolves the channel bound to a department id, or
// ErrNotFound when no binding exists.
func (s *Store) ChannelForDepartment(ctx context.Context, departmentID int64) (string, error) {
	var channelID string
	err := s.db.GetContext(ctx, &channelID,
		`SELECT channel_id FROM department_channels WHERE department_id = $1`, departmentID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("meta: channel for department: %w", err)
	}
	return channelID, nil
}

// BindDepartment binds a department to a channel. The first writer wins:
// without overwrite an existing binding is left untouched and false is
// returned. Overwrite is reserved for the owner.
func (s *Store) BindDepartment(ctx context.Context, departmentID int64, channelID string, overwrite bool) (bool, error) {
	var res sql.Result
	var err error
	if overwrite {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO department_channels (department_id, channel_id)
			VALUES ($1, $2)
			ON CONFLICT (department_id) DO UPDATE SET channel_id = EXCLUDED.channel_id`,
			departmentID, channelID)
	} else {
		res, err = s.db.ExecContext(ctx, `
			INSERT INTO department_channels (department_id, channel_id)
			VALUES ($1, $2)
			ON CONFLICT (department_id) DO NOTHING`,
			departmentID, channelID)
	}
	if err != nil {
		return false, fmt.Errorf("meta: bind department: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("meta: bind department: %w", err)
	}
	return n > 0, nil
}
