package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// AdminLogChatID returns the configured admin-log chat, or ErrNotFound when
// the settings row is absent or unset.
func (s *Store) AdminLogChatID(ctx context.Context) (string, error) {
	var chatID sql.NullString
	err := s.db.GetContext(ctx, &chatID,
		`SELECT admin_log_chat_id FROM settings WHERE id = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("meta: admin log chat: %w", err)
	}
	if !chatID.Valid || chatID.String == "" {
		return "", ErrNotFound
	}
	return chatID.String, nil
}

// SetAdminLogChatID stores the admin-log chat on the settings singleton.
func (s *Store) SetAdminLogChatID(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (id, admin_log_chat_id)
		VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET admin_log_chat_id = EXCLUDED.admin_log_chat_id`,
		chatID)
	if err != nil {
		return fmt.Errorf("meta: set admin log chat: %w", err)
	}
	return nil
}
