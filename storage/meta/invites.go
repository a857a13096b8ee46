package meta

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/staffgate/core/logger"
)

// LatestActiveInvite returns the newest ACTIVE, unexpired invite for the
// (telegram id, channel) pair, or ErrNotFound.
func (s *Store) LatestActiveInvite(ctx context.Context, telegramID int64, channelID string) (*InviteLink, error) {
	var link InviteLink
	err := s.db.GetContext(ctx, &link, `
		SELECT id, telegram_id, channel_id, url, invite_link_id, ttl_seconds,
		       expires_at, status, created_at
		FROM invite_links
		WHERE telegram_id = $1 AND channel_id = $2 AND status = $3 AND expires_at > $4
		ORDER BY created_at DESC
		LIMIT 1`,
		telegramID, channelID, InviteStatusActive, time.Now().UTC())
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("meta: latest active invite: %w", err)
	}
	return &link, nil
}

// InsertInvite persists a freshly created invite and fills the row id.
func (s *Store) InsertInvite(ctx context.Context, link *InviteLink) error {
	err := s.db.QueryRowxContext(ctx, `
		INSERT INTO invite_links
			(telegram_id, channel_id, url, invite_link_id, ttl_seconds, expires_at, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		link.TelegramID, link.ChannelID, link.URL, link.InviteLinkID,
		link.TTLSeconds, link.ExpiresAt, link.Status, link.CreatedAt,
	).Scan(&link.ID)
	if err != nil {
		return fmt.Errorf("meta: insert invite: %w", err)
	}
	return nil
}

// ExpireInvite marks all ACTIVE rows carrying the given platform link id as
// EXPIRED.
func (s *Store) ExpireInvite(ctx context.Context, inviteLinkID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE invite_links SET status = $1
		WHERE invite_link_id = $2 AND status = $3`,
		InviteStatusExpired, inviteLinkID, InviteStatusActive)
	if err != nil {
		return fmt.Errorf("meta: expire invite: %w", err)
	}
	return nil
}

// DeleteExpiredInvites removes every row whose expiry has passed, regardless
// of status. This is garbage collection, not business logic.
func (s *Store) DeleteExpiredInvites(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM invite_links WHERE expires_at <= $1`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("meta: delete expired invites: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("meta: delete expired invites: %w", err)
	}
	if n > 0 {
		logger.DBMeta.Debug("expired invites removed",
			slog.String("event", "db.meta.invite_gc"),
			slog.Int64("count", n),
		)
	}
	return n, nil
}
