package meta

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Audit actions written by the verification and sweep pipelines.
const (
	ActionVerificationSuccess = "verification_success"
	ActionVerificationFailed  = "verification_failed"
	ActionBlacklistedAttempt  = "blacklisted_attempt"
	ActionFiredBlocked        = "fired_blocked"
	ActionClaimPending        = "claim_pending"
	ActionClaimAllowed        = "claim_allowed"
	ActionClaimBlocked        = "claim_blocked"
	ActionInviteIssued        = "invite_issued"
	ActionNewsInviteIssued    = "news_invite_issued"
	ActionNightUnblacklist    = "night_auto_unblacklist"
	ActionNightBlock          = "night_auto_block"
)

// AppendAudit writes an append-only audit entry. The payload is marshalled
// to JSON; a marshal failure is reported, never silently dropped.
func (s *Store) AppendAudit(ctx context.Context, telegramID int64, action string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("meta: audit payload: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_log (telegram_id, action, payload_json, created_at)
		VALUES ($1, $2, $3, $4)`,
		telegramID, action, string(raw), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("meta: append audit: %w", err)
	}
	return nil
}

// AppendAdminLog records an administrative action.
func (s *Store) AppendAdminLog(ctx context.Context, e *AdminLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_log
			(action, actor_telegram_id, actor_username, target_telegram_id,
			 target_username, department, channel_id, channel_name, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.Action, e.ActorTelegramID, e.ActorUsername, e.TargetTelegramID,
		e.TargetUsername, e.Department, e.ChannelID, e.ChannelName, e.Reason, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("meta: append admin log: %w", err)
	}
	return nil
}

// AdminLogFilter narrows RecentAdminLogs to a single target.
type AdminLogFilter struct {
	TargetTelegramID *int64
	TargetUsername   *string
}

// RecentAdminLogs returns the newest admin-log entries, optionally filtered
// by target.
func (s *Store) RecentAdminLogs(ctx context.Context, f AdminLogFilter, limit int) ([]AdminLogEntry, error) {
	query := `
		SELECT id, action, actor_telegram_id, actor_username, target_telegram_id,
		       target_username, department, channel_id, channel_name, reason, created_at
		FROM admin_log`
	var args []interface{}
	switch {
	case f.TargetTelegramID != nil:
		query += ` WHERE target_telegram_id = $1`
		args = append(args, *f.TargetTelegramID)
	case f.TargetUsername != nil:
		query += ` WHERE target_username = $1`
		args = append(args, *f.TargetUsername)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	var out []AdminLogEntry
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("meta: recent admin logs: %w", err)
	}
	return out, nil
}
