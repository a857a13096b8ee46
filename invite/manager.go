// Package invite owns the invite-link lifecycle: idempotent reuse of a
// still-valid link per (user, channel), creation of fresh single-use links,
// and unconditional cleanup of expired rows.
package invite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/staffgate/core/logger"
	"github.com/m3rciful/staffgate/platform"
	"github.com/m3rciful/staffgate/storage/meta"
)

// DefaultTTL bounds invite validity when no TTL is configured.
const DefaultTTL = 24 * time.Hour

// labelLimit is the platform's invite-link name length limit.
const labelLimit = 32

// Store is the persistence contract for invite records.
type Store interface {
	LatestActiveInvite(ctx context.Context, telegramID int64, channelID string) (*meta.InviteLink, error)
	InsertInvite(ctx context.Context, link *meta.InviteLink) error
	ExpireInvite(ctx context.Context, inviteLinkID string) error
	DeleteExpiredInvites(ctx context.Context) (int64, error)
}

// LinkCreator is the platform-side half of invite creation.
type LinkCreator interface {
	CreateInviteLink(ctx context.Context, channelID string, expireAt time.Time, label string, memberLimit int) (platform.Invite, error)
}

// Manager issues at most one valid single-use link per (user, channel).
type Manager struct {
	store    Store
	links    LinkCreator
	ttl      time.Duration
	now      func() time.Time
}

// NewManager builds a Manager; ttl <= 0 falls back to DefaultTTL.
func NewManager(store Store, links LinkCreator, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: store, links: links, ttl: ttl, now: time.Now}
}

// GetOrCreate returns the user's valid link for the channel, creating one
// only when no ACTIVE, unexpired record exists. There is no lock around the
// read-then-create sequence: two near-simultaneous calls may both create a
// link, each still capped at one member by the platform, and cleanup
// reclaims the loser.
func (m *Manager) GetOrCreate(ctx context.Context, telegramID int64, channelID, displayName string) (*meta.InviteLink, error) {
	existing, err := m.store.LatestActiveInvite(ctx, telegramID, channelID)
	if err == nil {
		logger.SVCInvite.Debug("invite reused",
			slog.String("event", "invite.reuse"),
			slog.Int64("user_id", telegramID),
			slog.String("channel_id", channelID),
		)
		return existing, nil
	}
	if !errors.Is(err, meta.ErrNotFound) {
		return nil, fmt.Errorf("invite: lookup: %w", err)
	}

	expiresAt := m.now().Add(m.ttl)
	created, err := m.links.CreateInviteLink(ctx, channelID, expiresAt, inviteLabel(displayName), 1)
	if err != nil {
		return nil, fmt.Errorf("invite: create: %w", err)
	}

	record := &meta.InviteLink{
		TelegramID:   telegramID,
		ChannelID:    channelID,
		URL:          created.URL,
		InviteLinkID: &created.ID,
		TTLSeconds:   int64(m.ttl / time.Second),
		ExpiresAt:    expiresAt,
		Status:       meta.InviteStatusActive,
		CreatedAt:    m.now().UTC(),
	}
	if err := m.store.InsertInvite(ctx, record); err != nil {
		return nil, fmt.Errorf("invite: persist: %w", err)
	}

	logger.SVCInvite.Info("invite created",
		slog.String("event", "invite.create"),
		slog.Int64("user_id", telegramID),
		slog.String("channel_id", channelID),
		slog.Time("expires_at", expiresAt),
	)
	return record, nil
}

// Expire marks all active records of a platform link as EXPIRED.
func (m *Manager) Expire(ctx context.Context, inviteLinkID string) error {
	return m.store.ExpireInvite(ctx, inviteLinkID)
}

// CleanupExpired deletes every record whose expiry has passed.
func (m *Manager) CleanupExpired(ctx context.Context) (int64, error) {
	return m.store.DeleteExpiredInvites(ctx)
}

// RunCleanup ticks the cleanup until the context ends.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := m.CleanupExpired(ctx); err != nil {
				logger.SVCInvite.Error("invite cleanup failed",
					slog.String("event", "invite.cleanup"),
					slog.String("err", err.Error()),
				)
			} else if n > 0 {
				logger.SVCInvite.Info("invite cleanup",
					slog.String("event", "invite.cleanup"),
					slog.Int64("count", n),
				)
			}
		}
	}
}

func inviteLabel(displayName string) string {
	label := "Invite for " + displayName
	runes := []rune(label)
	if len(runes) > labelLimit {
		return string(runes[:labelLimit])
	}
	return label
}
