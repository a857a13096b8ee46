package invite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/staffgate/core/logger"
	"github.com/m3rciful/staffgate/platform"
	"github.com/m3rciful/staffgate/storage/meta"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

type fakeStore struct {
	active   map[string]*meta.InviteLink
	inserted []*meta.InviteLink
	expired  []string
	deleted  int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{active: make(map[string]*meta.InviteLink)}
}

func key(telegramID int64, channelID string) string {
	return fmt.Sprintf("%s/%d", channelID, telegramID)
}

// LatestActiveInvite applies the same validity filter as the real query:
// status ACTIVE and expiry in the future.
func (s *fakeStore) LatestActiveInvite(_ context.Context, telegramID int64, channelID string) (*meta.InviteLink, error) {
	link, ok := s.active[key(telegramID, channelID)]
	if !ok || link.Status != meta.InviteStatusActive || !link.ExpiresAt.After(time.Now()) {
		return nil, meta.ErrNotFound
	}
	return link, nil
}

func (s *fakeStore) InsertInvite(_ context.Context, link *meta.InviteLink) error {
	s.inserted = append(s.inserted, link)
	s.active[key(link.TelegramID, link.ChannelID)] = link
	return nil
}

func (s *fakeStore) ExpireInvite(_ context.Context, inviteLinkID string) error {
	s.expired = append(s.expired, inviteLinkID)
	return nil
}

func (s *fakeStore) DeleteExpiredInvites(_ context.Context) (int64, error) {
	return s.deleted, nil
}

type fakeLinks struct {
	calls  int
	err    error
	lastTo string
	label  string
	limit  int
}

func (l *fakeLinks) CreateInviteLink(_ context.Context, channelID string, _ time.Time, label string, memberLimit int) (platform.Invite, error) {
	l.calls++
	l.lastTo = channelID
	l.label = label
	l.limit = memberLimit
	if l.err != nil {
		return platform.Invite{}, l.err
	}
	return platform.Invite{URL: "https://t.me/+abc", ID: "https://t.me/+abc"}, nil
}

func TestGetOrCreateCreatesOnMiss(t *testing.T) {
	store := newFakeStore()
	links := &fakeLinks{}
	m := NewManager(store, links, time.Hour)

	link, err := m.GetOrCreate(context.Background(), 42, "-1001", "Иванов Иван")
	require.NoError(t, err)
	assert.Equal(t, 1, links.calls)
	assert.Equal(t, 1, links.limit, "links are single use")
	assert.Equal(t, "-1001", links.lastTo)
	assert.Equal(t, meta.InviteStatusActive, link.Status)
	assert.Equal(t, "https://t.me/+abc", link.URL)
	require.Len(t, store.inserted, 1)
}

func TestGetOrCreateReusesActiveLink(t *testing.T) {
	store := newFakeStore()
	links := &fakeLinks{}
	m := NewManager(store, links, time.Hour)

	first, err := m.GetOrCreate(context.Background(), 42, "-1001", "Иванов Иван")
	require.NoError(t, err)
	second, err := m.GetOrCreate(context.Background(), 42, "-1001", "Иванов Иван")
	require.NoError(t, err)

	assert.Equal(t, 1, links.calls, "second call must not hit the platform")
	assert.Equal(t, first.URL, second.URL)
}

func TestGetOrCreateRecreatesAfterExpiry(t *testing.T) {
	store := newFakeStore()
	links := &fakeLinks{}
	m := NewManager(store, links, time.Hour)

	stale := &meta.InviteLink{
		TelegramID: 42,
		ChannelID:  "-1001",
		URL:        "https://t.me/+old",
		Status:     meta.InviteStatusActive,
		ExpiresAt:  time.Now().Add(-time.Minute),
	}
	store.active[key(stale.TelegramID, stale.ChannelID)] = stale

	link, err := m.GetOrCreate(context.Background(), 42, "-1001", "Иванов Иван")
	require.NoError(t, err)
	assert.Equal(t, 1, links.calls, "an expired record must not be reused")
	assert.Equal(t, "https://t.me/+abc", link.URL)
	assert.Equal(t, meta.InviteStatusActive, link.Status)
	assert.True(t, link.ExpiresAt.After(time.Now()))
	require.Len(t, store.inserted, 1)
}

func TestGetOrCreatePerChannel(t *testing.T) {
	store := newFakeStore()
	links := &fakeLinks{}
	m := NewManager(store, links, time.Hour)

	_, err := m.GetOrCreate(context.Background(), 42, "-1001", "Иванов Иван")
	require.NoError(t, err)
	_, err = m.GetOrCreate(context.Background(), 42, "-1002", "Иванов Иван")
	require.NoError(t, err)
	assert.Equal(t, 2, links.calls, "each channel gets its own link")
}

func TestGetOrCreatePlatformFailure(t *testing.T) {
	store := newFakeStore()
	links := &fakeLinks{err: errors.New("Bad Request: chat not found")}
	m := NewManager(store, links, time.Hour)

	_, err := m.GetOrCreate(context.Background(), 42, "-1001", "Иванов Иван")
	require.Error(t, err)
	assert.Empty(t, store.inserted, "nothing persisted on platform failure")
}

func TestInviteLabelTruncation(t *testing.T) {
	long := "Константинопольский Константин Константинович"
	label := inviteLabel(long)
	assert.LessOrEqual(t, len([]rune(label)), labelLimit)

	short := inviteLabel("Иванов Иван")
	assert.Equal(t, "Invite for Иванов Иван", short)
}

func TestExpireDelegates(t *testing.T) {
	store := newFakeStore()
	m := NewManager(store, &fakeLinks{}, time.Hour)
	require.NoError(t, m.Expire(context.Background(), "https://t.me/+abc"))
	assert.Equal(t, []string{"https://t.me/+abc"}, store.expired)
}

func TestCleanupExpired(t *testing.T) {
	store := newFakeStore()
	store.deleted = 3
	m := NewManager(store, &fakeLinks{}, time.Hour)
	n, err := m.CleanupExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestDefaultTTLApplied(t *testing.T) {
	m := NewManager(newFakeStore(), &fakeLinks{}, 0)
	assert.Equal(t, DefaultTTL, m.ttl)
}
