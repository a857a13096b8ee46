package sweep

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/staffgate/core/logger"
	"github.com/m3rciful/staffgate/storage/meta"
	"github.com/m3rciful/staffgate/storage/personnel"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

func i64Ptr(v int64) *int64 { return &v }

func TestWindowContains(t *testing.T) {
	w := Window{StartHour: 0, EndHour: 5, UTCOffsetHours: 3}

	// 23:30 UTC is 02:30 local: inside.
	assert.True(t, w.Contains(time.Date(2026, 8, 29, 23, 30, 0, 0, time.UTC)))
	// 01:00 UTC is 04:00 local: inside.
	assert.True(t, w.Contains(time.Date(2026, 8, 30, 1, 0, 0, 0, time.UTC)))
	// 02:00 UTC is 05:00 local: the end hour is exclusive.
	assert.False(t, w.Contains(time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC)))
	// 12:00 UTC is 15:00 local: outside.
	assert.False(t, w.Contains(time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)))
}

func TestWindowContainsUTC(t *testing.T) {
	w := Window{StartHour: 0, EndHour: 5}
	assert.True(t, w.Contains(time.Date(2026, 8, 30, 4, 59, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 8, 30, 5, 0, 0, 0, time.UTC)))
}

type fakePeople struct {
	employed   []personnel.Record
	terminated []personnel.Record
	blacklist  map[int64]bool
}

func newFakePeople() *fakePeople {
	return &fakePeople{blacklist: make(map[int64]bool)}
}

func (p *fakePeople) EmployedLinked(_ context.Context) ([]personnel.Record, error) {
	return p.employed, nil
}

func (p *fakePeople) TerminatedLinked(_ context.Context) ([]personnel.Record, error) {
	return p.terminated, nil
}

func (p *fakePeople) SetBlacklist(_ context.Context, code int64, blacklisted bool) error {
	p.blacklist[code] = blacklisted
	return nil
}

type fakeMeta struct {
	actions  []string
	bindings map[int64]string
}

func (s *fakeMeta) AppendAudit(_ context.Context, _ int64, action string, _ any) error {
	s.actions = append(s.actions, action)
	return nil
}

func (s *fakeMeta) ChannelForDepartment(_ context.Context, departmentID int64) (string, error) {
	if ch, ok := s.bindings[departmentID]; ok {
		return ch, nil
	}
	return "", meta.ErrNotFound
}

type modCall struct {
	channelID string
	userID    int64
}

type fakeModerator struct {
	bans   []modCall
	unbans []modCall
}

func (f *fakeModerator) BanMember(_ context.Context, channelID string, userID int64) error {
	f.bans = append(f.bans, modCall{channelID, userID})
	return nil
}

func (f *fakeModerator) UnbanMember(_ context.Context, channelID string, userID int64) error {
	f.unbans = append(f.unbans, modCall{channelID, userID})
	return nil
}

func newTestSweeper(people *fakePeople, metaStore *fakeMeta, mod *fakeModerator) *Sweeper {
	return NewSweeper(people, metaStore, mod, Config{
		Window:           Window{StartHour: 0, EndHour: 5, UTCOffsetHours: 3},
		DefaultChannelID: "-100500",
		NewsChannelID:    "-100999",
	})
}

func TestRunPassHealsBlacklistedEmployees(t *testing.T) {
	people := newFakePeople()
	people.employed = []personnel.Record{
		{Code: 1, DepartmentID: 5, TelegramID: i64Ptr(42), Blacklisted: true},
		{Code: 2, DepartmentID: 5, TelegramID: i64Ptr(43)},
	}
	metaStore := &fakeMeta{bindings: map[int64]string{5: "-100111"}}
	mod := &fakeModerator{}
	s := newTestSweeper(people, metaStore, mod)

	require.NoError(t, s.RunPass(context.Background()))

	assert.False(t, people.blacklist[1], "stale flag cleared")
	_, touched := people.blacklist[2]
	assert.False(t, touched, "clean employees are left alone")

	require.Len(t, mod.unbans, 2)
	assert.Equal(t, modCall{"-100111", 42}, mod.unbans[0])
	assert.Equal(t, modCall{"-100999", 42}, mod.unbans[1])
	assert.Equal(t, []string{meta.ActionNightUnblacklist}, metaStore.actions)
}

func TestRunPassBlocksTerminated(t *testing.T) {
	people := newFakePeople()
	people.terminated = []personnel.Record{
		{Code: 9, DepartmentID: 7, TelegramID: i64Ptr(77)},
	}
	metaStore := &fakeMeta{bindings: map[int64]string{}}
	mod := &fakeModerator{}
	s := newTestSweeper(people, metaStore, mod)

	require.NoError(t, s.RunPass(context.Background()))

	require.Len(t, mod.bans, 2)
	assert.Equal(t, modCall{"-100500", 77}, mod.bans[0], "unbound department bans via the default channel")
	assert.Equal(t, modCall{"-100999", 77}, mod.bans[1])
	assert.True(t, people.blacklist[9])
	assert.Equal(t, []string{meta.ActionNightBlock}, metaStore.actions)
}

func TestRunPassAuditsAlreadyBlacklistedTerminated(t *testing.T) {
	people := newFakePeople()
	people.terminated = []personnel.Record{
		{Code: 9, DepartmentID: 7, TelegramID: i64Ptr(77), Blacklisted: true},
	}
	metaStore := &fakeMeta{bindings: map[int64]string{}}
	s := newTestSweeper(people, metaStore, &fakeModerator{})

	require.NoError(t, s.RunPass(context.Background()))

	_, touched := people.blacklist[9]
	assert.False(t, touched, "already blacklisted records are not rewritten")
	assert.Equal(t, []string{meta.ActionNightBlock}, metaStore.actions, "the block is still audited every pass")
}
