package verify

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/staffgate/core/logger"
	"github.com/m3rciful/staffgate/dialogue"
	"github.com/m3rciful/staffgate/identity"
	"github.com/m3rciful/staffgate/storage/meta"
	"github.com/m3rciful/staffgate/storage/personnel"
)

func TestMain(m *testing.M) {
	_ = logger.InitLogger(nil)
	os.Exit(m.Run())
}

func strPtr(s string) *string { return &s }
func i64Ptr(v int64) *int64   { return &v }

func testForm() dialogue.Form {
	return dialogue.Form{
		LastName:     "Иванов",
		FirstName:    "Иван",
		DepartmentID: 5,
		PositionID:   3,
		Phone:        "9001112233",
	}
}

type linkCall struct {
	code, telegramID int64
}

type fakePeople struct {
	byTelegram   map[int64]*personnel.Record
	linked       []linkCall
	relinked     []linkCall
	blacklist    map[int64]bool
	blacklistErr error
}

func newFakePeople() *fakePeople {
	return &fakePeople{
		byTelegram: make(map[int64]*personnel.Record),
		blacklist:  make(map[int64]bool),
	}
}

func (p *fakePeople) FindByTelegramID(_ context.Context, telegramID int64) (*personnel.Record, error) {
	if rec, ok := p.byTelegram[telegramID]; ok {
		return rec, nil
	}
	return nil, personnel.ErrNotFound
}

func (p *fakePeople) LinkTelegram(_ context.Context, code, telegramID int64, _ *string) error {
	p.linked = append(p.linked, linkCall{code, telegramID})
	return nil
}

func (p *fakePeople) RelinkTelegram(_ context.Context, code, telegramID int64, _ *string) error {
	p.relinked = append(p.relinked, linkCall{code, telegramID})
	return nil
}

func (p *fakePeople) SetBlacklist(_ context.Context, code int64, blacklisted bool) error {
	if p.blacklistErr != nil {
		return p.blacklistErr
	}
	p.blacklist[code] = blacklisted
	return nil
}

type fakeMatcher struct {
	rec *personnel.Record
	err error
}

func (m *fakeMatcher) Match(_ context.Context, _ identity.Query) (*personnel.Record, error) {
	return m.rec, m.err
}

type auditCall struct {
	telegramID int64
	action     string
}

type fakeMeta struct {
	audits   []auditCall
	bindings map[int64]string
	upserts  []*meta.VerifiedUser
}

func newFakeMeta() *fakeMeta {
	return &fakeMeta{bindings: make(map[int64]string)}
}

func (s *fakeMeta) AppendAudit(_ context.Context, telegramID int64, action string, _ any) error {
	s.audits = append(s.audits, auditCall{telegramID, action})
	return nil
}

func (s *fakeMeta) ChannelForDepartment(_ context.Context, departmentID int64) (string, error) {
	if ch, ok := s.bindings[departmentID]; ok {
		return ch, nil
	}
	return "", meta.ErrNotFound
}

func (s *fakeMeta) UpsertVerifiedUser(_ context.Context, u *meta.VerifiedUser) error {
	s.upserts = append(s.upserts, u)
	return nil
}

func (s *fakeMeta) actions() []string {
	out := make([]string, 0, len(s.audits))
	for _, a := range s.audits {
		out = append(out, a.action)
	}
	return out
}

type fakeInvites struct {
	issued []string
	err    error
}

func (f *fakeInvites) GetOrCreate(_ context.Context, telegramID int64, channelID, _ string) (*meta.InviteLink, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.issued = append(f.issued, channelID)
	return &meta.InviteLink{
		TelegramID: telegramID,
		ChannelID:  channelID,
		URL:        "https://t.me/+" + channelID,
		Status:     meta.InviteStatusActive,
	}, nil
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

type fixture struct {
	people    *fakePeople
	matcher   *fakeMatcher
	meta      *fakeMeta
	invites   *fakeInvites
	moderator *fakeModerator
	claims    *ClaimStore
	rec       *Reconciler
}

func newFixture(matched *personnel.Record) *fixture {
	f := &fixture{
		people:    newFakePeople(),
		matcher:   &fakeMatcher{rec: matched},
		meta:      newFakeMeta(),
		invites:   &fakeInvites{},
		moderator: &fakeModerator{},
		claims:    NewClaimStore(0),
	}
	f.rec = NewReconciler(f.people, f.matcher, f.meta, f.invites, f.moderator, f.claims, Channels{
		DefaultChannelID: "-100500",
		NewsChannelID:    "-100999",
	})
	return f
}

func employedRecord() *personnel.Record {
	return &personnel.Record{
		Code:         7,
		LastName:     "Иванов",
		FirstName:    "Иван",
		DepartmentID: 5,
		PositionID:   3,
		Phone:        strPtr("9001112233"),
	}
}

func TestVerifyFailsClosedWithoutSenderID(t *testing.T) {
	f := newFixture(employedRecord())
	out, err := f.rec.Verify(context.Background(), Requester{}, testForm())
	require.NoError(t, err)
	assert.Equal(t, OutcomeTryLater, out.Kind)
	assert.Empty(t, f.meta.audits)
	assert.Empty(t, f.people.linked)
}

func TestVerifyNoMatch(t *testing.T) {
	f := newFixture(nil)
	out, err := f.rec.Verify(context.Background(), Requester{ID: 42}, testForm())
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotFound, out.Kind)
	assert.Equal(t, []string{meta.ActionVerificationFailed}, f.meta.actions())
}

func TestVerifyGranted(t *testing.T) {
	f := newFixture(employedRecord())
	f.meta.bindings[5] = "-100111"

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42, Username: "ivan"}, testForm())
	require.NoError(t, err)
	require.Equal(t, OutcomeGranted, out.Kind)

	require.Len(t, out.Invites, 2)
	assert.False(t, out.Invites[0].News)
	assert.True(t, out.Invites[1].News)
	assert.Equal(t, []string{"-100111", "-100999"}, f.invites.issued)

	require.Len(t, f.people.linked, 1)
	assert.Equal(t, linkCall{7, 42}, f.people.linked[0])

	require.Len(t, f.meta.upserts, 1)
	assert.Equal(t, int64(7), f.meta.upserts[0].EmployeeCode)

	assert.Equal(t, []string{
		meta.ActionVerificationSuccess,
		meta.ActionInviteIssued,
		meta.ActionNewsInviteIssued,
	}, f.meta.actions())
}

func TestVerifyDefaultChannelFallback(t *testing.T) {
	f := newFixture(employedRecord())
	out, err := f.rec.Verify(context.Background(), Requester{ID: 42}, testForm())
	require.NoError(t, err)
	require.Equal(t, OutcomeGranted, out.Kind)
	assert.Equal(t, "-100500", f.invites.issued[0], "unbound department falls back to the default channel")
}

func TestVerifyChannelMisconfigured(t *testing.T) {
	f := newFixture(employedRecord())
	f.rec.channels = Channels{}

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42}, testForm())
	require.NoError(t, err)
	assert.Equal(t, OutcomeChannelMisconfigured, out.Kind)
	assert.Empty(t, f.invites.issued)
}

func TestVerifyBlacklistedDenied(t *testing.T) {
	rec := employedRecord()
	now := time.Now()
	rec.TerminationDate = &now
	rec.Blacklisted = true
	f := newFixture(rec)

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42}, testForm())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, out.Kind)
	assert.Equal(t, []string{meta.ActionBlacklistedAttempt}, f.meta.actions())
	assert.Empty(t, f.moderator.bans, "blacklist gate denies without moderation calls")
}

func TestVerifyTerminatedBlocked(t *testing.T) {
	rec := employedRecord()
	now := time.Now()
	rec.TerminationDate = &now
	f := newFixture(rec)
	f.meta.bindings[5] = "-100111"

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42}, testForm())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, out.Kind)

	require.Len(t, f.moderator.bans, 2)
	assert.Equal(t, modCall{"-100111", 42}, f.moderator.bans[0])
	assert.Equal(t, modCall{"-100999", 42}, f.moderator.bans[1])
	assert.True(t, f.people.blacklist[7], "terminated requester gets blacklisted")
	assert.Equal(t, []string{meta.ActionFiredBlocked}, f.meta.actions())
}

func TestVerifySelfHealsEmployedBeforeGates(t *testing.T) {
	rec := employedRecord()
	rec.Blacklisted = true
	rec.TelegramID = i64Ptr(42)
	f := newFixture(rec)
	f.people.byTelegram[42] = rec

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42}, testForm())
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, out.Kind, "stale blacklist on a current employee must not deny")
	assert.False(t, f.people.blacklist[7])
	assert.NotEmpty(t, f.moderator.unbans, "linked account gets unbanned during healing")
}

func TestVerifyEmployedNotDeniedWhenHealWriteFails(t *testing.T) {
	rec := employedRecord()
	rec.Blacklisted = true
	rec.TelegramID = i64Ptr(42)
	f := newFixture(rec)
	f.people.byTelegram[42] = rec
	f.people.blacklistErr = errors.New("connection reset")

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42}, testForm())
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, out.Kind,
		"a blacklist flag that survived a failed heal write must not deny a current employee")
	assert.NotContains(t, f.meta.actions(), meta.ActionBlacklistedAttempt)
}

func TestVerifyClaimPending(t *testing.T) {
	rec := employedRecord()
	rec.TelegramID = i64Ptr(99)
	f := newFixture(rec)

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42, Username: "new"}, testForm())
	require.NoError(t, err)
	require.Equal(t, OutcomeClaimPending, out.Kind)
	require.NotNil(t, out.Claim)
	assert.Equal(t, int64(99), out.LinkedID)
	assert.Equal(t, int64(42), out.Claim.RequesterID)
	assert.Equal(t, []string{meta.ActionClaimPending}, f.meta.actions())
	assert.Empty(t, f.people.linked, "no linkage while the claim is pending")
	assert.Empty(t, f.invites.issued)
}

func TestResolveClaimAllow(t *testing.T) {
	rec := employedRecord()
	rec.TelegramID = i64Ptr(99)
	f := newFixture(rec)
	f.meta.bindings[5] = "-100111"

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42, Username: "new"}, testForm())
	require.NoError(t, err)
	claim := out.Claim

	resolved, res, err := f.rec.ResolveClaim(context.Background(), claim.ID, true)
	require.NoError(t, err)
	assert.Equal(t, claim.ID, resolved.ID)
	require.Equal(t, OutcomeGranted, res.Kind)

	require.Len(t, f.people.relinked, 1)
	assert.Equal(t, linkCall{7, 42}, f.people.relinked[0], "allow moves the link to the requester")
	assert.Contains(t, f.meta.actions(), meta.ActionClaimAllowed)
	assert.Equal(t, []string{"-100111", "-100999"}, f.invites.issued)
}

func TestResolveClaimBlock(t *testing.T) {
	rec := employedRecord()
	rec.TelegramID = i64Ptr(99)
	f := newFixture(rec)

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42}, testForm())
	require.NoError(t, err)

	resolved, res, err := f.rec.ResolveClaim(context.Background(), out.Claim.ID, false)
	require.NoError(t, err)
	assert.Equal(t, int64(42), resolved.RequesterID)
	assert.Equal(t, OutcomeDenied, res.Kind)
	assert.Empty(t, f.people.relinked)
	assert.Contains(t, f.meta.actions(), meta.ActionClaimBlocked)
}

func TestResolveClaimUnknownSession(t *testing.T) {
	f := newFixture(employedRecord())
	_, _, err := f.rec.ResolveClaim(context.Background(), "nope", true)
	assert.ErrorIs(t, err, ErrClaimNotFound)
}

func TestResolveClaimOnlyOnce(t *testing.T) {
	rec := employedRecord()
	rec.TelegramID = i64Ptr(99)
	f := newFixture(rec)

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42}, testForm())
	require.NoError(t, err)

	_, _, err = f.rec.ResolveClaim(context.Background(), out.Claim.ID, false)
	require.NoError(t, err)
	_, _, err = f.rec.ResolveClaim(context.Background(), out.Claim.ID, true)
	assert.ErrorIs(t, err, ErrClaimNotFound, "a settled claim cannot be replayed")
}

func TestVerifyConflict(t *testing.T) {
	matched := employedRecord()
	f := newFixture(matched)

	other := employedRecord()
	other.Code = 8
	f.people.byTelegram[42] = other

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42}, testForm())
	require.NoError(t, err)
	assert.Equal(t, OutcomeConflict, out.Kind)
	assert.Empty(t, f.people.linked)
	assert.Empty(t, f.invites.issued)
}

func TestVerifyRelinkSameRecordIsFine(t *testing.T) {
	matched := employedRecord()
	matched.TelegramID = i64Ptr(42)
	f := newFixture(matched)
	f.people.byTelegram[42] = matched

	out, err := f.rec.Verify(context.Background(), Requester{ID: 42}, testForm())
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, out.Kind, "re-verification by the already linked account succeeds")
}
