// Package verify implements the access pipeline that turns a confirmed
// registration form into a grant, a denial, or a takeover claim, and keeps
// channel membership consistent with the personnel database along the way.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/staffgate/core/logger"
	"github.com/m3rciful/staffgate/dialogue"
	"github.com/m3rciful/staffgate/identity"
	"github.com/m3rciful/staffgate/platform"
	"github.com/m3rciful/staffgate/storage/meta"
	"github.com/m3rciful/staffgate/storage/personnel"
)

// ErrClaimNotFound is returned when a claim session id is unknown or has
// already expired.
var ErrClaimNotFound = errors.New("verify: claim session not found")

// OutcomeKind classifies the terminal branch of a verification attempt.
type OutcomeKind int

const (
	// OutcomeTryLater means a transient fault; the user should retry.
	OutcomeTryLater OutcomeKind = iota
	// OutcomeNotFound means no personnel record matched the form.
	OutcomeNotFound
	// OutcomeDenied means the record is blacklisted or terminated.
	OutcomeDenied
	// OutcomeClaimPending means the identity is linked to another account
	// and that account holder has been asked to allow or block.
	OutcomeClaimPending
	// OutcomeConflict means the requester's account is already linked to a
	// different personnel record.
	OutcomeConflict
	// OutcomeChannelMisconfigured means no destination channel could be
	// resolved for the matched record.
	OutcomeChannelMisconfigured
	// OutcomeGranted means invites were issued.
	OutcomeGranted
)

// IssuedInvite is one invite produced by a grant, flagged when it targets
// the news channel rather than the department channel.
type IssuedInvite struct {
	Link *meta.InviteLink
	News bool
}

// Outcome is the result of one verification attempt.
type Outcome struct {
	Kind     OutcomeKind
	Invites  []IssuedInvite
	Claim    *Claim
	LinkedID int64
	Employee *personnel.Record
}

// Requester identifies the account asking for access.
type Requester struct {
	ID       int64
	Username string
}

// PersonnelStore is the slice of the personnel repository the pipeline uses.
type PersonnelStore interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*personnel.Record, error)
	LinkTelegram(ctx context.Context, code, telegramID int64, username *string) error
	RelinkTelegram(ctx context.Context, code, telegramID int64, username *string) error
	SetBlacklist(ctx context.Context, code int64, blacklisted bool) error
}

// IdentityMatcher resolves a collected form to at most one record.
type IdentityMatcher interface {
	Match(ctx context.Context, q identity.Query) (*personnel.Record, error)
}

// MetaStore is the slice of the metadata store the pipeline uses.
type MetaStore interface {
	AppendAudit(ctx context.Context, telegramID int64, action string, payload any) error
	ChannelForDepartment(ctx context.Context, departmentID int64) (string, error)
	UpsertVerifiedUser(ctx context.Context, u *meta.VerifiedUser) error
}

// InviteIssuer hands out at most one valid link per (user, channel).
type InviteIssuer interface {
	GetOrCreate(ctx context.Context, telegramID int64, channelID, displayName string) (*meta.InviteLink, error)
}

// Moderator is the platform-side membership control the pipeline needs.
type Moderator interface {
	BanMember(ctx context.Context, channelID string, userID int64) error
	UnbanMember(ctx context.Context, channelID string, userID int64) error
}

// Channels carries the configured fallback and news channel ids. Either may
// be empty.
type Channels struct {
	DefaultChannelID string
	NewsChannelID    string
}

// Reconciler runs the verification pipeline and resolves takeover claims.
type Reconciler struct {
	people    PersonnelStore
	matcher   IdentityMatcher
	meta      MetaStore
	invites   InviteIssuer
	moderator Moderator
	claims    *ClaimStore
	channels  Channels
}

// NewReconciler wires the pipeline.
func NewReconciler(
	people PersonnelStore,
	matcher IdentityMatcher,
	metaStore MetaStore,
	invites InviteIssuer,
	moderator Moderator,
	claims *ClaimStore,
	channels Channels,
) *Reconciler {
	return &Reconciler{
		people:    people,
		matcher:   matcher,
		meta:      metaStore,
		invites:   invites,
		moderator: moderator,
		claims:    claims,
		channels:  channels,
	}
}

type formPayload struct {
	LastName     string  `json:"last_name"`
	FirstName    string  `json:"first_name"`
	MiddleName   *string `json:"middle_name"`
	DepartmentID int64   `json:"department_id"`
	PositionID   int64   `json:"position_id"`
	Phone        string  `json:"phone"`
	EmployeeCode int64   `json:"employee_code,omitempty"`
}

func payload(form dialogue.Form, code int64) formPayload {
	return formPayload{
		LastName:     form.LastName,
		FirstName:    form.FirstName,
		MiddleName:   form.MiddleName,
		DepartmentID: form.DepartmentID,
		PositionID:   form.PositionID,
		Phone:        form.Phone,
		EmployeeCode: code,
	}
}

// Verify runs the full pipeline for a confirmed form. A non-nil error means
// a transient fault; every deliberate refusal comes back as an Outcome.
func (r *Reconciler) Verify(ctx context.Context, req Requester, form dialogue.Form) (Outcome, error) {
	if req.ID == 0 {
		// Fail closed: without a sender id neither auditing nor linkage
		// can be trusted.
		return Outcome{Kind: OutcomeTryLater}, nil
	}

	rec, err := r.matcher.Match(ctx, identity.Query{
		LastName:     form.LastName,
		FirstName:    form.FirstName,
		MiddleName:   form.MiddleName,
		DepartmentID: form.DepartmentID,
		PositionID:   form.PositionID,
		Phone:        form.Phone,
	})
	if err != nil {
		return Outcome{Kind: OutcomeTryLater}, err
	}
	if rec == nil {
		r.audit(ctx, req.ID, meta.ActionVerificationFailed, payload(form, 0))
		return Outcome{Kind: OutcomeNotFound}, nil
	}

	mainChannel, newsChannel, err := r.resolveChannels(ctx, rec.DepartmentID)
	if err != nil {
		return Outcome{Kind: OutcomeTryLater}, err
	}

	if rec.Employed() {
		r.heal(ctx, rec, mainChannel, newsChannel)
	}

	// The gate requires both flags: an employed record whose blacklist flag
	// survived a failed heal write must not block re-verification.
	if rec.Blacklisted && !rec.Employed() {
		r.audit(ctx, req.ID, meta.ActionBlacklistedAttempt, payload(form, rec.Code))
		return Outcome{Kind: OutcomeDenied, Employee: rec}, nil
	}

	if !rec.Employed() {
		r.block(ctx, req.ID, mainChannel, newsChannel)
		if err := r.people.SetBlacklist(ctx, rec.Code, true); err != nil {
			logger.SVCVerify.Error("blacklist update failed",
				slog.String("event", "verify.blacklist"),
				slog.Int64("code", rec.Code),
				slog.String("err", err.Error()),
			)
		}
		r.audit(ctx, req.ID, meta.ActionFiredBlocked, payload(form, rec.Code))
		return Outcome{Kind: OutcomeDenied, Employee: rec}, nil
	}

	if rec.TelegramID != nil && *rec.TelegramID != req.ID {
		claim := r.claims.Create(req.ID, req.Username, rec.Code, form)
		r.audit(ctx, req.ID, meta.ActionClaimPending, payload(form, rec.Code))
		return Outcome{
			Kind:     OutcomeClaimPending,
			Claim:    claim,
			LinkedID: *rec.TelegramID,
			Employee: rec,
		}, nil
	}

	existing, err := r.people.FindByTelegramID(ctx, req.ID)
	if err != nil && !errors.Is(err, personnel.ErrNotFound) {
		return Outcome{Kind: OutcomeTryLater}, err
	}
	if existing != nil && existing.Code != rec.Code {
		logger.SVCVerify.Warn("linkage conflict",
			slog.String("event", "verify.conflict"),
			slog.Int64("user_id", req.ID),
			slog.Int64("matched_code", rec.Code),
			slog.Int64("linked_code", existing.Code),
		)
		return Outcome{Kind: OutcomeConflict, Employee: rec}, nil
	}

	if err := r.people.LinkTelegram(ctx, rec.Code, req.ID, usernamePtr(req.Username)); err != nil {
		return Outcome{Kind: OutcomeTryLater}, err
	}
	r.upsertVerified(ctx, req, rec.Code, form)
	r.audit(ctx, req.ID, meta.ActionVerificationSuccess, payload(form, rec.Code))

	return r.issueInvites(ctx, req.ID, form.DisplayName(), mainChannel, newsChannel, rec)
}

// ResolveClaim settles a takeover handshake. On allow the record is relinked
// to the requester and invites are issued as in a normal grant.
func (r *Reconciler) ResolveClaim(ctx context.Context, sessionID string, allow bool) (*Claim, Outcome, error) {
	claim, ok := r.claims.Take(sessionID)
	if !ok {
		return nil, Outcome{}, ErrClaimNotFound
	}

	if !allow {
		r.audit(ctx, claim.RequesterID, meta.ActionClaimBlocked, payload(claim.Form, claim.EmployeeCode))
		return claim, Outcome{Kind: OutcomeDenied}, nil
	}

	if err := r.people.RelinkTelegram(ctx, claim.EmployeeCode, claim.RequesterID, usernamePtr(claim.RequesterUsername)); err != nil {
		return claim, Outcome{Kind: OutcomeTryLater}, err
	}
	req := Requester{ID: claim.RequesterID, Username: claim.RequesterUsername}
	r.upsertVerified(ctx, req, claim.EmployeeCode, claim.Form)
	r.audit(ctx, claim.RequesterID, meta.ActionClaimAllowed, payload(claim.Form, claim.EmployeeCode))

	mainChannel, newsChannel, err := r.resolveChannels(ctx, claim.Form.DepartmentID)
	if err != nil {
		return claim, Outcome{Kind: OutcomeTryLater}, err
	}
	out, err := r.issueInvites(ctx, claim.RequesterID, claim.Form.DisplayName(), mainChannel, newsChannel, nil)
	return claim, out, err
}

// resolveChannels maps a department to its bound channel, falling back to
// the configured default when no binding exists.
func (r *Reconciler) resolveChannels(ctx context.Context, departmentID int64) (mainChannel, newsChannel string, err error) {
	mainChannel, err = r.meta.ChannelForDepartment(ctx, departmentID)
	if errors.Is(err, meta.ErrNotFound) {
		mainChannel, err = r.channels.DefaultChannelID, nil
	}
	if err != nil {
		return "", "", fmt.Errorf("verify: resolve channel: %w", err)
	}
	return mainChannel, r.channels.NewsChannelID, nil
}

func (r *Reconciler) issueInvites(ctx context.Context, userID int64, displayName, mainChannel, newsChannel string, rec *personnel.Record) (Outcome, error) {
	if mainChannel == "" {
		logger.SVCVerify.Error("no destination channel",
			slog.String("event", "verify.channel_missing"),
			slog.Int64("user_id", userID),
		)
		return Outcome{Kind: OutcomeChannelMisconfigured, Employee: rec}, nil
	}

	link, err := r.invites.GetOrCreate(ctx, userID, mainChannel, displayName)
	if err != nil {
		if platform.ReasonOf(err) == platform.ReasonNotFound {
			return Outcome{Kind: OutcomeChannelMisconfigured, Employee: rec}, nil
		}
		return Outcome{Kind: OutcomeTryLater, Employee: rec}, err
	}
	out := Outcome{
		Kind:     OutcomeGranted,
		Invites:  []IssuedInvite{{Link: link}},
		Employee: rec,
	}
	r.audit(ctx, userID, meta.ActionInviteIssued, map[string]any{
		"channel_id": mainChannel,
		"url":        link.URL,
	})

	// The news channel is best effort: a fault there must not void an
	// already granted department invite.
	if newsChannel != "" && newsChannel != mainChannel {
		newsLink, err := r.invites.GetOrCreate(ctx, userID, newsChannel, displayName)
		if err != nil {
			logger.SVCVerify.Error("news invite failed",
				slog.String("event", "verify.news_invite"),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		} else {
			out.Invites = append(out.Invites, IssuedInvite{Link: newsLink, News: true})
			r.audit(ctx, userID, meta.ActionNewsInviteIssued, map[string]any{
				"channel_id": newsChannel,
				"url":        newsLink.URL,
			})
		}
	}
	return out, nil
}

// heal repairs drift for a current employee before any gate can misfire on
// stale state: a leftover blacklist flag is cleared and the linked account
// is unbanned from the destination channels.
func (r *Reconciler) heal(ctx context.Context, rec *personnel.Record, mainChannel, newsChannel string) {
	if rec.Blacklisted {
		if err := r.people.SetBlacklist(ctx, rec.Code, false); err != nil {
			logger.SVCVerify.Error("blacklist heal failed",
				slog.String("event", "verify.heal"),
				slog.Int64("code", rec.Code),
				slog.String("err", err.Error()),
			)
		} else {
			rec.Blacklisted = false
			logger.SVCVerify.Info("blacklist healed",
				slog.String("event", "verify.heal"),
				slog.Int64("code", rec.Code),
			)
		}
	}
	if rec.TelegramID == nil {
		return
	}
	for _, ch := range channelSet(mainChannel, newsChannel) {
		if err := r.moderator.UnbanMember(ctx, ch, *rec.TelegramID); err != nil && !platform.Benign(err) {
			logger.SVCVerify.Error("unban failed",
				slog.String("event", "verify.unban"),
				slog.String("channel_id", ch),
				slog.Int64("user_id", *rec.TelegramID),
				slog.String("err", err.Error()),
			)
		}
	}
}

// block removes the requester from the destination channels. Benign platform
// refusals (never a member, private chat, owner) are swallowed.
func (r *Reconciler) block(ctx context.Context, userID int64, mainChannel, newsChannel string) {
	for _, ch := range channelSet(mainChannel, newsChannel) {
		if err := r.moderator.BanMember(ctx, ch, userID); err != nil && !platform.Benign(err) {
			logger.SVCVerify.Error("ban failed",
				slog.String("event", "verify.ban"),
				slog.String("channel_id", ch),
				slog.Int64("user_id", userID),
				slog.String("err", err.Error()),
			)
		}
	}
}

func (r *Reconciler) upsertVerified(ctx context.Context, req Requester, code int64, form dialogue.Form) {
	var phone *string
	if form.Phone != "" {
		phone = &form.Phone
	}
	u := &meta.VerifiedUser{
		TelegramID:   req.ID,
		EmployeeCode: code,
		FullName:     form.DisplayName(),
		Phone:        phone,
		Department:   strconv.FormatInt(form.DepartmentID, 10),
		Position:     strconv.FormatInt(form.PositionID, 10),
		Username:     usernamePtr(req.Username),
		VerifiedAt:   time.Now().UTC(),
	}
	if err := r.meta.UpsertVerifiedUser(ctx, u); err != nil {
		logger.SVCVerify.Error("verified user upsert failed",
			slog.String("event", "verify.upsert"),
			slog.Int64("user_id", req.ID),
			slog.String("err", err.Error()),
		)
	}
}

// audit failures are logged, never surfaced: the user-facing outcome of a
// finished branch does not depend on the audit write.
func (r *Reconciler) audit(ctx context.Context, telegramID int64, action string, p any) {
	if err := r.meta.AppendAudit(ctx, telegramID, action, p); err != nil {
		logger.SVCVerify.Error("audit write failed",
			slog.String("event", "verify.audit"),
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
	}
}

func channelSet(ids ...string) []string {
	var out []string
	for _, id := range ids {
		if id == "" {
			continue
		}
		dup := false
		for _, seen := range out {
			if seen == id {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, id)
		}
	}
	return out
}

func usernamePtr(username string) *string {
	if username == "" {
		return nil
	}
	return &username
}
