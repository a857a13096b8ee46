// Package sweep reconciles channel access with the personnel database on a
// nightly schedule: current employees get stale blacklist flags healed,
// former employees get blocked, regardless of whether they ever talk to the
// bot again.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/m3rciful/staffgate/core/logger"
	"github.com/m3rciful/staffgate/platform"
	"github.com/m3rciful/staffgate/storage/meta"
	"github.com/m3rciful/staffgate/storage/personnel"
)

// Window is the local-time slot during which a pass may run. Hours are in
// the zone given by UTCOffsetHours; the end hour is exclusive.
type Window struct {
	StartHour      int
	EndHour        int
	UTCOffsetHours int
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	local := t.UTC().Add(time.Duration(w.UTCOffsetHours) * time.Hour)
	h := local.Hour()
	return h >= w.StartHour && h < w.EndHour
}

func (w Window) localDate(t time.Time) string {
	return t.UTC().Add(time.Duration(w.UTCOffsetHours) * time.Hour).Format("2006-01-02")
}

// PersonnelSource is the slice of the personnel repository the sweep uses.
type PersonnelSource interface {
	EmployedLinked(ctx context.Context) ([]personnel.Record, error)
	TerminatedLinked(ctx context.Context) ([]personnel.Record, error)
	SetBlacklist(ctx context.Context, code int64, blacklisted bool) error
}

// MetaSource is the slice of the metadata store the sweep uses.
type MetaSource interface {
	AppendAudit(ctx context.Context, telegramID int64, action string, payload any) error
	ChannelForDepartment(ctx context.Context, departmentID int64) (string, error)
}

// Moderator is the platform-side membership control the sweep needs.
type Moderator interface {
	BanMember(ctx context.Context, channelID string, userID int64) error
	UnbanMember(ctx context.Context, channelID string, userID int64) error
}

// Config carries the sweep schedule and channel fallbacks.
type Config struct {
	Window           Window
	DefaultChannelID string
	NewsChannelID    string
}

// Sweeper runs the nightly reconciliation.
type Sweeper struct {
	people    PersonnelSource
	meta      MetaSource
	moderator Moderator
	cfg       Config
	now       func() time.Time

	lastPass string
}

// NewSweeper wires a Sweeper.
func NewSweeper(people PersonnelSource, metaStore MetaSource, moderator Moderator, cfg Config) *Sweeper {
	return &Sweeper{
		people:    people,
		meta:      metaStore,
		moderator: moderator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Run ticks until the context ends, running at most one pass per local day,
// and only inside the configured window.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now()
			if !s.cfg.Window.Contains(now) {
				continue
			}
			date := s.cfg.Window.localDate(now)
			if date == s.lastPass {
				continue
			}
			if err := s.RunPass(ctx); err != nil {
				logger.SVCSweep.Error("sweep pass failed",
					slog.String("event", "sweep.pass"),
					slog.String("err", err.Error()),
				)
				continue
			}
			s.lastPass = date
		}
	}
}

// RunPass executes both halves of the reconciliation once. Per-record faults
// are logged and the pass continues; only a failure to load the record sets
// aborts it.
func (s *Sweeper) RunPass(ctx context.Context) error {
	start := time.Now()

	employed, err := s.people.EmployedLinked(ctx)
	if err != nil {
		return fmt.Errorf("sweep: load employed: %w", err)
	}
	healed := 0
	for i := range employed {
		if s.healEmployed(ctx, &employed[i]) {
			healed++
		}
	}

	terminated, err := s.people.TerminatedLinked(ctx)
	if err != nil {
		return fmt.Errorf("sweep: load terminated: %w", err)
	}
	for i := range terminated {
		s.blockTerminated(ctx, &terminated[i])
	}

	logger.SVCSweep.Info("sweep pass done",
		slog.String("event", "sweep.pass"),
		slog.Int("employed", len(employed)),
		slog.Int("healed", healed),
		slog.Int("terminated", len(terminated)),
		slog.Duration("duration", logger.Took(start)),
	)
	return nil
}

// healEmployed clears a stale blacklist flag on a current employee and lifts
// any channel ban on the linked account. Reports whether a heal happened.
func (s *Sweeper) healEmployed(ctx context.Context, rec *personnel.Record) bool {
	if !rec.Blacklisted {
		return false
	}
	if err := s.people.SetBlacklist(ctx, rec.Code, false); err != nil {
		logger.SVCSweep.Error("unblacklist failed",
			slog.String("event", "sweep.heal"),
			slog.Int64("code", rec.Code),
			slog.String("err", err.Error()),
		)
		return false
	}
	for _, ch := range s.channelsFor(ctx, rec.DepartmentID) {
		if err := s.moderator.UnbanMember(ctx, ch, *rec.TelegramID); err != nil && !platform.Benign(err) {
			logger.SVCSweep.Error("unban failed",
				slog.String("event", "sweep.heal"),
				slog.String("channel_id", ch),
				slog.Int64("user_id", *rec.TelegramID),
				slog.String("err", err.Error()),
			)
		}
	}
	s.audit(ctx, *rec.TelegramID, meta.ActionNightUnblacklist, rec)
	return true
}

// blockTerminated bans and blacklists a former employee. The audit entry is
// written every pass the record remains linked, so the trail shows the block
// being enforced, not just first applied.
func (s *Sweeper) blockTerminated(ctx context.Context, rec *personnel.Record) {
	for _, ch := range s.channelsFor(ctx, rec.DepartmentID) {
		if err := s.moderator.BanMember(ctx, ch, *rec.TelegramID); err != nil && !platform.Benign(err) {
			logger.SVCSweep.Error("ban failed",
				slog.String("event", "sweep.block"),
				slog.String("channel_id", ch),
				slog.Int64("user_id", *rec.TelegramID),
				slog.String("err", err.Error()),
			)
		}
	}
	if !rec.Blacklisted {
		if err := s.people.SetBlacklist(ctx, rec.Code, true); err != nil {
			logger.SVCSweep.Error("blacklist failed",
				slog.String("event", "sweep.block"),
				slog.Int64("code", rec.Code),
				slog.String("err", err.Error()),
			)
		}
	}
	s.audit(ctx, *rec.TelegramID, meta.ActionNightBlock, rec)
}

func (s *Sweeper) channelsFor(ctx context.Context, departmentID int64) []string {
	main, err := s.meta.ChannelForDepartment(ctx, departmentID)
	if errors.Is(err, meta.ErrNotFound) {
		main = s.cfg.DefaultChannelID
	} else if err != nil {
		logger.SVCSweep.Error("binding lookup failed",
			slog.String("event", "sweep.binding"),
			slog.Int64("department_id", departmentID),
			slog.String("err", err.Error()),
		)
		main = s.cfg.DefaultChannelID
	}

	var out []string
	if main != "" {
		out = append(out, main)
	}
	if s.cfg.NewsChannelID != "" && s.cfg.NewsChannelID != main {
		out = append(out, s.cfg.NewsChannelID)
	}
	return out
}

func (s *Sweeper) audit(ctx context.Context, telegramID int64, action string, rec *personnel.Record) {
	err := s.meta.AppendAudit(ctx, telegramID, action, map[string]any{
		"employee_code": rec.Code,
		"department_id": rec.DepartmentID,
	})
	if err != nil {
		logger.SVCSweep.Error("audit write failed",
			slog.String("event", "sweep.audit"),
			slog.String("action", action),
			slog.String("err", err.Error()),
		)
	}
}
