// Package bot wires the verification services into the Telegram runtime:
// command and callback registration, the registration FSM, background
// maintenance loops, and the liveness endpoint.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/staffgate/config"
	"github.com/m3rciful/staffgate/core/bootstrap"
	coredatabase "github.com/m3rciful/staffgate/core/database"
	"github.com/m3rciful/staffgate/core/logger"
	coretelegram "github.com/m3rciful/staffgate/core/telegram"
	"github.com/m3rciful/staffgate/core/telegram/commands"
	"github.com/m3rciful/staffgate/core/telegram/middleware"
	"github.com/m3rciful/staffgate/core/telegram/router"
	"github.com/m3rciful/staffgate/core/telegram/state"
	"github.com/m3rciful/staffgate/dialogue"
	"github.com/m3rciful/staffgate/identity"
	"github.com/m3rciful/staffgate/invite"
	"github.com/m3rciful/staffgate/platform"
	"github.com/m3rciful/staffgate/storage/meta"
	"github.com/m3rciful/staffgate/storage/personnel"
	"github.com/m3rciful/staffgate/sweep"
	"github.com/m3rciful/staffgate/verify"
)

// App aggregates the application services behind the Telegram runtime.
type App struct {
	cfg *config.AppConfig

	personnelDB *sqlx.DB
	metaDB      *sqlx.DB

	people    *personnel.Repository
	store     *meta.Store
	sessions  state.Manager
	dialogues *dialogue.Engine
	client    *platform.BotClient
	invites   *invite.Manager
	verifier  *verify.Reconciler
	sweeper   *sweep.Sweeper

	health *healthServer
}

// Bootstrap initializes logging, both databases (applying migrations to the
// metadata one), and builds the service graph.
func Bootstrap(cfg *config.AppConfig) (*App, error) {
	res, err := bootstrap.Run(bootstrap.Options{
		Config:   cfg.CoreConfig(),
		Database: cfg.MetaDB.Core(),
	})
	if err != nil {
		return nil, err
	}

	// The personnel database belongs to the HR feed: connect only, never
	// migrate.
	personnelDB, err := coredatabase.Connect(cfg.PersonnelDB.Core())
	if err != nil {
		_ = res.DB.Close()
		return nil, fmt.Errorf("bot: personnel database: %w", err)
	}

	people := personnel.NewRepository(personnelDB)
	store := meta.NewStore(res.DB)
	sessions := state.NewMemoryManager()
	client := platform.NewBotClient()

	invites := invite.NewManager(store, client, time.Duration(cfg.Invites.TTLHours)*time.Hour)
	channels := verify.Channels{
		DefaultChannelID: cfg.Channels.DefaultChannelID,
		NewsChannelID:    cfg.Channels.NewsChannelID,
	}
	verifier := verify.NewReconciler(
		people,
		identity.NewMatcher(people),
		store,
		invites,
		client,
		verify.NewClaimStore(0),
		channels,
	)
	sweeper := sweep.NewSweeper(people, store, client, sweep.Config{
		Window: sweep.Window{
			StartHour:      cfg.Sweep.StartHour,
			EndHour:        cfg.Sweep.EndHour,
			UTCOffsetHours: *cfg.Sweep.UTCOffsetHours,
		},
		DefaultChannelID: cfg.Channels.DefaultChannelID,
		NewsChannelID:    cfg.Channels.NewsChannelID,
	})

	return &App{
		cfg:         cfg,
		personnelDB: personnelDB,
		metaDB:      res.DB,
		people:      people,
		store:       store,
		sessions:    sessions,
		dialogues:   dialogue.NewEngine(sessions),
		client:      client,
		invites:     invites,
		verifier:    verifier,
		sweeper:     sweeper,
	}, nil
}

// TelegramRunOptions assembles the bot runtime: registry, middleware chain,
// routes, and lifecycle hooks.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerCommands(reg)
	if err := a.registerCallbacks(reg); err != nil {
		return coretelegram.RunOptions{}, err
	}
	a.registerStates()

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{
		AdminID:       a.cfg.Telegram.AdminID,
		OnAdminReject: a.rejectNonAdmin,
	})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.sessions, reg, router.TextOptions{
		UnknownText: a.handleUnknownText,
	})...)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart:     a.onStart,
		OnStop:      a.onStop,
	}, nil
}

func (a *App) registerCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Пройти проверку и получить доступ",
	})
	reg.RegisterCommand("/reset", commands.Command{
		Handler:     a.handleReset,
		Description: "Сбросить анкету",
	})

	// Administrative commands use a dynamic allowlist, so the guard lives
	// inside the handlers instead of the static admin middleware.
	admin := func(h tele.HandlerFunc, desc string) commands.Command {
		return commands.Command{Handler: a.guardAdmin(h), Description: desc, Hidden: true}
	}
	owner := func(h tele.HandlerFunc, desc string) commands.Command {
		return commands.Command{Handler: a.guardOwner(h), Description: desc, Hidden: true}
	}
	reg.RegisterCommand("/bind_department", admin(a.handleBindDepartment, "Привязать отдел к каналу"))
	reg.RegisterCommand("/user_status", admin(a.handleUserStatus, "Статус пользователя"))
	reg.RegisterCommand("/check_hist", admin(a.handleCheckHistory, "Журнал действий"))
	reg.RegisterCommand("/remove_user", admin(a.handleRemoveUser, "Заблокировать пользователя"))
	reg.RegisterCommand("/list_employees", admin(a.handleListEmployees, "Список сотрудников"))
	reg.RegisterCommand("/add_admin", owner(a.handleAddAdmin, "Добавить администратора"))
	reg.RegisterCommand("/unadd_admin", owner(a.handleRemoveAdmin, "Удалить администратора"))
	reg.RegisterCommand("/set_admin_log_chat", owner(a.handleSetAdminLogChat, "Назначить чат журнала"))
}

func (a *App) registerCallbacks(reg *coretelegram.Registry) error {
	// The edit buttons only make sense from the confirmation screen; taps on
	// a stale keyboard are dropped. Confirm itself stays unguarded so a
	// double tap gets an explicit "no active form" reply.
	inConfirm := middleware.State(a.sessions, dialogue.StepConfirming.State())
	cbs := map[string]tele.HandlerFunc{
		cbConfirm:    a.handleConfirm,
		cbEditMenu:   inConfirm(a.handleEditMenu),
		cbEditField:  inConfirm(a.handleEditField),
		cbCancel:     a.handleCancel,
		cbClaimAllow: a.handleClaim(true),
		cbClaimBlock: a.handleClaim(false),
	}
	for key, h := range cbs {
		if err := reg.RegisterCallback(key, h); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) registerStates() {
	for _, step := range dialogue.Steps() {
		state.RegisterHandler(step.State(), a.handleDialogueText)
	}
}

func (a *App) onStart(ctx context.Context, rt coretelegram.Runtime) error {
	a.client.Bind(rt.Bot)

	go a.sweeper.Run(ctx, time.Duration(a.cfg.Sweep.IntervalMinutes)*time.Minute)
	go a.invites.RunCleanup(ctx, time.Duration(a.cfg.Invites.CleanupIntervalMinutes)*time.Minute)

	if a.cfg.Health.Listen != "" {
		a.health = newHealthServer(a.cfg.Health.Listen, a.personnelDB, a.metaDB)
		a.health.Start()
	}

	logger.L.With("component", "app").Info("services started",
		slog.String("event", "services"),
		slog.Bool("health", a.health != nil),
		slog.Int("sweep_interval_min", a.cfg.Sweep.IntervalMinutes),
	)
	return nil
}

func (a *App) onStop(ctx context.Context, _ coretelegram.Runtime) error {
	if a.health != nil {
		a.health.Stop(ctx)
	}
	_ = a.personnelDB.Close()
	_ = a.metaDB.Close()
	return nil
}
