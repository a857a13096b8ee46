package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/staffgate/core/logger"
	"github.com/m3rciful/staffgate/core/telegram/format"
	tghelpers "github.com/m3rciful/staffgate/core/telegram/helpers"
	"github.com/m3rciful/staffgate/platform"
	"github.com/m3rciful/staffgate/storage/meta"
	"github.com/m3rciful/staffgate/storage/personnel"
)

// guardAdmin wraps an administrative handler with the dynamic allowlist
// check. The configured owner id always passes.
func (a *App) guardAdmin(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if !a.isAdmin(tghelpers.BuildContext(c), c.Sender().ID) {
			return tghelpers.SendText(c, msgNotAllowed)
		}
		return h(c)
	}
}

func (a *App) isAdmin(ctx context.Context, userID int64) bool {
	if userID != 0 && userID == a.cfg.Telegram.AdminID {
		return true
	}
	ok, err := a.store.IsAdmin(ctx, userID)
	if err != nil {
		logger.TG.Error("admin lookup failed",
			slog.String("event", "admin.check"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
		return false
	}
	return ok
}

// guardOwner restricts a handler to the configured owner id. Used for admin
// management itself, which the allowlist must not be able to extend.
func (a *App) guardOwner(h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		if c.Sender().ID != a.cfg.Telegram.AdminID {
			return tghelpers.SendText(c, msgNotAllowed)
		}
		return h(c)
	}
}

func (a *App) rejectNonAdmin(c tele.Context) error {
	return tghelpers.SendText(c, msgNotAllowed)
}

func (a *App) handleBindDepartment(c tele.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return tghelpers.SendText(c, "Использование: /bind_department <отдел> <канал> [-f]")
	}
	departmentID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return tghelpers.SendText(c, "Номер отдела должен быть числом.")
	}
	channelID := args[1]
	overwrite := len(args) > 2 && (args[2] == "-f" || args[2] == "--force")
	// First writer wins; only the owner may overwrite an existing binding.
	if overwrite && c.Sender().ID != a.cfg.Telegram.AdminID {
		return tghelpers.SendText(c, "Перезаписать привязку может только владелец бота.")
	}

	ctx := tghelpers.BuildContext(c)
	bound, err := a.store.BindDepartment(ctx, departmentID, channelID, overwrite)
	if err != nil {
		return tghelpers.SendText(c, msgTryLater)
	}
	if !bound {
		return tghelpers.SendText(c, "Отдел уже привязан к каналу. Добавь -f, чтобы перезаписать.")
	}

	dept := strconv.FormatInt(departmentID, 10)
	a.adminLog(ctx, c, &meta.AdminLogEntry{
		Action:     "bind_department",
		Department: &dept,
		ChannelID:  &channelID,
	}, fmt.Sprintf("Отдел %d привязан к каналу %s", departmentID, channelID))
	return tghelpers.SendText(c, fmt.Sprintf("Готово: отдел %d → канал %s", departmentID, channelID))
}

func (a *App) handleAddAdmin(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return tghelpers.SendText(c, "Использование: /add_admin <id|@username>")
	}
	ctx := tghelpers.BuildContext(c)
	targetID, username, err := a.resolveTarget(ctx, args[0])
	if err != nil {
		return tghelpers.SendText(c, "Не нашёл пользователя. Укажи числовой id.")
	}
	if err := a.store.UpsertAdmin(ctx, targetID, username); err != nil {
		return tghelpers.SendText(c, msgTryLater)
	}
	a.adminLog(ctx, c, &meta.AdminLogEntry{
		Action:           "add_admin",
		TargetTelegramID: &targetID,
		TargetUsername:   username,
	}, fmt.Sprintf("Добавлен администратор %s", targetLabel(targetID, username)))
	return tghelpers.SendText(c, "Администратор добавлен.")
}

func (a *App) handleRemoveAdmin(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return tghelpers.SendText(c, "Использование: /unadd_admin <id|@username>")
	}
	ctx := tghelpers.BuildContext(c)

	var (
		removed bool
		err     error
		entry   = &meta.AdminLogEntry{Action: "remove_admin"}
		label   string
	)
	if id, idErr := strconv.ParseInt(args[0], 10, 64); idErr == nil {
		removed, err = a.store.DeleteAdminByID(ctx, id)
		entry.TargetTelegramID = &id
		label = targetLabel(id, nil)
	} else {
		name := strings.TrimPrefix(args[0], "@")
		removed, err = a.store.DeleteAdminByUsername(ctx, name)
		entry.TargetUsername = &name
		label = "@" + name
	}
	if err != nil {
		return tghelpers.SendText(c, msgTryLater)
	}
	if !removed {
		return tghelpers.SendText(c, "Такого администратора нет.")
	}
	a.adminLog(ctx, c, entry, "Удалён администратор "+label)
	return tghelpers.SendText(c, "Администратор удалён.")
}

func (a *App) handleUserStatus(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return tghelpers.SendText(c, "Использование: /user_status <id|@username>")
	}
	ctx := tghelpers.BuildContext(c)
	targetID, _, err := a.resolveTarget(ctx, args[0])
	if err != nil {
		return tghelpers.SendText(c, "Не нашёл пользователя.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Статус %d:\n", targetID)

	if u, err := a.store.VerifiedUserByTelegramID(ctx, targetID); err == nil {
		fmt.Fprintf(&b, "Проверен: %s (отдел %s, должность %s)\nТелефон: %s\nПроверка: %s\n",
			u.FullName, u.Department, u.Position,
			format.DerefString(u.Phone, "—"),
			u.VerifiedAt.Format("2006-01-02 15:04"))
	} else if errors.Is(err, meta.ErrNotFound) {
		b.WriteString("Проверку не проходил.\n")
	} else {
		return tghelpers.SendText(c, msgTryLater)
	}

	rec, err := a.people.FindByTelegramID(ctx, targetID)
	switch {
	case errors.Is(err, personnel.ErrNotFound):
		b.WriteString("В базе сотрудников не привязан.")
	case err != nil:
		return tghelpers.SendText(c, msgTryLater)
	default:
		fmt.Fprintf(&b, "Карточка: %s (код %d)\n", rec.DisplayName(), rec.Code)
		if rec.Employed() {
			b.WriteString("Работает: да\n")
		} else {
			b.WriteString("Работает: нет (уволен)\n")
		}
		fmt.Fprintf(&b, "В чёрном списке: %s", yesNo(rec.Blacklisted))
	}
	return tghelpers.SendText(c, b.String())
}

func (a *App) handleCheckHistory(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	var filter meta.AdminLogFilter
	if args := c.Args(); len(args) > 0 {
		if id, err := strconv.ParseInt(args[0], 10, 64); err == nil {
			filter.TargetTelegramID = &id
		} else {
			name := strings.TrimPrefix(args[0], "@")
			filter.TargetUsername = &name
		}
	}

	entries, err := a.store.RecentAdminLogs(ctx, filter, 10)
	if err != nil {
		return tghelpers.SendText(c, msgTryLater)
	}
	if len(entries) == 0 {
		return tghelpers.SendText(c, "Записей нет.")
	}

	var b strings.Builder
	b.WriteString("Последние действия:\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "%s  %s", e.CreatedAt.Format("02.01 15:04"), e.Action)
		if e.TargetTelegramID != nil {
			fmt.Fprintf(&b, " → %d", *e.TargetTelegramID)
		} else if e.TargetUsername != nil {
			fmt.Fprintf(&b, " → @%s", *e.TargetUsername)
		}
		if e.Reason != nil {
			fmt.Fprintf(&b, " (%s)", *e.Reason)
		}
		b.WriteString("\n")
	}
	return tghelpers.SendText(c, b.String())
}

// handleRemoveUser force-blocks an account: channel bans plus the blacklist
// flag on the linked personnel record, with an optional reason for the log.
func (a *App) handleRemoveUser(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return tghelpers.SendText(c, "Использование: /remove_user <id|@username> [причина]")
	}
	ctx := tghelpers.BuildContext(c)
	targetID, username, err := a.resolveTarget(ctx, args[0])
	if err != nil {
		return tghelpers.SendText(c, "Не нашёл пользователя.")
	}

	channels := []string{}
	if rec, err := a.people.FindByTelegramID(ctx, targetID); err == nil {
		if ch, err := a.store.ChannelForDepartment(ctx, rec.DepartmentID); err == nil && ch != "" {
			channels = append(channels, ch)
		}
		if err := a.people.SetBlacklist(ctx, rec.Code, true); err != nil {
			logger.TG.Error("blacklist failed",
				slog.String("event", "admin.remove_user"),
				slog.Int64("code", rec.Code),
				slog.String("err", err.Error()),
			)
		}
	}
	if a.cfg.Channels.DefaultChannelID != "" {
		channels = append(channels, a.cfg.Channels.DefaultChannelID)
	}
	if a.cfg.Channels.NewsChannelID != "" {
		channels = append(channels, a.cfg.Channels.NewsChannelID)
	}
	for _, ch := range dedup(channels) {
		if err := a.client.BanMember(ctx, ch, targetID); err != nil && !platform.Benign(err) {
			logger.TG.Error("ban failed",
				slog.String("event", "admin.remove_user"),
				slog.String("channel_id", ch),
				slog.String("err", err.Error()),
			)
		}
	}

	entry := &meta.AdminLogEntry{
		Action:           "remove_user",
		TargetTelegramID: &targetID,
		TargetUsername:   username,
	}
	if len(args) > 1 {
		reason := strings.Join(args[1:], " ")
		entry.Reason = &reason
	}
	a.adminLog(ctx, c, entry, "Заблокирован "+targetLabel(targetID, username))
	return tghelpers.SendText(c, "Пользователь заблокирован.")
}

func (a *App) handleSetAdminLogChat(c tele.Context) error {
	args := c.Args()
	if len(args) < 1 {
		return tghelpers.SendText(c, "Использование: /set_admin_log_chat <chat_id>")
	}
	ctx := tghelpers.BuildContext(c)
	if err := a.store.SetAdminLogChatID(ctx, args[0]); err != nil {
		return tghelpers.SendText(c, msgTryLater)
	}
	return tghelpers.SendText(c, "Чат для журнала назначен: "+args[0])
}

func (a *App) handleListEmployees(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	records, err := a.people.ListEmployed(ctx, 100)
	if err != nil {
		return tghelpers.SendText(c, msgTryLater)
	}
	if len(records) == 0 {
		return tghelpers.SendText(c, "Список пуст.")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Сотрудники (%d):\n", len(records))
	for _, r := range records {
		fmt.Fprintf(&b, "отдел %d • %s", r.DepartmentID, r.DisplayName())
		if r.TelegramID != nil {
			b.WriteString(" ✓")
		}
		b.WriteString("\n")
	}
	return tghelpers.SendText(c, b.String())
}

// adminLog persists the entry and mirrors a short line into the configured
// admin-log chat, when there is one.
func (a *App) adminLog(ctx context.Context, c tele.Context, entry *meta.AdminLogEntry, line string) {
	entry.ActorTelegramID = c.Sender().ID
	if c.Sender().Username != "" {
		name := c.Sender().Username
		entry.ActorUsername = &name
	}
	if err := a.store.AppendAdminLog(ctx, entry); err != nil {
		logger.TG.Error("admin log write failed",
			slog.String("event", "admin.log"),
			slog.String("action", entry.Action),
			slog.String("err", err.Error()),
		)
	}

	chat, err := a.store.AdminLogChatID(ctx)
	if errors.Is(err, meta.ErrNotFound) || chat == "" {
		chat = a.cfg.Channels.AdminLogChatID
	}
	if chat == "" {
		return
	}
	stamp := time.Now().UTC().Format("02.01 15:04")
	text := fmt.Sprintf("[%s] %s: %s", stamp, entry.Action, line)
	if err := a.client.SendToChat(ctx, chat, text); err != nil {
		logger.TG.Error("admin log echo failed",
			slog.String("event", "admin.log"),
			slog.String("chat_id", chat),
			slog.String("err", err.Error()),
		)
	}
}

// resolveTarget accepts a numeric telegram id or an @username known from a
// past verification.
func (a *App) resolveTarget(ctx context.Context, arg string) (int64, *string, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil, nil
	}
	name := strings.TrimPrefix(arg, "@")
	u, err := a.store.VerifiedUserByUsername(ctx, name)
	if err != nil {
		return 0, nil, err
	}
	return u.TelegramID, &name, nil
}

func targetLabel(id int64, username *string) string {
	if username != nil {
		return "@" + *username
	}
	return strconv.FormatInt(id, 10)
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}

func dedup(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		if _, ok := seen[v]; ok || v == "" {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
