package bot

import (
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/staffgate/core/telegram/keyboard"
	"github.com/m3rciful/staffgate/dialogue"
	"github.com/m3rciful/staffgate/verify"
)

// Callback keys. The registry routes generic callbacks by the button's
// unique tag; payloads carry the variable part.
const (
	cbConfirm    = "reg_confirm"
	cbEditMenu   = "reg_edit"
	cbEditField  = "reg_edit_field"
	cbCancel     = "reg_cancel"
	cbClaimAllow = "claim_allow"
	cbClaimBlock = "claim_block"
)

const (
	msgGreeting = "Привет! Я помогу получить доступ в канал отдела.\n" +
		"Ответь на несколько вопросов."
	msgReset         = "Анкета сброшена. Нажми /start, чтобы начать заново."
	msgNoActiveForm  = "Нет активной анкеты. Нажми /start, чтобы начать."
	msgCancelled     = "Хорошо, отменил. Нажми /start, чтобы начать заново."
	msgTryLater      = "Что-то пошло не так. Попробуй позже."
	msgNotFound      = "Не нашёл тебя в базе сотрудников. Проверь данные и попробуй ещё раз: /start"
	msgDenied        = "Доступ закрыт. Если это ошибка, обратись к администратору."
	msgConflict      = "Твой аккаунт уже привязан к другой записи. Обратись к администратору."
	msgChannelBroken = "Канал для твоего отдела не настроен. Обратись к администратору."
	msgClaimSent     = "Эти данные уже привязаны к другому аккаунту.\n" +
		"Я отправил ему запрос на подтверждение. Подожди решения."
	msgClaimAllowed = "Владелец подтвердил перенос. Выдаю доступ..."
	msgClaimBlocked = "Перенос отклонён. Если это ошибка, обратись к администратору."
	msgClaimExpired = "Запрос уже не действует. Нажми /start, чтобы пройти проверку заново."
	msgChooseField  = "Что изменить?"
	msgNotAllowed   = "Команда доступна только администраторам."
)

var editFieldLabels = map[dialogue.Field]string{
	dialogue.FieldLastName:     "Фамилия",
	dialogue.FieldFirstName:    "Имя",
	dialogue.FieldMiddleName:   "Отчество",
	dialogue.FieldDepartmentID: "Отдел",
	dialogue.FieldPositionID:   "Должность",
	dialogue.FieldPhone:        "Телефон",
}

func confirmMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "✅ Всё верно", Unique: cbConfirm},
			{Text: "✏️ Изменить", Unique: cbEditMenu},
		},
		[]keyboard.InlineBtn{
			{Text: "❌ Отмена", Unique: cbCancel},
		},
	)
}

func editMenuMarkup() *tele.ReplyMarkup {
	fields := dialogue.EditFields()
	buttons := make([]keyboard.InlineBtn, 0, len(fields))
	for _, f := range fields {
		buttons = append(buttons, keyboard.InlineBtn{
			Text:   editFieldLabels[f],
			Unique: cbEditField,
			Data:   string(f),
		})
	}
	return keyboard.InlineButtonsNPerRow(buttons, 2)
}

func claimMarkup(sessionID string) *tele.ReplyMarkup {
	return keyboard.InlineButtonsRows(
		[]keyboard.InlineBtn{
			{Text: "✅ Разрешить", Unique: cbClaimAllow, Data: sessionID},
			{Text: "🚫 Это не я", Unique: cbClaimBlock, Data: sessionID},
		},
	)
}

func claimNotice(form dialogue.Form) string {
	return fmt.Sprintf(
		"Кто-то пытается привязать твою учётную запись сотрудника к другому аккаунту:\n"+
			"%s\n\n"+
			"Разрешить перенос?",
		form.DisplayName())
}

func grantedMessage(invites []verify.IssuedInvite) string {
	var b strings.Builder
	b.WriteString("✅ Проверка пройдена!\n")
	for _, inv := range invites {
		if inv.News {
			b.WriteString("\nКанал новостей: " + inv.Link.URL)
		} else {
			b.WriteString("\nКанал отдела: " + inv.Link.URL)
		}
		b.WriteString("\nДействует до: " + inv.Link.ExpiresAt.Format("02.01.2006 15:04") + "\n")
	}
	b.WriteString("\nСсылки одноразовые. Когда ссылка истечёт или будет использована, нажми /start, чтобы получить новую.")
	return b.String()
}
