package bot

import (
	"context"
	"errors"
	"log/slog"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/staffgate/core/logger"
	"github.com/m3rciful/staffgate/core/telegram/callbacks"
	tghelpers "github.com/m3rciful/staffgate/core/telegram/helpers"
	"github.com/m3rciful/staffgate/dialogue"
	"github.com/m3rciful/staffgate/verify"
)

func (a *App) handleStart(c tele.Context) error {
	if !privateChat(c) {
		return nil
	}
	prompt := a.dialogues.Begin(c.Sender().ID)
	return tghelpers.SendText(c, msgGreeting+"\n\n"+prompt)
}

func (a *App) handleReset(c tele.Context) error {
	if !privateChat(c) {
		return nil
	}
	a.dialogues.Reset(c.Sender().ID)
	return tghelpers.SendText(c, msgReset)
}

// handleDialogueText receives every text message while the user is inside
// the registration flow; the session router dispatches here per step.
func (a *App) handleDialogueText(c tele.Context) error {
	if !privateChat(c) {
		return nil
	}
	res := a.dialogues.HandleText(c.Sender().ID, c.Text())
	if res.Reply == "" {
		return nil
	}
	if res.Confirming && !res.Rejected {
		return tghelpers.SendText(c, res.Reply, sendWithMarkup(confirmMarkup()))
	}
	return tghelpers.SendText(c, res.Reply)
}

func (a *App) handleConfirm(c tele.Context) error {
	userID := c.Sender().ID
	form, ok := a.dialogues.TakeForm(userID)
	if !ok {
		return tghelpers.SendText(c, msgNoActiveForm)
	}

	ctx := tghelpers.BuildContext(c)
	out, err := a.verifier.Verify(ctx, verify.Requester{
		ID:       userID,
		Username: c.Sender().Username,
	}, form)
	if err != nil {
		logger.TG.Error("verification failed",
			slog.String("event", "verify"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}

	if out.Kind == verify.OutcomeClaimPending {
		return a.sendClaimRequest(ctx, c, form, out)
	}
	return tghelpers.SendText(c, outcomeMessage(out))
}

func (a *App) sendClaimRequest(ctx context.Context, c tele.Context, form dialogue.Form, out verify.Outcome) error {
	err := a.client.Send(ctx, out.LinkedID, claimNotice(form), claimMarkup(out.Claim.ID))
	if err != nil {
		logger.TG.Error("claim notice failed",
			slog.String("event", "claim.notify"),
			slog.Int64("holder_id", out.LinkedID),
			slog.String("err", err.Error()),
		)
	}
	return tghelpers.SendText(c, msgClaimSent)
}

func (a *App) handleEditMenu(c tele.Context) error {
	return tghelpers.EditOrSendMD(c, msgChooseField, editMenuMarkup())
}

func (a *App) handleEditField(c tele.Context) error {
	field := dialogue.Field(callbacks.CallbackPayload(c))
	prompt, ok := a.dialogues.StartEdit(c.Sender().ID, field)
	if !ok {
		return tghelpers.SendText(c, msgNoActiveForm)
	}
	return tghelpers.SendText(c, prompt)
}

func (a *App) handleCancel(c tele.Context) error {
	a.dialogues.Reset(c.Sender().ID)
	return tghelpers.EditOrSendMD(c, msgCancelled)
}

// handleClaim settles a takeover handshake from the button pressed by the
// currently linked account holder.
func (a *App) handleClaim(allow bool) tele.HandlerFunc {
	return func(c tele.Context) error {
		sessionID := callbacks.CallbackPayload(c)
		ctx := tghelpers.BuildContext(c)

		claim, out, err := a.verifier.ResolveClaim(ctx, sessionID, allow)
		if errors.Is(err, verify.ErrClaimNotFound) {
			return tghelpers.EditOrSendMD(c, msgClaimExpired)
		}
		if err != nil {
			logger.TG.Error("claim resolution failed",
				slog.String("event", "claim.resolve"),
				slog.String("err", err.Error()),
			)
		}

		if !allow {
			a.notifyRequester(ctx, claim, msgClaimBlocked)
			return tghelpers.EditOrSendMD(c, "Перенос отклонён.")
		}

		a.notifyRequester(ctx, claim, msgClaimAllowed)
		a.notifyRequester(ctx, claim, outcomeMessage(out))
		return tghelpers.EditOrSendMD(c, "Перенос разрешён. Доступ передан новому аккаунту.")
	}
}

func (a *App) notifyRequester(ctx context.Context, claim *verify.Claim, text string) {
	if claim == nil || text == "" {
		return
	}
	if err := a.client.Send(ctx, claim.RequesterID, text); err != nil {
		logger.TG.Error("requester notice failed",
			slog.String("event", "claim.notify"),
			slog.Int64("user_id", claim.RequesterID),
			slog.String("err", err.Error()),
		)
	}
}

func outcomeMessage(out verify.Outcome) string {
	switch out.Kind {
	case verify.OutcomeGranted:
		return grantedMessage(out.Invites)
	case verify.OutcomeNotFound:
		return msgNotFound
	case verify.OutcomeDenied:
		return msgDenied
	case verify.OutcomeConflict:
		return msgConflict
	case verify.OutcomeChannelMisconfigured:
		return msgChannelBroken
	default:
		return msgTryLater
	}
}

// handleUnknownText answers free text outside of any dialogue. Group chats
// are ignored entirely.
func (a *App) handleUnknownText(c tele.Context) error {
	if !privateChat(c) {
		return nil
	}
	return tghelpers.SendText(c, msgNoActiveForm)
}

func privateChat(c tele.Context) bool {
	return c.Chat() != nil && c.Chat().Type == tele.ChatPrivate
}

func sendWithMarkup(markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{ReplyMarkup: markup}
}
