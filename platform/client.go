// Package platform wraps the Telegram bot API surface the access pipeline
// needs: invite links, channel moderation, chat lookups, and direct sends.
// Every failure is classified into a Reason exactly once, here.
package platform

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/m3rciful/staffgate/core/logger"
)

// Invite is a freshly created chat invite link.
type Invite struct {
	URL string
	// ID is the platform-side identifier of the link. Telegram identifies
	// links by their URL, so the two coincide.
	ID string
}

// ChatInfo is the subset of chat metadata used for admin-log echoes.
type ChatInfo struct {
	Title    string
	Username string
}

// Client is the messaging-platform contract consumed by the verification
// pipeline, the invite manager, and the nightly sweep.
type Client interface {
	CreateInviteLink(ctx context.Context, channelID string, expireAt time.Time, label string, memberLimit int) (Invite, error)
	BanMember(ctx context.Context, channelID string, userID int64) error
	UnbanMember(ctx context.Context, channelID string, userID int64) error
	ChatInfo(ctx context.Context, channelID string) (ChatInfo, error)
	MemberStatus(ctx context.Context, channelID string, userID int64) (string, error)
	Send(ctx context.Context, chatID int64, text string, markup ...*tele.ReplyMarkup) error
	SendToChat(ctx context.Context, chatID string, text string) error
}

// BotClient implements Client over a telebot instance. The bot is attached
// after the transport starts, so the zero value is safe to construct early
// and wire into services.
type BotClient struct {
	bot atomic.Pointer[tele.Bot]
}

// NewBotClient returns an unbound client; call Bind once the bot is running.
func NewBotClient() *BotClient {
	return &BotClient{}
}

// Bind attaches the running bot instance.
func (c *BotClient) Bind(bot *tele.Bot) {
	c.bot.Store(bot)
}

func (c *BotClient) telebot(op string) (*tele.Bot, error) {
	b := c.bot.Load()
	if b == nil {
		return nil, &Error{Op: op, Reason: ReasonOther, Err: fmt.Errorf("bot not bound")}
	}
	return b, nil
}

func parseChannelID(op, channelID string) (int64, error) {
	id, err := strconv.ParseInt(channelID, 10, 64)
	if err != nil {
		return 0, &Error{Op: op, Reason: ReasonNotFound, Err: fmt.Errorf("bad channel id %q", channelID)}
	}
	return id, nil
}

// CreateInviteLink creates a time-limited invite link in the channel with
// the given member limit.
func (c *BotClient) CreateInviteLink(ctx context.Context, channelID string, expireAt time.Time, label string, memberLimit int) (Invite, error) {
	const op = "create_invite_link"
	bot, err := c.telebot(op)
	if err != nil {
		return Invite{}, err
	}
	chatID, err := parseChannelID(op, channelID)
	if err != nil {
		return Invite{}, err
	}

	start := time.Now()
	link, err := bot.CreateInviteLink(&tele.Chat{ID: chatID}, &tele.ChatInviteLink{
		Name:           label,
		ExpireUnixtime: expireAt.Unix(),
		MemberLimit:    memberLimit,
	})
	if err != nil {
		return Invite{}, wrap(op, err)
	}
	logger.TG.Debug("invite link created",
		slog.String("event", "tg.invite_link"),
		slog.Int64("chat_id", chatID),
		slog.Duration("duration", logger.Took(start)),
	)
	return Invite{URL: link.InviteLink, ID: link.InviteLink}, nil
}

// BanMember bans a user from the channel.
func (c *BotClient) BanMember(ctx context.Context, channelID string, userID int64) error {
	const op = "ban_member"
	bot, err := c.telebot(op)
	if err != nil {
		return err
	}
	chatID, err := parseChannelID(op, channelID)
	if err != nil {
		return err
	}
	member := &tele.ChatMember{User: &tele.User{ID: userID}}
	return wrap(op, bot.Ban(&tele.Chat{ID: chatID}, member))
}

// UnbanMember lifts a ban; banning state is checked by the platform, so an
// unban of a never-banned user surfaces as a benign reason.
func (c *BotClient) UnbanMember(ctx context.Context, channelID string, userID int64) error {
	const op = "unban_member"
	bot, err := c.telebot(op)
	if err != nil {
		return err
	}
	chatID, err := parseChannelID(op, channelID)
	if err != nil {
		return err
	}
	return wrap(op, bot.Unban(&tele.Chat{ID: chatID}, &tele.User{ID: userID}, true))
}

// ChatInfo fetches the channel title/username for log echoes.
func (c *BotClient) ChatInfo(ctx context.Context, channelID string) (ChatInfo, error) {
	const op = "chat_info"
	bot, err := c.telebot(op)
	if err != nil {
		return ChatInfo{}, err
	}
	chatID, err := parseChannelID(op, channelID)
	if err != nil {
		return ChatInfo{}, err
	}
	chat, err := bot.ChatByID(chatID)
	if err != nil {
		return ChatInfo{}, wrap(op, err)
	}
	return ChatInfo{Title: chat.Title, Username: chat.Username}, nil
}

// MemberStatus reports the user's membership status in the channel.
func (c *BotClient) MemberStatus(ctx context.Context, channelID string, userID int64) (string, error) {
	const op = "member_status"
	bot, err := c.telebot(op)
	if err != nil {
		return "", err
	}
	chatID, err := parseChannelID(op, channelID)
	if err != nil {
		return "", err
	}
	member, err := bot.ChatMemberOf(&tele.Chat{ID: chatID}, &tele.User{ID: userID})
	if err != nil {
		return "", wrap(op, err)
	}
	return string(member.Role), nil
}

// Send delivers a direct message to a user or chat by numeric id.
func (c *BotClient) Send(ctx context.Context, chatID int64, text string, markup ...*tele.ReplyMarkup) error {
	const op = "send_message"
	bot, err := c.telebot(op)
	if err != nil {
		return err
	}
	var opts []interface{}
	if len(markup) > 0 && markup[0] != nil {
		opts = append(opts, markup[0])
	}
	_, err = bot.Send(tele.ChatID(chatID), text, opts...)
	return wrap(op, err)
}

// SendToChat delivers a message to a chat addressed by its string id.
func (c *BotClient) SendToChat(ctx context.Context, chatID string, text string) error {
	const op = "send_to_chat"
	id, err := parseChannelID(op, chatID)
	if err != nil {
		return err
	}
	return c.Send(ctx, id, text)
}
