package platform

import (
	"errors"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Reason classifies a Telegram API failure once, at the client boundary.
// Call sites switch on the reason instead of re-parsing error text.
type Reason int

const (
	// ReasonOther is any failure without a recognized benign cause.
	ReasonOther Reason = iota
	// ReasonNotFound covers "chat not found" / "user not found".
	ReasonNotFound
	// ReasonNotInChat covers bans/unbans of users that are not members.
	ReasonNotInChat
	// ReasonPrivateChatRestriction covers moderation attempted on a
	// private chat.
	ReasonPrivateChatRestriction
	// ReasonOwnerRestriction covers moderation attempted on the chat owner.
	ReasonOwnerRestriction
)

// String implements fmt.Stringer for logging.
func (r Reason) String() string {
	switch r {
	case ReasonNotFound:
		return "not_found"
	case ReasonNotInChat:
		return "not_in_chat"
	case ReasonPrivateChatRestriction:
		return "private_chat"
	case ReasonOwnerRestriction:
		return "chat_owner"
	default:
		return "other"
	}
}

// Error wraps a Telegram API failure with its operation and reason.
type Error struct {
	Op     string
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("platform: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ReasonOf extracts the classified reason from an error chain; non-platform
// errors report ReasonOther.
func ReasonOf(err error) Reason {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Reason
	}
	return ReasonOther
}

// Benign reports whether the failure is one of the tolerated no-op causes
// for moderation calls: the member is not in the chat, the chat or user does
// not exist, the chat is private, or the target is the owner.
func Benign(err error) bool {
	switch ReasonOf(err) {
	case ReasonNotFound, ReasonNotInChat, ReasonPrivateChatRestriction, ReasonOwnerRestriction:
		return true
	default:
		return false
	}
}

func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Reason: classify(err), Err: err}
}

func classify(err error) Reason {
	desc := strings.ToLower(err.Error())
	var apiErr *tele.Error
	if errors.As(err, &apiErr) {
		desc = strings.ToLower(apiErr.Description)
	}
	switch {
	case strings.Contains(desc, "not in the chat"),
		strings.Contains(desc, "user_not_participant"),
		strings.Contains(desc, "not a member"):
		return ReasonNotInChat
	case strings.Contains(desc, "private chat"):
		return ReasonPrivateChatRestriction
	case strings.Contains(desc, "chat owner"),
		strings.Contains(desc, "creator"):
		return ReasonOwnerRestriction
	case strings.Contains(desc, "not found"):
		return ReasonNotFound
	default:
		return ReasonOther
	}
}
