package platform

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	tele "gopkg.in/telebot.v4"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Reason
	}{
		{"user not participant", errors.New("telegram: user_not_participant (400)"), ReasonNotInChat},
		{"not in the chat", errors.New("Bad Request: user is not in the chat"), ReasonNotInChat},
		{"not a member", errors.New("user is not a member of the chat"), ReasonNotInChat},
		{"private chat", errors.New("Bad Request: can't remove chat owner from a private chat"), ReasonPrivateChatRestriction},
		{"chat owner", errors.New("Bad Request: can't ban chat owner"), ReasonOwnerRestriction},
		{"creator", errors.New("CHAT_ADMIN_REQUIRED: user is the creator"), ReasonOwnerRestriction},
		{"chat not found", errors.New("Bad Request: chat not found"), ReasonNotFound},
		{"user not found", errors.New("Bad Request: user not found"), ReasonNotFound},
		{"unrelated", errors.New("Too Many Requests: retry after 5"), ReasonOther},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, classify(tc.err))
		})
	}
}

func TestClassifyPrefersAPIDescription(t *testing.T) {
	apiErr := &tele.Error{Code: 400, Description: "Bad Request: chat not found"}
	wrapped := fmt.Errorf("ban: %w", apiErr)
	assert.Equal(t, ReasonNotFound, classify(wrapped))
}

func TestReasonOf(t *testing.T) {
	err := wrap("ban", errors.New("Bad Request: chat not found"))
	assert.Equal(t, ReasonNotFound, ReasonOf(err))

	outer := fmt.Errorf("invite: %w", err)
	assert.Equal(t, ReasonNotFound, ReasonOf(outer), "reason survives further wrapping")

	assert.Equal(t, ReasonOther, ReasonOf(errors.New("plain")))
	assert.Equal(t, ReasonOther, ReasonOf(nil))
}

func TestBenign(t *testing.T) {
	assert.True(t, Benign(wrap("unban", errors.New("user_not_participant"))))
	assert.True(t, Benign(wrap("ban", errors.New("chat not found"))))
	assert.True(t, Benign(wrap("ban", errors.New("can't ban chat owner"))))
	assert.False(t, Benign(wrap("ban", errors.New("Too Many Requests"))))
	assert.False(t, Benign(nil))
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, wrap("op", nil))
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "not_in_chat", ReasonNotInChat.String())
	assert.Equal(t, "other", ReasonOther.String())
}
