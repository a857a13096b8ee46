package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/m3rciful/staffgate/storage/meta"
	"github.com/m3rciful/staffgate/verify"
)

func TestGrantedMessageCarriesExpiry(t *testing.T) {
	expires := time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC)
	msg := grantedMessage([]verify.IssuedInvite{
		{Link: &meta.InviteLink{URL: "https://t.me/+abc", ExpiresAt: expires}},
	})

	assert.Contains(t, msg, "Канал отдела: https://t.me/+abc")
	assert.Contains(t, msg, "Действует до: 31.08.2026 12:30")
	assert.Contains(t, msg, "/start", "expired or consumed links point back to /start")
}

func TestGrantedMessageLabelsNewsChannel(t *testing.T) {
	expires := time.Date(2026, 8, 31, 12, 30, 0, 0, time.UTC)
	msg := grantedMessage([]verify.IssuedInvite{
		{Link: &meta.InviteLink{URL: "https://t.me/+dept", ExpiresAt: expires}},
		{Link: &meta.InviteLink{URL: "https://t.me/+news", ExpiresAt: expires.Add(time.Hour)}, News: true},
	})

	assert.Contains(t, msg, "Канал отдела: https://t.me/+dept")
	assert.Contains(t, msg, "Канал новостей: https://t.me/+news")
	assert.Contains(t, msg, "31.08.2026 12:30")
	assert.Contains(t, msg, "31.08.2026 13:30")
}
