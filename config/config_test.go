package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimalYAML = `
telegram:
  token: "test-token"
personnel_db:
  host: localhost
  name: personnel
meta_db:
  host: localhost
  name: staffgate_meta
`

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)

	assert.Equal(t, 24, cfg.Invites.TTLHours)
	assert.Equal(t, 60, cfg.Invites.CleanupIntervalMinutes)
	assert.Equal(t, 0, cfg.Sweep.StartHour)
	assert.Equal(t, 5, cfg.Sweep.EndHour)
	require.NotNil(t, cfg.Sweep.UTCOffsetHours)
	assert.Equal(t, 3, *cfg.Sweep.UTCOffsetHours, "omitted offset defaults to +3")
	assert.Equal(t, 15, cfg.Sweep.IntervalMinutes)
	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
}

func TestLoadKeepsExplicitZeroOffset(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
sweep:
  utc_offset_hours: 0
`))
	require.NoError(t, err)
	require.NotNil(t, cfg.Sweep.UTCOffsetHours)
	assert.Equal(t, 0, *cfg.Sweep.UTCOffsetHours, "an explicit 0 means a UTC window, not the default")
}

func TestLoadExplicitValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML+`
channels:
  default_channel_id: " -100500 "
  news_channel_id: "-100999"
invites:
  ttl_hours: 48
sweep:
  start_hour: 1
  end_hour: 4
  utc_offset_hours: 3
  interval_minutes: 20
health:
  listen: ":8081"
`))
	require.NoError(t, err)

	assert.Equal(t, "-100500", cfg.Channels.DefaultChannelID, "channel ids are trimmed")
	assert.Equal(t, "-100999", cfg.Channels.NewsChannelID)
	assert.Equal(t, 48, cfg.Invites.TTLHours)
	assert.Equal(t, 1, cfg.Sweep.StartHour)
	assert.Equal(t, 4, cfg.Sweep.EndHour)
	require.NotNil(t, cfg.Sweep.UTCOffsetHours)
	assert.Equal(t, 3, *cfg.Sweep.UTCOffsetHours)
	assert.Equal(t, 20, cfg.Sweep.IntervalMinutes)
	assert.Equal(t, ":8081", cfg.Health.Listen)
}

func TestLoadRejectsMissingDatabase(t *testing.T) {
	_, err := Load(writeConfig(t, `
telegram:
  token: "test-token"
meta_db:
  host: localhost
  name: staffgate_meta
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "personnel_db.host")
}

func TestLoadRejectsMissingToken(t *testing.T) {
	t.Setenv("BOT_TOKEN", "")
	_, err := Load(writeConfig(t, `
personnel_db:
  host: localhost
  name: personnel
meta_db:
  host: localhost
  name: staffgate_meta
`))
	require.Error(t, err)
}

func TestLoadRejectsBadSweepWindow(t *testing.T) {
	_, err := Load(writeConfig(t, minimalYAML+`
sweep:
  start_hour: 6
  end_hour: 5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sweep.end_hour")
}

func TestDatabaseConfigCore(t *testing.T) {
	d := DatabaseConfig{
		Host: "db", Port: "5433", User: "u", Password: "p",
		Name: "n", SSLMode: "disable", MaxConnections: 4,
	}
	core := d.Core()
	assert.Equal(t, "db", core.Host)
	assert.Equal(t, "5433", core.Port)
	assert.Equal(t, "n", core.Name)
	assert.Equal(t, 4, core.MaxConnections)
}
