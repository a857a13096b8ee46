// Package config aggregates the application configuration on top of the
// reusable core: two database handles, destination channels, invite and
// sweep schedules. Values come from a YAML file overlaid by environment
// variables.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/staffgate/core/config"
	coredatabase "github.com/m3rciful/staffgate/core/database"
)

// DatabaseConfig mirrors the core database settings without fixed env tags,
// so two databases can be configured side by side (PERSONNEL_DB_* and
// META_DB_* variables).
type DatabaseConfig struct {
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Name           string `yaml:"name"`
	SSLMode        string `yaml:"sslmode"`
	MaxConnections int    `yaml:"max_connections"`
}

// Core converts to the core connection settings.
func (d DatabaseConfig) Core() coredatabase.Config {
	return coredatabase.Config{
		Host:           d.Host,
		Port:           d.Port,
		User:           d.User,
		Password:       d.Password,
		Name:           d.Name,
		SSLMode:        d.SSLMode,
		MaxConnections: d.MaxConnections,
	}
}

// ChannelsConfig names the destination channels. DefaultChannelID is the
// fallback for departments without a binding; NewsChannelID is optional.
type ChannelsConfig struct {
	DefaultChannelID string `yaml:"default_channel_id"`
	NewsChannelID    string `yaml:"news_channel_id"`
	AdminLogChatID   string `yaml:"admin_log_chat_id"`
}

// InvitesConfig controls invite-link validity and cleanup cadence.
type InvitesConfig struct {
	TTLHours               int `yaml:"ttl_hours"`
	CleanupIntervalMinutes int `yaml:"cleanup_interval_minutes"`
}

// SweepConfig schedules the nightly reconciliation. Hours are in the zone
// given by UTCOffsetHours; EndHour is exclusive. UTCOffsetHours is a pointer
// so an explicit 0 (a UTC organization) is distinguishable from an omitted
// key, which defaults to +3.
type SweepConfig struct {
	StartHour       int  `yaml:"start_hour"`
	EndHour         int  `yaml:"end_hour"`
	UTCOffsetHours  *int `yaml:"utc_offset_hours"`
	IntervalMinutes int  `yaml:"interval_minutes"`
}

// HealthConfig enables the liveness HTTP endpoint when Listen is set,
// e.g. ":8081".
type HealthConfig struct {
	Listen string `yaml:"listen"`
}

// AppConfig is the full application configuration.
type AppConfig struct {
	coreconfig.Config `yaml:",inline"`

	PersonnelDB DatabaseConfig `yaml:"personnel_db"`
	MetaDB      DatabaseConfig `yaml:"meta_db"`
	Channels    ChannelsConfig `yaml:"channels"`
	Invites     InvitesConfig  `yaml:"invites"`
	Sweep       SweepConfig    `yaml:"sweep"`
	Health      HealthConfig   `yaml:"health"`
}

// CoreConfig exposes the embedded core configuration.
func (c *AppConfig) CoreConfig() *coreconfig.Config {
	return &c.Config
}

// Load reads the application configuration from a YAML file and environment
// variables, then validates it.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Config); err != nil {
		return nil, err
	}
	if err := normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func normalize(cfg *AppConfig) error {
	if err := requireDatabase("personnel_db", cfg.PersonnelDB); err != nil {
		return err
	}
	if err := requireDatabase("meta_db", cfg.MetaDB); err != nil {
		return err
	}

	if cfg.Invites.TTLHours < 0 {
		return fmt.Errorf("invites.ttl_hours must be >= 0")
	}
	if cfg.Invites.TTLHours == 0 {
		cfg.Invites.TTLHours = 24
	}
	if cfg.Invites.CleanupIntervalMinutes <= 0 {
		cfg.Invites.CleanupIntervalMinutes = 60
	}

	if cfg.Sweep.EndHour <= 0 {
		cfg.Sweep.EndHour = 5
	}
	if cfg.Sweep.StartHour < 0 || cfg.Sweep.StartHour > 23 {
		return fmt.Errorf("sweep.start_hour must be within 0..23")
	}
	if cfg.Sweep.EndHour <= cfg.Sweep.StartHour || cfg.Sweep.EndHour > 24 {
		return fmt.Errorf("sweep.end_hour must be within (start_hour)..24")
	}
	if cfg.Sweep.UTCOffsetHours == nil {
		offset := 3
		cfg.Sweep.UTCOffsetHours = &offset
	}
	if *cfg.Sweep.UTCOffsetHours < -12 || *cfg.Sweep.UTCOffsetHours > 14 {
		return fmt.Errorf("sweep.utc_offset_hours must be within -12..14")
	}
	if cfg.Sweep.IntervalMinutes <= 0 {
		cfg.Sweep.IntervalMinutes = 15
	}

	cfg.Channels.DefaultChannelID = strings.TrimSpace(cfg.Channels.DefaultChannelID)
	cfg.Channels.NewsChannelID = strings.TrimSpace(cfg.Channels.NewsChannelID)
	cfg.Channels.AdminLogChatID = strings.TrimSpace(cfg.Channels.AdminLogChatID)
	return nil
}

func requireDatabase(section string, db DatabaseConfig) error {
	if strings.TrimSpace(db.Host) == "" {
		return fmt.Errorf("%s.host is required", section)
	}
	if strings.TrimSpace(db.Name) == "" {
		return fmt.Errorf("%s.name is required", section)
	}
	return nil
}
