package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the clubhouse backend.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Email      EmailConfig      `mapstructure:"email"`
	Club       ClubConfig       `mapstructure:"club"`
	Membership MembershipConfig `mapstructure:"membership"`
	Automation AutomationConfig `mapstructure:"automation"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver       string       `mapstructure:"driver"`
	Path         string       `mapstructure:"path"`
	DSN          string       `mapstructure:"dsn"`
	MaxOpenConns int          `mapstructure:"max_open_conns"`
	Postgres     DBAuthConfig `mapstructure:"postgres"`
	MySQL        DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Host     string            `mapstructure:"host"`
	Port     int               `mapstructure:"port"`
	Database string            `mapstructure:"database"`
	Username string            `mapstructure:"username"`
	Password string            `mapstructure:"password"`
	Options  map[string]string `mapstructure:"options"`
}

// CacheConfig describes cache backends.
type CacheConfig struct {
	Redis RedisCacheConfig `mapstructure:"redis"`
}

// RedisCacheConfig holds Redis connection options.
type RedisCacheConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	URL      string        `mapstructure:"url"`
	Address  string        `mapstructure:"address"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AuthConfig captures bearer token verification settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures JWT access tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"access_token_ttl"`
}

// EmailConfig captures outbound email settings.
type EmailConfig struct {
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Addresses AddressesConfig `mapstructure:"addresses"`
}

// SMTPConfig defines SMTP dialer settings for sending email.
type SMTPConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"`
	From     string        `mapstructure:"from"`
	UseTLS   bool          `mapstructure:"use_tls"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// AddressesConfig lists the club mailboxes used by notifications.
type AddressesConfig struct {
	NoReply   string   `mapstructure:"no_reply"`
	Secretary string   `mapstructure:"secretary"`
	Webmaster string   `mapstructure:"webmaster"`
	Board     []string `mapstructure:"board"`
}

// ClubConfig describes the club itself.
type ClubConfig struct {
	Name      string        `mapstructure:"name"`
	ShortName string        `mapstructure:"short_name"`
	BaseURL   string        `mapstructure:"base_url"`
	Timezone  string        `mapstructure:"timezone"`
	Meeting   MeetingConfig `mapstructure:"meeting"`
}

// MeetingConfig describes the recurring monthly membership meeting.
type MeetingConfig struct {
	Title     string `mapstructure:"title"`
	Location  string `mapstructure:"location"`
	Weekday   string `mapstructure:"weekday"`
	Week      int    `mapstructure:"week"`
	StartTime string `mapstructure:"start_time"`
	EndTime   string `mapstructure:"end_time"`
}

// MembershipConfig tunes membership rules.
type MembershipConfig struct {
	GuestMaxRuns        int           `mapstructure:"guest_max_runs"`
	LockedReminderAfter time.Duration `mapstructure:"locked_reminder_after"`
}

// AutomationConfig controls the scheduled automation runner.
type AutomationConfig struct {
	Embedded    bool          `mapstructure:"embedded"`
	Schedule    string        `mapstructure:"schedule"`
	Concurrency int           `mapstructure:"concurrency"`
	ClaimTTL    time.Duration `mapstructure:"claim_ttl"`
	CleanupSpec string        `mapstructure:"cleanup_schedule"`
	SendTimeout time.Duration `mapstructure:"send_timeout"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("CLUBHOUSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate rejects configurations the runner cannot operate with.
func (c *Config) Validate() error {
	if c.Membership.GuestMaxRuns <= 0 {
		return fmt.Errorf("config: membership.guest_max_runs must be positive, got %d", c.Membership.GuestMaxRuns)
	}
	if c.Automation.Concurrency <= 0 {
		return fmt.Errorf("config: automation.concurrency must be positive, got %d", c.Automation.Concurrency)
	}
	if _, err := c.Club.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the club timezone used to decide which calendar day it is.
func (c ClubConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("config: club.timezone: %w", err)
	}
	return loc, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/clubhouse.sqlite")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 0)

	v.SetDefault("cache.redis.enabled", false)
	v.SetDefault("cache.redis.url", "")
	v.SetDefault("cache.redis.address", "127.0.0.1:6379")
	v.SetDefault("cache.redis.username", "")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("cache.redis.timeout", "5s")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)

	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "clubhouse")
	v.SetDefault("auth.jwt.access_token_ttl", "15m")

	v.SetDefault("email.smtp.enabled", false)
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.from", "4-Players Webmaster <no-reply@4-playersofcolorado.org>")
	v.SetDefault("email.smtp.use_tls", true)
	v.SetDefault("email.smtp.timeout", "10s")
	v.SetDefault("email.addresses.no_reply", "4-Players Webmaster <no-reply@4-playersofcolorado.org>")
	v.SetDefault("email.addresses.secretary", "4-Players Secretary <secretary@4-playersofcolorado.org>")
	v.SetDefault("email.addresses.webmaster", "4-Players <webmaster@4-playersofcolorado.org>")
	v.SetDefault("email.addresses.board", []string{"board@4-playersofcolorado.org"})

	v.SetDefault("club.name", "4-Players of Colorado")
	v.SetDefault("club.short_name", "4-Players")
	v.SetDefault("club.base_url", "https://4-playersofcolorado.org")
	v.SetDefault("club.timezone", "America/Denver")
	v.SetDefault("club.meeting.title", "General Membership Meeting")
	v.SetDefault("club.meeting.location", "Charlie's Denver, 900 E Colfax Ave, Denver, CO 80218")
	v.SetDefault("club.meeting.weekday", "thursday")
	v.SetDefault("club.meeting.week", 1)
	v.SetDefault("club.meeting.start_time", "19:00")
	v.SetDefault("club.meeting.end_time", "20:30")

	v.SetDefault("membership.guest_max_runs", 3)
	v.SetDefault("membership.locked_reminder_after", "72h")

	v.SetDefault("automation.embedded", false)
	v.SetDefault("automation.schedule", "CRON_TZ=America/Denver 15 3 * * *")
	v.SetDefault("automation.concurrency", 8)
	v.SetDefault("automation.claim_ttl", "36h")
	v.SetDefault("automation.cleanup_schedule", "@daily")
	v.SetDefault("automation.send_timeout", "30s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
