package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	WhatsApp WhatsAppConfig
	Twilio   TwilioConfig
	SMTP     SMTPConfig
	Worker   WorkerConfig
	Reminder ReminderConfig
	Magic    MagicConfig
	Session  SessionConfig
}

type ServerConfig struct {
	Address string
	// PublicBaseURL is the externally reachable origin used when building
	// magic links embedded in outbound messages.
	PublicBaseURL string
}

type DatabaseConfig struct {
	PostgresURL string
}

type RedisConfig struct {
	Enabled  bool
	Address  string
	Password string
	DB       int
}

type CacheConfig struct {
	DefaultTTL    time.Duration
	SweepInterval time.Duration
}

type WhatsAppConfig struct {
	BaseURL       string
	PhoneNumberID string
	AccessToken   string
}

func (c WhatsAppConfig) IsConfigured() bool {
	return c.PhoneNumberID != "" && c.AccessToken != ""
}

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	FromNumber string
}

func (c TwilioConfig) IsConfigured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Password string
}

func (c SMTPConfig) IsConfigured() bool {
	return c.Host != "" && c.From != ""
}

type WorkerConfig struct {
	// Enabled false makes the queue dispatch synchronously on enqueue.
	Enabled  bool
	IdleWait time.Duration
}

type ReminderConfig struct {
	Interval    time.Duration
	GracePeriod time.Duration
	RateLimit   time.Duration
}

type MagicConfig struct {
	TokenTTL time.Duration
}

type SessionConfig struct {
	Secret string
	TTL    time.Duration
}

func LoadAll() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Address:       getEnv("SERVER_ADDRESS", ":8080"),
			PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		},
		Database: DatabaseConfig{
			PostgresURL: mustEnv("POSTGRES_URL"),
		},
		Redis: loadRedisConfig(),
		Cache: CacheConfig{
			DefaultTTL:    time.Duration(getEnvInt("CACHE_TTL_SECONDS", 300)) * time.Second,
			SweepInterval: time.Duration(getEnvInt("CACHE_SWEEP_SECONDS", 30)) * time.Second,
		},
		WhatsApp: WhatsAppConfig{
			BaseURL:       getEnv("WHATSAPP_BASE_URL", "https://graph.facebook.com/v19.0"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			AccessToken:   os.Getenv("WHATSAPP_ACCESS_TOKEN"),
		},
		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			FromNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getEnv("SMTP_PORT", "587"),
			From:     os.Getenv("SMTP_FROM"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
		Worker: WorkerConfig{
			Enabled:  getEnvBool("WORKER_ENABLED", true),
			IdleWait: time.Duration(getEnvInt("WORKER_IDLE_WAIT_MS", 1000)) * time.Millisecond,
		},
		Reminder: ReminderConfig{
			Interval:    time.Duration(getEnvInt("REMINDER_INTERVAL_MINUTES", 15)) * time.Minute,
			GracePeriod: time.Duration(getEnvInt("REMINDER_GRACE_HOURS", 6)) * time.Hour,
			RateLimit:   time.Duration(getEnvInt("REMINDER_RATE_LIMIT_MINUTES", 60)) * time.Minute,
		},
		Magic: MagicConfig{
			TokenTTL: time.Duration(getEnvInt("MAGIC_TOKEN_TTL_MINUTES", 15)) * time.Minute,
		},
		Session: SessionConfig{
			Secret: mustEnv("SESSION_SECRET"),
			TTL:    time.Duration(getEnvInt("SESSION_TTL_HOURS", 24)) * time.Hour,
		},
	}

	validate(cfg)
	return cfg, nil
}

func loadRedisConfig() RedisConfig {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		return RedisConfig{Enabled: false}
	}

	return RedisConfig{
		Enabled:  true,
		Address:  addr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

func validate(cfg *Config) {
	if cfg.Cache.DefaultTTL <= 0 {
		panic("CACHE_TTL_SECONDS must be > 0")
	}
	if cfg.Cache.SweepInterval <= 0 {
		panic("CACHE_SWEEP_SECONDS must be > 0")
	}
	if cfg.Worker.IdleWait <= 0 {
		panic("WORKER_IDLE_WAIT_MS must be > 0")
	}
	if cfg.Reminder.Interval <= 0 {
		panic("REMINDER_INTERVAL_MINUTES must be > 0")
	}
	if cfg.Reminder.GracePeriod < 0 {
		panic("REMINDER_GRACE_HOURS must be >= 0")
	}
	if cfg.Reminder.RateLimit <= 0 {
		panic("REMINDER_RATE_LIMIT_MINUTES must be > 0")
	}
	if cfg.Magic.TokenTTL <= 0 {
		panic("MAGIC_TOKEN_TTL_MINUTES must be > 0")
	}
	if cfg.Session.TTL <= 0 {
		panic("SESSION_TTL_HOURS must be > 0")
	}
}

func mustEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("missing required env var: %s", key))
	}
	return val
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("invalid int for env %s: %s", key, v))
	}
	return i
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		panic(fmt.Sprintf("invalid bool for env %s: %s", key, v))
	}
	return b
}
