package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config is parsed from PULSECOACH_-prefixed environment variables.
type Config struct {
	DatabaseURI   string `envconfig:"DATABASE_URI" required:"true"`
	TelegramToken string `envconfig:"TELEGRAM_TOKEN" required:"true"`

	// Heartbeat period for the schedule engine.
	CheckInterval time.Duration `envconfig:"CHECK_INTERVAL" default:"30s"`
	// How long a delivered reminder may sit unresolved before it expires.
	GraceWindow time.Duration `envconfig:"GRACE_WINDOW" default:"4h"`
	// Late boundary for on-time completion classification.
	OnTimeTolerance time.Duration `envconfig:"ON_TIME_TOLERANCE" default:"15m"`
	// Freeze-day allowance seeded into new streaks.
	DefaultFreezeDays int `envconfig:"DEFAULT_FREEZE_DAYS" default:"2"`

	// Timezone assigned to definitions when the user has not set one.
	DefaultTimezone string `envconfig:"DEFAULT_TIMEZONE" default:"UTC"`

	// Telegram user allowed to run operator commands (0 disables them).
	AdminID int64 `envconfig:"ADMIN_ID" default:"0"`
}

func Load() (*Config, error) {
	// .env file is optional in production
	_ = godotenv.Load()

	cfg := &Config{}
	if err := envconfig.Process("PULSECOACH", cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
