package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config keeps runtime settings for the bot.
type Config struct {
	TelegramToken string `envconfig:"TELEGRAM_TOKEN" required:"true"`
	DatabaseURL   string `envconfig:"DATABASE_URL" default:"exam_coach.db"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error
	Timezone      string `envconfig:"TIMEZONE" default:"America/Sao_Paulo"`

	// ReminderHours maps a study slot to the local hour its outreach fires at.
	ReminderHours         map[string]int `envconfig:"REMINDER_HOURS" default:"morning:8,afternoon:13,evening:19"`
	ReminderTick          time.Duration  `envconfig:"REMINDER_TICK" default:"30m"`
	ReminderPause         time.Duration  `envconfig:"REMINDER_PAUSE" default:"1s"`
	ReminderRetentionDays int            `envconfig:"REMINDER_RETENTION_DAYS" default:"30"`
	ReminderBusyWindow    time.Duration  `envconfig:"REMINDER_BUSY_WINDOW" default:"30m"`

	FirstDayFreeLessons int     `envconfig:"FIRST_DAY_FREE_LESSONS" default:"3"`
	DailyFreeLessons    int     `envconfig:"DAILY_FREE_LESSONS" default:"0"`
	SeenWindow          int     `envconfig:"SEEN_WINDOW" default:"200"`
	WeakTopicBias       float64 `envconfig:"WEAK_TOPIC_BIAS" default:"0.7"`

	SessionIdleTimeout time.Duration `envconfig:"SESSION_IDLE_TIMEOUT" default:"0"`
	SendRetryDelay     time.Duration `envconfig:"SEND_RETRY_DELAY" default:"2s"`
	UpsellURL          string        `envconfig:"UPSELL_URL" default:"https://t.me/examcoach_pay"`
}

// Slots known to the scheduler and the onboarding questionnaire.
const (
	SlotMorning   = "morning"
	SlotAfternoon = "afternoon"
	SlotEvening   = "evening"
)

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c Config) Validate() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	if len(c.ReminderHours) == 0 {
		return fmt.Errorf("REMINDER_HOURS must name at least one slot")
	}
	seen := make(map[int]string, len(c.ReminderHours))
	for slot, hour := range c.ReminderHours {
		switch slot {
		case SlotMorning, SlotAfternoon, SlotEvening:
		default:
			return fmt.Errorf("unknown reminder slot %q", slot)
		}
		if hour < 0 || hour > 23 {
			return fmt.Errorf("reminder hour for %s out of range: %d", slot, hour)
		}
		if other, ok := seen[hour]; ok {
			return fmt.Errorf("slots %s and %s share hour %d", other, slot, hour)
		}
		seen[hour] = slot
	}
	if c.ReminderTick <= 0 {
		return fmt.Errorf("REMINDER_TICK must be positive")
	}
	if c.WeakTopicBias < 0 || c.WeakTopicBias > 1 {
		return fmt.Errorf("WEAK_TOPIC_BIAS must be within [0,1]")
	}
	if c.SeenWindow <= 0 {
		return fmt.Errorf("SEEN_WINDOW must be positive")
	}
	if c.FirstDayFreeLessons < 0 || c.DailyFreeLessons < 0 {
		return fmt.Errorf("free lesson allowances cannot be negative")
	}
	return nil
}

// Location resolves the platform's target timezone.
func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}
