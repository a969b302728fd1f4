package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		TelegramToken: "token",
		Timezone:      "America/Sao_Paulo",
		ReminderHours: map[string]int{SlotMorning: 8, SlotAfternoon: 13, SlotEvening: 19},
		ReminderTick:  30 * time.Minute,
		SeenWindow:    200,
		WeakTopicBias: 0.7,
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", " abc ")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "abc", cfg.TelegramToken)
	assert.Equal(t, "exam_coach.db", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Minute, cfg.ReminderTick)
	assert.Equal(t, 30*time.Minute, cfg.ReminderBusyWindow)
	assert.Equal(t, 3, cfg.FirstDayFreeLessons)
	assert.Equal(t, 200, cfg.SeenWindow)
	assert.InDelta(t, 0.7, cfg.WeakTopicBias, 1e-9)
	assert.Equal(t, map[string]int{"morning": 8, "afternoon": 13, "evening": 19}, cfg.ReminderHours)
}

func TestLoadRequiresToken(t *testing.T) {
	t.Setenv("TELEGRAM_TOKEN", "")
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown slot", func(c *Config) { c.ReminderHours["night"] = 23 }},
		{"hour out of range", func(c *Config) { c.ReminderHours[SlotMorning] = 24 }},
		{"shared hour", func(c *Config) { c.ReminderHours[SlotEvening] = 8 }},
		{"bad timezone", func(c *Config) { c.Timezone = "Mars/Olympus" }},
		{"bias above one", func(c *Config) { c.WeakTopicBias = 1.5 }},
		{"zero tick", func(c *Config) { c.ReminderTick = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, validConfig().Validate())
}
