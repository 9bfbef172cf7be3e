package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads configuration from environment variables (prefix KAIWA_) and,
// when present, a config.yaml in the working directory. Environment
// variables take precedence over file values. The populated Config is
// validated before being returned.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("learner.display_name", "Learner")
	v.SetDefault("learner.timezone", "UTC")
	v.SetDefault("learner.max_daily_voice_turns", 50)
	v.SetDefault("learner.max_audio_seconds", 60)
	v.SetDefault("learner.context_window_turns", 10)
	v.SetDefault("learner.due_item_batch_size", 5)
	v.SetDefault("learner.weekly_summary_clock", "20:00")
	v.SetDefault("learner.nudge_offset_hours", 6)
	v.SetDefault("llm.model_name", "gemini-2.0-flash")
	v.SetDefault("llm.max_retries", 2)
	v.SetDefault("llm.retry_delay_seconds", 2)
	v.SetDefault("speech.model_id", "eleven_multilingual_v2")
	v.SetDefault("speech.base_url", "https://api.elevenlabs.io")
	v.SetDefault("chat.base_url", "https://api.telegram.org")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// No config file is fine; everything can come from the environment.
	}

	v.SetEnvPrefix("KAIWA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
