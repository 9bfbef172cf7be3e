package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"   validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Learner  LearnerConfig  `mapstructure:"learner"  validate:"required"`
	LLM      LLMConfig      `mapstructure:"llm"      validate:"required"`
	Speech   SpeechConfig   `mapstructure:"speech"   validate:"required"`
	Chat     ChatConfig     `mapstructure:"chat"     validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port"      validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

// LearnerConfig identifies the single recognized learner and the guardrails
// applied to their voice turns. The learner ID is the one principal the
// transport-boundary authorization predicate compares against.
type LearnerConfig struct {
	ID                  string `mapstructure:"id"                     validate:"required,uuid4"`
	DisplayName         string `mapstructure:"display_name"           validate:"required"`
	Timezone            string `mapstructure:"timezone"               validate:"required"`
	MaxDailyVoiceTurns  int    `mapstructure:"max_daily_voice_turns"  validate:"required,gt=0"`
	MaxAudioSeconds     int    `mapstructure:"max_audio_seconds"      validate:"required,gt=0"`
	ContextWindowTurns  int    `mapstructure:"context_window_turns"   validate:"required,gt=0"`
	DueItemBatchSize    int    `mapstructure:"due_item_batch_size"    validate:"required,gt=0"`
	WeeklySummaryClock  string `mapstructure:"weekly_summary_clock"   validate:"required"`
	NudgeOffsetHours    int    `mapstructure:"nudge_offset_hours"     validate:"required,gt=0,lt=24"`
}

// LLMConfig contains all language-model integration settings.
type LLMConfig struct {
	GeminiAPIKey      string `mapstructure:"gemini_api_key"      validate:"required"`
	ModelName         string `mapstructure:"model_name"          validate:"required"`
	MaxRetries        int    `mapstructure:"max_retries"         validate:"gte=0"`
	RetryDelaySeconds int    `mapstructure:"retry_delay_seconds" validate:"gte=0"`
}

// SpeechConfig contains the speech vendor settings for transcription and
// synthesis.
type SpeechConfig struct {
	APIKey  string `mapstructure:"api_key"  validate:"required"`
	VoiceID string `mapstructure:"voice_id" validate:"required"`
	ModelID string `mapstructure:"model_id" validate:"required"`
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// ChatConfig contains the outbound chat-transport settings.
type ChatConfig struct {
	BotToken string `mapstructure:"bot_token" validate:"required"`
	ChatID   string `mapstructure:"chat_id"   validate:"required"`
	BaseURL  string `mapstructure:"base_url"  validate:"required,url"`
}
