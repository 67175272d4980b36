package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort string `mapstructure:"APP_PORT"`
	Env     string `mapstructure:"ENV"`

	// MongoDB connection string.
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	// Redis configuration.
	RedisAddr         string `mapstructure:"REDIS_ADDR"`
	RedisPassword     string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB      int    `mapstructure:"REDIS_CACHE_DB"`
	RedisQueueDB      int    `mapstructure:"REDIS_QUEUE_DB"`
	RedisStateDB      int    `mapstructure:"REDIS_STATE_DB"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Evolution API (WhatsApp gateway).
	EvolutionAPIURL    string `mapstructure:"EVOLUTION_API_URL"`
	EvolutionAPIKey    string `mapstructure:"EVOLUTION_API_KEY"`
	WebhookSecret      string `mapstructure:"WEBHOOK_SECRET"`
	DefaultSMSInstance string `mapstructure:"DEFAULT_SMS_INSTANCE"`

	// Google OAuth / Calendar.
	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `mapstructure:"GOOGLE_REDIRECT_URI"`

	// Gemini API key for the intent classifier.
	GeminiAPIKey string `mapstructure:"GEMINI_API_KEY"`

	// Conversation and scheduling defaults. Instances can override
	// working hours in their agent config.
	WorkingHoursStart   string `mapstructure:"WORKING_HOURS_START"`
	WorkingHoursEnd     string `mapstructure:"WORKING_HOURS_END"`
	SlotDurationMinutes int    `mapstructure:"SLOT_DURATION_MINUTES"`
	ConversationTTLMin  int    `mapstructure:"CONVERSATION_TTL_MIN"`
	DedupWindowMin      int    `mapstructure:"DEDUP_WINDOW_MIN"`
	AutoReplyEnabled    bool   `mapstructure:"AUTO_REPLY_ENABLED"`

	// Background processing.
	LaneBufferSize int `mapstructure:"LANE_BUFFER_SIZE"`
	CallTimeoutSec int `mapstructure:"CALL_TIMEOUT_SEC"`
}

var AppConfig Config

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_QUEUE_DB", 1)
	viper.SetDefault("REDIS_STATE_DB", 2)
	viper.SetDefault("WORKING_HOURS_START", "09:00")
	viper.SetDefault("WORKING_HOURS_END", "18:00")
	viper.SetDefault("SLOT_DURATION_MINUTES", 60)
	viper.SetDefault("CONVERSATION_TTL_MIN", 120)
	viper.SetDefault("DEDUP_WINDOW_MIN", 360)
	viper.SetDefault("AUTO_REPLY_ENABLED", true)
	viper.SetDefault("LANE_BUFFER_SIZE", 64)
	viper.SetDefault("CALL_TIMEOUT_SEC", 30)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// ConversationTTL returns the inactivity window after which a
// conversation state is considered stale.
func ConversationTTL() time.Duration {
	return time.Duration(AppConfig.ConversationTTLMin) * time.Minute
}

// DedupWindow returns how long processed message ids are remembered.
func DedupWindow() time.Duration {
	return time.Duration(AppConfig.DedupWindowMin) * time.Minute
}

// SlotDuration returns the default appointment slot length.
func SlotDuration() time.Duration {
	return time.Duration(AppConfig.SlotDurationMinutes) * time.Minute
}

// CallTimeout bounds every external call made from background processing.
func CallTimeout() time.Duration {
	return time.Duration(AppConfig.CallTimeoutSec) * time.Second
}
