package config

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	HTTPAddr    string
	DatabaseURL string
	Timezone    string

	AdminAPIKey string
	JWTSecret   string

	TelegramToken string
	AdminChatID   int64
	TelegramDebug bool

	RulesFile string

	// Значения по умолчанию для таблицы settings
	IdleThresholdSeconds     int
	HeartbeatIntervalSeconds int
	OfflineThresholdSeconds  int

	LiveQueueSize       int
	AutoCloseAfterHours int
	LogLevel            string
	HTTPDebug           bool
}

var instance *Config
var once sync.Once

// GetConfig возвращает конфигурацию процесса, .env читается один раз
func GetConfig() *Config {
	once.Do(func() {
		if err := godotenv.Load(); err != nil {
			logrus.Warnf("could not load .env file: %s", err.Error())
		}
		instance = Load()
		if err := instance.ApplyTimezone(); err != nil {
			logrus.WithError(err).Warnf("unknown timezone %q, using local", instance.Timezone)
		}
	})

	return instance
}

// Load читает конфигурацию из переменных окружения
func Load() *Config {
	cfg := &Config{
		HTTPAddr:                 getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:              getEnv("DATABASE_URL", "worksentry.db"),
		Timezone:                 getEnv("TIMEZONE", "Local"),
		AdminAPIKey:              getEnv("ADMIN_API_KEY", ""),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		TelegramToken:            getEnv("TELEGRAM_BOT_TOKEN", ""),
		AdminChatID:              getEnvAsInt("ADMIN_CHAT_ID", 0),
		TelegramDebug:            getEnvAsBool("TELEGRAM_DEBUG", false),
		RulesFile:                getEnv("RULES_FILE", ""),
		IdleThresholdSeconds:     int(getEnvAsInt("IDLE_THRESHOLD_SECONDS", 300)),
		HeartbeatIntervalSeconds: int(getEnvAsInt("HEARTBEAT_INTERVAL_SECONDS", 300)),
		OfflineThresholdSeconds:  int(getEnvAsInt("OFFLINE_THRESHOLD_SECONDS", 600)),
		LiveQueueSize:            int(getEnvAsInt("LIVE_QUEUE_SIZE", 64)),
		AutoCloseAfterHours:      int(getEnvAsInt("AUTO_CLOSE_AFTER_HOURS", 12)),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		HTTPDebug:                getEnvAsBool("HTTP_DEBUG", false),
	}

	if cfg.IdleThresholdSeconds <= 0 {
		cfg.IdleThresholdSeconds = 300
	}
	if cfg.HeartbeatIntervalSeconds <= 0 {
		cfg.HeartbeatIntervalSeconds = 300
	}
	if cfg.OfflineThresholdSeconds <= 0 {
		cfg.OfflineThresholdSeconds = 600
	}
	if cfg.LiveQueueSize <= 0 {
		cfg.LiveQueueSize = 64
	}

	return cfg
}

// ApplyTimezone задает часовой пояс для рабочих дат
func (c *Config) ApplyTimezone() error {
	name := strings.TrimSpace(c.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return err
	}
	time.Local = loc
	return nil
}

// TelegramEnabled - уведомления включены, если есть токен и чат
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.AdminChatID != 0
}

func (c *Config) AutoCloseAfter() time.Duration {
	if c.AutoCloseAfterHours <= 0 {
		return 0
	}
	return time.Duration(c.AutoCloseAfterHours) * time.Hour
}

func getEnv(key string, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultVal
}

func getEnvAsBool(name string, defaultVal bool) bool {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseBool(valStr); err == nil {
		return val
	}

	return defaultVal
}

func getEnvAsInt(name string, defaultVal int64) int64 {
	valStr := getEnv(name, "")
	if val, err := strconv.ParseInt(strings.TrimSpace(valStr), 10, 64); err == nil {
		return val
	}

	return defaultVal
}
