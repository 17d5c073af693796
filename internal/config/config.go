package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"scene-studio/internal/compose"
	"scene-studio/internal/gemini"
)

type Config struct {
	// GeminiAPIKey may be empty; edits then fail with a configuration error.
	GeminiAPIKey     string
	GeminiBaseURL    string
	GeminiAPIVersion string
	GeminiModel      string

	WebAddr     string
	CORSOrigins []string
	MaxBodySize int64

	InstructionTemplate string
	FitToScene          bool
	AllowPrivateURLs    bool
	PresetsFile         string

	LogLevel string
	Debug    bool

	PreferIPv4     bool
	HTTPTimeout    time.Duration
	RequestTimeout time.Duration

	TelegramToken      string
	MaxConcurrent      int
	MediaGroupDebounce time.Duration
	SessionTTL         time.Duration
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		GeminiAPIKey:        strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:       getEnv("GEMINI_BASE_URL", gemini.DefaultBaseURL),
		GeminiAPIVersion:    getEnv("GEMINI_API_VERSION", gemini.DefaultAPIVersion),
		GeminiModel:         getEnv("GEMINI_MODEL", gemini.DefaultModel),
		WebAddr:             getEnv("WEB_ADDR", ":8080"),
		CORSOrigins:         splitCSV(os.Getenv("CORS_ORIGINS")),
		MaxBodySize:         int64(getEnvInt("MAX_BODY_MB", 25)) << 20,
		InstructionTemplate: strings.ToLower(getEnv("INSTRUCTION_TEMPLATE", compose.TemplateScene)),
		FitToScene:          getEnvBool("FIT_TO_SCENE", false),
		AllowPrivateURLs:    getEnvBool("ALLOW_PRIVATE_URLS", false),
		PresetsFile:         strings.TrimSpace(os.Getenv("PRESETS_FILE")),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		Debug:               getEnvBool("DEBUG", false),
		PreferIPv4:          getEnvBool("PREFER_IPV4", true),
		HTTPTimeout:         time.Duration(getEnvInt("HTTP_TIMEOUT_SECONDS", 180)) * time.Second,
		RequestTimeout:      time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 240)) * time.Second,
		TelegramToken:       strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		MaxConcurrent:       getEnvInt("MAX_CONCURRENT", 4),
		MediaGroupDebounce:  time.Duration(getEnvInt("MEDIA_GROUP_DEBOUNCE_MS", 1200)) * time.Millisecond,
		SessionTTL:          time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)) * time.Minute,
	}

	if _, err := compose.Lookup(cfg.InstructionTemplate); err != nil {
		return Config{}, fmt.Errorf("INSTRUCTION_TEMPLATE: %w", err)
	}

	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 25 << 20
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 180 * time.Second
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 240 * time.Second
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}

	return cfg, nil
}

// RequireTelegram is checked by the bot entrypoint only.
func (c Config) RequireTelegram() error {
	if c.TelegramToken == "" {
		return errors.New("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	var out []string
	for _, p := range strings.Split(value, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
