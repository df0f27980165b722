package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	NodeEnv     string
	Port        string
	JWTSecret   string
	BaseURL     string
	AdminEmails []string
	Database    DatabaseConfig
	Gemini      GeminiConfig
	Cloudinary  CloudinaryConfig
	Telegram    TelegramConfig
	Reports     ReportsConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Alter    bool
}

// GeminiConfig holds the generative-text API configuration
type GeminiConfig struct {
	APIKey string
	Model  string
}

// CloudinaryConfig holds the file host configuration
type CloudinaryConfig struct {
	CloudName    string
	UploadPreset string
	APIKey       string
	APISecret    string
}

// Enabled reports whether uploads can be performed
func (c CloudinaryConfig) Enabled() bool {
	return c.CloudName != "" && c.UploadPreset != ""
}

// TelegramConfig holds the technician channel notifier configuration
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// Enabled reports whether notifications should be sent
func (c TelegramConfig) Enabled() bool {
	return c.Token != "" && c.ChatID != 0
}

// ReportsConfig tunes the reporting aggregator memo cache
type ReportsConfig struct {
	CacheSize int
	CacheTTL  time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	chatID, err := getEnvInt64("TELEGRAM_CHAT_ID", 0)
	if err != nil {
		return nil, err
	}
	cacheSize, err := getEnvInt64("REPORT_CACHE_SIZE", 64)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := time.ParseDuration(getEnv("REPORT_CACHE_TTL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REPORT_CACHE_TTL: %w", err)
	}

	port := getEnv("PORT", "3210")

	return &Config{
		NodeEnv:     getEnv("NODE_ENV", "development"),
		Port:        port,
		JWTSecret:   jwtSecret,
		BaseURL:     strings.TrimRight(getEnv("BASE_URL", "http://localhost:"+port), "/"),
		AdminEmails: splitList(os.Getenv("ADMIN_EMAILS")),
		Database: DatabaseConfig{
			Host:     getEnv("PG_HOST", "localhost"),
			Port:     getEnv("PG_PORT", "5432"),
			Username: getEnv("PG_USERNAME", "postgres"),
			Password: os.Getenv("PG_PASSWORD"),
			Database: getEnv("PG_DATABASE", "eckdesk"),
			Alter:    getEnv("DB_ALTER", "false") == "true",
		},
		Gemini: GeminiConfig{
			APIKey: os.Getenv("GEMINI_API_KEY"),
			Model:  getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		},
		Cloudinary: CloudinaryConfig{
			CloudName:    os.Getenv("CLOUDINARY_CLOUD_NAME"),
			UploadPreset: os.Getenv("CLOUDINARY_UPLOAD_PRESET"),
			APIKey:       os.Getenv("CLOUDINARY_API_KEY"),
			APISecret:    os.Getenv("CLOUDINARY_API_SECRET"),
		},
		Telegram: TelegramConfig{
			Token:  os.Getenv("TELEGRAM_TOKEN"),
			ChatID: chatID,
		},
		Reports: ReportsConfig{
			CacheSize: int(cacheSize),
			CacheTTL:  cacheTTL,
		},
	}, nil
}

// IsAdminEmail reports whether the address is listed in ADMIN_EMAILS
func (c *Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range c.AdminEmails {
		if a == email {
			return true
		}
	}
	return false
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
