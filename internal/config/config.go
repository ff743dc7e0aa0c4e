package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultBotUsername = "TGSongBot"

// Config aggregates runtime configuration for the billing service. It is built once
// at startup and passed by value to every component.
type Config struct {
	ListenAddr          string
	DatabaseURL         string
	StripeSecretKey     string
	StripeWebhookSecret string
	PublicBaseURL       string
	BotUsername         string
	StripeTimeout       time.Duration
	NotifyTimeout       time.Duration
	LogLevel            string
	TelegramBotToken    string
	AdminUsername       string
	AdminPassword       string
	S3Endpoint          string
	S3Region            string
	S3AccessKey         string
	S3SecretKey         string
	S3Bucket            string
	S3UsePathStyle      bool
	S3Prefix            string
}

// Load reads configuration from environment variables, applying sane defaults.
// Only DATABASE_URL is mandatory at startup; the Stripe secrets and the public base URL
// are checked by the handlers that need them so a partially configured deployment
// fails closed per request instead of refusing to boot.
func Load() (Config, error) {
	if err := loadEnvFile(); err != nil {
		return Config{}, err
	}

	cfg := Config{
		ListenAddr:          getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:         strings.TrimSpace(os.Getenv("DATABASE_URL")),
		StripeSecretKey:     strings.TrimSpace(os.Getenv("STRIPE_SECRET_KEY")),
		StripeWebhookSecret: strings.TrimSpace(os.Getenv("STRIPE_WEBHOOK_SECRET")),
		PublicBaseURL:       strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/"),
		BotUsername:         normalizeBotUsername(getEnv("BOT_USERNAME", defaultBotUsername)),
		StripeTimeout:       time.Second * time.Duration(getInt("STRIPE_TIMEOUT_SECONDS", 20)),
		NotifyTimeout:       time.Second * time.Duration(getInt("NOTIFY_TIMEOUT_SECONDS", 5)),
		LogLevel:            strings.ToLower(getEnv("LOG_LEVEL", "info")),
		TelegramBotToken:    strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN")),
		AdminUsername:       getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:       os.Getenv("ADMIN_PASSWORD"),
		S3Endpoint:          os.Getenv("S3_ENDPOINT"),
		S3Region:            getEnv("S3_REGION", "us-east-1"),
		S3AccessKey:         os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:         os.Getenv("S3_SECRET_KEY"),
		S3Bucket:            os.Getenv("S3_BUCKET"),
		S3UsePathStyle:      getBool("S3_USE_PATH_STYLE", false),
		S3Prefix:            getEnv("S3_PREFIX", "stripe-events"),
	}
	if cfg.BotUsername == "" {
		cfg.BotUsername = defaultBotUsername
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("missing required environment variables: %v", []string{"DATABASE_URL"})
	}

	return cfg, nil
}

// Unconfigured lists the variables whose absence disables part of the HTTP surface.
func (c Config) Unconfigured() []string {
	var missing []string
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	if c.PublicBaseURL == "" {
		missing = append(missing, "PUBLIC_BASE_URL")
	}
	return missing
}

// ArchiveEnabled reports whether credited events should be copied to S3.
func (c Config) ArchiveEnabled() bool {
	return c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil || i <= 0 {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

// loadEnvFile overlays the first env file found. An explicit CONFIG_ENV_PATH must
// exist; the default locations are optional.
func loadEnvFile() error {
	if custom, ok := os.LookupEnv("CONFIG_ENV_PATH"); ok && custom != "" {
		if err := godotenv.Overload(custom); err != nil {
			return fmt.Errorf("load env file %s: %w", custom, err)
		}
		return nil
	}

	for _, path := range []string{filepath.Join("configs", ".env"), ".env"} {
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("access env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("load env file %s: %w", path, err)
		}
		return nil
	}
	return nil
}

func normalizeBotUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "https://t.me/")
	username = strings.TrimPrefix(username, "t.me/")
	username = strings.TrimPrefix(username, "@")
	return strings.Trim(username, "/")
}
