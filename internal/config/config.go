package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains all runtime settings for the chat-relay service.
type Config struct {
	BindAddr         string
	ShutdownTimeout  time.Duration
	MetricsNamespace string

	BotToken      string
	WebhookSecret string
	ExternalURL   string

	OpenAIAPIKey    string
	CompletionModel string
	Temperature     float32
	MaxTokens       int
	MaxRetries      int
	RetryBackoff    time.Duration
	RequestTimeout  time.Duration

	FreeMessageLimit   int
	MinMessageInterval time.Duration
	HistoryWindowSize  int
	PersonaPrompt      string

	PayPalClientID     string
	PayPalClientSecret string
	PayPalEnvironment  string
	PaymentReturnURL   string
	PaymentCancelURL   string
}

// DefaultPersonaPrompt seeds every conversation unless PERSONA_SYSTEM_PROMPT overrides it.
const DefaultPersonaPrompt = "You are Sophia, a romantic and flirty college girl in a texting simulation. " +
	"You never mention you're an AI or bot. Respond naturally, emotionally, and affectionately " +
	"using pet names, emojis, and humor."

// Load reads environment variables and applies safe defaults.
func Load() (Config, error) {
	cfg := Config{
		BindAddr:           envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:   envOrDefault("APP_METRICS_NAMESPACE", "sophia"),
		BotToken:           trimmedEnv("BOT_TOKEN"),
		WebhookSecret:      trimmedEnv("WEBHOOK_SECRET"),
		ExternalURL:        trimmedEnv("EXTERNAL_URL"),
		OpenAIAPIKey:       trimmedEnv("OPENAI_API_KEY"),
		CompletionModel:    envOrDefault("COMPLETION_MODEL", "gpt-4o-mini"),
		Temperature:        0.9,
		MaxTokens:          0,
		MaxRetries:         3,
		RetryBackoff:       time.Second,
		RequestTimeout:     30 * time.Second,
		FreeMessageLimit:   4,
		MinMessageInterval: 3 * time.Second,
		HistoryWindowSize:  50,
		PersonaPrompt:      envOrDefault("PERSONA_SYSTEM_PROMPT", DefaultPersonaPrompt),
		PayPalClientID:     trimmedEnv("PAYPAL_CLIENT_ID"),
		PayPalClientSecret: trimmedEnv("PAYPAL_CLIENT_SECRET"),
		PayPalEnvironment:  envOrDefault("PAYPAL_ENVIRONMENT", "sandbox"),
		PaymentReturnURL:   trimmedEnv("PAYMENT_RETURN_URL"),
		PaymentCancelURL:   trimmedEnv("PAYMENT_CANCEL_URL"),
		ShutdownTimeout:    15 * time.Second,
	}

	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.Temperature, err = floatFromEnv("COMPLETION_TEMPERATURE", cfg.Temperature)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxTokens, err = intFromEnv("COMPLETION_MAX_TOKENS", cfg.MaxTokens)
	if err != nil {
		return Config{}, err
	}
	cfg.MaxRetries, err = intFromEnv("COMPLETION_MAX_RETRIES", cfg.MaxRetries)
	if err != nil {
		return Config{}, err
	}
	cfg.RetryBackoff, err = durationFromEnv("COMPLETION_RETRY_BACKOFF", cfg.RetryBackoff)
	if err != nil {
		return Config{}, err
	}
	cfg.RequestTimeout, err = durationFromEnv("COMPLETION_REQUEST_TIMEOUT", cfg.RequestTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.FreeMessageLimit, err = intFromEnv("FREE_MESSAGE_LIMIT", cfg.FreeMessageLimit)
	if err != nil {
		return Config{}, err
	}
	cfg.MinMessageInterval, err = durationFromEnv("MIN_SECONDS_BETWEEN_MESSAGES", cfg.MinMessageInterval)
	if err != nil {
		return Config{}, err
	}
	cfg.HistoryWindowSize, err = intFromEnv("HISTORY_WINDOW_SIZE", cfg.HistoryWindowSize)
	if err != nil {
		return Config{}, err
	}

	if cfg.BotToken == "" {
		return Config{}, fmt.Errorf("BOT_TOKEN is required")
	}
	if cfg.WebhookSecret == "" {
		return Config{}, fmt.Errorf("WEBHOOK_SECRET is required")
	}
	if cfg.FreeMessageLimit < 0 {
		return Config{}, fmt.Errorf("FREE_MESSAGE_LIMIT must be >= 0")
	}
	if cfg.MinMessageInterval < 0 {
		return Config{}, fmt.Errorf("MIN_SECONDS_BETWEEN_MESSAGES must be >= 0")
	}
	// The window must hold the pinned system turn plus at least one exchange.
	if cfg.HistoryWindowSize < 3 {
		return Config{}, fmt.Errorf("HISTORY_WINDOW_SIZE must be at least 3")
	}
	if cfg.MaxRetries < 1 {
		return Config{}, fmt.Errorf("COMPLETION_MAX_RETRIES must be at least 1")
	}
	if cfg.RetryBackoff < time.Second {
		return Config{}, fmt.Errorf("COMPLETION_RETRY_BACKOFF must be at least 1s")
	}
	if cfg.RequestTimeout <= 0 {
		return Config{}, fmt.Errorf("COMPLETION_REQUEST_TIMEOUT must be positive")
	}
	switch cfg.PayPalEnvironment {
	case "sandbox", "live":
	default:
		return Config{}, fmt.Errorf("PAYPAL_ENVIRONMENT must be sandbox or live")
	}

	return cfg, nil
}

// WebhookPath is the Telegram webhook route. Embedding the secret keeps the
// route unguessable, which is Telegram's recommended webhook hardening.
func (c Config) WebhookPath() string {
	return "/webhook/" + c.WebhookSecret
}

// WebhookURL is the public URL Telegram should deliver updates to.
func (c Config) WebhookURL() string {
	return strings.TrimRight(c.ExternalURL, "/") + c.WebhookPath()
}

func envOrDefault(key, fallback string) string {
	v := trimmedEnv(key)
	if v == "" {
		return fallback
	}
	return v
}

func trimmedEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	// Bare numbers mean seconds, matching how these limits were set historically.
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func intFromEnv(key string, fallback int) (int, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return n, nil
}

func floatFromEnv(key string, fallback float32) (float32, error) {
	v := trimmedEnv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 32)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return float32(f), nil
}
