package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	postgres "github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/storage/postgres"
	"github.com/AnthonyGillesRudolfo/Terminal-Reader-Demo/internal/terminal"
)

// Config aggregates runtime configuration grouped by concern.
type Config struct {
	ServiceName string
	LogLevel    string
	HTTP        HTTPConfig
	Backend     BackendConfig
	Terminal    TerminalConfig
	Charge      ChargeConfig
	Cart        CartConfig
	Activity    ActivityConfig
	Kafka       KafkaConfig
	Database    postgres.DatabaseConfig
}

type HTTPConfig struct {
	Addr string
}

// BackendConfig describes the operator-run backend. URL may stay empty: the
// operator then supplies it through the API.
type BackendConfig struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

type TerminalConfig struct {
	CallTimeout       time.Duration
	CollectTimeout    time.Duration
	PresentDelay      time.Duration
	TestCard          terminal.TestCard
	RegisteredReaders []terminal.Reader
}

// ChargeConfig is the fixed charge used by the payment workflow. Amount is
// in the currency's minor unit.
type ChargeConfig struct {
	Amount      int64
	Currency    string
	Description string
}

type CartConfig struct {
	ItemDescription string
	Tax             int64
}

type ActivityConfig struct {
	BufferSize int
}

type KafkaConfig struct {
	Brokers       []string
	ActivityTopic string
	ActivityGroup string
}

// Enabled reports whether activity publishing to Kafka is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// Load reads configuration from environment variables, applying sensible defaults.
// When POS_CONFIG_FILE is set the YAML file is layered on top.
func Load() (Config, error) {
	cfg := Config{
		ServiceName: getEnv("SERVICE_NAME", "terminal-reader-demo"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		HTTP: HTTPConfig{
			Addr: getEnv("HTTP_LISTEN_ADDR", ":3000"),
		},
		Backend: BackendConfig{
			URL:    strings.TrimSpace(getEnv("BACKEND_URL", "")),
			APIKey: getEnv("BACKEND_API_KEY", ""),
		},
		Charge: ChargeConfig{
			Currency:    getEnv("CHARGE_CURRENCY", "usd"),
			Description: getEnv("CHARGE_DESCRIPTION", "Test Charge"),
		},
		Cart: CartConfig{
			ItemDescription: getEnv("CART_ITEM_DESCRIPTION", "Blue Shirt"),
		},
		Kafka: KafkaConfig{
			Brokers:       splitAndTrim(getEnv("KAFKA_BROKERS", "")),
			ActivityTopic: getEnv("KAFKA_ACTIVITY_TOPIC", "terminal.activity.v1"),
			ActivityGroup: getEnv("KAFKA_ACTIVITY_GROUP_ID", "activity-workers"),
		},
	}

	var err error
	if cfg.Backend.Timeout, err = getDuration("BACKEND_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Terminal.CallTimeout, err = getDuration("TERMINAL_CALL_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.Terminal.CollectTimeout, err = getDuration("TERMINAL_COLLECT_TIMEOUT", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.Terminal.PresentDelay, err = getDuration("TERMINAL_SIMULATOR_PRESENT_DELAY", 2*time.Second); err != nil {
		return Config{}, err
	}
	cfg.Terminal.TestCard, err = terminal.ParseTestCard(getEnv("TERMINAL_SIMULATOR_CARD", string(terminal.TestCardApproved)))
	if err != nil {
		return Config{}, fmt.Errorf("parse TERMINAL_SIMULATOR_CARD: %w", err)
	}
	if cfg.Charge.Amount, err = getInt64("CHARGE_AMOUNT", 5100); err != nil {
		return Config{}, err
	}
	bufSize, err := getInt64("ACTIVITY_BUFFER_SIZE", 200)
	if err != nil {
		return Config{}, err
	}
	cfg.Activity.BufferSize = int(bufSize)

	portStr := getEnv("ACTIVITY_DB_PORT", "5432")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Config{}, fmt.Errorf("parse ACTIVITY_DB_PORT: %w", err)
	}
	cfg.Database = postgres.DatabaseConfig{
		Host:     getEnv("ACTIVITY_DB_HOST", "localhost"),
		Port:     port,
		Database: getEnv("ACTIVITY_DB_NAME", "terminaldemo"),
		User:     getEnv("ACTIVITY_DB_USER", "terminaldemo"),
		Password: getEnv("ACTIVITY_DB_PASSWORD", ""),
	}

	if path := getEnv("POS_CONFIG_FILE", ""); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the controller cannot run with.
func (c Config) Validate() error {
	if c.Charge.Amount <= 0 {
		return fmt.Errorf("charge amount must be positive, got %d", c.Charge.Amount)
	}
	if c.Charge.Currency == "" {
		return fmt.Errorf("charge currency is required")
	}
	if c.Activity.BufferSize <= 0 {
		return fmt.Errorf("activity buffer size must be positive, got %d", c.Activity.BufferSize)
	}
	if c.Terminal.CollectTimeout <= 0 || c.Terminal.CallTimeout <= 0 {
		return fmt.Errorf("terminal timeouts must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt64(key string, fallback int64) (int64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
