package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds the loaded configuration
type Config struct {
	Port            string
	Env             string
	UpstreamURL     string
	UpstreamTimeout time.Duration
	JWTSecret       string
	LoginPath       string

	RedisURL       string
	SnapshotTTL    time.Duration
	IdempotencyTTL time.Duration

	EventSink        string
	KafkaBrokers     []string
	KafkaTopic       string
	CheckoutTopicARN string

	ShippingCharge   decimal.Decimal
	QuantityDebounce time.Duration
	ToastDuration    time.Duration
	SessionIdleTTL   time.Duration

	RateLimitPerMinute int
	AllowedOrigins     []string
	TracingEnabled     bool
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return Config{
		Port:            getEnv("PORT", "8095"),
		Env:             getEnv("APP_ENV", "development"),
		UpstreamURL:     strings.TrimSuffix(getEnv("UPSTREAM_API_URL", "http://localhost:8080/api"), "/"),
		UpstreamTimeout: getDuration("UPSTREAM_TIMEOUT", 10*time.Second),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		LoginPath:       getEnv("LOGIN_PATH", "/login"),

		RedisURL:       os.Getenv("REDIS_URL"),
		SnapshotTTL:    getDuration("CART_SNAPSHOT_TTL", 7*24*time.Hour),
		IdempotencyTTL: getDuration("IDEMPOTENCY_TTL", 24*time.Hour),

		EventSink:        strings.ToLower(getEnv("EVENT_SINK", "none")),
		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:       getEnv("KAFKA_TOPIC", "checkout.redirected"),
		CheckoutTopicARN: os.Getenv("CHECKOUT_SNS_TOPIC_ARN"),

		ShippingCharge:   getDecimal("SHIPPING_CHARGE", decimal.NewFromInt(60)),
		QuantityDebounce: getDuration("QUANTITY_DEBOUNCE", 500*time.Millisecond),
		ToastDuration:    getDuration("TOAST_DURATION", 3*time.Second),
		SessionIdleTTL:   getDuration("SESSION_IDLE_TTL", 30*time.Minute),

		RateLimitPerMinute: getInt("RATE_LIMIT_PER_MINUTE", 120),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000,https://jewelrybyluna.in")),
		TracingEnabled:     getEnv("TRACING_ENABLED", "false") == "true",
	}
}

func getEnv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Printf("invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return n
}

func getDecimal(key string, fallback decimal.Decimal) decimal.Decimal {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.IsNegative() {
		log.Printf("invalid %s=%q, using %s", key, raw, fallback)
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
