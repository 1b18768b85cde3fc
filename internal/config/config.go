package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

// Config holds the console settings, loaded from the environment
type Config struct {
	HTTPAddr string
	LogLevel string

	InventoryServiceURL string
	OrderServiceURL     string
	PaymentServiceURL   string
	CheckoutServiceURL  string
	HealthPath          string

	RefreshInterval time.Duration
	FallbackDelay   time.Duration
	ReloadDelay     time.Duration
	ProbeTimeout    time.Duration
	CatalogTimeout  time.Duration
	CheckoutTimeout time.Duration

	ProbeConcurrency    int
	CheckoutConcurrency int

	RedisAddr    string
	RedisTTL     time.Duration
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads an optional .env file and then the process environment
func Load() Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Failed to read .env file")
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only
func FromEnv() Config {
	return Config{
		HTTPAddr: getEnv("CONSOLE_ADDR", ":8090"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		InventoryServiceURL: getEnv("INVENTORY_SERVICE_URL", "http://localhost:8081"),
		OrderServiceURL:     getEnv("ORDER_SERVICE_URL", "http://localhost:8082"),
		PaymentServiceURL:   getEnv("PAYMENT_SERVICE_URL", "http://localhost:8083"),
		CheckoutServiceURL:  getEnv("CHECKOUT_SERVICE_URL", "http://localhost:8084"),
		HealthPath:          getEnv("HEALTH_PATH", "/actuator/health"),

		RefreshInterval: getDuration("REFRESH_INTERVAL", 30*time.Second),
		FallbackDelay:   getDuration("FALLBACK_DELAY", 2*time.Second),
		ReloadDelay:     getDuration("RELOAD_DELAY", time.Second),
		ProbeTimeout:    getDuration("PROBE_TIMEOUT", 3*time.Second),
		CatalogTimeout:  getDuration("CATALOG_TIMEOUT", 5*time.Second),
		CheckoutTimeout: getDuration("CHECKOUT_TIMEOUT", 10*time.Second),

		ProbeConcurrency:    getInt("PROBE_CONCURRENCY", 0),
		CheckoutConcurrency: getInt("CHECKOUT_CONCURRENCY", 10),

		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisTTL:     getDuration("REDIS_TTL", 5*time.Minute),
		KafkaBrokers: splitCSV(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:   getEnv("KAFKA_TOPIC", "checkout.results"),
	}
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.WithFields(log.Fields{"key": key, "value": raw}).Warn("Invalid duration, using default")
		return fallback
	}
	return d
}

func getInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		log.WithFields(log.Fields{"key": key, "value": raw}).Warn("Invalid integer, using default")
		return fallback
	}
	return n
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
