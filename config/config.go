package config

import (
	"fmt"
	"os"
	"strconv"
)

// Provider names selectable via PAYMENT_PROVIDER.
const (
	ProviderFlutterwave = "flutterwave"
	ProviderStripe      = "stripe"
)

// Config holds every setting the service reads from the environment.
// Required keys are not validated at load time; each component checks the
// keys it depends on so a missing secret fails the dependent endpoint with a
// configuration error instead of a silent no-op.
type Config struct {
	Port     string
	BaseURL  string
	Provider string

	FlutterwaveSecretKey     string
	FlutterwaveWebhookSecret string
	StripeSecretKey          string

	NotionSecret     string
	NotionDatabaseID string

	ResendAPIKey string
	EmailFrom    string

	DeviceUnitPrice float64
	Currency        string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	KafkaBroker string
	KafkaTopic  string
}

func Load() *Config {
	unitPrice, err := strconv.ParseFloat(getEnv("DEVICE_UNIT_PRICE", "250"), 64)
	if err != nil || unitPrice <= 0 {
		unitPrice = 250
	}

	return &Config{
		Port:     getEnv("PORT", "8085"),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8085"),
		Provider: getEnv("PAYMENT_PROVIDER", ProviderFlutterwave),

		FlutterwaveSecretKey:     os.Getenv("FLUTTERWAVE_SECRET_KEY"),
		FlutterwaveWebhookSecret: os.Getenv("FLUTTERWAVE_WEBHOOK_SECRET"),
		StripeSecretKey:          os.Getenv("STRIPE_SECRET_KEY"),

		NotionSecret:     os.Getenv("NOTION_SECRET"),
		NotionDatabaseID: os.Getenv("NOTION_DB"),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    getEnv("EMAIL_FROM", "Neurolab <info@neurolab.cc>"),

		DeviceUnitPrice: unitPrice,
		Currency:        getEnv("CURRENCY", "USD"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "preorderdb"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		KafkaBroker: getEnv("KAFKA_BROKER", "localhost:9092"),
		KafkaTopic:  getEnv("KAFKA_TOPIC", "order_events"),
	}
}

// Require reports an error naming the first missing key out of the given
// name/value pairs. Components call it with the keys they depend on.
func Require(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			return fmt.Errorf("required configuration %s is not set", pairs[i])
		}
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
