package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration values loaded from environment variables.
type Config struct {
	DatabaseURL     string
	HTTPPort        string
	JWTSecret       string
	TokenExpiration time.Duration
	EncryptionKey   []byte // Raw key bytes (32 for AES-256)
	LogLevel        string

	// OperatorAPIKeyHash is a bcrypt hash accepted as an alternative to JWT
	// auth for service-to-service callers. Empty disables the API-key path.
	OperatorAPIKeyHash string

	// WhatsAppAPIBase is the Cloud API endpoint root. Overridable for tests.
	WhatsAppAPIBase string
	// WhatsAppVerifyToken answers the webhook subscription handshake.
	WhatsAppVerifyToken string
	// WhatsAppAppSecret signs inbound webhook payloads (X-Hub-Signature-256).
	WhatsAppAppSecret string

	// DedupWindow is the timestamp tolerance for cross-transport duplicate
	// detection during reconciliation.
	DedupWindow time.Duration
}

// Load reads configuration from environment variables. A .env file is loaded
// first when present, so local development does not need exported vars.
func Load() (*Config, error) {
	// Ignore the error: a missing .env is normal in production.
	_ = godotenv.Load()

	dbURL := getEnv("DATABASE_URL", "")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is not set")
	}

	tokenExpHours, err := strconv.Atoi(getEnv("JWT_EXPIRATION_HOURS", "24"))
	if err != nil || tokenExpHours <= 0 {
		tokenExpHours = 24
	}

	// ENCRYPTION_KEY must be 64 hex characters (32 raw bytes for AES-256).
	keyHex := getEnv("ENCRYPTION_KEY", "")
	if keyHex == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY environment variable is not set")
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decoding ENCRYPTION_KEY from hex: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be 32 bytes (64 hex characters), got %d bytes", len(key))
	}

	dedupMillis, err := strconv.Atoi(getEnv("DEDUP_WINDOW_MS", "5000"))
	if err != nil || dedupMillis < 0 {
		dedupMillis = 5000
	}

	cfg := &Config{
		DatabaseURL:         dbURL,
		HTTPPort:            getEnv("HTTP_PORT", "8080"),
		JWTSecret:           jwtSecret,
		TokenExpiration:     time.Duration(tokenExpHours) * time.Hour,
		EncryptionKey:       key,
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		OperatorAPIKeyHash:  getEnv("OPERATOR_API_KEY_HASH", ""),
		WhatsAppAPIBase:     getEnv("WHATSAPP_API_BASE", "https://graph.facebook.com/v19.0"),
		WhatsAppVerifyToken: getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:   getEnv("WHATSAPP_APP_SECRET", ""),
		DedupWindow:         time.Duration(dedupMillis) * time.Millisecond,
	}

	return cfg, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
