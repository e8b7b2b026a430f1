package app

import (
	"os"
	"path/filepath"
	"time"
)

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	// APIBaseURL is the root of the remote auth authority.
	APIBaseURL string

	LogLevel  string
	LogFormat string

	HTTPTimeout time.Duration

	// Store selects the credential backend: "file", "memory", or "redis".
	Store string

	// CredentialsFile and Passphrase configure the encrypted file store.
	CredentialsFile string
	Passphrase      string

	// RedisAddr and RedisKey configure the redis store.
	RedisAddr string
	RedisKey  string

	// RefreshTTL is the advisory lifetime recorded with stored credentials.
	RefreshTTL time.Duration

	// DeviceID identifies this installation to the server. Empty means a
	// fresh ULID is generated at startup.
	DeviceID string
	Platform string

	// MetricsAddr, when set, serves Prometheus metrics while the process
	// runs (useful for agent deployments).
	MetricsAddr string
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		APIBaseURL: EnvString("PASSPORT_API_URL", ""),

		LogLevel:  EnvString("PASSPORT_LOG_LEVEL", "info"),
		LogFormat: EnvString("PASSPORT_LOG_FORMAT", "pretty"),

		HTTPTimeout: EnvDuration("PASSPORT_HTTP_TIMEOUT", 15*time.Second),

		Store: EnvString("PASSPORT_STORE", "file"),

		CredentialsFile: EnvString("PASSPORT_CREDENTIALS_FILE", defaultCredentialsFile()),
		Passphrase:      os.Getenv("PASSPORT_PASSPHRASE"),

		RedisAddr: EnvString("PASSPORT_REDIS_ADDR", "127.0.0.1:6379"),
		RedisKey:  EnvString("PASSPORT_REDIS_KEY", "passport:credential"),

		RefreshTTL: EnvDuration("PASSPORT_REFRESH_TTL", 30*24*time.Hour),

		DeviceID: EnvString("PASSPORT_DEVICE_ID", ""),
		Platform: EnvString("PASSPORT_PLATFORM", "desktop"),

		MetricsAddr: EnvString("PASSPORT_METRICS_ADDR", ""),
	}
}

func defaultCredentialsFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".passport/credentials"
	}
	return filepath.Join(dir, "passport", "credentials")
}
