package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is the runtime configuration of the watch agent.
type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// APIBaseURL is the root of the video platform REST API.
	APIBaseURL string
	// APIKey is attached to API, manifest and segment requests when non-empty.
	APIKey       string
	APIKeyHeader string
	// StorageBaseURL prefixes bare storage paths handed to the player.
	StorageBaseURL string

	Muted             bool
	Autoplay          bool
	AutoplayPolicy    string
	AutoplayCountdown time.Duration
	ControlsIdle      time.Duration
	RelatedPageSize   int
	HTTPTimeout       time.Duration

	// CatalogRateLimit caps outbound API requests per second; CatalogRetries
	// is the number of extra attempts after a network error or 5xx.
	CatalogRateLimit int
	CatalogRetries   int
	// ControlRateLimit caps control API requests per client per minute. Zero
	// disables limiting.
	ControlRateLimit int
	// SnapshotPath, when set, persists the committed page across restarts.
	SnapshotPath string
}

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// FromEnv builds a Config from the process environment, applying defaults for
// anything unset or malformed.
func FromEnv() Config {
	return Config{
		Port:              GetEnv("PORT", "8080"),
		LogLevel:          GetEnv("LOG_LEVEL", "info"),
		LogFormat:         GetEnv("LOG_FORMAT", "json"),
		APIBaseURL:        strings.TrimRight(GetEnv("API_BASE_URL", "http://localhost:3000/api"), "/"),
		APIKey:            GetEnv("API_KEY", ""),
		APIKeyHeader:      GetEnv("API_KEY_HEADER", "X-API-Key"),
		StorageBaseURL:    strings.TrimRight(GetEnv("STORAGE_BASE_URL", ""), "/"),
		Muted:             GetEnvBool("PLAYER_MUTED", false),
		Autoplay:          GetEnvBool("PLAYER_AUTOPLAY", true),
		AutoplayPolicy:    GetEnv("AUTOPLAY_POLICY", "muted-only"),
		AutoplayCountdown: GetEnvDuration("AUTOPLAY_COUNTDOWN", 5*time.Second),
		ControlsIdle:      GetEnvDuration("CONTROLS_IDLE", 3*time.Second),
		RelatedPageSize:   GetEnvInt("RELATED_PAGE_SIZE", 12),
		HTTPTimeout:       GetEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		CatalogRateLimit:  GetEnvInt("CATALOG_RATE_LIMIT", 20),
		CatalogRetries:    GetEnvInt("CATALOG_RETRIES", 2),
		ControlRateLimit:  GetEnvInt("CONTROL_RATE_LIMIT", 120),
		SnapshotPath:      GetEnv("SNAPSHOT_PATH", ""),
	}
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvBool accepts the forms understood by strconv.ParseBool.
func GetEnvBool(key string, fallback bool) bool {
	if s := os.Getenv(key); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return fallback
}

// GetEnvDuration accepts Go duration strings ("5s", "1500ms") or a bare number
// of seconds.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return fallback
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil && n >= 0 {
		return time.Duration(n * float64(time.Second))
	}
	return fallback
}
